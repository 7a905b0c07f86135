package exprtk

// The cwise traversal engine accepts buffers of any of the eight element
// types, while the expression itself computes in its native type T. The
// caster tables below convert per element, in both directions. Conversions
// use Go's native numeric conversion semantics: integer conversions wrap
// two's complement, float to integer truncates toward zero.

// bufferInfo resolves the type tag and element count of a numeric buffer.
// A []T buffer (the expression's native type) resolves first, so named
// Numeric types behave identically to their underlying kind.
func bufferInfo[T Numeric](buf any) (Type, int, bool) {
	switch b := buf.(type) {
	case []T:
		return typeOf[T](), len(b), true
	case []int8:
		return Int8, len(b), true
	case []uint8:
		return Uint8, len(b), true
	case []int16:
		return Int16, len(b), true
	case []uint16:
		return Uint16, len(b), true
	case []int32:
		return Int32, len(b), true
	case []uint32:
		return Uint32, len(b), true
	case []float32:
		return Float32, len(b), true
	case []float64:
		return Float64, len(b), true
	}
	return 0, 0, false
}

// readerFor binds a buffer to a per-element accessor coercing into the
// expression's native type.
func readerFor[T Numeric](buf any) (func(i int) T, bool) {
	switch b := buf.(type) {
	case []T:
		return func(i int) T { return b[i] }, true
	case []int8:
		return func(i int) T { return T(b[i]) }, true
	case []uint8:
		return func(i int) T { return T(b[i]) }, true
	case []int16:
		return func(i int) T { return T(b[i]) }, true
	case []uint16:
		return func(i int) T { return T(b[i]) }, true
	case []int32:
		return func(i int) T { return T(b[i]) }, true
	case []uint32:
		return func(i int) T { return T(b[i]) }, true
	case []float32:
		return func(i int) T { return T(b[i]) }, true
	case []float64:
		return func(i int) T { return T(b[i]) }, true
	}
	return nil, false
}

// writerFor binds a buffer to a per-element store coercing out of the
// expression's native type.
func writerFor[T Numeric](buf any) (func(i int, v T), bool) {
	switch b := buf.(type) {
	case []T:
		return func(i int, v T) { b[i] = v }, true
	case []int8:
		return func(i int, v T) { b[i] = int8(v) }, true
	case []uint8:
		return func(i int, v T) { b[i] = uint8(v) }, true
	case []int16:
		return func(i int, v T) { b[i] = int16(v) }, true
	case []uint16:
		return func(i int, v T) { b[i] = uint16(v) }, true
	case []int32:
		return func(i int, v T) { b[i] = int32(v) }, true
	case []uint32:
		return func(i int, v T) { b[i] = uint32(v) }, true
	case []float32:
		return func(i int, v T) { b[i] = float32(v) }, true
	case []float64:
		return func(i int, v T) { b[i] = float64(v) }, true
	}
	return nil, false
}

// scalarTo coerces any Go numeric scalar to the expression's native type.
func scalarTo[T Numeric](v any) (T, bool) {
	switch n := v.(type) {
	case T:
		return n, true
	case int:
		return T(n), true
	case int8:
		return T(n), true
	case uint8:
		return T(n), true
	case int16:
		return T(n), true
	case uint16:
		return T(n), true
	case int32:
		return T(n), true
	case uint32:
		return T(n), true
	case int64:
		return T(n), true
	case uint64:
		return T(n), true
	case uint:
		return T(n), true
	case float32:
		return T(n), true
	case float64:
		return T(n), true
	}
	return 0, false
}
