package exprtk

import (
	"fmt"
	"reflect"

	"golang.org/x/exp/constraints"
)

type (
	// Numeric constrains the eight element types an [Expression] can compute
	// over, mirroring the typed-array element kinds of the original
	// JavaScript API.
	Numeric interface {
		~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | constraints.Float
	}

	// Type tags one of the eight supported numeric element types. It
	// identifies both an [Expression] flavor and the element kind of any
	// buffer passed to [Expression.Cwise].
	Type uint8
)

// Tag order matches the typed-array kind order of the original C API; the
// coercion caster tables in coerce.go are indexed by it.
const (
	Int8 Type = iota
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Float32
	Float64

	numTypes = 8
)

// String returns the conventional name of the type tag, e.g. "Float64".
func (t Type) String() string {
	switch t {
	case Int8:
		return "Int8"
	case Uint8:
		return "Uint8"
	case Int16:
		return "Int16"
	case Uint16:
		return "Uint16"
	case Int32:
		return "Int32"
	case Uint32:
		return "Uint32"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Size returns the element width in bytes.
func (t Type) Size() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

func (t Type) valid() bool { return t < numTypes }

// typeOf resolves the tag for a Numeric type parameter. Named types with a
// supported underlying kind resolve through reflection.
func typeOf[T Numeric]() Type {
	var z T
	switch any(z).(type) {
	case int8:
		return Int8
	case uint8:
		return Uint8
	case int16:
		return Int16
	case uint16:
		return Uint16
	case int32:
		return Int32
	case uint32:
		return Uint32
	case float32:
		return Float32
	case float64:
		return Float64
	}
	switch reflect.TypeOf(z).Kind() {
	case reflect.Int8:
		return Int8
	case reflect.Uint8:
		return Uint8
	case reflect.Int16:
		return Int16
	case reflect.Uint16:
		return Uint16
	case reflect.Int32:
		return Int32
	case reflect.Uint32:
		return Uint32
	case reflect.Float32:
		return Float32
	default:
		return Float64
	}
}
