package exprtk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferInfo(t *testing.T) {
	typ, n, ok := bufferInfo[float64]([]int16{1, 2, 3})
	require.True(t, ok)
	assert.Equal(t, Int16, typ)
	assert.Equal(t, 3, n)

	typ, n, ok = bufferInfo[float64]([]float64{1})
	require.True(t, ok)
	assert.Equal(t, Float64, typ)
	assert.Equal(t, 1, n)

	_, _, ok = bufferInfo[float64](`not a buffer`)
	assert.False(t, ok)
	_, _, ok = bufferInfo[float64]([]string{`x`})
	assert.False(t, ok)
}

func TestReaderFor(t *testing.T) {
	read, ok := readerFor[float64]([]int8{-3, 7})
	require.True(t, ok)
	assert.Equal(t, float64(-3), read(0))
	assert.Equal(t, float64(7), read(1))

	// float to integer truncates toward zero
	readInt, ok := readerFor[int32]([]float64{3.9, -3.9})
	require.True(t, ok)
	assert.Equal(t, int32(3), readInt(0))
	assert.Equal(t, int32(-3), readInt(1))

	_, ok = readerFor[float64](42)
	assert.False(t, ok)
}

func TestWriterFor(t *testing.T) {
	buf := make([]uint8, 2)
	write, ok := writerFor[float64](buf)
	require.True(t, ok)
	write(0, 7)
	write(1, 255)
	assert.Equal(t, []uint8{7, 255}, buf)

	native := make([]float64, 1)
	writeNative, ok := writerFor[float64](native)
	require.True(t, ok)
	writeNative(0, 1.5)
	assert.Equal(t, []float64{1.5}, native)

	_, ok = writerFor[float64](nil)
	assert.False(t, ok)
}

// roundTrip writes src through a wider buffer and reads it back, both
// directions going through the coercion tables.
func roundTrip[T Numeric](t *testing.T, src []T, wide any) {
	t.Helper()
	write, ok := writerFor[T](wide)
	require.True(t, ok, `%T`, wide)
	read, ok := readerFor[T](wide)
	require.True(t, ok, `%T`, wide)
	for i, v := range src {
		write(i, v)
	}
	for i, v := range src {
		assert.Equal(t, v, read(i), `%T index %d`, wide, i)
	}
}

func TestCoercion_integerRoundTrip(t *testing.T) {
	// widening to a same-signedness integer type, or to a float type wide
	// enough for every value, reproduces the full value range exactly
	t.Run(`int8`, func(t *testing.T) {
		src := []int8{-128, -1, 0, 1, 127}
		roundTrip(t, src, make([]int16, len(src)))
		roundTrip(t, src, make([]int32, len(src)))
		roundTrip(t, src, make([]float32, len(src)))
		roundTrip(t, src, make([]float64, len(src)))
	})
	t.Run(`uint8`, func(t *testing.T) {
		src := []uint8{0, 1, 128, 255}
		roundTrip(t, src, make([]uint16, len(src)))
		roundTrip(t, src, make([]uint32, len(src)))
		roundTrip(t, src, make([]float64, len(src)))
	})
	t.Run(`int16`, func(t *testing.T) {
		src := []int16{-32768, -1, 0, 1, 32767}
		roundTrip(t, src, make([]int32, len(src)))
		roundTrip(t, src, make([]float64, len(src)))
	})
	t.Run(`uint16`, func(t *testing.T) {
		src := []uint16{0, 1, 32768, 65535}
		roundTrip(t, src, make([]uint32, len(src)))
		roundTrip(t, src, make([]float64, len(src)))
	})
	t.Run(`int32`, func(t *testing.T) {
		// float64 holds every int32 exactly
		src := []int32{-2147483648, -1, 0, 1, 2147483647}
		roundTrip(t, src, make([]float64, len(src)))
	})
	t.Run(`uint32`, func(t *testing.T) {
		src := []uint32{0, 1, 2147483648, 4294967295}
		roundTrip(t, src, make([]float64, len(src)))
	})
}

func TestCoercion_floatRoundTrip(t *testing.T) {
	// every float32 is exactly representable as a float64
	src := []float32{3.14159, -2.5, 1e-8, 1e38, -1e-38}
	roundTrip(t, src, make([]float64, len(src)))
}

func TestCoercion_floatNarrowing(t *testing.T) {
	// float64 through a float32 buffer keeps values within float32
	// precision
	src := []float64{3.141592653589793, -2.718281828459045}
	buf := make([]float32, len(src))
	write, ok := writerFor[float64](buf)
	require.True(t, ok)
	read, ok := readerFor[float64](buf)
	require.True(t, ok)
	for i, v := range src {
		write(i, v)
	}
	for i, v := range src {
		assert.InEpsilon(t, v, read(i), 1e-6)
	}
}

func TestScalarTo(t *testing.T) {
	for _, value := range [...]any{int(7), int8(7), uint8(7), int16(7), uint16(7),
		int32(7), uint32(7), int64(7), uint64(7), uint(7), float32(7), float64(7)} {
		v, ok := scalarTo[float64](value)
		require.True(t, ok, `%T`, value)
		assert.Equal(t, float64(7), v, `%T`, value)
	}
	v, ok := scalarTo[int32](7.9)
	require.True(t, ok)
	assert.Equal(t, int32(7), v)

	_, ok = scalarTo[float64](`7`)
	assert.False(t, ok)
	_, ok = scalarTo[float64]([]float64{7})
	assert.False(t, ok)
}
