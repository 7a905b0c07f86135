package exprtk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCwise(t *testing.T) {
	expr, err := New[float64](`x * 2 + c`, WithScalars(`x`, `c`))
	require.NoError(t, err)

	out, err := expr.Cwise(Args{`x`: []float64{1, 2, 3}, `c`: 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 5, 7}, out)
}

func TestCwise_coercion(t *testing.T) {
	double, err := New[float64](`x * 2`)
	require.NoError(t, err)

	dest := make([]int32, 3)
	out, err := double.Cwise(Args{`x`: []int8{1, 2, 3}}, WithDest(dest))
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 4, 6}, out)
	assert.Equal(t, []int32{2, 4, 6}, dest)
}

func TestCwise_roundTrip(t *testing.T) {
	// identity traversal: narrow integers through a float64 expression and
	// back reproduce the full value range exactly
	ident, err := New[float64](`x`)
	require.NoError(t, err)

	t.Run(`int16`, func(t *testing.T) {
		src := []int16{-32768, -1, 0, 1, 32767}
		dest := make([]int16, len(src))
		_, err := ident.Cwise(Args{`x`: src}, WithDest(dest))
		require.NoError(t, err)
		assert.Equal(t, src, dest)
	})
	t.Run(`uint8`, func(t *testing.T) {
		src := []uint8{0, 1, 128, 255}
		dest := make([]uint8, len(src))
		_, err := ident.Cwise(Args{`x`: src}, WithDest(dest))
		require.NoError(t, err)
		assert.Equal(t, src, dest)
	})
}

func TestCwise_multipleVectors(t *testing.T) {
	expr, err := New[float64](`a * b`, WithScalars(`a`, `b`))
	require.NoError(t, err)
	out, err := expr.Cwise(Args{`a`: []float64{1, 2, 3}, `b`: []float64{4, 5, 6}})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 10, 18}, out)
}

func TestCwise_bindingErrors(t *testing.T) {
	expr, err := New[float64](`a * b`, WithScalars(`a`, `b`))
	require.NoError(t, err)

	t.Run(`vector expression rejected`, func(t *testing.T) {
		vec, err := New[float64](`v[0] + a`, WithVector(`v`, 2))
		require.NoError(t, err)
		_, err = vec.Cwise(Args{`a`: []float64{1}, `v`: []float64{1, 2}})
		var binding *BindingError
		require.ErrorAs(t, err, &binding)
		assert.Contains(t, binding.Error(), `scalar-only`)
	})
	t.Run(`length mismatch`, func(t *testing.T) {
		_, err := expr.Cwise(Args{`a`: []float64{1, 2, 3}, `b`: []float64{1, 2}})
		var binding *BindingError
		require.ErrorAs(t, err, &binding)
		assert.Contains(t, binding.Error(), `all vectors must have the same number of elements`)
	})
	t.Run(`no vector argument`, func(t *testing.T) {
		_, err := expr.Cwise(Args{`a`: 1, `b`: 2})
		var binding *BindingError
		require.ErrorAs(t, err, &binding)
		assert.Contains(t, binding.Error(), `at least one argument must be a non-zero length vector`)
	})
	t.Run(`empty vector`, func(t *testing.T) {
		_, err := expr.Cwise(Args{`a`: []float64{}, `b`: []float64{}})
		var binding *BindingError
		require.ErrorAs(t, err, &binding)
	})
	t.Run(`unknown argument`, func(t *testing.T) {
		_, err := expr.Cwise(Args{`a`: []float64{1}, `zz`: []float64{1}})
		var binding *BindingError
		require.ErrorAs(t, err, &binding)
		assert.Contains(t, binding.Error(), `is not a declared scalar variable`)
	})
	t.Run(`wrong argument count`, func(t *testing.T) {
		_, err := expr.Cwise(Args{`a`: []float64{1}})
		var binding *BindingError
		require.ErrorAs(t, err, &binding)
		assert.Contains(t, binding.Error(), `wrong number of input arguments`)
	})
	t.Run(`destination length mismatch`, func(t *testing.T) {
		_, err := expr.Cwise(Args{`a`: []float64{1, 2}, `b`: 1}, WithDest(make([]float64, 3)))
		var binding *BindingError
		require.ErrorAs(t, err, &binding)
	})
}

func TestCwise_parallelEquivalence(t *testing.T) {
	eng := newTestEngine(t, WithThreads(4), WithMaxParallelCeiling(16))
	expr, err := New[float64](`x * x + y`, WithEngine(eng), WithScalars(`x`, `y`), WithMaxParallel(8))
	require.NoError(t, err)

	const n = 1000
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}

	single, err := expr.Cwise(Args{`x`: x, `y`: 2}, WithParallel(1))
	require.NoError(t, err)
	for _, parallel := range [...]int{2, 4, 7} {
		split, err := expr.Cwise(Args{`x`: x, `y`: 2}, WithParallel(parallel))
		require.NoError(t, err)
		assert.Equal(t, single, split, `parallel=%d`, parallel)
	}
}

func TestCwise_parallelTooLarge(t *testing.T) {
	eng := newTestEngine(t, WithThreads(2), WithMaxParallelCeiling(4))
	expr, err := New[float64](`x`, WithEngine(eng))
	require.NoError(t, err)

	var capacity *CapacityError
	_, err = expr.Cwise(Args{`x`: []float64{1, 2}}, WithParallel(5))
	assert.ErrorAs(t, err, &capacity)
}

func TestCwise_stridedInput(t *testing.T) {
	expr, err := New[float64](`x + 1`)
	require.NoError(t, err)

	data := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	out, err := expr.Cwise(Args{`x`: &Strided{
		Data:   data,
		Shape:  []int{5},
		Stride: []int{2},
	}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 5, 7, 9}, out)
}

func TestCwise_stridedDest(t *testing.T) {
	expr, err := New[float64](`x`)
	require.NoError(t, err)

	dest := make([]float64, 5)
	_, err = expr.Cwise(Args{`x`: []float64{1, 2, 3, 4, 5}}, WithDest(&Strided{
		Data:   dest,
		Shape:  []int{5},
		Stride: []int{-1},
		Offset: 4,
	}))
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 4, 3, 2, 1}, dest)
}

func TestCwise_stridedParallelEquivalence(t *testing.T) {
	eng := newTestEngine(t, WithThreads(4), WithMaxParallelCeiling(16))
	expr, err := New[float64](`x * 3`, WithEngine(eng), WithMaxParallel(8))
	require.NoError(t, err)

	data := make([]float64, 200)
	for i := range data {
		data[i] = float64(i)
	}
	view := &Strided{Data: data, Shape: []int{10, 10}, Stride: []int{20, 2}}

	single, err := expr.Cwise(Args{`x`: view}, WithParallel(1))
	require.NoError(t, err)
	split, err := expr.Cwise(Args{`x`: view}, WithParallel(4))
	require.NoError(t, err)
	assert.Equal(t, single, split)
}

func TestCwise_invalidStrided(t *testing.T) {
	expr, err := New[float64](`x`)
	require.NoError(t, err)

	_, err = expr.Cwise(Args{`x`: &Strided{
		Data:   []float64{1, 2, 3},
		Shape:  []int{5},
		Stride: []int{1},
	}})
	var binding *BindingError
	require.ErrorAs(t, err, &binding)
}

func TestCwiseAsync(t *testing.T) {
	eng := newTestEngine(t, WithThreads(2), WithMaxParallelCeiling(8))
	expr, err := New[float64](`x * 2`, WithEngine(eng), WithMaxParallel(4))
	require.NoError(t, err)

	x := make([]float64, 100)
	for i := range x {
		x[i] = float64(i)
	}
	out, err := expr.CwiseAsync(Args{`x`: x}, WithParallel(4)).Wait(context.Background())
	require.NoError(t, err)
	result := out.([]float64)
	for i := range x {
		assert.Equal(t, float64(i)*2, result[i])
	}
}

func TestCwiseAsync_bindingErrorSettlesImmediately(t *testing.T) {
	expr, err := New[float64](`x`)
	require.NoError(t, err)
	d := expr.CwiseAsync(Args{})
	require.True(t, d.Settled())
	_, err = d.Result()
	var binding *BindingError
	assert.ErrorAs(t, err, &binding)
}

func TestChunkBounds(t *testing.T) {
	for _, tc := range [...]struct {
		elems, n int
	}{
		{10, 3}, {10, 1}, {7, 7}, {1000, 4}, {5, 4},
	} {
		covered := 0
		prevHi := 0
		for c := 0; c < tc.n; c++ {
			lo, hi := chunkBounds(tc.elems, tc.n, c)
			assert.Equal(t, prevHi, lo, `elems=%d n=%d c=%d`, tc.elems, tc.n, c)
			assert.Greater(t, hi, lo, `elems=%d n=%d c=%d`, tc.elems, tc.n, c)
			covered += hi - lo
			prevHi = hi
		}
		assert.Equal(t, tc.elems, covered, `elems=%d n=%d`, tc.elems, tc.n)
	}
}
