package exprtk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrided_elements(t *testing.T) {
	assert.Equal(t, 6, (&Strided{Shape: []int{2, 3}}).Elements())
	assert.Equal(t, 5, (&Strided{Shape: []int{5}}).Elements())
	assert.Equal(t, 0, (&Strided{}).Elements())
}

func TestStrided_validate(t *testing.T) {
	for _, tc := range [...]struct {
		name    string
		view    Strided
		dataLen int
		ok      bool
	}{
		{`contiguous`, Strided{Shape: []int{5}, Stride: []int{1}}, 5, true},
		{`every other`, Strided{Shape: []int{5}, Stride: []int{2}}, 10, true},
		{`reversed`, Strided{Shape: []int{5}, Stride: []int{-1}, Offset: 4}, 5, true},
		{`matrix`, Strided{Shape: []int{2, 3}, Stride: []int{3, 1}}, 6, true},
		{`no dimensions`, Strided{}, 5, false},
		{`stride count mismatch`, Strided{Shape: []int{2, 3}, Stride: []int{1}}, 6, false},
		{`zero dimension`, Strided{Shape: []int{0}, Stride: []int{1}}, 5, false},
		{`past the end`, Strided{Shape: []int{5}, Stride: []int{2}}, 9, false},
		{`before the start`, Strided{Shape: []int{5}, Stride: []int{-1}, Offset: 3}, 5, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.view.validate(tc.dataLen)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func stridedIndices(s *Strided) []int {
	out := make([]int, s.Elements())
	cur := newStridedCursor(s, 0)
	for i := range out {
		out[i] = cur.index()
		cur.next()
	}
	return out
}

func TestStridedCursor_traversal(t *testing.T) {
	for _, tc := range [...]struct {
		name string
		view Strided
		want []int
	}{
		{`contiguous`, Strided{Shape: []int{4}, Stride: []int{1}}, []int{0, 1, 2, 3}},
		{`every other`, Strided{Shape: []int{4}, Stride: []int{2}, Offset: 1}, []int{1, 3, 5, 7}},
		{`reversed`, Strided{Shape: []int{4}, Stride: []int{-1}, Offset: 3}, []int{3, 2, 1, 0}},
		{`row major`, Strided{Shape: []int{2, 3}, Stride: []int{3, 1}}, []int{0, 1, 2, 3, 4, 5}},
		{`transposed`, Strided{Shape: []int{3, 2}, Stride: []int{1, 3}}, []int{0, 3, 1, 4, 2, 5}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stridedIndices(&tc.view))
		})
	}
}

func TestStridedCursor_linearStart(t *testing.T) {
	view := &Strided{Shape: []int{3, 4}, Stride: []int{8, 2}, Offset: 1}
	require.NoError(t, view.validate(100))
	full := stridedIndices(view)
	for linear := 0; linear < view.Elements(); linear++ {
		cur := newStridedCursor(view, linear)
		for k := linear; k < view.Elements(); k++ {
			assert.Equal(t, full[k], cur.index(), `linear=%d k=%d`, linear, k)
			cur.next()
		}
	}
}
