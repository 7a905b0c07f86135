package exprtk

import "fmt"

// Strided is a non-contiguous view over a numeric buffer: an offset, a
// shape, and per-dimension strides measured in elements. Strides may be
// negative. Traversal order is row-major with the last dimension varying
// fastest, matching the linear order of a contiguous buffer with the same
// shape.
type Strided struct {
	// Data is the underlying buffer, any supported numeric slice type.
	Data any
	// Shape holds the per-dimension element counts; all must be positive.
	Shape []int
	// Stride holds the per-dimension element strides, one per dimension.
	Stride []int
	// Offset is the element index of the view's first element within Data.
	Offset int
}

// Elements returns the total element count of the view.
func (s *Strided) Elements() int {
	n := 1
	for _, d := range s.Shape {
		n *= d
	}
	if len(s.Shape) == 0 {
		return 0
	}
	return n
}

// validate checks the view's structure and that every reachable index lies
// within the underlying buffer.
func (s *Strided) validate(dataLen int) error {
	if len(s.Shape) == 0 {
		return fmt.Errorf(`strided view must have at least one dimension`)
	}
	if len(s.Stride) != len(s.Shape) {
		return fmt.Errorf(`strided view has %d strides for %d dimensions`, len(s.Stride), len(s.Shape))
	}
	min, max := s.Offset, s.Offset
	for d, n := range s.Shape {
		if n <= 0 {
			return fmt.Errorf(`strided view dimension %d has non-positive size %d`, d, n)
		}
		span := (n - 1) * s.Stride[d]
		if span > 0 {
			max += span
		} else {
			min += span
		}
	}
	if min < 0 || max >= dataLen {
		return fmt.Errorf(`strided view reaches elements [%d, %d] of a %d element buffer`, min, max, dataLen)
	}
	return nil
}

// stridedCursor walks a [Strided] view in traversal order, maintaining the
// multidimensional coordinate and the corresponding flat data index so each
// step is O(dimensions) without a full recompute.
type stridedCursor struct {
	shape  []int
	stride []int
	coord  []int
	idx    int
}

// newStridedCursor positions a cursor at the given linear element number of
// the view's traversal order.
func newStridedCursor(s *Strided, linear int) *stridedCursor {
	c := &stridedCursor{
		shape:  s.Shape,
		stride: s.Stride,
		coord:  make([]int, len(s.Shape)),
		idx:    s.Offset,
	}
	for d := len(s.Shape) - 1; d >= 0; d-- {
		c.coord[d] = linear % s.Shape[d]
		linear /= s.Shape[d]
		c.idx += c.coord[d] * s.Stride[d]
	}
	return c
}

// index returns the flat data index of the cursor's current element.
func (c *stridedCursor) index() int { return c.idx }

// next advances the cursor one element in traversal order, carrying into
// outer dimensions as inner ones wrap.
func (c *stridedCursor) next() {
	for d := len(c.shape) - 1; d >= 0; d-- {
		c.coord[d]++
		c.idx += c.stride[d]
		if c.coord[d] < c.shape[d] {
			return
		}
		c.idx -= c.coord[d] * c.stride[d]
		c.coord[d] = 0
	}
}
