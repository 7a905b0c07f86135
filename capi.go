package exprtk

import "sync"

// DescriptorMagic is the guard value carried by every valid [Descriptor].
// Embedders holding descriptors as opaque handles check it before use, so a
// stale or corrupted pointer fails loudly instead of dispatching through
// garbage.
const DescriptorMagic uint64 = 0xC0DEDF0F00D

type (
	// Descriptor is a type-erased handle to one [Expression], exposing its
	// metadata and operations without the element type parameter. It exists
	// for embedders (plugin hosts, foreign-function bridges) that cannot
	// carry Go generics across their boundary; Go callers should use
	// [Expression] directly.
	//
	// Buffers cross the descriptor boundary as plain values of the same
	// types the generic API accepts.
	Descriptor struct {
		// Magic is always [DescriptorMagic] for a descriptor produced by
		// [Expression.Descriptor].
		Magic uint64
		// Expression is the source text.
		Expression string
		// Type is the element type tag.
		Type Type
		// Scalars holds the declared scalar names in declaration order.
		Scalars []string
		// Vectors holds the declared vectors in declaration order.
		Vectors []Vector

		// Eval computes the expression; the result is a boxed value of the
		// expression's element type.
		Eval func(args map[string]any) (any, error)
		// Map traverses input binding each element to iterator; the result
		// is a boxed []T.
		Map func(input any, iterator string, args map[string]any) (any, error)
		// Reduce folds input; initializer is coerced to the element type.
		Reduce func(input any, iterator, accumulator string, initializer float64, args map[string]any) (any, error)
		// Cwise runs an element-wise traversal; a nil dest allocates.
		Cwise func(args map[string]any, dest any) (any, error)
	}

	descriptorOnce struct {
		once sync.Once
		desc *Descriptor
	}
)

// Valid reports whether d carries the descriptor magic.
func (d *Descriptor) Valid() bool { return d != nil && d.Magic == DescriptorMagic }

// Descriptor returns the type-erased handle for this expression, built once
// and cached. The handle stays valid for the expression's lifetime.
func (x *Expression[T]) Descriptor() *Descriptor {
	x.descOnce.once.Do(func() {
		x.descOnce.desc = &Descriptor{
			Magic:      DescriptorMagic,
			Expression: x.Text(),
			Type:       x.typ,
			Scalars:    x.Scalars(),
			Vectors:    x.Vectors(),
			Eval: func(args map[string]any) (any, error) {
				v, err := x.Eval(Args(args))
				if err != nil {
					return nil, err
				}
				return v, nil
			},
			Map: func(input any, iterator string, args map[string]any) (any, error) {
				v, err := x.Map(input, iterator, Args(args))
				if err != nil {
					return nil, err
				}
				return v, nil
			},
			Reduce: func(input any, iterator, accumulator string, initializer float64, args map[string]any) (any, error) {
				v, err := x.Reduce(input, iterator, accumulator, T(initializer), Args(args))
				if err != nil {
					return nil, err
				}
				return v, nil
			},
			Cwise: func(args map[string]any, dest any) (any, error) {
				var opts []CwiseOption
				if dest != nil {
					opts = append(opts, WithDest(dest))
				}
				return x.Cwise(Args(args), opts...)
			},
		}
	})
	return x.descOnce.desc
}
