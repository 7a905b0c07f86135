package exprcore

import (
	"errors"

	"github.com/dop251/goja"
)

// Instance is one evaluator clone: the shared compiled program driven by a
// private [goja.Runtime] holding this clone's variable bindings.
//
// An Instance is NOT safe for concurrent use. It supports exactly one
// evaluation at a time; callers must guarantee exclusive access for the
// full import-bindings-then-evaluate sequence.
type Instance struct {
	vm   *goja.Runtime
	prog *goja.Program
}

// NewInstance creates a fresh clone: a new runtime with the builtin prelude
// installed, every declared scalar initialized to zero, and every declared
// vector unbound (it must be rebound to a caller buffer before evaluation).
func (x *Expression) NewInstance() (*Instance, error) {
	vm := goja.New()
	if err := installBuiltins(vm); err != nil {
		return nil, err
	}
	for _, name := range x.scalars {
		if err := vm.Set(name, float64(0)); err != nil {
			return nil, err
		}
	}
	for _, v := range x.vectors {
		if err := vm.Set(v.Name, goja.Null()); err != nil {
			return nil, err
		}
	}
	return &Instance{vm: vm, prog: x.prog}, nil
}

// SetScalar assigns a scalar variable binding.
func (i *Instance) SetScalar(name string, v float64) error {
	return i.vm.Set(name, v)
}

// RebindVector points a vector variable at a caller-owned buffer. The
// buffer is shared, not copied; it must stay alive and unwritten for the
// duration of any evaluation that reads it.
func (i *Instance) RebindVector(name string, data any) error {
	return i.vm.Set(name, data)
}

// Evaluate runs the program against the current bindings and returns the
// completion value as a float64 computation value.
func (i *Instance) Evaluate() (float64, error) {
	v, err := i.vm.RunProgram(i.prog)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, errors.New("expression produced no value")
	}
	return v.ToFloat(), nil
}
