package exprcore

import (
	"math"

	"github.com/dop251/goja"
)

// Builtin functions available to every expression, covering the arithmetic
// helpers of the original expression language. Installed per runtime clone;
// their names are reserved and may not be declared as variables.
var (
	builtins1 = map[string]func(float64) float64{
		"abs":   math.Abs,
		"floor": math.Floor,
		"ceil":  math.Ceil,
		"round": math.Round,
		"trunc": math.Trunc,
		"sqrt":  math.Sqrt,
		"exp":   math.Exp,
		"log":   math.Log,
		"log2":  math.Log2,
		"log10": math.Log10,
		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"asin":  math.Asin,
		"acos":  math.Acos,
		"atan":  math.Atan,
		"sinh":  math.Sinh,
		"cosh":  math.Cosh,
		"tanh":  math.Tanh,
	}

	builtins2 = map[string]func(float64, float64) float64{
		"atan2": math.Atan2,
		"pow":   math.Pow,
		"mod":   math.Mod,
		"hypot": math.Hypot,
	}
)

// IsBuiltin reports whether name is reserved by the builtin prelude.
func IsBuiltin(name string) bool {
	switch name {
	case "min", "max", "clamp", "pi":
		return true
	}
	if _, ok := builtins1[name]; ok {
		return true
	}
	_, ok := builtins2[name]
	return ok
}

func installBuiltins(vm *goja.Runtime) error {
	for name, f := range builtins1 {
		if err := vm.Set(name, f); err != nil {
			return err
		}
	}
	for name, f := range builtins2 {
		if err := vm.Set(name, f); err != nil {
			return err
		}
	}
	if err := vm.Set("min", variadic(math.Min, math.Inf(1))); err != nil {
		return err
	}
	if err := vm.Set("max", variadic(math.Max, math.Inf(-1))); err != nil {
		return err
	}
	if err := vm.Set("clamp", func(lo, v, hi float64) float64 {
		return math.Min(math.Max(v, lo), hi)
	}); err != nil {
		return err
	}
	return vm.Set("pi", math.Pi)
}

func variadic(f func(float64, float64) float64, identity float64) func(...float64) float64 {
	return func(xs ...float64) float64 {
		r := identity
		for _, x := range xs {
			r = f(r, x)
		}
		return r
	}
}
