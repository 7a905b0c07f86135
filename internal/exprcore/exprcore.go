// Package exprcore compiles and evaluates numeric expressions on behalf of
// the exprtk package. It wraps the [github.com/dop251/goja] JavaScript
// runtime: expressions use goja's expression grammar, a compiled
// [goja.Program] is immutable and shared across clones, and each [Instance]
// owns one non-reentrant [goja.Runtime] with private variable bindings.
package exprcore

import (
	"fmt"

	"github.com/dop251/goja"
)

type (
	// VectorDecl declares a vector variable and its fixed element count.
	VectorDecl struct {
		Name string
		Size int
	}

	// Expression is an immutable compiled program plus its declared
	// variable order (scalars first, then vectors). It holds no evaluation
	// state; evaluation happens on an [Instance].
	Expression struct {
		text    string
		prog    *goja.Program
		scalars []string
		vectors []VectorDecl
	}

	// SyntaxError reports malformed expression text. Message includes the
	// parser's own position information.
	SyntaxError struct {
		Message string
	}

	// UndeclaredError reports a free variable referenced by the expression
	// but absent from the declarations.
	UndeclaredError struct {
		Name     string
		Position int // 1-based offset within the expression text
	}
)

func (e *SyntaxError) Error() string { return e.Message }

func (e *UndeclaredError) Error() string {
	return fmt.Sprintf("undefined symbol %s at %d", e.Name, e.Position)
}

// Compile parses and compiles text against the declared variables.
//
// If scalars is nil, the free variables of the expression (in first
// reference order) become the scalar declarations, matching the collect
// behavior of the original library. An explicitly empty, non-nil slice
// declares no scalars.
//
// Every identifier the expression references must resolve to a declared
// scalar, a declared vector, a builtin function, or a local variable bound
// within the expression itself; anything else fails compilation.
func Compile(text string, scalars []string, vectors []VectorDecl) (*Expression, error) {
	prog, err := goja.Parse("<expression>", text)
	if err != nil {
		return nil, &SyntaxError{Message: err.Error()}
	}

	free := collectFreeVars(prog)

	if scalars == nil {
		scalars = make([]string, 0, len(free))
		for _, v := range free {
			if !isVector(vectors, v.name) {
				scalars = append(scalars, v.name)
			}
		}
	}

	for _, name := range scalars {
		if IsBuiltin(name) {
			return nil, fmt.Errorf("%s is not a valid variable name", name)
		}
	}
	for _, v := range vectors {
		if IsBuiltin(v.Name) {
			return nil, fmt.Errorf("%s is not a valid vector name", v.Name)
		}
		if v.Size <= 0 {
			return nil, fmt.Errorf("vector %s size must be positive", v.Name)
		}
	}

	declared := make(map[string]struct{}, len(scalars)+len(vectors))
	for _, name := range scalars {
		declared[name] = struct{}{}
	}
	for _, v := range vectors {
		declared[v.Name] = struct{}{}
	}
	for _, v := range free {
		if _, ok := declared[v.name]; !ok {
			return nil, &UndeclaredError{Name: v.name, Position: v.pos}
		}
	}

	compiled, err := goja.CompileAST(prog, false)
	if err != nil {
		return nil, &SyntaxError{Message: err.Error()}
	}

	return &Expression{
		text:    text,
		prog:    compiled,
		scalars: scalars,
		vectors: vectors,
	}, nil
}

// Text returns the expression source.
func (x *Expression) Text() string { return x.text }

// Scalars returns the declared scalar names in declaration order.
func (x *Expression) Scalars() []string { return x.scalars }

// Vectors returns the declared vectors in declaration order.
func (x *Expression) Vectors() []VectorDecl { return x.vectors }

func isVector(vectors []VectorDecl, name string) bool {
	for _, v := range vectors {
		if v.Name == name {
			return true
		}
	}
	return false
}
