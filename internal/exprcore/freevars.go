package exprcore

import (
	"github.com/dop251/goja/ast"
)

type freeVar struct {
	name string
	pos  int
}

// collectFreeVars walks the parsed program and returns every referenced
// identifier that is neither a builtin nor bound by a var statement inside
// the expression, deduplicated, in first reference order.
//
// The walk covers the expression-oriented subset of the grammar; constructs
// outside it are skipped, which at worst means a variable goes uncollected
// and compilation reports it as undeclared.
func collectFreeVars(prog *ast.Program) []freeVar {
	c := &freeVarCollector{
		seen:  make(map[string]struct{}),
		bound: make(map[string]struct{}),
	}
	// two passes: locals bind regardless of position
	for _, stmt := range prog.Body {
		c.bindStatement(stmt)
	}
	for _, stmt := range prog.Body {
		c.statement(stmt)
	}
	return c.free
}

type freeVarCollector struct {
	seen  map[string]struct{}
	bound map[string]struct{}
	free  []freeVar
}

func (c *freeVarCollector) bindStatement(stmt ast.Statement) {
	if s, ok := stmt.(*ast.VariableStatement); ok {
		for _, b := range s.List {
			if id, ok := b.Target.(*ast.Identifier); ok {
				c.bound[string(id.Name)] = struct{}{}
			}
		}
	}
}

func (c *freeVarCollector) statement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		c.expression(s.Expression)
	case *ast.VariableStatement:
		for _, b := range s.List {
			c.expression(b.Initializer)
		}
	}
}

func (c *freeVarCollector) expression(expr ast.Expression) {
	switch e := expr.(type) {
	case nil:
	case *ast.Identifier:
		c.reference(string(e.Name), int(e.Idx))
	case *ast.BinaryExpression:
		c.expression(e.Left)
		c.expression(e.Right)
	case *ast.UnaryExpression:
		c.expression(e.Operand)
	case *ast.ConditionalExpression:
		c.expression(e.Test)
		c.expression(e.Consequent)
		c.expression(e.Alternate)
	case *ast.CallExpression:
		// a called identifier is a function reference, not a variable;
		// builtins are excluded by reference() anyway, but a call to an
		// unknown name must still surface as undeclared
		c.expression(e.Callee)
		for _, a := range e.ArgumentList {
			c.expression(a)
		}
	case *ast.DotExpression:
		// property names are not variable references
		c.expression(e.Left)
	case *ast.BracketExpression:
		c.expression(e.Left)
		c.expression(e.Member)
	case *ast.AssignExpression:
		c.expression(e.Left)
		c.expression(e.Right)
	case *ast.SequenceExpression:
		for _, s := range e.Sequence {
			c.expression(s)
		}
	case *ast.ArrayLiteral:
		for _, v := range e.Value {
			c.expression(v)
		}
	}
}

func (c *freeVarCollector) reference(name string, pos int) {
	if IsBuiltin(name) {
		return
	}
	if _, ok := c.bound[name]; ok {
		return
	}
	if _, ok := c.seen[name]; ok {
		return
	}
	c.seen[name] = struct{}{}
	c.free = append(c.free, freeVar{name: name, pos: pos})
}
