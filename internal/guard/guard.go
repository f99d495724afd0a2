// Package guard evaluates boolean predicates gating job dispatch.
//
// Guard expressions are HCL expressions parsed once at workflow load and
// evaluated against a read-only run context. Evaluation is a pure
// interpretation of the expression: identical contexts always yield the same
// result, and no side effects are possible.
package guard

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Context is the read-only data a guard expression may reference.
// Outputs holds upstream job outputs keyed by job name, visible because
// guards are evaluated only after all dependencies reached a terminal state.
type Context struct {
	Repository string
	Ref        string
	Actor      string
	EventKind  string
	Vars       map[string]string
	Outputs    map[string]map[string]string
}

// Guard is a compiled guard expression.
type Guard struct {
	src  string
	expr hclsyntax.Expression
}

// Compile parses a guard expression. Syntax errors surface at workflow load,
// never at dispatch time.
func Compile(src string) (*Guard, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "guard", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse guard expression %q: %s", src, diags.Error())
	}
	return &Guard{src: src, expr: expr}, nil
}

// MustCompile is Compile for expressions known to be valid (tests, defaults).
func MustCompile(src string) *Guard {
	g, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return g
}

// String returns the original expression source.
func (g *Guard) String() string { return g.src }

// Eval evaluates the guard against the given context and returns the boolean
// result. A non-boolean result or a reference to an unknown variable is an
// evaluation error; callers treat that as a failed job, not a silent skip.
func (g *Guard) Eval(gc Context) (bool, error) {
	val, diags := g.expr.Value(&hcl.EvalContext{Variables: g.variables(gc)})
	if diags.HasErrors() {
		return false, fmt.Errorf("evaluate guard %q: %s", g.src, diags.Error())
	}
	converted, err := convert.Convert(val, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("guard %q did not produce a boolean: %w", g.src, err)
	}
	if converted.IsNull() {
		return false, fmt.Errorf("guard %q produced a null value", g.src)
	}
	return converted.True(), nil
}

// variables builds the cty variable set for one evaluation.
func (g *Guard) variables(gc Context) map[string]cty.Value {
	vars := map[string]cty.Value{
		"repository": cty.StringVal(gc.Repository),
		"ref":        cty.StringVal(gc.Ref),
		"actor":      cty.StringVal(gc.Actor),
		"event":      cty.StringVal(gc.EventKind),
	}
	for k, v := range gc.Vars {
		if _, reserved := vars[k]; !reserved && k != "needs" {
			vars[k] = cty.StringVal(v)
		}
	}
	if len(gc.Outputs) > 0 {
		needs := make(map[string]cty.Value, len(gc.Outputs))
		for job, outs := range gc.Outputs {
			if len(outs) == 0 {
				needs[job] = cty.EmptyObjectVal
				continue
			}
			fields := make(map[string]cty.Value, len(outs))
			for k, v := range outs {
				fields[k] = cty.StringVal(v)
			}
			needs[job] = cty.ObjectVal(fields)
		}
		vars["needs"] = cty.ObjectVal(needs)
	}
	return vars
}
