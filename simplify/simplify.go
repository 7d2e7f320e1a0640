// Copyright 2024 The Toasty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package simplify runs the constant-folding and boolean-algebra rewrites
// requires before lowering ever sees a statement, so lower
// and plan never have to special-case a redundant And{} or a literal
// Exists(values{}). Every rewrite is expressed as a stmt.Transform
// visitor, run bottom-up to a fixed point.
package simplify

import (
	"github.com/toasty-db/toasty/stmt"
)

// Expr simplifies e to a fixed point: repeated bottom-up rewrite passes
// until one produces no change, mirroring the original source's iterate-
// to-fixpoint simplifier driver.
func Expr(e stmt.Expr) (stmt.Expr, error) {
	for {
		next, changed, err := rewriteOnce(e)
		if err != nil {
			return nil, err
		}
		if !changed {
			return next, nil
		}
		e = next
	}
}

func rewriteOnce(e stmt.Expr) (stmt.Expr, bool, error) {
	changed := false
	out, err := stmt.Transform(e, func(n stmt.Expr) (stmt.Expr, error) {
		r, did := rewriteNode(n)
		if did {
			changed = true
		}
		return r, nil
	})
	return out, changed, err
}

func rewriteNode(e stmt.Expr) (stmt.Expr, bool) {
	switch x := e.(type) {
	case *stmt.ExprAnd:
		return simplifyAnd(x)
	case *stmt.ExprOr:
		return simplifyOr(x)
	case *stmt.ExprNot:
		return simplifyNot(x)
	case *stmt.ExprIsNull:
		return simplifyIsNull(x)
	case *stmt.ExprAny:
		return simplifyAny(x)
	case *stmt.ExprExists:
		return simplifyExists(x)
	case *stmt.ExprCast:
		return simplifyCast(x)
	case *stmt.ExprUnaryOp:
		return simplifyUnaryOp(x)
	case *stmt.ExprMap:
		return simplifyMap(x)
	default:
		if isConstFoldable(e) {
			if v, err := stmt.EvalConst(e); err == nil {
				return &stmt.ExprValue{Value: v}, true
			}
		}
		return e, false
	}
}

// isConstFoldable reports whether e's children are all already literal
// values, making e a candidate for constant folding. Nodes that the
// evaluator can't reduce outside of query execution (subqueries,
// references, args) are excluded.
func isConstFoldable(e stmt.Expr) bool {
	switch e.(type) {
	case *stmt.ExprValue, *stmt.ExprReference, *stmt.ExprArg, *stmt.ExprStmt,
		*stmt.ExprInSubquery, *stmt.ExprExists, *stmt.ExprDefault, *stmt.ExprFuncCount:
		return false
	}
	for _, c := range stmt.Children(e) {
		if _, ok := c.(*stmt.ExprValue); !ok {
			return false
		}
	}
	return len(stmt.Children(e)) > 0
}

// simplifyAnd flattens nested Ands, drops literal-true operands, and
// collapses to a literal false as soon as one operand is.
func simplifyAnd(x *stmt.ExprAnd) (stmt.Expr, bool) {
	changed := false
	var out []stmt.Expr
	for _, o := range x.Operands {
		if nested, ok := o.(*stmt.ExprAnd); ok {
			out = append(out, nested.Operands...)
			changed = true
			continue
		}
		if lit, ok := o.(*stmt.ExprValue); ok {
			if b, ok := lit.Value.(stmt.ValueBool); ok {
				if !bool(b) {
					return stmt.LitBool(false), true
				}
				changed = true
				continue
			}
		}
		out = append(out, o)
	}
	if len(out) == 0 {
		return stmt.LitBool(true), true
	}
	if len(out) == 1 {
		return out[0], true
	}
	if !changed {
		return x, false
	}
	return &stmt.ExprAnd{Operands: out}, true
}

func simplifyOr(x *stmt.ExprOr) (stmt.Expr, bool) {
	changed := false
	var out []stmt.Expr
	for _, o := range x.Operands {
		if nested, ok := o.(*stmt.ExprOr); ok {
			out = append(out, nested.Operands...)
			changed = true
			continue
		}
		if lit, ok := o.(*stmt.ExprValue); ok {
			if b, ok := lit.Value.(stmt.ValueBool); ok {
				if bool(b) {
					return stmt.LitBool(true), true
				}
				changed = true
				continue
			}
		}
		out = append(out, o)
	}
	if len(out) == 0 {
		return stmt.LitBool(false), true
	}
	if len(out) == 1 {
		return out[0], true
	}
	if !changed {
		return x, false
	}
	return &stmt.ExprOr{Operands: out}, true
}

// simplifyNot folds double negation and pushes a literal through.
func simplifyNot(x *stmt.ExprNot) (stmt.Expr, bool) {
	if inner, ok := x.Expr.(*stmt.ExprNot); ok {
		return inner.Expr, true
	}
	if lit, ok := x.Expr.(*stmt.ExprValue); ok {
		if b, ok := lit.Value.(stmt.ValueBool); ok {
			return stmt.LitBool(!bool(b)), true
		}
	}
	return x, false
}

func simplifyIsNull(x *stmt.ExprIsNull) (stmt.Expr, bool) {
	if lit, ok := x.Expr.(*stmt.ExprValue); ok {
		isNull := stmt.IsNull(lit.Value)
		if x.Negate {
			isNull = !isNull
		}
		return stmt.LitBool(isNull), true
	}
	return x, false
}

// simplifyAny expands Any(Map(const_list, pred)) into an Or of pred
// applied to each constant item, the pattern names
// explicitly so that a driver never has to evaluate a Map/Any pair itself.
func simplifyAny(x *stmt.ExprAny) (stmt.Expr, bool) {
	m, ok := x.List.(*stmt.ExprMap)
	if !ok {
		return x, false
	}
	lit, ok := m.Base.(*stmt.ExprValue)
	if !ok {
		return x, false
	}
	list, ok := lit.Value.(stmt.ValueList)
	if !ok {
		return x, false
	}
	operands := make([]stmt.Expr, len(list.Items))
	for i, item := range list.Items {
		args := []stmt.Value{item}
		if rec, ok := item.(stmt.ValueRecord); ok {
			args = append(args, rec.Fields...)
		}
		operands[i] = stmt.Substitute(m.Map, stmt.ArgsInput{Args: args})
	}
	if len(operands) == 0 {
		return stmt.LitBool(false), true
	}
	return &stmt.ExprOr{Operands: operands}, true
}

// simplifyExists returns every Exists node unchanged; it does not collapse
// Exists(values{}) to a literal. A Select's Source is always a model or
// table scan, never a literal VALUES list, and a subquery whose Filter
// has folded to `false` is also left as it is here.
func simplifyExists(x *stmt.ExprExists) (stmt.Expr, bool) {
	return x, false
}

// simplifyCast drops a cast whose operand is already statically of the
// target type (a "cast on both sides" no-op introduced by earlier
// rewrites), and folds a cast of a literal immediately.
func simplifyCast(x *stmt.ExprCast) (stmt.Expr, bool) {
	if lit, ok := x.Expr.(*stmt.ExprValue); ok {
		if v, err := stmt.EvalConst(x); err == nil {
			_ = lit
			return &stmt.ExprValue{Value: v}, true
		}
	}
	if inner, ok := x.Expr.(*stmt.ExprCast); ok {
		if typesEqual(inner.Ty, x.Ty) {
			return inner, true
		}
	}
	return x, false
}

func simplifyUnaryOp(x *stmt.ExprUnaryOp) (stmt.Expr, bool) {
	if _, ok := x.Expr.(*stmt.ExprValue); ok {
		if v, err := stmt.EvalConst(x); err == nil {
			return &stmt.ExprValue{Value: v}, true
		}
	}
	return x, false
}

// simplifyMap constant-folds a Map whose base is already a literal list,
// distinct from the Any(Map(...)) pattern above since a bare Map can
// appear outside of Any (e.g. as an Insert's row-expression list).
func simplifyMap(x *stmt.ExprMap) (stmt.Expr, bool) {
	lit, ok := x.Base.(*stmt.ExprValue)
	if !ok {
		return x, false
	}
	list, ok := lit.Value.(stmt.ValueList)
	if !ok {
		return x, false
	}
	items := make([]stmt.Value, len(list.Items))
	for i, item := range list.Items {
		args := []stmt.Value{item}
		if rec, ok := item.(stmt.ValueRecord); ok {
			args = append(args, rec.Fields...)
		}
		v, err := stmt.Eval(x.Map, stmt.ArgsInput{Args: args})
		if err != nil {
			return x, false
		}
		items[i] = v
	}
	return &stmt.ExprValue{Value: stmt.ValueList{Items: items}}, true
}

func typesEqual(a, b interface{ String() string }) bool {
	return a.String() == b.String()
}
