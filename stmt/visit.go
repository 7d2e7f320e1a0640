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

package stmt

// Visitor is implemented by passes that want read-only access to every
// expression in a tree. Visit is called once per node in pre-order;
// returning a non-nil Visitor continues the walk into that node's children
// using the returned visitor (usually the receiver itself); returning nil
// skips the subtree.
type Visitor interface {
	Visit(e Expr) Visitor
}

// VisitorFunc adapts a plain function to a Visitor.
type VisitorFunc func(Expr) Visitor

func (f VisitorFunc) Visit(e Expr) Visitor { return f(e) }

// Walk traverses e and its descendants pre-order.
func Walk(v Visitor, e Expr) {
	if e == nil || v == nil {
		return
	}
	v2 := v.Visit(e)
	if v2 == nil {
		return
	}
	for _, c := range Children(e) {
		Walk(v2, c)
	}
}

// Inspect is a convenience over Walk for passes that only need a plain
// predicate: continue descending while fn returns true.
func Inspect(e Expr, fn func(Expr) bool) {
	Walk(VisitorFunc(func(n Expr) Visitor {
		if fn(n) {
			return VisitorFunc(func(n Expr) Visitor {
				if fn(n) {
					return visitAll
				}
				return nil
			})
		}
		return nil
	}), e)
}

var visitAll = VisitorFunc(func(Expr) Visitor { return visitAll })

// Children returns e's immediate child expressions in evaluation order.
// Every Expr variant is enumerated here; adding a variant without updating
// this switch silently breaks every structural pass, so it is kept in
// lock-step with the variant list in expr.go.
func Children(e Expr) []Expr {
	switch x := e.(type) {
	case *ExprAnd:
		return x.Operands
	case *ExprOr:
		return x.Operands
	case *ExprNot:
		return []Expr{x.Expr}
	case *ExprIsNull:
		return []Expr{x.Expr}
	case *ExprBinaryOp:
		return []Expr{x.Lhs, x.Rhs}
	case *ExprInList:
		return []Expr{x.Expr, x.List}
	case *ExprInSubquery:
		return []Expr{x.Expr}
	case *ExprExists:
		return nil
	case *ExprPattern:
		return []Expr{x.Expr, x.Pattern}
	case *ExprCast:
		return []Expr{x.Expr}
	case *ExprList:
		return x.Items
	case *ExprRecord:
		return x.Fields
	case *ExprMap:
		return []Expr{x.Base, x.Map}
	case *ExprAny:
		return []Expr{x.List}
	case *ExprProject:
		return []Expr{x.Base}
	case *ExprReference:
		return nil
	case *ExprArg:
		return nil
	case *ExprStmt:
		return nil
	case *ExprValue:
		return nil
	case *ExprDecodeEnum:
		out := make([]Expr, 0, len(x.Variants)+1)
		out = append(out, x.Discriminant)
		out = append(out, x.Variants...)
		return out
	case *ExprDefault:
		return nil
	case *ExprError:
		return nil
	case *ExprFuncCount:
		if x.Arg == nil && x.Filter == nil {
			return nil
		}
		var out []Expr
		if x.Arg != nil {
			out = append(out, x.Arg)
		}
		if x.Filter != nil {
			out = append(out, x.Filter)
		}
		return out
	case *ExprConcatStr:
		return x.Items
	case *ExprUnaryOp:
		return []Expr{x.Expr}
	default:
		return nil
	}
}

// WithChildren rebuilds e with its children replaced by newChildren, in the
// same order Children(e) produced them. It panics on an arity mismatch
// (programmer error: a rewrite pass produced the wrong number of children)
// rather than silently dropping nodes.
func WithChildren(e Expr, newChildren []Expr) Expr {
	want := len(Children(e))
	if len(newChildren) != want {
		panic("stmt.WithChildren: child count mismatch")
	}
	switch x := e.(type) {
	case *ExprAnd:
		return &ExprAnd{Operands: newChildren}
	case *ExprOr:
		return &ExprOr{Operands: newChildren}
	case *ExprNot:
		return &ExprNot{Expr: newChildren[0]}
	case *ExprIsNull:
		return &ExprIsNull{Expr: newChildren[0], Negate: x.Negate}
	case *ExprBinaryOp:
		return &ExprBinaryOp{Op: x.Op, Lhs: newChildren[0], Rhs: newChildren[1]}
	case *ExprInList:
		return &ExprInList{Expr: newChildren[0], List: newChildren[1]}
	case *ExprInSubquery:
		return &ExprInSubquery{Expr: newChildren[0], Subquery: x.Subquery}
	case *ExprExists:
		return x
	case *ExprPattern:
		return &ExprPattern{Kind: x.Kind, Expr: newChildren[0], Pattern: newChildren[1]}
	case *ExprCast:
		return &ExprCast{Expr: newChildren[0], Ty: x.Ty}
	case *ExprList:
		return &ExprList{Items: newChildren}
	case *ExprRecord:
		return &ExprRecord{Fields: newChildren}
	case *ExprMap:
		return &ExprMap{Base: newChildren[0], Map: newChildren[1]}
	case *ExprAny:
		return &ExprAny{List: newChildren[0]}
	case *ExprProject:
		return &ExprProject{Base: newChildren[0], Projection: x.Projection}
	case *ExprReference, *ExprArg, *ExprStmt, *ExprValue, *ExprDefault, *ExprError:
		return x
	case *ExprDecodeEnum:
		return &ExprDecodeEnum{Discriminant: newChildren[0], Variants: newChildren[1:], Ty: x.Ty}
	case *ExprFuncCount:
		out := &ExprFuncCount{}
		i := 0
		if x.Arg != nil {
			out.Arg = newChildren[i]
			i++
		}
		if x.Filter != nil {
			out.Filter = newChildren[i]
		}
		return out
	case *ExprConcatStr:
		return &ExprConcatStr{Items: newChildren}
	case *ExprUnaryOp:
		return &ExprUnaryOp{Op: x.Op, Expr: newChildren[0]}
	default:
		return e
	}
}

// Transform rewrites e bottom-up (post-order): every child is transformed
// first, the node is rebuilt from the transformed children, and then fn is
// applied to the rebuilt node. This is the structural-rewrite primitive
// every simplify/lower rule is built from.
func Transform(e Expr, fn func(Expr) (Expr, error)) (Expr, error) {
	if e == nil {
		return nil, nil
	}
	children := Children(e)
	if len(children) > 0 {
		newChildren := make([]Expr, len(children))
		for i, c := range children {
			nc, err := Transform(c, fn)
			if err != nil {
				return nil, err
			}
			newChildren[i] = nc
		}
		e = WithChildren(e, newChildren)
	}
	return fn(e)
}
