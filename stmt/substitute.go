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

// Input is implemented by anything that can resolve Arg positions and
// Reference (Field/Column) nodes to a sub-expression, the single
// substitution mechanism shared by the evaluator, the simplifier's
// constant folding, and the executor's per-row binding. proj, when non-identity, is pushed all the
// way into the resolver so a Project over an Arg/Reference resolves in one
// call instead of materializing an intermediate value.
type Input interface {
	ResolveArg(arg *ExprArg, proj Projection) (Expr, bool)
	ResolveRef(ref *ExprReference, proj Projection) (Expr, bool)
}

// NoInput resolves nothing; it is used for eval_const/constant folding,
// mirroring the original source's ConstInput (stmt/eval.rs).
type NoInput struct{}

func (NoInput) ResolveArg(*ExprArg, Projection) (Expr, bool)       { return nil, false }
func (NoInput) ResolveRef(*ExprReference, Projection) (Expr, bool) { return nil, false }

// ArgsInput resolves Arg positions against a fixed slice of Values and
// hands every Reference, and every Arg with Nesting above zero, to Parent
// (unresolved when Parent is nil). It is what ExprMap's per-item evaluation uses:
// Arg(0) is the item, and for record items Arg(i) is unpacked field i.
type ArgsInput struct {
	Args   []Value
	Parent Input
}

func (a ArgsInput) ResolveArg(arg *ExprArg, proj Projection) (Expr, bool) {
	if arg.Nesting > 0 {
		if a.Parent == nil {
			return nil, false
		}
		return a.Parent.ResolveArg(&ExprArg{Position: arg.Position, Nesting: arg.Nesting - 1}, proj)
	}
	if arg.Position < 0 || arg.Position >= len(a.Args) {
		return nil, false
	}
	return &ExprValue{Value: EntryOf(a.Args[arg.Position], proj)}, true
}

func (a ArgsInput) ResolveRef(ref *ExprReference, proj Projection) (Expr, bool) {
	if a.Parent != nil {
		return a.Parent.ResolveRef(ref, proj)
	}
	return nil, false
}

// RowInput resolves Field/Column references against a flat row of Values
// (indexed by field/column index) and Arg positions against a slice of
// bound arguments. It is what the executor uses to bind a driver-returned
// row, and what the lowerer's constantisation pass uses to evaluate a
// RETURNING clause against literal insert rows.
type RowInput struct {
	Row    []Value
	Args   []Value
	Parent Input
}

func (r RowInput) ResolveRef(ref *ExprReference, proj Projection) (Expr, bool) {
	if ref.Nesting() > 0 {
		if r.Parent == nil {
			return nil, false
		}
		inner := *ref
		if inner.IsColumn {
			inner.ColumnNest--
		} else {
			inner.FieldNest--
		}
		return r.Parent.ResolveRef(&inner, proj)
	}
	idx := ref.ColumnIndex
	if !ref.IsColumn {
		idx = ref.FieldIndex
	}
	if idx < 0 || idx >= len(r.Row) {
		return nil, false
	}
	return &ExprValue{Value: EntryOf(r.Row[idx], proj)}, true
}

func (r RowInput) ResolveArg(arg *ExprArg, proj Projection) (Expr, bool) {
	if arg.Nesting > 0 {
		if r.Parent == nil {
			return nil, false
		}
		return r.Parent.ResolveArg(&ExprArg{Position: arg.Position, Nesting: arg.Nesting - 1}, proj)
	}
	if arg.Position < 0 || arg.Position >= len(r.Args) {
		return nil, false
	}
	return &ExprValue{Value: EntryOf(r.Args[arg.Position], proj)}, true
}

// Substitute rebuilds e with every Arg/Reference node resolvable by input
// replaced by its resolution; nodes input cannot resolve (outer-scope
// references the caller doesn't own) are left unchanged. It is the
// mechanism the executor uses to bind per-row inputs into driver-bound
// filters.
func Substitute(e Expr, input Input) Expr {
	switch x := e.(type) {
	case *ExprArg:
		if r, ok := input.ResolveArg(x, Identity()); ok {
			return r
		}
		return x
	case *ExprReference:
		if r, ok := input.ResolveRef(x, Identity()); ok {
			return r
		}
		return x
	case *ExprProject:
		switch base := x.Base.(type) {
		case *ExprArg:
			if r, ok := input.ResolveArg(base, x.Projection); ok {
				return r
			}
		case *ExprReference:
			if r, ok := input.ResolveRef(base, x.Projection); ok {
				return r
			}
		}
		return &ExprProject{Base: Substitute(x.Base, input), Projection: x.Projection}
	default:
		children := Children(e)
		if len(children) == 0 {
			return e
		}
		newChildren := make([]Expr, len(children))
		for i, c := range children {
			newChildren[i] = Substitute(c, input)
		}
		return WithChildren(e, newChildren)
	}
}
