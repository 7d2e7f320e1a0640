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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChildrenEnumeratesOperands(t *testing.T) {
	and := &ExprAnd{Operands: []Expr{LitBool(true), LitBool(false)}}
	assert.Equal(t, and.Operands, Children(and))

	not := &ExprNot{Expr: LitBool(true)}
	assert.Equal(t, []Expr{not.Expr}, Children(not))

	assert.Nil(t, Children(&ExprValue{Value: ValueI64(1)}))
}

func TestChildrenDecodeEnumIncludesDiscriminantAndVariants(t *testing.T) {
	de := &ExprDecodeEnum{
		Discriminant: Lit(ValueI64(0)),
		Variants:     []Expr{Lit(ValueString("a")), Lit(ValueString("b"))},
	}
	got := Children(de)
	assert.Equal(t, []Expr{de.Discriminant, de.Variants[0], de.Variants[1]}, got)
}

func TestWalkVisitsEveryNode(t *testing.T) {
	tree := &ExprAnd{Operands: []Expr{
		Eq(Lit(ValueI64(1)), Lit(ValueI64(1))),
		LitBool(true),
	}}

	var visited int
	Walk(VisitorFunc(func(e Expr) Visitor {
		visited++
		return visitAll
	}), tree)

	assert.Equal(t, 5, visited) // ExprAnd, ExprBinaryOp, its two ExprValue leaves, and the ExprAnd's ExprValue leaf
}

func TestInspectStopsOnFalse(t *testing.T) {
	tree := &ExprAnd{Operands: []Expr{
		Lit(ValueI64(1)),
		&ExprReference{Model: 1, FieldIndex: 0},
		Lit(ValueI64(2)),
	}}

	var sawRef bool
	Inspect(tree, func(e Expr) bool {
		if _, ok := e.(*ExprReference); ok {
			sawRef = true
			return false
		}
		return true
	})
	assert.True(t, sawRef)
}

func TestWithChildrenRebuildsNode(t *testing.T) {
	bin := &ExprBinaryOp{Op: OpEq, Lhs: Lit(ValueI64(1)), Rhs: Lit(ValueI64(2))}
	rebuilt := WithChildren(bin, []Expr{Lit(ValueI64(3)), Lit(ValueI64(4))})
	got, ok := rebuilt.(*ExprBinaryOp)
	assert.True(t, ok)
	assert.Equal(t, Lit(ValueI64(3)), got.Lhs)
	assert.Equal(t, Lit(ValueI64(4)), got.Rhs)
}

func TestWithChildrenPanicsOnArityMismatch(t *testing.T) {
	assert.Panics(t, func() {
		WithChildren(&ExprNot{Expr: LitBool(true)}, []Expr{LitBool(true), LitBool(false)})
	})
}

func TestTransformRewritesBottomUp(t *testing.T) {
	tree := &ExprNot{Expr: Lit(ValueI64(1))}
	var order []string
	out, err := Transform(tree, func(e Expr) (Expr, error) {
		switch e.(type) {
		case *ExprValue:
			order = append(order, "value")
		case *ExprNot:
			order = append(order, "not")
		}
		return e, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, tree, out)
	assert.Equal(t, []string{"value", "not"}, order)
}
