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
	"github.com/stretchr/testify/require"
)

func TestEvalAndRequiresBooleanOperands(t *testing.T) {
	v, err := EvalConst(And(LitBool(true), LitBool(false)))
	require.NoError(t, err)
	assert.Equal(t, ValueBool(false), v)

	_, err = EvalConst(And(LitBool(true), Lit(Null)))
	assert.Error(t, err)

	v, err = EvalConst(And(LitBool(true), LitBool(true)))
	require.NoError(t, err)
	assert.Equal(t, ValueBool(true), v)
}

func TestEvalOrRequiresBooleanOperands(t *testing.T) {
	v, err := EvalConst(Or(LitBool(false), LitBool(true)))
	require.NoError(t, err)
	assert.Equal(t, ValueBool(true), v)

	_, err = EvalConst(Or(LitBool(false), Lit(Null)))
	assert.Error(t, err)
}

func TestEvalBinaryOpComparisons(t *testing.T) {
	v, err := EvalConst(Eq(Lit(ValueI64(1)), Lit(ValueI64(1))))
	require.NoError(t, err)
	assert.Equal(t, ValueBool(true), v)

	v, err = EvalConst(&ExprBinaryOp{Op: OpLt, Lhs: Lit(ValueI64(1)), Rhs: Lit(ValueI64(2))})
	require.NoError(t, err)
	assert.Equal(t, ValueBool(true), v)

	v, err = EvalConst(Eq(Lit(ValueI64(1)), Lit(Null)))
	require.NoError(t, err)
	assert.Equal(t, ValueBool(false), v)

	v, err = EvalConst(Eq(Lit(Null), Lit(Null)))
	require.NoError(t, err)
	assert.Equal(t, ValueBool(true), v)

	v, err = EvalConst(&ExprBinaryOp{Op: OpNe, Lhs: Lit(Null), Rhs: Lit(ValueI64(1))})
	require.NoError(t, err)
	assert.Equal(t, ValueBool(true), v)
}

func TestEvalNotRejectsNullOperand(t *testing.T) {
	v, err := EvalConst(&ExprNot{Expr: LitBool(false)})
	require.NoError(t, err)
	assert.Equal(t, ValueBool(true), v)

	_, err = EvalConst(&ExprNot{Expr: Lit(Null)})
	assert.Error(t, err)
}

func TestEvalIsNull(t *testing.T) {
	v, err := EvalConst(&ExprIsNull{Expr: Lit(Null)})
	require.NoError(t, err)
	assert.Equal(t, ValueBool(true), v)

	v, err = EvalConst(&ExprIsNull{Expr: Lit(Null), Negate: true})
	require.NoError(t, err)
	assert.Equal(t, ValueBool(false), v)
}

func TestEvalConcatStr(t *testing.T) {
	v, err := EvalConst(&ExprConcatStr{Items: []Expr{Lit(ValueString("a")), Lit(ValueString("b"))}})
	require.NoError(t, err)
	assert.Equal(t, ValueString("ab"), v)
}

func TestEvalUnaryOpNegate(t *testing.T) {
	v, err := EvalConst(&ExprUnaryOp{Op: OpNeg, Expr: Lit(ValueI64(5))})
	require.NoError(t, err)
	assert.Equal(t, ValueI64(-5), v)

	_, err = EvalConst(&ExprUnaryOp{Op: OpNeg, Expr: Lit(ValueI64(-9223372036854775808))})
	assert.Error(t, err)
}

func TestEvalInList(t *testing.T) {
	list := &ExprList{Items: []Expr{Lit(ValueI64(1)), Lit(ValueI64(2))}}
	v, err := EvalConst(&ExprInList{Expr: Lit(ValueI64(2)), List: list})
	require.NoError(t, err)
	assert.Equal(t, ValueBool(true), v)

	v, err = EvalConst(&ExprInList{Expr: Lit(ValueI64(3)), List: list})
	require.NoError(t, err)
	assert.Equal(t, ValueBool(false), v)

	nullList := &ExprList{Items: []Expr{Lit(Null), Lit(ValueI64(1))}}
	v, err = EvalConst(&ExprInList{Expr: Lit(Null), List: nullList})
	require.NoError(t, err)
	assert.Equal(t, ValueBool(true), v)
}

func TestEvalReferenceRequiresInput(t *testing.T) {
	_, err := Eval(Field(1, 0), NoInput{})
	assert.Error(t, err)
}

func TestEvalReferenceResolvesThroughRowInput(t *testing.T) {
	input := RowInput{Row: []Value{ValueI64(42)}}
	v, err := Eval(&ExprReference{Model: 1, FieldIndex: 0}, input)
	require.NoError(t, err)
	assert.Equal(t, ValueI64(42), v)
}

func TestEvalArgResolvesThroughArgsInput(t *testing.T) {
	input := ArgsInput{Args: []Value{ValueString("hi")}}
	v, err := Eval(&ExprArg{Position: 0}, input)
	require.NoError(t, err)
	assert.Equal(t, ValueString("hi"), v)
}

func TestEvalInSubqueryIsNotConstEvaluable(t *testing.T) {
	_, err := EvalConst(&ExprInSubquery{Expr: Lit(ValueI64(1))})
	assert.Error(t, err)
}

func TestEvalBoolRequiresBooleanResult(t *testing.T) {
	_, _, err := EvalBool(Lit(ValueI64(1)), NoInput{})
	assert.Error(t, err)

	b, isNull, err := EvalBool(LitBool(true), NoInput{})
	require.NoError(t, err)
	assert.False(t, isNull)
	assert.True(t, b)

	_, isNull, err = EvalBool(Lit(Null), NoInput{})
	require.NoError(t, err)
	assert.True(t, isNull)
}
