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

package simplify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toasty-db/toasty/stmt"
)

func TestExprFoldsAndToFalse(t *testing.T) {
	e := stmt.And(stmt.LitBool(true), stmt.LitBool(false), stmt.LitBool(true))
	out, err := Expr(e)
	require.NoError(t, err)
	lit, ok := out.(*stmt.ExprValue)
	require.True(t, ok)
	assert.Equal(t, stmt.ValueBool(false), lit.Value)
}

func TestExprDropsRedundantTrueOperands(t *testing.T) {
	inner := stmt.Eq(stmt.Lit(stmt.ValueI64(1)), stmt.Lit(stmt.ValueI64(1)))
	e := stmt.And(stmt.LitBool(true), inner)
	out, err := Expr(e)
	require.NoError(t, err)
	lit, ok := out.(*stmt.ExprValue)
	require.True(t, ok)
	assert.Equal(t, stmt.ValueBool(true), lit.Value)
}

func TestExprFlattensNestedOr(t *testing.T) {
	e := stmt.Or(stmt.Or(stmt.LitBool(false), stmt.LitBool(false)), stmt.LitBool(false))
	out, err := Expr(e)
	require.NoError(t, err)
	lit, ok := out.(*stmt.ExprValue)
	require.True(t, ok)
	assert.Equal(t, stmt.ValueBool(false), lit.Value)
}

func TestExprFoldsDoubleNegation(t *testing.T) {
	e := &stmt.ExprNot{Expr: &stmt.ExprNot{Expr: stmt.LitBool(true)}}
	out, err := Expr(e)
	require.NoError(t, err)
	lit, ok := out.(*stmt.ExprValue)
	require.True(t, ok)
	assert.Equal(t, stmt.ValueBool(true), lit.Value)
}

func TestExprConstantFoldsConcat(t *testing.T) {
	e := &stmt.ExprConcatStr{Items: []stmt.Expr{stmt.Lit(stmt.ValueString("a")), stmt.Lit(stmt.ValueString("b"))}}
	out, err := Expr(e)
	require.NoError(t, err)
	lit, ok := out.(*stmt.ExprValue)
	require.True(t, ok)
	assert.Equal(t, stmt.ValueString("ab"), lit.Value)
}
