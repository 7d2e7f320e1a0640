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

	"github.com/toasty-db/toasty/tycore"
)

type fixedScope struct {
	refs map[int]tycore.Type
	args map[int]tycore.Type
}

func (s fixedScope) RefType(ref *ExprReference) (tycore.Type, bool) {
	t, ok := s.refs[ref.FieldIndex]
	return t, ok
}

func (s fixedScope) ArgType(arg *ExprArg) (tycore.Type, bool) {
	t, ok := s.args[arg.Position]
	return t, ok
}

func TestInferLiteralType(t *testing.T) {
	ty, err := Infer(Lit(ValueI64(1)), fixedScope{})
	require.NoError(t, err)
	assert.Equal(t, tycore.TyI64{}, ty)
}

func TestInferBooleanExpressions(t *testing.T) {
	ty, err := Infer(And(LitBool(true), LitBool(false)), fixedScope{})
	require.NoError(t, err)
	assert.Equal(t, tycore.TyBool{}, ty)
}

func TestInferReferenceResolvesThroughScope(t *testing.T) {
	scope := fixedScope{refs: map[int]tycore.Type{0: tycore.TyString{}}}
	ty, err := Infer(Field(1, 0), scope)
	require.NoError(t, err)
	assert.Equal(t, tycore.TyString{}, ty)
}

func TestInferReferenceUnresolvedErrors(t *testing.T) {
	_, err := Infer(Field(1, 0), fixedScope{})
	assert.Error(t, err)
}

func TestInferRecordAndList(t *testing.T) {
	rec, err := Infer(&ExprRecord{Fields: []Expr{Lit(ValueI64(1)), Lit(ValueString("a"))}}, fixedScope{})
	require.NoError(t, err)
	assert.Equal(t, tycore.TyRecord{Fields: []tycore.Type{tycore.TyI64{}, tycore.TyString{}}}, rec)

	lst, err := Infer(&ExprList{Items: []Expr{Lit(ValueI64(1))}}, fixedScope{})
	require.NoError(t, err)
	assert.Equal(t, tycore.TyList{Item: tycore.TyI64{}}, lst)
}

func TestInferProjectIntoRecord(t *testing.T) {
	rec := &ExprRecord{Fields: []Expr{Lit(ValueI64(1)), Lit(ValueString("a"))}}
	proj := &ExprProject{Base: rec, Projection: Projection{Indices: []int{1}}}
	ty, err := Infer(proj, fixedScope{})
	require.NoError(t, err)
	assert.Equal(t, tycore.TyString{}, ty)
}

func TestInferProjectOutOfRangeErrors(t *testing.T) {
	rec := &ExprRecord{Fields: []Expr{Lit(ValueI64(1))}}
	proj := &ExprProject{Base: rec, Projection: Projection{Indices: []int{5}}}
	_, err := Infer(proj, fixedScope{})
	assert.Error(t, err)
}

func TestInferConcatStrIsString(t *testing.T) {
	ty, err := Infer(&ExprConcatStr{Items: []Expr{Lit(ValueString("a"))}}, fixedScope{})
	require.NoError(t, err)
	assert.Equal(t, tycore.TyString{}, ty)
}
