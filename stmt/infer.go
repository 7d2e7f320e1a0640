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
	"fmt"

	"github.com/toasty-db/toasty/toastyerr"
	"github.com/toasty-db/toasty/tycore"
)

// TypeScope resolves the static type of an Arg position or a Field/Column
// Reference, the type-level analogue of Input. The schema/lowering layers
// supply a concrete TypeScope built from a model's or table's field list.
type TypeScope interface {
	ArgType(arg *ExprArg) (tycore.Type, bool)
	RefType(ref *ExprReference) (tycore.Type, bool)
}

// Infer computes e's static type against scope, walking the same shape as
// Eval but over types rather than values. Only this package's tests call
// it; neither the schema verification pass nor the simplifier uses it.
func Infer(e Expr, scope TypeScope) (tycore.Type, error) {
	switch x := e.(type) {
	case *ExprValue:
		return x.Value.Type(), nil

	case *ExprAnd, *ExprOr, *ExprNot, *ExprIsNull, *ExprInList, *ExprPattern, *ExprAny:
		return tycore.TyBool{}, nil

	case *ExprBinaryOp:
		if x.Op == OpEq || x.Op == OpNe || x.Op == OpIsA ||
			x.Op == OpLt || x.Op == OpLe || x.Op == OpGt || x.Op == OpGe {
			return tycore.TyBool{}, nil
		}
		return tycore.TyBool{}, nil

	case *ExprInSubquery, *ExprExists:
		return tycore.TyBool{}, nil

	case *ExprCast:
		return x.Ty, nil

	case *ExprList:
		if len(x.Items) == 0 {
			return tycore.TyList{Item: tycore.TyUnknown{}}, nil
		}
		item, err := Infer(x.Items[0], scope)
		if err != nil {
			return nil, err
		}
		return tycore.TyList{Item: item}, nil

	case *ExprRecord:
		fields := make([]tycore.Type, len(x.Fields))
		for i, f := range x.Fields {
			t, err := Infer(f, scope)
			if err != nil {
				return nil, err
			}
			fields[i] = t
		}
		return tycore.TyRecord{Fields: fields}, nil

	case *ExprMap:
		item, err := Infer(x.Map, scope)
		if err != nil {
			return nil, err
		}
		return tycore.TyList{Item: item}, nil

	case *ExprProject:
		return inferProject(x, scope)

	case *ExprReference:
		t, ok := scope.RefType(x)
		if !ok {
			return nil, toastyerr.ErrEvaluation.New("unresolved reference during type inference")
		}
		return t, nil

	case *ExprArg:
		t, ok := scope.ArgType(x)
		if !ok {
			return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("unresolved argument at position %d during type inference", x.Position))
		}
		return t, nil

	case *ExprStmt:
		// A sub-statement's row/scalar type is resolved once the statement
		// itself has been lowered; at the expression-inference layer it is
		// opaque.
		return tycore.TyUnknown{}, nil

	case *ExprDecodeEnum:
		return x.Ty, nil

	case *ExprDefault:
		return tycore.TyUnknown{}, nil

	case *ExprError:
		return tycore.TyUnknown{}, nil

	case *ExprFuncCount:
		return tycore.TyI64{}, nil

	case *ExprConcatStr:
		return tycore.TyString{}, nil

	case *ExprUnaryOp:
		return Infer(x.Expr, scope)

	default:
		return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("cannot infer type of %T", e))
	}
}

func inferProject(x *ExprProject, scope TypeScope) (tycore.Type, error) {
	base, err := Infer(x.Base, scope)
	if err != nil {
		return nil, err
	}
	return typeEntryOf(base, x.Projection)
}

// typeEntryOf is Infer's analogue of EntryOf: it walks a Projection through
// nested TyRecord/TyList shapes.
func typeEntryOf(t tycore.Type, p Projection) (tycore.Type, error) {
	idx, rest, ok := p.Head()
	if !ok {
		return t, nil
	}
	switch x := t.(type) {
	case tycore.TyRecord:
		if idx < 0 || idx >= len(x.Fields) {
			return nil, toastyerr.ErrEvaluation.New("projection index out of range during type inference")
		}
		return typeEntryOf(x.Fields[idx], rest)
	case tycore.TyList:
		inner, err := typeEntryOf(x.Item, p)
		if err != nil {
			return nil, err
		}
		return tycore.TyList{Item: inner}, nil
	default:
		return nil, toastyerr.ErrEvaluation.New("cannot project into a non-record, non-list type")
	}
}
