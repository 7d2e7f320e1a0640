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

package lower

import (
	"github.com/toasty-db/toasty/stmt"
	"github.com/toasty-db/toasty/toastyerr"
)

// Verify checks the normative post-lowering invariant: no
// stmt.ExprReference with IsColumn==false (a model Field reference) may
// remain in s's filters, assignments, precondition or inserted rows
// (Returning and OrderBy are not walked). It is run by tests; the planner
// does not call it.
func Verify(s stmt.Statement) error {
	var err error
	stmt.Inspect(exprSetOf(s), func(e stmt.Expr) bool {
		if err != nil {
			return false
		}
		if ref, ok := e.(*stmt.ExprReference); ok && !ref.IsColumn {
			err = toastyerr.ErrSchema.New("field reference survived lowering")
			return false
		}
		return true
	})
	return err
}

// exprSetOf flattens a Statement down to a single representative
// expression Inspect can walk; it is only a traversal convenience, not a
// semantic transform.
func exprSetOf(s stmt.Statement) stmt.Expr {
	switch x := s.(type) {
	case *stmt.Query:
		return selectFilterOf(x.Body)
	case *stmt.Insert:
		return &stmt.ExprAnd{Operands: valuesOf(x.Source)}
	case *stmt.Update:
		ops := make([]stmt.Expr, 0, len(x.Assignments)+2)
		for _, a := range x.Assignments {
			ops = append(ops, a.Expr)
		}
		if x.Filter != nil {
			ops = append(ops, x.Filter)
		}
		if x.Precondition != nil {
			ops = append(ops, x.Precondition)
		}
		if len(ops) == 0 {
			return stmt.LitBool(true)
		}
		return &stmt.ExprAnd{Operands: ops}
	case *stmt.Delete:
		if x.Filter != nil {
			return x.Filter
		}
		return stmt.LitBool(true)
	default:
		return stmt.LitBool(true)
	}
}

func selectFilterOf(es stmt.ExprSet) stmt.Expr {
	switch x := es.(type) {
	case *stmt.Select:
		if x.Filter != nil {
			return x.Filter
		}
		return stmt.LitBool(true)
	case *stmt.Values:
		return &stmt.ExprAnd{Operands: valuesOf(x)}
	case *stmt.SetOp:
		return &stmt.ExprAnd{Operands: []stmt.Expr{selectFilterOf(x.Lhs), selectFilterOf(x.Rhs)}}
	default:
		return stmt.LitBool(true)
	}
}

func valuesOf(es stmt.ExprSet) []stmt.Expr {
	v, ok := es.(*stmt.Values)
	if !ok {
		return []stmt.Expr{stmt.LitBool(true)}
	}
	if len(v.Rows) == 0 {
		return []stmt.Expr{stmt.LitBool(true)}
	}
	return v.Rows
}
