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

package driverapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/toasty-db/toasty/op"
	"github.com/toasty-db/toasty/stmt"
)

// Flavor distinguishes SQL dialect differences a capability.Capability{SQL:
// true} driver's serialiser needs to account for.
type Flavor int

const (
	FlavorGeneric Flavor = iota
	FlavorMySQL
)

// Serializer renders statements and fragments to SQL text, flavor-aware.
// It is only reached by drivers that advertise capability.Capability.SQL;
// the KV/document reference driver (memdriver) never calls it.
type Serializer struct {
	Flavor Flavor
}

// TransactionStart renders the statement that opens an interactive
// transaction; MySQL's START TRANSACTION and the ANSI BEGIN are
// interchangeable everywhere else in the pipeline but not in the text a
// driver actually sends.
func (s Serializer) TransactionStart() string {
	if s.Flavor == FlavorMySQL {
		return "START TRANSACTION"
	}
	return "BEGIN"
}

func (s Serializer) Savepoint(id int) string {
	return "SAVEPOINT " + op.SavepointName(id)
}

func (s Serializer) ReleaseSavepoint(id int) string {
	return "RELEASE SAVEPOINT " + op.SavepointName(id)
}

func (s Serializer) RollbackToSavepoint(id int) string {
	return "ROLLBACK TO SAVEPOINT " + op.SavepointName(id)
}

// TableAlias renders a table's alias for a query at the given subquery
// nesting depth, so that a statement joining or correlating across
// several nesting levels never collides on a bare table name.
func TableAlias(depth int, table string) string {
	return "tbl_" + strconv.Itoa(depth) + "_" + table
}

// RenderCount renders a Func(Count{arg, filter}) node. Standard SQL's
// `COUNT(*) FILTER (WHERE cond)` has no MySQL equivalent; MySQL instead
// counts a CASE expression that evaluates to NULL (excluded from COUNT)
// when the filter doesn't hold.
func (s Serializer) RenderCount(arg *stmt.ExprFuncCount) (string, error) {
	argSQL := "*"
	if arg.Arg != nil {
		rendered, err := s.RenderExpr(arg.Arg, 0)
		if err != nil {
			return "", err
		}
		argSQL = rendered
	}
	if arg.Filter == nil {
		return fmt.Sprintf("COUNT(%s)", argSQL), nil
	}
	filterSQL, err := s.RenderExpr(arg.Filter, 0)
	if err != nil {
		return "", err
	}
	if s.Flavor == FlavorMySQL {
		if arg.Arg == nil {
			argSQL = "1"
		}
		return fmt.Sprintf("COUNT(CASE WHEN %s THEN %s ELSE NULL END)", filterSQL, argSQL), nil
	}
	return fmt.Sprintf("COUNT(%s) FILTER (WHERE %s)", argSQL, filterSQL), nil
}

// RenderExpr renders a leaf-level or filter expression to SQL text,
// covering the subset of stmt.Expr a pushed-down filter/assignment
// actually needs. depth
// is the enclosing subquery nesting level, for TableAlias.
func (s Serializer) RenderExpr(e stmt.Expr, depth int) (string, error) {
	switch x := e.(type) {
	case *stmt.ExprValue:
		return s.renderValue(x.Value), nil
	case *stmt.ExprAnd:
		return s.joinBinary(x.Operands, " AND ", depth)
	case *stmt.ExprOr:
		return s.joinBinary(x.Operands, " OR ", depth)
	case *stmt.ExprNot:
		inner, err := s.RenderExpr(x.Expr, depth)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case *stmt.ExprIsNull:
		inner, err := s.RenderExpr(x.Expr, depth)
		if err != nil {
			return "", err
		}
		if x.Negate {
			return inner + " IS NOT NULL", nil
		}
		return inner + " IS NULL", nil
	case *stmt.ExprBinaryOp:
		lhs, err := s.RenderExpr(x.Lhs, depth)
		if err != nil {
			return "", err
		}
		rhs, err := s.RenderExpr(x.Rhs, depth)
		if err != nil {
			return "", err
		}
		return lhs + " " + x.Op.String() + " " + rhs, nil
	case *stmt.ExprFuncCount:
		return s.RenderCount(x)
	case *stmt.ExprConcatStr:
		parts := make([]string, len(x.Items))
		for i, it := range x.Items {
			p, err := s.RenderExpr(it, depth)
			if err != nil {
				return "", err
			}
			parts[i] = p
		}
		if s.Flavor == FlavorMySQL {
			return "CONCAT(" + strings.Join(parts, ", ") + ")", nil
		}
		return strings.Join(parts, " || "), nil
	case *stmt.ExprReference:
		if !x.IsColumn {
			return "", fmt.Errorf("cannot render unlowered field reference to SQL")
		}
		tableRef, ok := x.Table.(stmt.TableRefTable)
		if !ok {
			return "", fmt.Errorf("cannot render CTE column reference to SQL outside a WITH clause")
		}
		return fmt.Sprintf("%s.c%d", TableAlias(depth-x.ColumnNest, strconv.Itoa(int(tableRef.Table))), x.ColumnIndex), nil
	default:
		return "", fmt.Errorf("serializer: unsupported expression %T in pushdown position", e)
	}
}

func (s Serializer) joinBinary(operands []stmt.Expr, sep string, depth int) (string, error) {
	parts := make([]string, len(operands))
	for i, o := range operands {
		p, err := s.RenderExpr(o, depth)
		if err != nil {
			return "", err
		}
		parts[i] = "(" + p + ")"
	}
	return strings.Join(parts, sep), nil
}

func (s Serializer) renderValue(v stmt.Value) string {
	if stmt.IsNull(v) {
		return "NULL"
	}
	switch x := v.(type) {
	case stmt.ValueString:
		return "'" + strings.ReplaceAll(string(x), "'", "''") + "'"
	case stmt.ValueBool:
		if s.Flavor == FlavorMySQL {
			if bool(x) {
				return "1"
			}
			return "0"
		}
		if bool(x) {
			return "TRUE"
		}
		return "FALSE"
	default:
		return v.String()
	}
}
