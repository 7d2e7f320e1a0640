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
	"github.com/toasty-db/toasty/ids"
	"github.com/toasty-db/toasty/tycore"
)

// Expr is the closed sum of expression nodes. Every pass in
// the pipeline (simplify, lower, plan, exec) is structural: it matches on
// the concrete type, transforms children, and rebuilds, using the
// Visitor/Walk/Transform machinery in visit.go.
type Expr interface {
	isExpr()
}

// BinaryOp enumerates the relational operators BinaryOp carries.
type BinaryOp int

const (
	OpEq BinaryOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	// OpIsA is present in the IR but unimplemented, per "Known
	// ambiguities": the original source never implements it.
	OpIsA
)

func (o BinaryOp) String() string {
	switch o {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpIsA:
		return "IS A"
	default:
		return "?"
	}
}

// UnaryOp enumerates the unary operators (currently only Neg).
type UnaryOp int

const (
	OpNeg UnaryOp = iota
)

// PatternKind distinguishes begins-with from full LIKE matching.
type PatternKind int

const (
	PatternBeginsWith PatternKind = iota
	PatternLike
)

// TableRef names the table or CTE a Column reference targets.
type TableRef interface {
	isTableRef()
}

type (
	TableRefTable struct{ Table ids.TableId }
	TableRefCte    struct {
		Nesting int
		Index   int
	}
)

func (TableRefTable) isTableRef() {}
func (TableRefCte) isTableRef()   {}

// --- Expr variants -----------------------------------------------------

type (
	ExprAnd struct{ Operands []Expr }
	ExprOr  struct{ Operands []Expr }
	ExprNot struct{ Expr Expr }

	ExprIsNull struct {
		Expr   Expr
		Negate bool // true => IsNotNull
	}

	ExprBinaryOp struct {
		Op       BinaryOp
		Lhs, Rhs Expr
	}

	ExprInList struct {
		Expr Expr
		List Expr
	}

	ExprInSubquery struct {
		Expr     Expr
		Subquery *Select
	}

	ExprExists struct {
		Subquery *Select
		Negated  bool
	}

	ExprPattern struct {
		Kind    PatternKind
		Expr    Expr
		Pattern Expr
	}

	ExprCast struct {
		Expr Expr
		Ty   tycore.Type
	}

	ExprList struct{ Items []Expr }

	ExprRecord struct{ Fields []Expr }

	// ExprMap applies Map to every item of a list-valued Base. Map is
	// evaluated with Arg(0) bound to the item; for record items, fields are
	// additionally unpacked so Arg(i) binds to field i.
	ExprMap struct {
		Base Expr
		Map  Expr
	}

	// ExprAny evaluates to the disjunction of a (already-materialized) list
	// of boolean expressions.
	ExprAny struct{ List Expr }

	ExprProject struct {
		Base       Expr
		Projection Projection
	}

	// ExprReference is itself a two-variant sum: Field references exist
	// before lowering, Column references after.
	ExprReference struct {
		IsColumn bool

		// Field variant.
		Model       ids.ModelId
		FieldIndex  int
		FieldNest   int

		// Column variant.
		ColumnNest  int
		Table       TableRef
		ColumnIndex int
	}

	ExprArg struct {
		Position int
		Nesting  int
	}

	// ExprStmt embeds a boxed sub-statement (correlated/uncorrelated
	// subquery used as a scalar or row-producing expression).
	ExprStmt struct{ Stmt *Statement }

	ExprValue struct{ Value Value }

	// ExprDecodeEnum reconstructs an embedded enum value from its flattened
	// table representation: Discriminant evaluates to the stored variant
	// index, and Variants[i] evaluates to the record of variant i's field
	// values. Only Variants[Discriminant] is evaluated, since the other
	// variants' columns may hold unrelated (or null) data for this row.
	ExprDecodeEnum struct {
		Discriminant Expr
		Variants     []Expr
		Ty           tycore.Type
	}

	// ExprDefault is only meaningful inside an Insert's row expressions; it
	// asks the database to substitute its own default. Reaching the
	// evaluator with one is an error.
	ExprDefault struct{}

	// ExprError always evaluates to a runtime error whose message surfaces
	// verbatim.
	ExprError struct{ Message string }

	// ExprFuncCount is the Func(Count{arg, filter}) aggregate.
	ExprFuncCount struct {
		Arg    Expr // nil means COUNT(*)
		Filter Expr // optional FILTER (WHERE ...)
	}

	ExprConcatStr struct{ Items []Expr }

	ExprUnaryOp struct {
		Op   UnaryOp
		Expr Expr
	}
)

func (*ExprAnd) isExpr()        {}
func (*ExprOr) isExpr()         {}
func (*ExprNot) isExpr()        {}
func (*ExprIsNull) isExpr()     {}
func (*ExprBinaryOp) isExpr()   {}
func (*ExprInList) isExpr()     {}
func (*ExprInSubquery) isExpr() {}
func (*ExprExists) isExpr()     {}
func (*ExprPattern) isExpr()    {}
func (*ExprCast) isExpr()       {}
func (*ExprList) isExpr()       {}
func (*ExprRecord) isExpr()     {}
func (*ExprMap) isExpr()        {}
func (*ExprAny) isExpr()        {}
func (*ExprProject) isExpr()    {}
func (*ExprReference) isExpr()  {}
func (*ExprArg) isExpr()        {}
func (*ExprStmt) isExpr()       {}
func (*ExprValue) isExpr()      {}
func (*ExprDecodeEnum) isExpr() {}
func (*ExprDefault) isExpr()    {}
func (*ExprError) isExpr()      {}
func (*ExprFuncCount) isExpr()  {}
func (*ExprConcatStr) isExpr()  {}
func (*ExprUnaryOp) isExpr()    {}

// --- constructors --------------------------------------------------------

func Field(model ids.ModelId, index int) *ExprReference {
	return &ExprReference{Model: model, FieldIndex: index}
}

func ParentField(model ids.ModelId, index, nesting int) *ExprReference {
	return &ExprReference{Model: model, FieldIndex: index, FieldNest: nesting}
}

func Column(table ids.TableId, index, nesting int) *ExprReference {
	return &ExprReference{IsColumn: true, Table: TableRefTable{Table: table}, ColumnIndex: index, ColumnNest: nesting}
}

func (r *ExprReference) Nesting() int {
	if r.IsColumn {
		return r.ColumnNest
	}
	return r.FieldNest
}

// AsFieldId returns the (model, index) pair if r is a Field reference at
// nesting 0, mirroring the original source's as_field_id helper.
func (r *ExprReference) AsFieldId() (ids.FieldId, bool) {
	if !r.IsColumn && r.FieldNest == 0 {
		return ids.FieldId{Model: r.Model, Index: r.FieldIndex}, true
	}
	return ids.FieldId{}, false
}

func Lit(v Value) *ExprValue { return &ExprValue{Value: v} }

func LitBool(b bool) *ExprValue { return &ExprValue{Value: ValueBool(b)} }

func And(operands ...Expr) *ExprAnd { return &ExprAnd{Operands: operands} }
func Or(operands ...Expr) *ExprOr   { return &ExprOr{Operands: operands} }

func Eq(lhs, rhs Expr) *ExprBinaryOp { return &ExprBinaryOp{Op: OpEq, Lhs: lhs, Rhs: rhs} }
func Ne(lhs, rhs Expr) *ExprBinaryOp { return &ExprBinaryOp{Op: OpNe, Lhs: lhs, Rhs: rhs} }

func Arg(position int) *ExprArg { return &ExprArg{Position: position} }

func NestedArg(position, nesting int) *ExprArg { return &ExprArg{Position: position, Nesting: nesting} }
