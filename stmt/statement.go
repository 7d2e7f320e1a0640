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
	"github.com/toasty-db/toasty/toastyerr"
)

func duplicateAssignmentErr(f ids.FieldId) error {
	return toastyerr.ErrValidationFailed.New(toastyerr.Quotef("field %s is assigned more than once in the same update", f))
}

// Statement is the closed sum of top-level statements: Query,
// Insert, Update, Delete. Every one of these can itself appear nested as an
// ExprStmt sub-expression (a correlated subquery).
type Statement interface {
	isStatement()
}

// Query wraps a statement body with ordering and a limit/offset, and tracks
// whether the caller expects exactly one row back.
type Query struct {
	Body    ExprSet
	OrderBy *OrderBy
	Limit   *Limit
	// Single marks a query whose caller expects exactly one row, mirroring
	// the original source's "first" vs "all" query distinction. Lowering
	// carries it over; the planner and executor do not read it, so a
	// Single query returns a stream like any other and no row-count error
	// is raised for it.
	Single bool
}

func (*Query) isStatement() {}

// ExprSet is the sum of things a Query's body can be: a row-producing
// Select, a literal Values list, or a set operation combining two bodies.
type ExprSet interface {
	isExprSet()
}

type (
	// Values is a literal, already-materialized row source (e.g. the source
	// of a multi-row Insert statement).
	Values struct{ Rows []Expr }

	SetOpKind int

	SetOp struct {
		Kind  SetOpKind
		Lhs   ExprSet
		Rhs   ExprSet
		All   bool
	}
)

const (
	SetOpUnion SetOpKind = iota
	SetOpIntersect
	SetOpExcept
)

func (*Values) isExprSet() {}
func (*SetOp) isExprSet()  {}
func (*Select) isExprSet() {}

// Select is the canonical row-producing body: a source to scan, an optional
// filter, and a Returning clause describing what each row projects to.
type Select struct {
	Source    Source
	Filter    Expr
	Returning Returning
}

// Source names what a Select (or Update/Delete's target) scans.
type Source interface {
	isSource()
}

type (
	// SourceModel scans an application model. Include names associated
	// models whose rows should be eagerly joined/batched alongside the
	// primary row.
	SourceModel struct {
		Model   ids.ModelId
		Include []Include
	}

	// SourceTable scans a db-level table directly; only reachable after
	// lowering.
	SourceTable struct {
		Table ids.TableId
	}
)

func (SourceModel) isSource() {}
func (SourceTable) isSource() {}

// Include names an associated model to eagerly load alongside the primary
// row of a SourceModel scan, keyed by the owning field on the model.
// Nested, when non-empty, names includes on the associated model itself
// (e.g. a user's posts' comments), resolved by chaining one Associate
// action per level rather than a separate hierarchical-merge mechanism.
type Include struct {
	Field  ids.FieldId
	Nested []Include
}

// Returning is the closed sum of what a statement hands back per row.
type Returning interface {
	isReturning()
}

type (
	// ReturningModel projects each row into the given model's fields,
	// following Include to attach associated rows.
	ReturningModel struct {
		Model   ids.ModelId
		Include []Include
	}

	// ReturningExpr projects each row through an arbitrary expression
	// (e.g. a Record of selected fields, or a COUNT aggregate).
	ReturningExpr struct{ Expr Expr }

	// ReturningValue returns a single, statement-wide constant value rather
	// than one derived per row (e.g. Insert's "the rows I was given, cast to
	// their column types" fast path once every row expression is a literal).
	ReturningValue struct{ Value Value }

	// ReturningChanges asks the driver only for how many rows were
	// affected, with no column data.
	ReturningChanges struct{}

	// ReturningModelIncludes is ReturningModel's lowered form once Include
	// is non-empty: Expr already projects the row into model shape (with
	// every relation field slot null), and Include survives lowering
	// unresolved so the planner can turn each entry into an Associate
	// action that fills the slot in.
	ReturningModelIncludes struct {
		Model   ids.ModelId
		Expr    Expr
		Include []Include
	}
)

func (ReturningModel) isReturning()         {}
func (ReturningExpr) isReturning()          {}
func (ReturningValue) isReturning()         {}
func (ReturningChanges) isReturning()       {}
func (ReturningModelIncludes) isReturning() {}

// Insert writes Source's rows into Target and reports Returning per row.
type Insert struct {
	Target    Source
	Source    ExprSet
	Returning Returning
}

func (*Insert) isStatement() {}

// Assignment is a single `field = expr` pair of an Update. Per-field
// assignment uniqueness (no field assigned twice) is enforced by NewUpdate.
type Assignment struct {
	Field ids.FieldId
	Expr  Expr
}

// Update assigns Assignments on every row of Target matching Filter,
// subject to an optional Precondition (used by optimistic-concurrency /
// compare-and-swap updates), and reports Returning per matched row.
type Update struct {
	Target       Source
	Assignments  []Assignment
	Filter       Expr
	Precondition Expr
	Returning    Returning
}

func (*Update) isStatement() {}

// NewUpdate builds an Update and rejects a duplicate field assignment,
// which the planner would otherwise have to detect later and which every
// driver would otherwise have to tolerate silently (last-write-wins is not
// a semantics we want to leave implicit).
func NewUpdate(target Source, assignments []Assignment, filter Expr) (*Update, error) {
	seen := make(map[ids.FieldId]bool, len(assignments))
	for _, a := range assignments {
		if seen[a.Field] {
			return nil, duplicateAssignmentErr(a.Field)
		}
		seen[a.Field] = true
	}
	return &Update{Target: target, Assignments: assignments, Filter: filter}, nil
}

// Delete removes every row of Source matching Filter and reports Returning
// per removed row.
type Delete struct {
	Source    Source
	Filter    Expr
	Returning Returning
}

func (*Delete) isStatement() {}

// OrderBy is a sequence of sort keys applied to a Query's body.
type OrderBy struct {
	Items []OrderByItem
}

type OrderByItem struct {
	Expr Expr
	Desc bool
}

// Limit bounds a Query's row count and describes where to resume from for
// cursor-style pagination.
type Limit struct {
	Count  Expr
	Offset Offset
}

// Offset is the closed sum of ways a Limit can skip rows: a plain
// count-based offset, or a cursor expressed as the last-seen row's order-by
// values (used by keyset/seek pagination).
type Offset interface {
	isOffset()
}

type (
	OffsetCount struct{ Count Expr }
	OffsetAfter struct{ Values []Value }
	OffsetBefore struct{ Values []Value }
)

func (OffsetCount) isOffset()  {}
func (OffsetAfter) isOffset()  {}
func (OffsetBefore) isOffset() {}
