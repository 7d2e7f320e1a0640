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

// Package plan compiles a lowered statement into a graph of driver
// Operations: it chooses an access path (primary key,
// secondary index, or full scan), decides whether a write needs a
// follow-up read to satisfy RETURNING, and wraps compound writes in
// savepoints so a failed step is rolled back without aborting the
// enclosing transaction. A
// query whose Returning named Include entries also gets one Associate
// action per entry appended to the end of its chain, each running its own
// child Plan against the included model and joining the result in.
package plan

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/toasty-db/toasty/capability"
	"github.com/toasty-db/toasty/ids"
	"github.com/toasty-db/toasty/op"
	"github.com/toasty-db/toasty/schema"
	"github.com/toasty-db/toasty/stmt"
	"github.com/toasty-db/toasty/toastyerr"
)

// Action is one node of a plan: either an Operation to hand the driver, or
// an Assoc step the executor resolves in-process, plus Then, the action to
// run once it completes (a linear pipeline for the access patterns this
// planner produces; BatchWrite is how it expresses a set of independent
// actions the driver may run together).
type Action struct {
	Op    op.Operation
	Assoc *Associate
	Then  *Action
}

// AssociateKind selects which side of a relation supplies the match key
// and whether the populated field holds one row or a list.
type AssociateKind int

const (
	// AssociateBelongsTo reads the match key from the parent row's own
	// Field slot (already holding the target's primary key) and replaces
	// it with the matched target row.
	AssociateBelongsTo AssociateKind = iota
	// AssociateHasOne reads the match key from the parent row's primary
	// key and attaches at most one target row whose ChildKey field
	// equals it.
	AssociateHasOne
	// AssociateHasMany is AssociateHasOne but attaches every matching
	// target row as a list.
	AssociateHasMany
)

// Associate is an in-process join: given the rows produced by the
// preceding action (the parents) and Child's rows (the targets), it
// attaches targets into each parent's Field slot by equality between
// ParentKey and ChildKey. It never reaches a Driver; the executor
// resolves it by running Child and indexing its rows in memory.
type Associate struct {
	Kind      AssociateKind
	Field     ids.FieldId
	ParentKey ids.FieldId
	ChildKey  ids.FieldId
	Child     *Plan
}

// Plan is the root of a compiled statement: Root is the first Action to
// run.
type Plan struct {
	Root *Action
}

// Context carries the schema and driver capability a statement plans
// against.
type Context struct {
	Schema *schema.Schema
	Cap    capability.Capability

	// Log traces access-path decisions (chosen index, scan fallback,
	// savepoint wraps); nil is treated as a discard logger so callers that
	// don't care about planner tracing don't have to construct one.
	Log *logrus.Entry
}

func (c *Context) log() *logrus.Entry {
	if c.Log != nil {
		return c.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Statement compiles a lowered (table-space) statement into a Plan.
func (c *Context) Statement(s stmt.Statement) (*Plan, error) {
	switch x := s.(type) {
	case *stmt.Query:
		return c.query(x)
	case *stmt.Insert:
		return c.insert(x)
	case *stmt.Update:
		return c.update(x)
	case *stmt.Delete:
		return c.delete(x)
	default:
		return nil, toastyerr.ErrUnsupportedFeature.New(fmt.Sprintf("statement %T", s))
	}
}

func (c *Context) query(q *stmt.Query) (*Plan, error) {
	sel, ok := q.Body.(*stmt.Select)
	if !ok {
		return nil, toastyerr.ErrUnsupportedFeature.New("query body must be a select once lowered")
	}
	tableSrc, ok := sel.Source.(stmt.SourceTable)
	if !ok {
		return nil, toastyerr.ErrUnsupportedFeature.New("query source must be a table once lowered")
	}
	table, ok := c.Schema.Table(tableSrc.Table)
	if !ok {
		return nil, toastyerr.ErrSchema.New("unknown table in plan")
	}

	driverReturning, model, includes := splitReturning(sel.Returning)

	var root *Action
	if keys, ok := equalityKeyMatch(sel.Filter, table.PrimaryIndex()); ok {
		c.log().Tracef("plan: table %q via primary key", table.Name)
		root = &Action{Op: &op.GetByKey{Table: table.Id, Keys: keys, Returning: driverReturning}}
	}

	if root == nil {
		for i := range table.Indexes {
			idx := &table.Indexes[i]
			if idx.Primary {
				continue
			}
			if _, ok := equalityKeyMatch(sel.Filter, idx); ok {
				c.log().Tracef("plan: table %q via secondary index %v (verify=%v)", table.Name, idx.Id, !c.Cap.SecondaryIndicesConsistent)
				findAction := &Action{Op: &op.FindPkByIndex{Index: idx.Id, Filter: sel.Filter, Limit: q.Limit}}
				if !c.Cap.SecondaryIndicesConsistent {
					findAction.Then = &Action{Op: &op.QueryPk{Table: table.Id, Filter: sel.Filter, Limit: q.Limit, Returning: driverReturning}}
				}
				root = findAction
				break
			}
		}
	}

	if root == nil {
		c.log().Tracef("plan: table %q falling back to full primary-key scan", table.Name)
		root = &Action{Op: &op.QueryPk{Table: table.Id, Filter: sel.Filter, Limit: q.Limit, Returning: driverReturning}}
	}

	if len(includes) == 0 {
		return &Plan{Root: root}, nil
	}
	if err := c.appendIncludes(root, model, includes); err != nil {
		return nil, err
	}
	return &Plan{Root: root}, nil
}

// splitReturning separates a (possibly Include-carrying) Returning into the
// plain expression a Driver understands plus the Include chain the planner
// must still resolve via Associate actions.
func splitReturning(r stmt.Returning) (stmt.Returning, ids.ModelId, []stmt.Include) {
	if x, ok := r.(stmt.ReturningModelIncludes); ok {
		return stmt.ReturningExpr{Expr: x.Expr}, x.Model, x.Include
	}
	return r, 0, nil
}

// appendIncludes extends root's Then-chain with one Associate Action per
// entry of includes, resolved against model's relation fields.
func (c *Context) appendIncludes(root *Action, model ids.ModelId, includes []stmt.Include) error {
	tail := root
	for tail.Then != nil {
		tail = tail.Then
	}
	for _, inc := range includes {
		assoc, err := c.planAssociate(model, inc)
		if err != nil {
			return err
		}
		next := &Action{Assoc: assoc}
		tail.Then = next
		tail = next
	}
	return nil
}

// planAssociate resolves a single Include entry against model's schema
// into an Associate action, recursively planning Child for any Nested
// includes on the target model.
func (c *Context) planAssociate(model ids.ModelId, inc stmt.Include) (*Associate, error) {
	m, ok := c.Schema.Model(model)
	if !ok {
		return nil, toastyerr.ErrSchema.New("unknown model in include")
	}
	if inc.Field.Index < 0 || inc.Field.Index >= len(m.Fields) {
		return nil, toastyerr.ErrSchema.New("include field out of range")
	}
	field := m.Fields[inc.Field.Index]

	switch ft := field.Type.(type) {
	case schema.FieldBelongsTo:
		target, ok := c.Schema.Model(ft.Target)
		if !ok {
			return nil, toastyerr.ErrSchema.New("include targets unknown model")
		}
		pk := target.PrimaryKey()
		if len(pk) != 1 {
			return nil, toastyerr.ErrUnsupportedFeature.New("include requires a single-column primary key on the target model")
		}
		child, err := c.planFullScan(ft.Target, inc.Nested)
		if err != nil {
			return nil, err
		}
		return &Associate{Kind: AssociateBelongsTo, Field: inc.Field, ParentKey: inc.Field, ChildKey: pk[0].Id, Child: child}, nil

	case schema.FieldHasOne:
		pk := m.PrimaryKey()
		if len(pk) != 1 {
			return nil, toastyerr.ErrUnsupportedFeature.New("include requires a single-column primary key on the parent model")
		}
		child, err := c.planFullScan(ft.Target, inc.Nested)
		if err != nil {
			return nil, err
		}
		return &Associate{Kind: AssociateHasOne, Field: inc.Field, ParentKey: pk[0].Id, ChildKey: ft.TargetBelongsTo, Child: child}, nil

	case schema.FieldHasMany:
		pk := m.PrimaryKey()
		if len(pk) != 1 {
			return nil, toastyerr.ErrUnsupportedFeature.New("include requires a single-column primary key on the parent model")
		}
		child, err := c.planFullScan(ft.Target, inc.Nested)
		if err != nil {
			return nil, err
		}
		return &Associate{Kind: AssociateHasMany, Field: inc.Field, ParentKey: pk[0].Id, ChildKey: ft.TargetBelongsTo, Child: child}, nil

	default:
		return nil, toastyerr.ErrUnsupportedFeature.New(fmt.Sprintf("include field %q is not a relation", field.Name))
	}
}

// planFullScan builds the child plan Associate runs to produce a target
// model's rows in model shape, with any Nested includes chained on.
func (c *Context) planFullScan(model ids.ModelId, includes []stmt.Include) (*Plan, error) {
	mapping, ok := c.Schema.Mapping(model)
	if !ok {
		return nil, toastyerr.ErrSchema.New("unknown model in include")
	}
	root := &Action{Op: &op.QueryPk{Table: mapping.Table, Returning: stmt.ReturningExpr{Expr: mapping.TableToModel}}}
	if len(includes) == 0 {
		return &Plan{Root: root}, nil
	}
	if err := c.appendIncludes(root, model, includes); err != nil {
		return nil, err
	}
	return &Plan{Root: root}, nil
}

// equalityKeyMatch reports whether filter is (a conjunction of) equality
// comparisons covering exactly idx's columns, returning the key
// expressions in index-column order. This is the planner's only index
// selection rule; composite range predicates and OR-of-equality fan-out
// are left to full table scans, a conservative choice allows.
func equalityKeyMatch(filter stmt.Expr, idx *schema.Index) ([]stmt.Expr, bool) {
	if idx == nil || len(idx.Columns) == 0 {
		return nil, false
	}
	conjuncts := flattenAnd(filter)
	found := make(map[int]stmt.Expr, len(idx.Columns))
	for _, c := range conjuncts {
		bop, ok := c.(*stmt.ExprBinaryOp)
		if !ok || bop.Op != stmt.OpEq {
			continue
		}
		if colIdx, val, ok := columnEquality(bop, idx); ok {
			found[colIdx] = val
		}
	}
	if len(found) != len(idx.Columns) {
		return nil, false
	}
	keys := make([]stmt.Expr, len(idx.Columns))
	for i, col := range idx.Columns {
		v, ok := found[col.Column.Index]
		if !ok {
			return nil, false
		}
		keys[i] = v
	}
	return keys, true
}

func flattenAnd(e stmt.Expr) []stmt.Expr {
	if e == nil {
		return nil
	}
	if and, ok := e.(*stmt.ExprAnd); ok {
		var out []stmt.Expr
		for _, o := range and.Operands {
			out = append(out, flattenAnd(o)...)
		}
		return out
	}
	return []stmt.Expr{e}
}

func columnEquality(bop *stmt.ExprBinaryOp, idx *schema.Index) (int, stmt.Expr, bool) {
	if ref, val, ok := asColumnAndValue(bop.Lhs, bop.Rhs); ok {
		for _, col := range idx.Columns {
			if ref.ColumnIndex == col.Column.Index {
				return col.Column.Index, val, true
			}
		}
	}
	if ref, val, ok := asColumnAndValue(bop.Rhs, bop.Lhs); ok {
		for _, col := range idx.Columns {
			if ref.ColumnIndex == col.Column.Index {
				return col.Column.Index, val, true
			}
		}
	}
	return 0, nil, false
}

func asColumnAndValue(a, b stmt.Expr) (*stmt.ExprReference, stmt.Expr, bool) {
	ref, ok := a.(*stmt.ExprReference)
	if !ok || !ref.IsColumn {
		return nil, nil, false
	}
	return ref, b, true
}

func (c *Context) insert(in *stmt.Insert) (*Plan, error) {
	tableSrc, ok := in.Target.(stmt.SourceTable)
	if !ok {
		return nil, toastyerr.ErrUnsupportedFeature.New("insert target must be a table once lowered")
	}
	values, ok := in.Source.(*stmt.Values)
	if !ok {
		return nil, toastyerr.ErrUnsupportedFeature.New("insert source must be a values list once lowered")
	}

	returning := in.Returning
	insertOp := &op.Insert{Table: tableSrc.Table, Rows: values.Rows, Returning: returning}
	root := &Action{Op: insertOp}

	if needsReturningFollowup(returning) && !c.Cap.ReturningFromInsert {
		table, ok := c.Schema.Table(tableSrc.Table)
		if !ok {
			return nil, toastyerr.ErrSchema.New("unknown table in plan")
		}
		pk := table.PrimaryIndex()
		lookups := make([]op.Operation, 0, len(values.Rows))
		for _, row := range values.Rows {
			rec, ok := row.(*stmt.ExprRecord)
			if !ok {
				continue
			}
			keys := make([]stmt.Expr, len(pk.Columns))
			for i, col := range pk.Columns {
				if col.Column.Index < len(rec.Fields) {
					keys[i] = rec.Fields[col.Column.Index]
				}
			}
			lookups = append(lookups, &op.GetByKey{Table: tableSrc.Table, Keys: keys, Returning: returning})
		}
		if len(lookups) == 1 {
			root.Then = &Action{Op: lookups[0]}
		} else if len(lookups) > 1 {
			root.Then = &Action{Op: &op.BatchWrite{Operations: lookups}}
		}
	}

	return &Plan{Root: root}, nil
}

func needsReturningFollowup(r stmt.Returning) bool {
	switch r.(type) {
	case stmt.ReturningChanges, nil:
		return false
	default:
		return true
	}
}

func (c *Context) update(u *stmt.Update) (*Plan, error) {
	tableSrc, ok := u.Target.(stmt.SourceTable)
	if !ok {
		return nil, toastyerr.ErrUnsupportedFeature.New("update target must be a table once lowered")
	}
	assignments := make([]op.ColumnAssignment, len(u.Assignments))
	for i, a := range u.Assignments {
		assignments[i] = op.ColumnAssignment{
			Column: columnIdFromAssignment(a),
			Expr:   a.Expr,
		}
	}

	table, ok := c.Schema.Table(tableSrc.Table)
	if !ok {
		return nil, toastyerr.ErrSchema.New("unknown table in plan")
	}

	if keys, ok := equalityKeyMatch(u.Filter, table.PrimaryIndex()); ok {
		c.log().Tracef("plan: update on %q via primary key", table.Name)
		var key stmt.Expr = &stmt.ExprRecord{Fields: keys}
		if len(keys) == 1 {
			key = keys[0]
		}
		action := &Action{Op: &op.UpdateByKey{
			Table:        tableSrc.Table,
			Key:          key,
			Assignments:  assignments,
			Precondition: u.Precondition,
			Returning:    u.Returning,
		}}
		return wrapSavepoint(action, u.Precondition != nil), nil
	}

	// No primary-key equality predicate: fan out via a QueryPk scan
	// followed by one UpdateByKey per matching row, wrapped in a
	// savepoint so a mid-fan-out failure rolls back the whole statement
	// rather than leaving a partial update.
	c.log().Tracef("plan: update on %q via scan fan-out", table.Name)
	scan := &Action{Op: &op.QueryPk{Table: tableSrc.Table, Filter: u.Filter, Returning: stmt.ReturningExpr{Expr: primaryKeyRecord(table.PrimaryIndex())}}}
	scan.Then = &Action{Op: &op.UpdateByKey{
		Table:        tableSrc.Table,
		Assignments:  assignments,
		Precondition: u.Precondition,
		Returning:    u.Returning,
	}}
	return wrapSavepoint(scan, true), nil
}

// columnIdFromAssignment reads back the table/column pair lower.go encoded
// into a post-lowering Assignment's Field (Model slot holds the TableId,
// Index slot holds the column index; see lower.go's update()).
func columnIdFromAssignment(a stmt.Assignment) ids.ColumnId {
	return ids.ColumnId{Table: ids.TableId(a.Field.Model), Index: a.Field.Index}
}

func primaryKeyRecord(idx *schema.Index) stmt.Expr {
	if idx == nil {
		return &stmt.ExprRecord{}
	}
	if len(idx.Columns) == 1 {
		col := idx.Columns[0].Column
		return stmt.Column(col.Table, col.Index, 0)
	}
	fields := make([]stmt.Expr, len(idx.Columns))
	for i, col := range idx.Columns {
		fields[i] = stmt.Column(col.Column.Table, col.Column.Index, 0)
	}
	return &stmt.ExprRecord{Fields: fields}
}

func wrapSavepoint(action *Action, needed bool) *Plan {
	if !needed {
		return &Plan{Root: action}
	}
	// Id 0 asks the executor to mint the next nested savepoint id; plan
	// never knows how many savepoints a surrounding transaction has
	// already used.
	return &Plan{Root: &Action{
		Op:   &op.Savepoint{Id: 0},
		Then: action,
	}}
}

func (c *Context) delete(d *stmt.Delete) (*Plan, error) {
	tableSrc, ok := d.Source.(stmt.SourceTable)
	if !ok {
		return nil, toastyerr.ErrUnsupportedFeature.New("delete source must be a table once lowered")
	}
	table, ok := c.Schema.Table(tableSrc.Table)
	if !ok {
		return nil, toastyerr.ErrSchema.New("unknown table in plan")
	}

	if keys, ok := equalityKeyMatch(d.Filter, table.PrimaryIndex()); ok {
		var key stmt.Expr = &stmt.ExprRecord{Fields: keys}
		if len(keys) == 1 {
			key = keys[0]
		}
		c.log().Tracef("plan: delete on %q via primary key", table.Name)
		return &Plan{Root: &Action{Op: &op.DeleteByKey{Table: tableSrc.Table, Key: key, Returning: d.Returning}}}, nil
	}

	c.log().Tracef("plan: delete on %q via scan fan-out", table.Name)
	scan := &Action{Op: &op.QueryPk{Table: tableSrc.Table, Filter: d.Filter, Returning: stmt.ReturningExpr{Expr: primaryKeyRecord(table.PrimaryIndex())}}}
	scan.Then = &Action{Op: &op.DeleteByKey{Table: tableSrc.Table, Returning: d.Returning}}
	return wrapSavepoint(scan, true), nil
}
