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

// Package lower translates a statement from model-space (Field
// references, SourceModel scans) into table-space (Column references,
// SourceTable scans) by substituting each schema.Mapping's expressions in
// place. After Statement runs, no stmt.ExprReference with IsColumn==false
// may remain — the post-lowering verification pass in verify.go is the
// normative check of that invariant.
package lower

import (
	"fmt"

	"github.com/toasty-db/toasty/ids"
	"github.com/toasty-db/toasty/schema"
	"github.com/toasty-db/toasty/simplify"
	"github.com/toasty-db/toasty/stmt"
	"github.com/toasty-db/toasty/toastyerr"
)

// Context carries the schema a Statement lowers against.
type Context struct {
	Schema *schema.Schema
}

// Statement lowers any stmt.Statement in place and returns the rewritten
// tree.
func (c *Context) Statement(s stmt.Statement) (stmt.Statement, error) {
	switch x := s.(type) {
	case *stmt.Query:
		body, err := c.exprSet(x.Body)
		if err != nil {
			return nil, err
		}
		return &stmt.Query{Body: body, OrderBy: x.OrderBy, Limit: x.Limit, Single: x.Single}, nil
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

func (c *Context) exprSet(es stmt.ExprSet) (stmt.ExprSet, error) {
	switch x := es.(type) {
	case *stmt.Select:
		return c.selectStmt(x)
	case *stmt.Values:
		rows := make([]stmt.Expr, len(x.Rows))
		for i, r := range x.Rows {
			rewritten, err := c.rewriteConstExpr(r)
			if err != nil {
				return nil, err
			}
			rows[i] = rewritten
		}
		return &stmt.Values{Rows: rows}, nil
	case *stmt.SetOp:
		lhs, err := c.exprSet(x.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := c.exprSet(x.Rhs)
		if err != nil {
			return nil, err
		}
		return &stmt.SetOp{Kind: x.Kind, Lhs: lhs, Rhs: rhs, All: x.All}, nil
	default:
		return nil, toastyerr.ErrUnsupportedFeature.New(fmt.Sprintf("expr set %T", es))
	}
}

func (c *Context) rewriteConstExpr(e stmt.Expr) (stmt.Expr, error) {
	return simplify.Expr(e)
}

func (c *Context) selectStmt(sel *stmt.Select) (*stmt.Select, error) {
	if tableSrc, ok := sel.Source.(stmt.SourceTable); ok {
		// Already lowered; only the filter/returning expressions may still
		// need constant folding.
		filter, err := c.lowerExprWithTable(sel.Filter, tableSrc.Table)
		if err != nil {
			return nil, err
		}
		returning, err := c.lowerReturningTable(sel.Returning, tableSrc.Table)
		if err != nil {
			return nil, err
		}
		return &stmt.Select{Source: tableSrc, Filter: filter, Returning: returning}, nil
	}
	modelSrc, ok := sel.Source.(stmt.SourceModel)
	if !ok {
		return nil, toastyerr.ErrUnsupportedFeature.New("select source")
	}
	mapping, ok := c.Schema.Mapping(modelSrc.Model)
	if !ok {
		return nil, toastyerr.ErrSchema.New(fmt.Sprintf("no mapping for model %v", modelSrc.Model))
	}

	filter, err := c.lowerFieldExpr(sel.Filter, modelSrc.Model, mapping)
	if err != nil {
		return nil, err
	}
	returning, err := c.lowerReturning(sel.Returning, modelSrc.Model, mapping)
	if err != nil {
		return nil, err
	}
	return &stmt.Select{
		Source:    stmt.SourceTable{Table: mapping.Table},
		Filter:    filter,
		Returning: returning,
	}, nil
}

// lowerFieldExpr substitutes every stmt.Field(model, i) reference in e
// with the model's Mapping's corresponding table-space expression.
func (c *Context) lowerFieldExpr(e stmt.Expr, model ids.ModelId, mapping *schema.Mapping) (stmt.Expr, error) {
	if e == nil {
		return nil, nil
	}
	rewritten := stmt.Substitute(e, fieldInput{model: model, mapping: mapping})
	folded, err := simplify.Expr(rewritten)
	if err != nil {
		return nil, err
	}
	return folded, nil
}

func (c *Context) lowerExprWithTable(e stmt.Expr, table ids.TableId) (stmt.Expr, error) {
	if e == nil {
		return nil, nil
	}
	return simplify.Expr(e)
}

// fieldInput resolves a Field reference at nesting 0 to the model's
// mapped table-space expression; it leaves Arg and outer-nested
// References untouched for the executor to bind per row.
type fieldInput struct {
	model   ids.ModelId
	mapping *schema.Mapping
}

func (f fieldInput) ResolveArg(*stmt.ExprArg, stmt.Projection) (stmt.Expr, bool) { return nil, false }

func (f fieldInput) ResolveRef(ref *stmt.ExprReference, proj stmt.Projection) (stmt.Expr, bool) {
	if ref.IsColumn || ref.Nesting() != 0 || ref.Model != f.model {
		return nil, false
	}
	col := f.mapping.ColumnFor(ref.FieldIndex)
	if col == nil {
		return nil, false
	}
	if proj.IsIdentity() {
		return col, true
	}
	return &stmt.ExprProject{Base: col, Projection: proj}, true
}

func (c *Context) lowerReturning(r stmt.Returning, model ids.ModelId, mapping *schema.Mapping) (stmt.Returning, error) {
	switch x := r.(type) {
	case stmt.ReturningModel:
		if len(x.Include) == 0 {
			return stmt.ReturningExpr{Expr: mapping.TableToModel}, nil
		}
		return stmt.ReturningModelIncludes{Model: model, Expr: mapping.TableToModel, Include: x.Include}, nil
	case stmt.ReturningExpr:
		e, err := c.lowerFieldExpr(x.Expr, model, mapping)
		if err != nil {
			return nil, err
		}
		return stmt.ReturningExpr{Expr: e}, nil
	case stmt.ReturningValue, stmt.ReturningChanges:
		return r, nil
	default:
		return nil, toastyerr.ErrUnsupportedFeature.New(fmt.Sprintf("returning %T", r))
	}
}

func (c *Context) lowerReturningTable(r stmt.Returning, table ids.TableId) (stmt.Returning, error) {
	return r, nil
}

func (c *Context) insert(in *stmt.Insert) (*stmt.Insert, error) {
	modelSrc, ok := in.Target.(stmt.SourceModel)
	if !ok {
		return nil, toastyerr.ErrUnsupportedFeature.New("insert target must be a model")
	}
	mapping, ok := c.Schema.Mapping(modelSrc.Model)
	if !ok {
		return nil, toastyerr.ErrSchema.New(fmt.Sprintf("no mapping for model %v", modelSrc.Model))
	}
	source, err := c.lowerInsertSource(in.Source, modelSrc.Model, mapping)
	if err != nil {
		return nil, err
	}
	returning, err := c.lowerReturning(in.Returning, modelSrc.Model, mapping)
	if err != nil {
		return nil, err
	}
	return &stmt.Insert{
		Target:    stmt.SourceTable{Table: mapping.Table},
		Source:    source,
		Returning: returning,
	}, nil
}

// lowerInsertSource rewrites each row (a record of model-field values) into
// a record of table-column values by substituting each model Field
// reference in the mapping's ModelToTable expressions with that row's
// field value.
func (c *Context) lowerInsertSource(es stmt.ExprSet, model ids.ModelId, mapping *schema.Mapping) (stmt.ExprSet, error) {
	values, ok := es.(*stmt.Values)
	if !ok {
		return c.exprSet(es)
	}
	rows := make([]stmt.Expr, len(values.Rows))
	for i, row := range values.Rows {
		rec, ok := row.(*stmt.ExprRecord)
		if !ok {
			return nil, toastyerr.ErrUnsupportedFeature.New("insert row must be a record expression")
		}
		cols := make([]stmt.Expr, len(mapping.ModelToTable))
		for ci, colExpr := range mapping.ModelToTable {
			substituted := stmt.Substitute(colExpr, rowFieldInput{model: model, fields: rec.Fields})
			folded, err := simplify.Expr(substituted)
			if err != nil {
				return nil, err
			}
			cols[ci] = folded
		}
		rows[i] = &stmt.ExprRecord{Fields: cols}
	}
	return &stmt.Values{Rows: rows}, nil
}

// rowFieldInput resolves stmt.Field(model, i) against a literal row's
// already-evaluated field expressions (an Insert row, before any
// db-default substitution), used only during lowering of the Insert
// source.
type rowFieldInput struct {
	model  ids.ModelId
	fields []stmt.Expr
}

func (r rowFieldInput) ResolveArg(*stmt.ExprArg, stmt.Projection) (stmt.Expr, bool) { return nil, false }

func (r rowFieldInput) ResolveRef(ref *stmt.ExprReference, proj stmt.Projection) (stmt.Expr, bool) {
	if ref.IsColumn || ref.Nesting() != 0 || ref.Model != r.model {
		return nil, false
	}
	if ref.FieldIndex < 0 || ref.FieldIndex >= len(r.fields) {
		return nil, false
	}
	base := r.fields[ref.FieldIndex]
	if proj.IsIdentity() {
		return base, true
	}
	return &stmt.ExprProject{Base: base, Projection: proj}, true
}

func (c *Context) update(u *stmt.Update) (*stmt.Update, error) {
	modelSrc, ok := u.Target.(stmt.SourceModel)
	if !ok {
		return nil, toastyerr.ErrUnsupportedFeature.New("update target must be a model")
	}
	mapping, ok := c.Schema.Mapping(modelSrc.Model)
	if !ok {
		return nil, toastyerr.ErrSchema.New(fmt.Sprintf("no mapping for model %v", modelSrc.Model))
	}
	// Post-lowering, an Assignment's Field no longer names a model field:
	// its Model slot holds the target TableId and Index holds the column
	// index, since stmt.Assignment has no separate table-space form. The
	// planner's column assignment translation (plan.go) is what reads it
	// back out that way.
	assignments := make([]stmt.Assignment, len(u.Assignments))
	for i, a := range u.Assignments {
		col := mapping.ColumnFor(a.Field.Index)
		colRef, ok := col.(*stmt.ExprReference)
		if !ok {
			return nil, toastyerr.ErrUnsupportedFeature.New("assignment target must map to a single column")
		}
		value, err := c.lowerFieldExpr(a.Expr, modelSrc.Model, mapping)
		if err != nil {
			return nil, err
		}
		tableId := colRef.Table.(stmt.TableRefTable).Table
		assignments[i] = stmt.Assignment{Field: ids.FieldId{Model: ids.ModelId(tableId), Index: colRef.ColumnIndex}, Expr: value}
	}
	filter, err := c.lowerFieldExpr(u.Filter, modelSrc.Model, mapping)
	if err != nil {
		return nil, err
	}
	precondition, err := c.lowerFieldExpr(u.Precondition, modelSrc.Model, mapping)
	if err != nil {
		return nil, err
	}
	returning, err := c.lowerReturning(u.Returning, modelSrc.Model, mapping)
	if err != nil {
		return nil, err
	}
	return &stmt.Update{
		Target:       stmt.SourceTable{Table: mapping.Table},
		Assignments:  assignments,
		Filter:       filter,
		Precondition: precondition,
		Returning:    returning,
	}, nil
}

func (c *Context) delete(d *stmt.Delete) (*stmt.Delete, error) {
	modelSrc, ok := d.Source.(stmt.SourceModel)
	if !ok {
		return nil, toastyerr.ErrUnsupportedFeature.New("delete source must be a model")
	}
	mapping, ok := c.Schema.Mapping(modelSrc.Model)
	if !ok {
		return nil, toastyerr.ErrSchema.New(fmt.Sprintf("no mapping for model %v", modelSrc.Model))
	}
	filter, err := c.lowerFieldExpr(d.Filter, modelSrc.Model, mapping)
	if err != nil {
		return nil, err
	}
	returning, err := c.lowerReturning(d.Returning, modelSrc.Model, mapping)
	if err != nil {
		return nil, err
	}
	return &stmt.Delete{
		Source:    stmt.SourceTable{Table: mapping.Table},
		Filter:    filter,
		Returning: returning,
	}, nil
}
