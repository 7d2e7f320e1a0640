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

package exec

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toasty-db/toasty/capability"
	"github.com/toasty-db/toasty/driverapi"
	"github.com/toasty-db/toasty/ids"
	"github.com/toasty-db/toasty/memdriver"
	"github.com/toasty-db/toasty/op"
	"github.com/toasty-db/toasty/plan"
	"github.com/toasty-db/toasty/schema"
	"github.com/toasty-db/toasty/stmt"
)

func openExecTestSchema(t *testing.T) (*memdriver.Driver, *schema.Schema) {
	t.Helper()
	b := schema.NewBuilder(capability.Capability{Storage: capability.StorageKV})
	b.AddModel(&schema.Model{
		Id:   1,
		Name: "item",
		Fields: []schema.Field{
			{Id: ids.FieldId{Model: 1, Index: 0}, Name: "id", Type: schema.FieldPrimitive{Type: schema.PrimI64}, PrimaryKey: true},
			{Id: ids.FieldId{Model: 1, Index: 1}, Name: "tag", Type: schema.FieldPrimitive{Type: schema.PrimString}},
		},
	})
	s, err := b.Build()
	require.NoError(t, err)

	d, err := memdriver.Open(filepath.Join(t.TempDir(), "exec.db"), capability.Capability{Storage: capability.StorageKV})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	ctx := context.Background()
	require.NoError(t, d.RegisterSchema(ctx, s))
	return d, s
}

func TestRunLinearAction(t *testing.T) {
	d, s := openExecTestSchema(t)
	ctx := context.Background()
	table, _ := s.Table(ids.TableId(1))

	e := NewExecutor(d)
	row := &stmt.ExprRecord{Fields: []stmt.Expr{stmt.Lit(stmt.ValueI64(1)), stmt.Lit(stmt.ValueString("a"))}}
	p := &plan.Plan{Root: &plan.Action{Op: &op.Insert{Table: table.Id, Rows: []stmt.Expr{row}, Returning: stmt.ReturningChanges{}}}}

	resp, err := e.Run(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.(driverapi.ResponseCount).Count)
}

func TestRunScanFanOutUpdatesEveryMatchedRow(t *testing.T) {
	d, s := openExecTestSchema(t)
	ctx := context.Background()
	table, _ := s.Table(ids.TableId(1))

	for i := int64(1); i <= 3; i++ {
		row := &stmt.ExprRecord{Fields: []stmt.Expr{stmt.Lit(stmt.ValueI64(i)), stmt.Lit(stmt.ValueString("old"))}}
		_, err := d.Exec(ctx, &op.Insert{Table: table.Id, Rows: []stmt.Expr{row}, Returning: stmt.ReturningChanges{}})
		require.NoError(t, err)
	}

	e := NewExecutor(d)
	scan := &op.QueryPk{Table: table.Id, Returning: stmt.ReturningExpr{Expr: stmt.Column(table.Id, 0, 0)}}
	update := &op.UpdateByKey{
		Table:       table.Id,
		Assignments: []op.ColumnAssignment{{Column: ids.ColumnId{Table: table.Id, Index: 1}, Expr: stmt.Lit(stmt.ValueString("new"))}},
		Returning:   stmt.ReturningChanges{},
	}
	p := &plan.Plan{Root: &plan.Action{Op: scan, Then: &plan.Action{Op: update}}}

	resp, err := e.Run(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.(driverapi.ResponseCount).Count)

	getResp, err := d.Exec(ctx, &op.GetByKey{Table: table.Id, Keys: []stmt.Expr{stmt.Lit(stmt.ValueI64(1))}})
	require.NoError(t, err)
	v, _, err := getResp.(driverapi.ResponseRows).Rows.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, stmt.ValueString("new"), v.(stmt.ValueRecord).Fields[1])
}

func openRelationTestSchema(t *testing.T) (*memdriver.Driver, *schema.Schema) {
	t.Helper()
	b := schema.NewBuilder(capability.Capability{Storage: capability.StorageKV})
	b.AddModel(&schema.Model{
		Id:   1,
		Name: "author",
		Fields: []schema.Field{
			{Id: ids.FieldId{Model: 1, Index: 0}, Name: "id", Type: schema.FieldPrimitive{Type: schema.PrimI64}, PrimaryKey: true},
			{Id: ids.FieldId{Model: 1, Index: 1}, Name: "posts", Type: schema.FieldHasMany{Target: 2, TargetBelongsTo: ids.FieldId{Model: 2, Index: 2}}},
		},
	})
	b.AddModel(&schema.Model{
		Id:   2,
		Name: "post",
		Fields: []schema.Field{
			{Id: ids.FieldId{Model: 2, Index: 0}, Name: "id", Type: schema.FieldPrimitive{Type: schema.PrimI64}, PrimaryKey: true},
			{Id: ids.FieldId{Model: 2, Index: 1}, Name: "title", Type: schema.FieldPrimitive{Type: schema.PrimString}},
			{Id: ids.FieldId{Model: 2, Index: 2}, Name: "author", Type: schema.FieldBelongsTo{Target: 1, ForeignKey: ids.FieldId{Model: 2, Index: 2}}},
		},
	})
	s, err := b.Build()
	require.NoError(t, err)

	d, err := memdriver.Open(filepath.Join(t.TempDir(), "exec_assoc.db"), capability.Capability{Storage: capability.StorageKV})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	ctx := context.Background()
	require.NoError(t, d.RegisterSchema(ctx, s))
	return d, s
}

func TestRunAssociateChainAttachesHasManyChildren(t *testing.T) {
	d, s := openRelationTestSchema(t)
	ctx := context.Background()
	authorTable, _ := s.Table(ids.TableId(1))
	postTable, _ := s.Table(ids.TableId(2))

	_, err := d.Exec(ctx, &op.Insert{
		Table: authorTable.Id,
		Rows:  []stmt.Expr{&stmt.ExprRecord{Fields: []stmt.Expr{stmt.Lit(stmt.ValueI64(1))}}},
		Returning: stmt.ReturningChanges{},
	})
	require.NoError(t, err)
	for i, title := range []string{"first", "second"} {
		_, err := d.Exec(ctx, &op.Insert{
			Table: postTable.Id,
			Rows: []stmt.Expr{&stmt.ExprRecord{Fields: []stmt.Expr{
				stmt.Lit(stmt.ValueI64(int64(i + 1))),
				stmt.Lit(stmt.ValueString(title)),
				stmt.Lit(stmt.ValueI64(1)),
			}}},
			Returning: stmt.ReturningChanges{},
		})
		require.NoError(t, err)
	}

	authorMapping, _ := s.Mapping(1)
	postMapping, _ := s.Mapping(2)

	e := NewExecutor(d)
	p := &plan.Plan{Root: &plan.Action{
		Op: &op.GetByKey{Table: authorTable.Id, Keys: []stmt.Expr{stmt.Lit(stmt.ValueI64(1))}, Returning: stmt.ReturningExpr{Expr: authorMapping.TableToModel}},
		Then: &plan.Action{Assoc: &plan.Associate{
			Kind:      plan.AssociateHasMany,
			Field:     ids.FieldId{Model: 1, Index: 1},
			ParentKey: ids.FieldId{Model: 1, Index: 0},
			ChildKey:  ids.FieldId{Model: 2, Index: 2},
			Child:     &plan.Plan{Root: &plan.Action{Op: &op.QueryPk{Table: postTable.Id, Returning: stmt.ReturningExpr{Expr: postMapping.TableToModel}}}},
		}},
	}}

	resp, err := e.Run(ctx, p)
	require.NoError(t, err)
	rows := resp.(driverapi.ResponseRows)
	defer rows.Rows.Close()
	v, ok, err := rows.Rows.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	rec := v.(stmt.ValueRecord)
	children, ok := rec.Fields[1].(stmt.ValueList)
	require.True(t, ok)
	assert.Len(t, children.Items, 2)

	_, ok, err = rows.Rows.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunSavepointReturnsStepFailure(t *testing.T) {
	d, s := openExecTestSchema(t)
	ctx := context.Background()
	table, _ := s.Table(ids.TableId(1))

	e := NewExecutor(d)
	p := &plan.Plan{Root: &plan.Action{
		Op: &op.Savepoint{Id: 0},
		Then: &plan.Action{
			Op: &op.UpdateByKey{
				Table: table.Id,
				Key:   stmt.Lit(stmt.ValueI64(404)),
				Assignments: []op.ColumnAssignment{
					{Column: ids.ColumnId{Table: table.Id, Index: 1}, Expr: stmt.Lit(stmt.ValueString("x"))},
				},
				Returning: stmt.ReturningChanges{},
			},
		},
	}}

	_, err := e.Run(ctx, p)
	assert.Error(t, err)
}
