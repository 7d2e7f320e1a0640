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

package memdriver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toasty-db/toasty/capability"
	"github.com/toasty-db/toasty/driverapi"
	"github.com/toasty-db/toasty/ids"
	"github.com/toasty-db/toasty/op"
	"github.com/toasty-db/toasty/schema"
	"github.com/toasty-db/toasty/stmt"
)

func openTestDriver(t *testing.T) (*Driver, *schema.Schema) {
	t.Helper()
	b := schema.NewBuilder(capability.Capability{Storage: capability.StorageKV})
	b.AddModel(&schema.Model{
		Id:   1,
		Name: "user",
		Fields: []schema.Field{
			{Id: ids.FieldId{Model: 1, Index: 0}, Name: "id", Type: schema.FieldPrimitive{Type: schema.PrimI64}, PrimaryKey: true},
			{Id: ids.FieldId{Model: 1, Index: 1}, Name: "name", Type: schema.FieldPrimitive{Type: schema.PrimString}},
		},
	})
	s, err := b.Build()
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	d, err := Open(dbPath, capability.Capability{Storage: capability.StorageKV})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	ctx := context.Background()
	require.NoError(t, d.RegisterSchema(ctx, s))
	return d, s
}

func TestInsertAndGetByKey(t *testing.T) {
	d, s := openTestDriver(t)
	ctx := context.Background()
	table, _ := s.Table(ids.TableId(1))

	row := &stmt.ExprRecord{Fields: []stmt.Expr{stmt.Lit(stmt.ValueI64(1)), stmt.Lit(stmt.ValueString("ada"))}}
	resp, err := d.Exec(ctx, &op.Insert{Table: table.Id, Rows: []stmt.Expr{row}, Returning: stmt.ReturningChanges{}})
	require.NoError(t, err)
	count, ok := resp.(driverapi.ResponseCount)
	require.True(t, ok)
	assert.Equal(t, int64(1), count.Count)

	getResp, err := d.Exec(ctx, &op.GetByKey{Table: table.Id, Keys: []stmt.Expr{stmt.Lit(stmt.ValueI64(1))}})
	require.NoError(t, err)
	rows, ok := getResp.(driverapi.ResponseRows)
	require.True(t, ok)
	v, found, err := rows.Rows.Next(ctx)
	require.NoError(t, err)
	require.True(t, found)
	rec, ok := v.(stmt.ValueRecord)
	require.True(t, ok)
	assert.Equal(t, stmt.ValueString("ada"), rec.Fields[1])
}

func TestUpdateByKeyAppliesAssignments(t *testing.T) {
	d, s := openTestDriver(t)
	ctx := context.Background()
	table, _ := s.Table(ids.TableId(1))

	row := &stmt.ExprRecord{Fields: []stmt.Expr{stmt.Lit(stmt.ValueI64(1)), stmt.Lit(stmt.ValueString("ada"))}}
	_, err := d.Exec(ctx, &op.Insert{Table: table.Id, Rows: []stmt.Expr{row}, Returning: stmt.ReturningChanges{}})
	require.NoError(t, err)

	_, err = d.Exec(ctx, &op.UpdateByKey{
		Table: table.Id,
		Key:   stmt.Lit(stmt.ValueI64(1)),
		Assignments: []op.ColumnAssignment{
			{Column: ids.ColumnId{Table: table.Id, Index: 1}, Expr: stmt.Lit(stmt.ValueString("lovelace"))},
		},
		Returning: stmt.ReturningChanges{},
	})
	require.NoError(t, err)

	getResp, err := d.Exec(ctx, &op.GetByKey{Table: table.Id, Keys: []stmt.Expr{stmt.Lit(stmt.ValueI64(1))}})
	require.NoError(t, err)
	rows := getResp.(driverapi.ResponseRows)
	v, _, err := rows.Rows.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, stmt.ValueString("lovelace"), v.(stmt.ValueRecord).Fields[1])
}

func TestUpdateByKeyMissingRowErrors(t *testing.T) {
	d, s := openTestDriver(t)
	ctx := context.Background()
	table, _ := s.Table(ids.TableId(1))

	_, err := d.Exec(ctx, &op.UpdateByKey{
		Table: table.Id,
		Key:   stmt.Lit(stmt.ValueI64(99)),
		Assignments: []op.ColumnAssignment{
			{Column: ids.ColumnId{Table: table.Id, Index: 1}, Expr: stmt.Lit(stmt.ValueString("x"))},
		},
		Returning: stmt.ReturningChanges{},
	})
	assert.Error(t, err)
}

func TestDeleteByKey(t *testing.T) {
	d, s := openTestDriver(t)
	ctx := context.Background()
	table, _ := s.Table(ids.TableId(1))

	row := &stmt.ExprRecord{Fields: []stmt.Expr{stmt.Lit(stmt.ValueI64(1)), stmt.Lit(stmt.ValueString("ada"))}}
	_, err := d.Exec(ctx, &op.Insert{Table: table.Id, Rows: []stmt.Expr{row}, Returning: stmt.ReturningChanges{}})
	require.NoError(t, err)

	resp, err := d.Exec(ctx, &op.DeleteByKey{Table: table.Id, Key: stmt.Lit(stmt.ValueI64(1)), Returning: stmt.ReturningChanges{}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.(driverapi.ResponseCount).Count)

	getResp, err := d.Exec(ctx, &op.GetByKey{Table: table.Id, Keys: []stmt.Expr{stmt.Lit(stmt.ValueI64(1))}})
	require.NoError(t, err)
	_, found, err := getResp.(driverapi.ResponseRows).Rows.Next(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestQueryPkScansInKeyOrder(t *testing.T) {
	d, s := openTestDriver(t)
	ctx := context.Background()
	table, _ := s.Table(ids.TableId(1))

	for i := int64(3); i >= 1; i-- {
		row := &stmt.ExprRecord{Fields: []stmt.Expr{stmt.Lit(stmt.ValueI64(i)), stmt.Lit(stmt.ValueString("n"))}}
		_, err := d.Exec(ctx, &op.Insert{Table: table.Id, Rows: []stmt.Expr{row}, Returning: stmt.ReturningChanges{}})
		require.NoError(t, err)
	}

	resp, err := d.Exec(ctx, &op.QueryPk{Table: table.Id})
	require.NoError(t, err)
	rows := resp.(driverapi.ResponseRows)
	var ids []int64
	for {
		v, ok, err := rows.Rows.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		ids = append(ids, int64(v.(stmt.ValueRecord).Fields[0].(stmt.ValueI64)))
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestResetDBClearsRows(t *testing.T) {
	d, s := openTestDriver(t)
	ctx := context.Background()
	table, _ := s.Table(ids.TableId(1))

	row := &stmt.ExprRecord{Fields: []stmt.Expr{stmt.Lit(stmt.ValueI64(1)), stmt.Lit(stmt.ValueString("ada"))}}
	_, err := d.Exec(ctx, &op.Insert{Table: table.Id, Rows: []stmt.Expr{row}, Returning: stmt.ReturningChanges{}})
	require.NoError(t, err)

	require.NoError(t, d.ResetDB(ctx))

	resp, err := d.Exec(ctx, &op.QueryPk{Table: table.Id})
	require.NoError(t, err)
	_, found, err := resp.(driverapi.ResponseRows).Rows.Next(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}
