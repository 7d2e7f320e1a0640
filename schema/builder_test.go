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

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toasty-db/toasty/capability"
	"github.com/toasty-db/toasty/ids"
)

func TestBuilderFlattensPrimitiveFields(t *testing.T) {
	b := NewBuilder(capability.Capability{Storage: capability.StorageKV})
	model := &Model{
		Id:   1,
		Name: "user",
		Fields: []Field{
			{Id: ids.FieldId{Model: 1, Index: 0}, Name: "id", Type: FieldPrimitive{Type: PrimI64}, PrimaryKey: true},
			{Id: ids.FieldId{Model: 1, Index: 1}, Name: "email", Type: FieldPrimitive{Type: PrimString}, MaxLen: 255},
		},
	}
	b.AddModel(model)

	s, err := b.Build()
	require.NoError(t, err)

	table, ok := s.Table(ids.TableId(1))
	require.True(t, ok)
	assert.Equal(t, "user", table.Name)
	require.Len(t, table.Columns, 2)
	assert.Equal(t, "id", table.Columns[0].Name)
	assert.Equal(t, "email", table.Columns[1].Name)
	assert.Equal(t, 255, table.Columns[1].LengthConstraint)

	pk := table.PrimaryIndex()
	require.NotNil(t, pk)
	require.Len(t, pk.Columns, 1)
	assert.Equal(t, 0, pk.Columns[0].Column.Index)

	mapping, ok := s.Mapping(1)
	require.True(t, ok)
	assert.Equal(t, ids.TableId(1), mapping.Table)
}

func TestBuilderBelongsToUnknownTargetErrors(t *testing.T) {
	b := NewBuilder(capability.Capability{})
	model := &Model{
		Id:   1,
		Name: "post",
		Fields: []Field{
			{Id: ids.FieldId{Model: 1, Index: 0}, Name: "author", Type: FieldBelongsTo{Target: 99, ForeignKey: ids.FieldId{Model: 1, Index: 0}}},
		},
	}
	b.AddModel(model)

	_, err := b.Build()
	assert.Error(t, err)
}

func TestBuilderMaxVarcharLenCapsLength(t *testing.T) {
	b := NewBuilder(capability.Capability{MaxVarcharLen: 10})
	model := &Model{
		Id:   1,
		Name: "thing",
		Fields: []Field{
			{Id: ids.FieldId{Model: 1, Index: 0}, Name: "name", Type: FieldPrimitive{Type: PrimString}, MaxLen: 200},
		},
	}
	b.AddModel(model)

	s, err := b.Build()
	require.NoError(t, err)
	table, _ := s.Table(ids.TableId(1))
	assert.Equal(t, 10, table.Columns[0].LengthConstraint)
}
