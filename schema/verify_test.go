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

func TestVerifyAcceptsWellFormedSchema(t *testing.T) {
	b := NewBuilder(capability.Capability{Storage: capability.StorageKV})
	b.AddModel(&Model{
		Id:   1,
		Name: "user",
		Fields: []Field{
			{Id: ids.FieldId{Model: 1, Index: 0}, Name: "id", Type: FieldPrimitive{Type: PrimI64}, PrimaryKey: true},
		},
	})
	s, err := b.Build()
	require.NoError(t, err)
	assert.NoError(t, Verify(s))
}

func TestVerifyRejectsBelongsToUnknownTarget(t *testing.T) {
	s := &Schema{
		Models: map[ids.ModelId]*Model{
			1: {Id: 1, Name: "post", Fields: []Field{
				{Id: ids.FieldId{Model: 1, Index: 0}, Name: "author", Type: FieldBelongsTo{Target: 99, ForeignKey: ids.FieldId{Model: 1, Index: 0}}},
			}},
		},
		Tables:   map[ids.TableId]*Table{},
		Mappings: map[ids.ModelId]*Mapping{},
	}
	assert.Error(t, Verify(s))
}

func TestVerifyRejectsHasOneWithoutInverseBelongsTo(t *testing.T) {
	s := &Schema{
		Models: map[ids.ModelId]*Model{
			1: {Id: 1, Name: "user", Fields: []Field{
				{Id: ids.FieldId{Model: 1, Index: 0}, Name: "profile", Type: FieldHasOne{Target: 2, TargetBelongsTo: ids.FieldId{Model: 2, Index: 0}}},
			}},
			2: {Id: 2, Name: "profile", Fields: []Field{
				{Id: ids.FieldId{Model: 2, Index: 0}, Name: "id", Type: FieldPrimitive{Type: PrimI64}},
			}},
		},
		Tables:   map[ids.TableId]*Table{},
		Mappings: map[ids.ModelId]*Mapping{},
	}
	assert.Error(t, Verify(s))
}

func TestVerifyRejectsMappingColumnCountMismatch(t *testing.T) {
	s := &Schema{
		Models: map[ids.ModelId]*Model{
			1: {Id: 1, Name: "user", Fields: nil},
		},
		Tables: map[ids.TableId]*Table{
			1: {Id: 1, Name: "user", Columns: []Column{{Name: "id"}, {Name: "name"}}},
		},
		Mappings: map[ids.ModelId]*Mapping{
			1: {Model: 1, Table: 1, ModelToTable: nil},
		},
	}
	assert.Error(t, Verify(s))
}
