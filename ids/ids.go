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

// Package ids holds the stable numeric identifiers shared by the stmt and
// schema packages. They are kept in their own leaf package so that stmt can
// reference models/tables without importing schema (which itself embeds
// stmt expression trees in its Mapping).
package ids

import "fmt"

// ModelId identifies an application-level model within a Schema.
type ModelId uint32

func (m ModelId) String() string { return fmt.Sprintf("model(%d)", uint32(m)) }

// FieldId identifies a field within a model.
type FieldId struct {
	Model ModelId
	Index int
}

func (f FieldId) String() string { return fmt.Sprintf("field(%d, %d)", uint32(f.Model), f.Index) }

// TableId identifies a database-level table within a Schema.
type TableId uint32

func (t TableId) String() string { return fmt.Sprintf("table(%d)", uint32(t)) }

// ColumnId identifies a column within a table.
type ColumnId struct {
	Table TableId
	Index int
}

func (c ColumnId) String() string { return fmt.Sprintf("column(%d, %d)", uint32(c.Table), c.Index) }

// IndexId identifies a secondary or primary index within a table.
type IndexId struct {
	Table TableId
	Index int
}

func (i IndexId) String() string { return fmt.Sprintf("index(%d, %d)", uint32(i.Table), i.Index) }
