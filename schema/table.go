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
	"github.com/toasty-db/toasty/ids"
	"github.com/toasty-db/toasty/tycore"
)

// Table is a database-level relation: a named, ordered list of Columns
// plus the Indexes built over them. Built by Builder from one or more
// Models (a single Table can back one Model, or several via embedding).
type Table struct {
	Id      ids.TableId
	Name    string
	Columns []Column
	Indexes []Index
}

// PrimaryIndex returns the table's primary-key index, if one has been
// reserved. Every table the Builder emits has exactly one.
func (t *Table) PrimaryIndex() *Index {
	for i := range t.Indexes {
		if t.Indexes[i].Primary {
			return &t.Indexes[i]
		}
	}
	return nil
}

// Column is one physical column of a Table.
type Column struct {
	Id       ids.ColumnId
	Name     string
	Type     tycore.Type
	Nullable bool
	Auto     *AutoStrategy

	// LengthConstraint records the maximum length the Builder pushed down
	// from a VarChar(n) field, 0 meaning none.
	LengthConstraint int
}

// Index is a lookup structure over a Table: the primary index (exactly
// one per table) or a secondary one.
type Index struct {
	Id      ids.IndexId
	Primary bool
	Unique  bool
	Columns []IndexColumn
}

// IndexColumn names one column participating in an Index, together with
// the comparison operator it supports and whether it additionally scopes
// (partitions) the index — e.g. a composite index whose leading column is
// an equality "scope" and whose trailing column supports range operators.
type IndexColumn struct {
	Column ids.ColumnId
	Op     IndexOp
	// Scope, when true, marks this column as a partitioning/equality-only
	// prefix column rather than a column the query can range over.
	Scope bool
}

// IndexOp enumerates the comparison an IndexColumn supports.
type IndexOp int

const (
	IndexOpEq IndexOp = iota
	IndexOpRange
)
