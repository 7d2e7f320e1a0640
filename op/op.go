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

// Package op defines the closed set of operations a Driver executes. The
// planner compiles a statement down to a graph of these (plan.Action
// wraps one apiece); every driver, regardless of backing store, only
// needs to implement this set.
package op

import (
	"strconv"

	"github.com/toasty-db/toasty/ids"
	"github.com/toasty-db/toasty/stmt"
)

// Operation is the closed sum of driver-executable operations.
type Operation interface {
	isOperation()
}

// ColumnAssignment is a single `column = expr` pair of a table-space
// UpdateByKey, the lowered form of stmt.Assignment.
type ColumnAssignment struct {
	Column ids.ColumnId
	Expr   stmt.Expr
}

type (
	// GetByKey fetches zero-or-one row per key by primary key equality.
	GetByKey struct {
		Table     ids.TableId
		Keys      []stmt.Expr
		Returning stmt.Returning
	}

	// QueryPk scans a table's primary-key range, used for table scans and
	// cursor pagination.
	QueryPk struct {
		Table     ids.TableId
		Filter    stmt.Expr
		Limit     *stmt.Limit
		Returning stmt.Returning
	}

	// FindPkByIndex looks up primary keys via a secondary index, optionally
	// followed by a verifying QueryPk when the backend's secondary
	// indices aren't read-your-writes consistent (capability.Capability.
	// SecondaryIndicesConsistent).
	FindPkByIndex struct {
		Index  ids.IndexId
		Filter stmt.Expr
		Limit  *stmt.Limit
	}

	Insert struct {
		Table     ids.TableId
		Rows      []stmt.Expr
		Returning stmt.Returning
	}

	UpdateByKey struct {
		Table        ids.TableId
		Key          stmt.Expr
		Assignments  []ColumnAssignment
		Precondition stmt.Expr
		Returning    stmt.Returning
	}

	DeleteByKey struct {
		Table     ids.TableId
		Key       stmt.Expr
		Returning stmt.Returning
	}

	// BatchWrite groups a set of GetByKey/Insert/UpdateByKey/DeleteByKey
	// operations the planner wants executed together; the driver decides
	// whether it can satisfy it atomically (capability.AtomicBatch).
	BatchWrite struct {
		Operations []Operation
	}

	// ExecStatement is the escape hatch for backends with
	// capability.Capability.SQL set: it carries a whole statement for the
	// driver to translate to its native query language directly. The
	// lowerer and planner in this module do not produce it.
	ExecStatement struct {
		Statement stmt.Statement
	}

	// Transaction operations bracket a sequence of other Operations.
	TransactionStart struct{}
	TransactionCommit struct{}
	TransactionRollback struct{}

	// Savepoint names follow the tbl-less `sp_{id}` convention: nesting depth 0 is the outermost interactive transaction,
	// depth 1+ are nested multi-step wraps the executor introduces to
	// make a compound action retriable as a unit.
	Savepoint struct{ Id int }
	ReleaseSavepoint struct{ Id int }
	RollbackToSavepoint struct{ Id int }
)

func (*GetByKey) isOperation()            {}
func (*QueryPk) isOperation()             {}
func (*FindPkByIndex) isOperation()       {}
func (*Insert) isOperation()              {}
func (*UpdateByKey) isOperation()         {}
func (*DeleteByKey) isOperation()         {}
func (*BatchWrite) isOperation()          {}
func (*ExecStatement) isOperation()       {}
func (*TransactionStart) isOperation()    {}
func (*TransactionCommit) isOperation()   {}
func (*TransactionRollback) isOperation() {}
func (*Savepoint) isOperation()           {}
func (*ReleaseSavepoint) isOperation()    {}
func (*RollbackToSavepoint) isOperation() {}

// SavepointName renders a savepoint id in the `sp_{id}` convention every
// SQL driver serialiser uses.
func SavepointName(id int) string {
	return "sp_" + strconv.Itoa(id)
}
