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

// Package capability describes what a driver backend can do, so the schema
// builder and planner can reject or rewrite statements that require a
// feature a given backend lacks.
package capability

// StorageType enumerates the kinds of backing store a driver exposes.
// A driver advertises the one it speaks through Capability.Storage. The
// schema builder does not consult it: a model's primary key strategy is
// not checked against the driver's storage type.
type StorageType int

const (
	StorageSQL StorageType = iota
	StorageKV
	StorageDocument
)

func (s StorageType) String() string {
	switch s {
	case StorageSQL:
		return "sql"
	case StorageKV:
		return "kv"
	case StorageDocument:
		return "document"
	default:
		return "unknown"
	}
}

// Capability is a driver's self-reported feature set. The schema builder
// consults it while lowering models into a Mapping, and the planner
// consults it while choosing between a single-statement plan and a
// multi-action one (e.g. no RETURNING support means an Insert needs a
// follow-up GetByKey to recover generated columns).
type Capability struct {
	// Storage is the kind of backing store the driver speaks.
	Storage StorageType

	// SQL reports whether the backend accepts generated SQL (joins,
	// subqueries, CTEs). The lowerer and planner do not read it; they
	// always produce the single-table Operation set every driver must
	// support.
	SQL bool

	// CteWithUpdate reports whether a WITH clause can feed an
	// UPDATE/DELETE statement. The planner does not read it: an update or
	// delete without a primary-key match is always planned in two steps
	// (a QueryPk capturing matching keys, then one write per key).
	CteWithUpdate bool

	// ReturningFromInsert/Update/Delete report whether the backend can
	// hand back affected rows inline. The planner reads only
	// ReturningFromInsert, scheduling a follow-up GetByKey read when it is
	// false; the Update and Delete flags are not consulted.
	ReturningFromInsert bool
	ReturningFromUpdate bool
	ReturningFromDelete bool

	// AtomicBatch reports whether BatchWrite is guaranteed atomic. The
	// planner does not read it; BatchWrite actions are planned the same
	// way whatever its value.
	AtomicBatch bool

	// SecondaryIndicesConsistent reports whether a secondary index read is
	// guaranteed to reflect the latest committed write to the indexed
	// table; without it, FindPkByIndex plans add a verifying QueryPk.
	SecondaryIndicesConsistent bool

	// MaxVarcharLen bounds the length constraint the schema builder emits
	// for VarChar(n) fields, 0 meaning unbounded.
	MaxVarcharLen int
}

// Supports reports whether the backend's storage type is st.
func (c Capability) Supports(st StorageType) bool { return c.Storage == st }
