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

// Package driverapi is the boundary between the core (plan/exec) and a
// concrete storage backend. A Driver is handed Operations (package op) one
// at a time by the executor and reports back a Response.
package driverapi

import (
	"context"

	"github.com/toasty-db/toasty/capability"
	"github.com/toasty-db/toasty/op"
	"github.com/toasty-db/toasty/schema"
	"github.com/toasty-db/toasty/stmt"
)

// Driver is implemented by every storage backend. RegisterSchema happens
// once per process, and the interface has no separate Connect step; Exec
// is called once per Operation the executor
// suspends on, possibly many times within one statement's execution.
type Driver interface {
	// Capability reports what this driver supports, consulted by the
	// schema Builder and the planner.
	Capability() capability.Capability

	// RegisterSchema is called once, after the Builder produces a
	// schema.Schema, so the driver can create/verify its physical tables.
	RegisterSchema(ctx context.Context, s *schema.Schema) error

	// Exec runs a single Operation and returns its Response.
	Exec(ctx context.Context, op op.Operation) (Response, error)

	// ResetDB drops and recreates every table the driver manages; test-only.
	ResetDB(ctx context.Context) error
}

// Response is the closed sum of what Exec can hand back: a stream of rows,
// or a bare affected-row count (used by ReturningChanges and by writes
// whose backend doesn't support RETURNING).
type Response interface {
	isResponse()
}

type (
	ResponseRows struct{ Rows ValueStream }
	ResponseCount struct{ Count int64 }
)

func (ResponseRows) isResponse()  {}
func (ResponseCount) isResponse() {}

// ValueStream is the row-at-a-time contract every Driver streams results
// through, so the executor never has to materialize an entire result set
// to start acting on the first row. Next returns (nil, false, nil) at
// end of stream.
type ValueStream interface {
	Next(ctx context.Context) (stmt.Value, bool, error)
	Close() error
}

// SliceStream adapts a pre-materialized slice of Values to ValueStream,
// the form the reference driver and tests use.
type SliceStream struct {
	values []stmt.Value
	pos    int
}

func NewSliceStream(values []stmt.Value) *SliceStream {
	return &SliceStream{values: values}
}

func (s *SliceStream) Next(ctx context.Context) (stmt.Value, bool, error) {
	if s.pos >= len(s.values) {
		return nil, false, nil
	}
	v := s.values[s.pos]
	s.pos++
	return v, true, nil
}

func (s *SliceStream) Close() error { return nil }
