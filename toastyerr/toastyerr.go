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

// Package toastyerr defines the closed set of error kinds produced by the
// core. It is named toastyerr rather than errors to avoid shadowing the
// standard library package, and leans on gopkg.in/src-d/go-errors.v1's
// errors.NewKind for the actual definitions.
package toastyerr

import (
	"fmt"

	kinds "gopkg.in/src-d/go-errors.v1"
)

// The closed set of error kinds the core can produce. Every error returned
// by ids/stmt/schema/simplify/lower/plan/exec is wrapped in exactly one of
// these kinds so that callers can type-switch on cause without string
// matching.
var (
	// ErrUnsupportedFeature is returned when a model or query requires a
	// capability the target driver lacks (spec §4.1, §6).
	ErrUnsupportedFeature = kinds.NewKind("unsupported feature: %s")

	// ErrValidationFailed is returned by field-level constraint checks
	// (length, required, ...). Messages quote the violating value and the
	// constraint, e.g. "value length 7 is too long (maximum: 5)".
	ErrValidationFailed = kinds.NewKind("%s")

	// ErrRecordNotFound is returned when a point lookup or precondition
	// expects exactly one row and finds none.
	ErrRecordNotFound = kinds.NewKind("record not found")

	// ErrInvalidRecordCount is returned when a statement declared
	// single:true produced (or would produce) a row count other than one.
	ErrInvalidRecordCount = kinds.NewKind("expected %d row(s), found %d")

	// ErrTransactionTimedOut is returned when an interactive transaction's
	// timeout (default 5s, spec §5) elapses before completion.
	ErrTransactionTimedOut = kinds.NewKind("transaction timed out after %s")

	// ErrDriver wraps an opaque error surfaced by a driver implementation.
	ErrDriver = kinds.NewKind("driver error: %s")

	// ErrEvaluation is returned by the expression evaluator: cast overflow,
	// non-bool operand in boolean context, unresolved Arg/Reference, or an
	// explicit Expr::Error(msg).
	ErrEvaluation = kinds.NewKind("%s")

	// ErrSchema is returned by schema construction/verification: missing
	// model, cyclic embedding, duplicate id, malformed relation pair.
	ErrSchema = kinds.NewKind("%s")
)

// Quotef is a small helper mirroring the "value length 7 is too long
// (maximum: 5)" style of message calls for: it never escapes or
// truncates, it just formats consistently so every validator reads the same.
func Quotef(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
