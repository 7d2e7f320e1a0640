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

package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/toasty-db/toasty/ids"
	"github.com/toasty-db/toasty/stmt"
)

func TestVerifyAcceptsColumnOnlyStatement(t *testing.T) {
	query := &stmt.Query{
		Body: &stmt.Select{
			Source: stmt.SourceTable{Table: 1},
			Filter: stmt.Eq(stmt.Column(1, 0, 0), stmt.Lit(stmt.ValueI64(1))),
		},
	}
	assert.NoError(t, Verify(query))
}

func TestVerifyRejectsSurvivingFieldReference(t *testing.T) {
	query := &stmt.Query{
		Body: &stmt.Select{
			Source: stmt.SourceTable{Table: 1},
			Filter: stmt.Eq(stmt.Field(1, 0), stmt.Lit(stmt.ValueI64(1))),
		},
	}
	assert.Error(t, Verify(query))
}

func TestVerifyWalksUpdateAssignmentsAndPrecondition(t *testing.T) {
	upd := &stmt.Update{
		Target: stmt.SourceTable{Table: 1},
		Assignments: []stmt.Assignment{
			{Field: ids.FieldId{Model: 1, Index: 0}, Expr: stmt.Lit(stmt.ValueI64(2))},
		},
		Precondition: stmt.Eq(stmt.Field(1, 1), stmt.Lit(stmt.ValueI64(1))),
	}
	assert.Error(t, Verify(upd))
}

func TestVerifyWalksDeleteFilter(t *testing.T) {
	del := &stmt.Delete{
		Source: stmt.SourceTable{Table: 1},
		Filter: stmt.Field(1, 0),
	}
	assert.Error(t, Verify(del))
}

func TestVerifyEmptyStatementIsValid(t *testing.T) {
	del := &stmt.Delete{Source: stmt.SourceTable{Table: 1}}
	assert.NoError(t, Verify(del))
}
