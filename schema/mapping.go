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
	"github.com/toasty-db/toasty/stmt"
)

// Mapping is the translation between one Model and the Table it is stored
// in, expressed the same way the rest of the core expresses everything:
// as stmt.Expr trees. The lowerer substitutes a Mapping's expressions
// wherever a statement crosses from model-space into table-space, rather
// than hand-writing per-model translation code.
type Mapping struct {
	Model ids.ModelId
	Table ids.TableId

	// ModelToTable holds one expression per table column, in column
	// order, built against stmt.Field(Model, i) references; lowering a
	// write statement substitutes the statement's actual field
	// expressions for these references.
	ModelToTable []stmt.Expr

	// TableToModel is a single record expression, built against
	// stmt.Column(Table, i) references, that reconstructs the model's
	// field values (including flattening any embedded record/enum back
	// into nested Values) from a table row.
	TableToModel stmt.Expr
}

// ColumnFor returns the ModelToTable expression for column index i.
func (m *Mapping) ColumnFor(i int) stmt.Expr {
	if i < 0 || i >= len(m.ModelToTable) {
		return nil
	}
	return m.ModelToTable[i]
}
