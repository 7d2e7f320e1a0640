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

package fixture

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toasty-db/toasty/capability"
	"github.com/toasty-db/toasty/driverapi"
	"github.com/toasty-db/toasty/op"
	"github.com/toasty-db/toasty/stmt"
)

const usersYaml = `
models:
  - name: user
    fields:
      - {name: id, kind: i64, primary_key: true}
      - {name: name, kind: string, max_len: 100}
rows:
  - model: user
    rows:
      - [1, "ada"]
      - [2, "grace"]
`

func TestLoadBuildsSchemaAndSeedsRows(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "fixture.db")

	scenario, err := Load(ctx, []byte(usersYaml), capability.Capability{Storage: capability.StorageKV}, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { scenario.Driver.Close() })

	modelId, ok := scenario.ModelId("user")
	require.True(t, ok)
	mapping, ok := scenario.Schema.Mapping(modelId)
	require.True(t, ok)

	resp, err := scenario.Driver.Exec(ctx, &op.QueryPk{Table: mapping.Table})
	require.NoError(t, err)
	rows := resp.(driverapi.ResponseRows)

	var names []string
	for {
		v, ok, err := rows.Rows.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, string(v.(stmt.ValueRecord).Fields[1].(stmt.ValueString)))
	}
	assert.Equal(t, []string{"ada", "grace"}, names)
}

func TestLoadUnknownModelInRowsErrors(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "fixture.db")

	_, err := Load(ctx, []byte(`
models:
  - name: user
    fields:
      - {name: id, kind: i64, primary_key: true}
rows:
  - model: ghost
    rows:
      - [1]
`), capability.Capability{}, dbPath)
	assert.Error(t, err)
}
