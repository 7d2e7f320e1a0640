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

package driverapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toasty-db/toasty/stmt"
)

func TestSliceStreamIteratesAndCloses(t *testing.T) {
	ctx := context.Background()
	s := NewSliceStream([]stmt.Value{stmt.ValueI64(1), stmt.ValueI64(2)})

	v, ok, err := s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stmt.ValueI64(1), v)

	v, ok, err = s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stmt.ValueI64(2), v)

	_, ok, err = s.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, s.Close())
}

func TestSliceStreamEmpty(t *testing.T) {
	s := NewSliceStream(nil)
	_, ok, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
