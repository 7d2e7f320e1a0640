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

package stmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityProjectionIsIdentity(t *testing.T) {
	assert.True(t, Identity().IsIdentity())
	assert.False(t, Projection{Indices: []int{0}}.IsIdentity())
}

func TestProjectionPushPrepends(t *testing.T) {
	p := Projection{Indices: []int{1, 2}}
	pushed := p.Push(0)
	assert.Equal(t, []int{0, 1, 2}, pushed.Indices)
}

func TestProjectionHead(t *testing.T) {
	p := Projection{Indices: []int{3, 4}}
	idx, rest, ok := p.Head()
	assert.True(t, ok)
	assert.Equal(t, 3, idx)
	assert.Equal(t, []int{4}, rest.Indices)

	_, _, ok = Identity().Head()
	assert.False(t, ok)
}

func TestEntryOfWalksNestedRecord(t *testing.T) {
	rec := ValueRecord{Fields: []Value{ValueI64(1), ValueRecord{Fields: []Value{ValueString("x"), ValueString("y")}}}}
	got := EntryOf(rec, Projection{Indices: []int{1, 0}})
	assert.Equal(t, ValueString("x"), got)
}

func TestEntryOfOutOfRangeIsNull(t *testing.T) {
	rec := ValueRecord{Fields: []Value{ValueI64(1)}}
	got := EntryOf(rec, Projection{Indices: []int{5}})
	assert.True(t, IsNull(got))
}

func TestEntryOfIdentityReturnsWholeValue(t *testing.T) {
	v := ValueI64(7)
	assert.Equal(t, v, EntryOf(v, Identity()))
}
