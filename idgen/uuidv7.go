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

// Package idgen generates client-side identifiers for backends with no
// native identity mechanism.
//
// github.com/satori/go.uuid only builds v1/v3/v4/v5 UUIDs, so v7 (time-
// ordered, RFC 9562) is assembled by hand on top of its uuid.UUID type:
// the high 48 bits are a millisecond Unix timestamp, the remaining bits
// are random, and the version/variant nibbles are patched in afterward.
package idgen

import (
	"crypto/rand"
	"time"

	uuid "github.com/satori/go.uuid"
)

// NewUuidV7 generates a time-ordered UUID using the current wall clock.
func NewUuidV7() (uuid.UUID, error) {
	return uuidV7At(time.Now())
}

func uuidV7At(t time.Time) (uuid.UUID, error) {
	var u uuid.UUID
	if _, err := rand.Read(u[:]); err != nil {
		return uuid.UUID{}, err
	}

	ms := uint64(t.UnixMilli())
	u[0] = byte(ms >> 40)
	u[1] = byte(ms >> 32)
	u[2] = byte(ms >> 24)
	u[3] = byte(ms >> 16)
	u[4] = byte(ms >> 8)
	u[5] = byte(ms)

	// Version 7 in the high nibble of byte 6.
	u[6] = (u[6] & 0x0f) | 0x70
	// RFC 9562 variant (10xxxxxx) in the high bits of byte 8.
	u[8] = (u[8] & 0x3f) | 0x80

	return u, nil
}
