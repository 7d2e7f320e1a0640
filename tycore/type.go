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

// Package tycore defines the closed set of value types shared by the stmt
// and schema packages: the primitive types a field/column can carry, plus
// the composite types (List, Record, Enum, Id) the expression evaluator's
// type-inference pass produces.
package tycore

import "fmt"

// Type is implemented by every member of the closed type sum. Like
// stmt.Expr and stmt.Value, it is a sum type expressed as a Go interface
// with one concrete type per variant, favoring small interfaces with many
// concrete implementations over a single tagged struct.
type Type interface {
	isType()
	String() string
}

type (
	// TyNull is the type of the literal null; it unifies with any nullable type.
	TyNull struct{}
	TyBool struct{}

	TyI8  struct{}
	TyI16 struct{}
	TyI32 struct{}
	TyI64 struct{}
	TyU8  struct{}
	TyU16 struct{}
	TyU32 struct{}
	TyU64 struct{}

	TyString struct{}
	TyBytes  struct{}
	TyUuid   struct{}

	// TyId is an opaque per-model identifier; it is represented as an int64
	// or string depending on the model's primary key primitive type.
	TyId struct {
		Model interface{} // ids.ModelId, kept untyped to avoid importing ids for a comparable key
	}

	// TyEnum is an embedded enum's discriminated union type.
	TyEnum struct {
		Name     string
		Variants []string
	}

	TyRecord struct{ Fields []Type }
	TyList   struct{ Item Type }

	TyDecimal  struct{}
	TyDateTime struct{}

	// TyUnknown marks an expression whose type could not be inferred, e.g.
	// Expr::Error or Expr::Default outside of an Insert context.
	TyUnknown struct{}
)

func (TyNull) isType()     {}
func (TyBool) isType()     {}
func (TyI8) isType()       {}
func (TyI16) isType()      {}
func (TyI32) isType()      {}
func (TyI64) isType()      {}
func (TyU8) isType()       {}
func (TyU16) isType()      {}
func (TyU32) isType()      {}
func (TyU64) isType()      {}
func (TyString) isType()   {}
func (TyBytes) isType()    {}
func (TyUuid) isType()     {}
func (TyId) isType()       {}
func (TyEnum) isType()     {}
func (TyRecord) isType()   {}
func (TyList) isType()     {}
func (TyDecimal) isType()  {}
func (TyDateTime) isType() {}
func (TyUnknown) isType()  {}

func (TyNull) String() string     { return "null" }
func (TyBool) String() string     { return "bool" }
func (TyI8) String() string       { return "i8" }
func (TyI16) String() string      { return "i16" }
func (TyI32) String() string      { return "i32" }
func (TyI64) String() string      { return "i64" }
func (TyU8) String() string       { return "u8" }
func (TyU16) String() string      { return "u16" }
func (TyU32) String() string      { return "u32" }
func (TyU64) String() string      { return "u64" }
func (TyString) String() string   { return "string" }
func (TyBytes) String() string    { return "bytes" }
func (TyUuid) String() string     { return "uuid" }
func (t TyId) String() string     { return fmt.Sprintf("id<%v>", t.Model) }
func (t TyEnum) String() string   { return fmt.Sprintf("enum(%s)", t.Name) }
func (t TyRecord) String() string { return fmt.Sprintf("record(%d fields)", len(t.Fields)) }
func (t TyList) String() string   { return fmt.Sprintf("list<%s>", t.Item.String()) }
func (TyDecimal) String() string  { return "decimal" }
func (TyDateTime) String() string { return "datetime" }
func (TyUnknown) String() string  { return "unknown" }

// IsInt reports whether t is one of the signed/unsigned fixed-width integer types.
func IsInt(t Type) bool {
	switch t.(type) {
	case TyI8, TyI16, TyI32, TyI64, TyU8, TyU16, TyU32, TyU64:
		return true
	default:
		return false
	}
}

// IsUnsigned reports whether t is one of the unsigned integer types.
func IsUnsigned(t Type) bool {
	switch t.(type) {
	case TyU8, TyU16, TyU32, TyU64:
		return true
	default:
		return false
	}
}

// IsNumeric reports whether t supports ordering comparisons (<, <=, >, >=).
func IsNumeric(t Type) bool {
	if IsInt(t) {
		return true
	}
	switch t.(type) {
	case TyDecimal:
		return true
	default:
		return false
	}
}

// BitWidth returns the bit width of a fixed-width integer type, or 0 if t is not one.
func BitWidth(t Type) int {
	switch t.(type) {
	case TyI8, TyU8:
		return 8
	case TyI16, TyU16:
		return 16
	case TyI32, TyU32:
		return 32
	case TyI64, TyU64:
		return 64
	default:
		return 0
	}
}
