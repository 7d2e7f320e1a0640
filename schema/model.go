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

// Package schema holds the application-level model graph (this file) and
// the database-level table graph plus the Mapping between them (table.go,
// mapping.go), built and verified by Builder (builder.go, verify.go).
package schema

import (
	"github.com/toasty-db/toasty/ids"
	"github.com/toasty-db/toasty/tycore"
)

// Model is an application-level entity: a named, ordered list of Fields.
// Field order is load-bearing — it is how ids.FieldId.Index and every
// stmt.Field reference into this model are resolved.
type Model struct {
	Id     ids.ModelId
	Name   string
	Fields []Field
}

// PrimaryKey returns the fields making up the model's primary key, in
// declared order.
func (m *Model) PrimaryKey() []Field {
	var out []Field
	for _, f := range m.Fields {
		if f.PrimaryKey {
			out = append(out, f)
		}
	}
	return out
}

// Field is one field of a Model.
type Field struct {
	Id         ids.FieldId
	Name       string
	Type       FieldType
	Nullable   bool
	PrimaryKey bool
	Auto       *AutoStrategy
	// MaxLen constrains a string field's length; 0 means unconstrained.
	// The Builder records it as the column's LengthConstraint; no insert
	// or update path checks values against it.
	MaxLen int
}

// FieldType is the closed sum of what a field can hold: a storable
// primitive, or one of three relation shapes to another model.
type FieldType interface {
	isFieldType()
}

type (
	FieldPrimitive struct{ Type PrimitiveType }

	// FieldBelongsTo is the owning side of a to-one relation: this model
	// stores the foreign key.
	FieldBelongsTo struct {
		Target     ids.ModelId
		ForeignKey ids.FieldId
	}

	// FieldHasOne is the non-owning side of a to-one relation.
	FieldHasOne struct {
		Target         ids.ModelId
		TargetBelongsTo ids.FieldId
	}

	// FieldHasMany is the non-owning side of a to-many relation.
	FieldHasMany struct {
		Target         ids.ModelId
		TargetBelongsTo ids.FieldId
	}

	// FieldEmbedded stores a nested record (or discriminated union of
	// records, for an embedded enum) inline in the owning row, flattened
	// into the table's columns by the Builder.
	FieldEmbedded struct {
		Fields []Field
		// Enum, when non-nil, names the variants of an embedded enum field;
		// each variant is itself a record of Fields, discriminated by a
		// hidden tag column.
		Enum *EmbeddedEnum
	}
)

func (FieldPrimitive) isFieldType()  {}
func (FieldBelongsTo) isFieldType()  {}
func (FieldHasOne) isFieldType()     {}
func (FieldHasMany) isFieldType()    {}
func (FieldEmbedded) isFieldType()   {}

// EmbeddedEnum names the variants of an embedded enum field for the
// DecodeEnum flattening the Mapping performs.
type EmbeddedEnum struct {
	Name     string
	Variants []EmbeddedEnumVariant
}

type EmbeddedEnumVariant struct {
	Name   string
	Fields []Field
}

// PrimitiveType is the closed set of storable scalar types a field can
// declare, mirroring tycore.Type but independent of it (a schema field's
// declared type and an expression's inferred type are different concerns
// that happen to share a vocabulary).
type PrimitiveType int

const (
	PrimBool PrimitiveType = iota
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimU8
	PrimU16
	PrimU32
	PrimU64
	PrimString
	PrimBytes
	PrimUuid
	PrimDecimal
	PrimDateTime
)

// AsType converts a declared PrimitiveType into the tycore.Type the
// evaluator and lowerer use.
func (p PrimitiveType) AsType() tycore.Type {
	switch p {
	case PrimBool:
		return tycore.TyBool{}
	case PrimI8:
		return tycore.TyI8{}
	case PrimI16:
		return tycore.TyI16{}
	case PrimI32:
		return tycore.TyI32{}
	case PrimI64:
		return tycore.TyI64{}
	case PrimU8:
		return tycore.TyU8{}
	case PrimU16:
		return tycore.TyU16{}
	case PrimU32:
		return tycore.TyU32{}
	case PrimU64:
		return tycore.TyU64{}
	case PrimString:
		return tycore.TyString{}
	case PrimBytes:
		return tycore.TyBytes{}
	case PrimUuid:
		return tycore.TyUuid{}
	case PrimDecimal:
		return tycore.TyDecimal{}
	case PrimDateTime:
		return tycore.TyDateTime{}
	default:
		return tycore.TyUnknown{}
	}
}

// AutoStrategy names how a primary-key (or other auto-populated) field is
// generated when not supplied by the caller.
type AutoStrategy int

const (
	// AutoIncrement delegates generation to the backend's native
	// auto-increment column.
	AutoIncrement AutoStrategy = iota
	// AutoGeneratedId delegates generation to the backend's native
	// generated-id mechanism (e.g. a KV store's sequence).
	AutoGeneratedId
	// AutoUuidV7 generates a time-ordered UUID client-side, for backends
	// with no native identity mechanism.
	AutoUuidV7
)
