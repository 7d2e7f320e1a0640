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
	"fmt"

	"github.com/toasty-db/toasty/capability"
	"github.com/toasty-db/toasty/ids"
	"github.com/toasty-db/toasty/stmt"
	"github.com/toasty-db/toasty/toastyerr"
)

// Schema is the fully built, verified model/table graph a Driver is
// registered against.
type Schema struct {
	Models   map[ids.ModelId]*Model
	Tables   map[ids.TableId]*Table
	Mappings map[ids.ModelId]*Mapping
}

func (s *Schema) Model(id ids.ModelId) (*Model, bool) { m, ok := s.Models[id]; return m, ok }
func (s *Schema) Table(id ids.TableId) (*Table, bool) { t, ok := s.Tables[id]; return t, ok }
func (s *Schema) Mapping(m ids.ModelId) (*Mapping, bool) {
	mp, ok := s.Mappings[m]
	return mp, ok
}

// Builder assembles a Schema from a set of Models in two phases, the way
// the original source's builder.rs does: phase one reserves every model's
// TableId up front, so that phase two can resolve a belongs_to field's
// foreign-key column type against its target table even when the target
// model is declared later. Build returns the first error it meets.
type Builder struct {
	cap    capability.Capability
	models []*Model
	nextId ids.TableId
}

func NewBuilder(cap capability.Capability) *Builder {
	return &Builder{cap: cap}
}

// reserved tracks the TableId assigned to each model during phase one, so
// phase two's relation resolution doesn't need the models in dependency
// order.
type reserved struct {
	model   *Model
	tableId ids.TableId
}

// AddModel registers m for Build; it validates nothing about relations
// yet and assigns no TableId (Build reserves those in AddModel order).
func (b *Builder) AddModel(m *Model) {
	b.models = append(b.models, m)
}

// Build runs phase two: every model's columns, indexes and Mapping are
// constructed now that every model's TableId is known.
func (b *Builder) Build() (*Schema, error) {
	tableOf := make(map[ids.ModelId]ids.TableId, len(b.models))
	modelOf := make(map[ids.ModelId]*Model, len(b.models))
	for i, m := range b.models {
		tableOf[m.Id] = ids.TableId(i + 1)
		modelOf[m.Id] = m
	}

	s := &Schema{
		Models:   make(map[ids.ModelId]*Model, len(b.models)),
		Tables:   make(map[ids.TableId]*Table, len(b.models)),
		Mappings: make(map[ids.ModelId]*Mapping, len(b.models)),
	}

	for _, m := range b.models {
		s.Models[m.Id] = m

		table := &Table{Id: tableOf[m.Id], Name: m.Name}
		mapping := &Mapping{Model: m.Id, Table: table.Id}

		fb := &flattenState{
			builder: b,
			tableOf: tableOf,
			modelOf: modelOf,
			table:   table,
			model:   m,
		}
		tableToModelFields, err := fb.flattenFields(m.Fields, nil)
		if err != nil {
			return nil, err
		}
		mapping.ModelToTable = fb.modelToTable
		mapping.TableToModel = &stmt.ExprRecord{Fields: tableToModelFields}

		primaryCols := make([]IndexColumn, 0, 1)
		for _, col := range table.Columns {
			if col.Id.Index < len(m.Fields) && m.Fields[col.Id.Index].PrimaryKey {
				primaryCols = append(primaryCols, IndexColumn{Column: col.Id, Op: IndexOpEq})
			}
		}
		table.Indexes = append(table.Indexes, Index{
			Id:      ids.IndexId{Table: table.Id, Index: 0},
			Primary: true,
			Unique:  true,
			Columns: primaryCols,
		})

		s.Tables[table.Id] = table
		s.Mappings[m.Id] = mapping
	}

	return s, nil
}

// flattenState accumulates a single model's columns and the two halves of
// its Mapping while flattenFields recurses through embedded fields.
type flattenState struct {
	builder *Builder
	tableOf map[ids.ModelId]ids.TableId
	modelOf map[ids.ModelId]*Model
	table   *Table
	model   *Model

	modelToTable []stmt.Expr
}

// flattenFields walks fields (top-level, or an embedded struct's nested
// fields) depth-first, emitting one physical Column per primitive/FK leaf
// and recursively handling FieldEmbedded, accumulating the
// TableToModel-direction record expression for the fields it processed
// and returning it to the caller (the top-level model record, or a nested
// embedded/variant record).
func (fb *flattenState) flattenFields(fields []Field, path []string) ([]stmt.Expr, error) {
	out := make([]stmt.Expr, 0, len(fields))
	for _, f := range fields {
		switch ft := f.Type.(type) {
		case FieldPrimitive:
			colIdx := len(fb.table.Columns)
			colId := ids.ColumnId{Table: fb.table.Id, Index: colIdx}
			fb.table.Columns = append(fb.table.Columns, Column{
				Id:               colId,
				Name:             fieldColumnName(path, f.Name),
				Type:             ft.Type.AsType(),
				Nullable:         f.Nullable,
				Auto:             f.Auto,
				LengthConstraint: lengthConstraint(fb.builder.cap, f),
			})
			fb.modelToTable = append(fb.modelToTable, stmt.Field(fb.model.Id, f.Id.Index))
			out = append(out, stmt.Column(fb.table.Id, colIdx, 0))

		case FieldBelongsTo:
			target, ok := fb.modelOf[ft.Target]
			if !ok {
				return nil, toastyerr.ErrSchema.New(toastyerr.Quotef("belongs_to field %q targets unknown model", f.Name))
			}
			pk := target.PrimaryKey()
			if len(pk) != 1 {
				return nil, toastyerr.ErrSchema.New(toastyerr.Quotef("belongs_to field %q targets a model without a single-field primary key", f.Name))
			}
			prim, ok := pk[0].Type.(FieldPrimitive)
			if !ok {
				return nil, toastyerr.ErrSchema.New(toastyerr.Quotef("belongs_to field %q targets a model whose primary key is not a primitive", f.Name))
			}
			colIdx := len(fb.table.Columns)
			colId := ids.ColumnId{Table: fb.table.Id, Index: colIdx}
			fb.table.Columns = append(fb.table.Columns, Column{
				Id:       colId,
				Name:     fieldColumnName(path, f.Name) + "_id",
				Type:     prim.Type.AsType(),
				Nullable: f.Nullable,
			})
			fb.modelToTable = append(fb.modelToTable, stmt.Field(fb.model.Id, f.Id.Index))
			out = append(out, stmt.Column(fb.table.Id, colIdx, 0))

		case FieldHasOne, FieldHasMany:
			// Non-owning relation sides store no column of their own; the
			// slot is filled in by an Associate action when the field is
			// named in an Include, and stays null otherwise. The literal
			// keeps this field's position in TableToModel aligned with
			// the rest of Model.Fields; ModelToTable is unaffected since
			// it is indexed by physical column, and this field has none.
			out = append(out, stmt.Lit(stmt.Null))

		case FieldEmbedded:
			if ft.Enum != nil {
				expr, err := fb.flattenEmbeddedEnum(f, ft.Enum, path)
				if err != nil {
					return nil, err
				}
				out = append(out, expr)
				continue
			}
			nested, err := fb.flattenFields(ft.Fields, append(path, f.Name))
			if err != nil {
				return nil, err
			}
			out = append(out, &stmt.ExprRecord{Fields: nested})

		default:
			return nil, toastyerr.ErrUnsupportedFeature.New(fmt.Sprintf("field type %T", f.Type))
		}
	}
	return out, nil
}

// flattenEmbeddedEnum lays out a discriminant column plus one column group
// per variant (each nullable, since only the active variant's columns are
// populated for a given row) and builds the ExprDecodeEnum that
// reconstructs the enum value on read.
func (fb *flattenState) flattenEmbeddedEnum(f Field, e *EmbeddedEnum, path []string) (stmt.Expr, error) {
	discColIdx := len(fb.table.Columns)
	fb.table.Columns = append(fb.table.Columns, Column{
		Id:   ids.ColumnId{Table: fb.table.Id, Index: discColIdx},
		Name: fieldColumnName(path, f.Name) + "_variant",
		Type: PrimU8.AsType(),
	})
	// The discriminant is not itself backed by a model field; it is
	// derived by the lowerer from which variant's Values the caller wrote.
	fb.modelToTable = append(fb.modelToTable, &stmt.ExprDefault{})

	variantExprs := make([]stmt.Expr, len(e.Variants))
	for i, variant := range e.Variants {
		nested, err := fb.flattenFields(variant.Fields, append(path, f.Name, variant.Name))
		if err != nil {
			return nil, err
		}
		variantExprs[i] = &stmt.ExprRecord{Fields: nested}
	}

	return &stmt.ExprDecodeEnum{
		Discriminant: stmt.Column(fb.table.Id, discColIdx, 0),
		Variants:     variantExprs,
		Ty:           PrimString.AsType(),
	}, nil
}

func fieldColumnName(path []string, name string) string {
	out := ""
	for _, p := range path {
		out += p + "_"
	}
	return out + name
}

// lengthConstraint emits a VarChar(n) length bound when the field declares
// MaxLen, capped at the capability's MaxVarcharLen when that is non-zero.
func lengthConstraint(c capability.Capability, f Field) int {
	if f.MaxLen == 0 {
		return 0
	}
	if c.MaxVarcharLen > 0 && f.MaxLen > c.MaxVarcharLen {
		return c.MaxVarcharLen
	}
	return f.MaxLen
}
