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

// Package fixture loads a small YAML-described schema plus seed rows,
// builds the corresponding schema.Schema, and seeds a memdriver.Driver
// with it, so a test can describe its scenario in YAML instead of
// hand-assembling a schema.Builder call.
package fixture

import (
	"context"
	"fmt"

	yaml "gopkg.in/yaml.v2"

	"github.com/toasty-db/toasty/capability"
	"github.com/toasty-db/toasty/ids"
	"github.com/toasty-db/toasty/memdriver"
	"github.com/toasty-db/toasty/op"
	"github.com/toasty-db/toasty/schema"
	"github.com/toasty-db/toasty/stmt"
	"github.com/toasty-db/toasty/toastyerr"
)

// Doc is the top-level YAML shape a scenario file parses into.
type Doc struct {
	Models []ModelDoc `yaml:"models"`
	Rows   []RowsDoc  `yaml:"rows"`
}

// ModelDoc describes one schema.Model.
type ModelDoc struct {
	Name   string      `yaml:"name"`
	Fields []FieldDoc  `yaml:"fields"`
}

// FieldDoc describes one schema.Field. Kind selects the FieldType variant;
// Target/Fields/Enum are only meaningful for the relation/embedded
// kinds.
type FieldDoc struct {
	Name       string     `yaml:"name"`
	Kind       string     `yaml:"kind"` // primitive kind name, or belongs_to/has_one/has_many/embedded
	Nullable   bool       `yaml:"nullable"`
	PrimaryKey bool       `yaml:"primary_key"`
	Auto       string     `yaml:"auto"` // "increment", "generated_id", "uuid_v7"
	MaxLen     int        `yaml:"max_len"`
	Target     string     `yaml:"target"` // model name, for relation kinds
	Fields     []FieldDoc `yaml:"fields"` // nested fields, for embedded
	Enum       []VariantDoc `yaml:"enum"`       // variants, for an embedded enum
}

// VariantDoc describes one variant of an embedded enum field.
type VariantDoc struct {
	Name   string     `yaml:"name"`
	Fields []FieldDoc `yaml:"fields"`
}

// RowsDoc is a batch of literal rows to insert into one model after the
// schema is registered, field values given positionally in declaration
// order.
type RowsDoc struct {
	Model string          `yaml:"model"`
	Rows  [][]interface{} `yaml:"rows"`
}

// Scenario is a parsed, built fixture ready to drive planner/executor
// tests against.
type Scenario struct {
	Schema   *schema.Schema
	Driver   *memdriver.Driver
	modelIds map[string]ids.ModelId
}

// ModelId looks up a model's assigned id by the name it was declared
// under in the YAML doc.
func (s *Scenario) ModelId(name string) (ids.ModelId, bool) {
	id, ok := s.modelIds[name]
	return id, ok
}

// Load parses yamlSrc, builds the described schema against cap, opens a
// memdriver.Driver at dbPath, registers the schema, and inserts every
// literal row the doc names.
func Load(ctx context.Context, yamlSrc []byte, cap capability.Capability, dbPath string) (*Scenario, error) {
	var doc Doc
	if err := yaml.Unmarshal(yamlSrc, &doc); err != nil {
		return nil, toastyerr.ErrSchema.New(fmt.Sprintf("invalid fixture yaml: %s", err))
	}

	builder := schema.NewBuilder(cap)
	modelIds := make(map[string]ids.ModelId, len(doc.Models))

	for i, md := range doc.Models {
		modelIds[md.Name] = ids.ModelId(i + 1)
	}
	for _, md := range doc.Models {
		m := &schema.Model{Id: modelIds[md.Name], Name: md.Name}
		fields, err := buildFields(modelIds[md.Name], md.Fields, modelIds)
		if err != nil {
			return nil, err
		}
		m.Fields = fields
		builder.AddModel(m)
	}

	s, err := builder.Build()
	if err != nil {
		return nil, err
	}

	d, err := memdriver.Open(dbPath, cap)
	if err != nil {
		return nil, err
	}
	if err := d.RegisterSchema(ctx, s); err != nil {
		return nil, err
	}

	scenario := &Scenario{Schema: s, Driver: d, modelIds: modelIds}
	for _, rowsDoc := range doc.Rows {
		if err := scenario.insertRows(ctx, rowsDoc); err != nil {
			return nil, err
		}
	}
	return scenario, nil
}

func buildFields(model ids.ModelId, docs []FieldDoc, modelIds map[string]ids.ModelId) ([]schema.Field, error) {
	out := make([]schema.Field, len(docs))
	for i, fd := range docs {
		f := schema.Field{
			Id:         ids.FieldId{Model: model, Index: i},
			Name:       fd.Name,
			Nullable:   fd.Nullable,
			PrimaryKey: fd.PrimaryKey,
			MaxLen:     fd.MaxLen,
		}
		if fd.Auto != "" {
			auto, err := parseAuto(fd.Auto)
			if err != nil {
				return nil, err
			}
			f.Auto = &auto
		}
		ft, err := buildFieldType(model, i, fd, modelIds)
		if err != nil {
			return nil, err
		}
		f.Type = ft
		out[i] = f
	}
	return out, nil
}

func buildFieldType(model ids.ModelId, index int, fd FieldDoc, modelIds map[string]ids.ModelId) (schema.FieldType, error) {
	switch fd.Kind {
	case "belongs_to":
		target, ok := modelIds[fd.Target]
		if !ok {
			return nil, toastyerr.ErrSchema.New(fmt.Sprintf("belongs_to field %q targets unknown model %q", fd.Name, fd.Target))
		}
		return schema.FieldBelongsTo{Target: target, ForeignKey: ids.FieldId{Model: model, Index: index}}, nil
	case "has_one", "has_many":
		target, ok := modelIds[fd.Target]
		if !ok {
			return nil, toastyerr.ErrSchema.New(fmt.Sprintf("%s field %q targets unknown model %q", fd.Kind, fd.Name, fd.Target))
		}
		if fd.Kind == "has_one" {
			return schema.FieldHasOne{Target: target}, nil
		}
		return schema.FieldHasMany{Target: target}, nil
	case "embedded":
		nested, err := buildFields(model, fd.Fields, modelIds)
		if err != nil {
			return nil, err
		}
		var enum *schema.EmbeddedEnum
		if len(fd.Enum) > 0 {
			variants := make([]schema.EmbeddedEnumVariant, len(fd.Enum))
			for i, vd := range fd.Enum {
				vfields, err := buildFields(model, vd.Fields, modelIds)
				if err != nil {
					return nil, err
				}
				variants[i] = schema.EmbeddedEnumVariant{Name: vd.Name, Fields: vfields}
			}
			enum = &schema.EmbeddedEnum{Name: fd.Name, Variants: variants}
		}
		return schema.FieldEmbedded{Fields: nested, Enum: enum}, nil
	default:
		prim, err := parsePrimitive(fd.Kind)
		if err != nil {
			return nil, err
		}
		return schema.FieldPrimitive{Type: prim}, nil
	}
}

func parsePrimitive(kind string) (schema.PrimitiveType, error) {
	switch kind {
	case "bool":
		return schema.PrimBool, nil
	case "i8":
		return schema.PrimI8, nil
	case "i16":
		return schema.PrimI16, nil
	case "i32":
		return schema.PrimI32, nil
	case "i64":
		return schema.PrimI64, nil
	case "u8":
		return schema.PrimU8, nil
	case "u16":
		return schema.PrimU16, nil
	case "u32":
		return schema.PrimU32, nil
	case "u64":
		return schema.PrimU64, nil
	case "string":
		return schema.PrimString, nil
	case "bytes":
		return schema.PrimBytes, nil
	case "uuid":
		return schema.PrimUuid, nil
	case "decimal":
		return schema.PrimDecimal, nil
	case "datetime":
		return schema.PrimDateTime, nil
	default:
		return 0, toastyerr.ErrSchema.New(fmt.Sprintf("unknown field kind %q", kind))
	}
}

func parseAuto(v string) (schema.AutoStrategy, error) {
	switch v {
	case "increment":
		return schema.AutoIncrement, nil
	case "generated_id":
		return schema.AutoGeneratedId, nil
	case "uuid_v7":
		return schema.AutoUuidV7, nil
	default:
		return 0, toastyerr.ErrSchema.New(fmt.Sprintf("unknown auto strategy %q", v))
	}
}

// insertRows evaluates rowsDoc's literal rows (via the model's table
// mapping) and inserts them directly through the driver, bypassing the
// planner — a fixture seeds known-good state, it isn't exercising insert
// planning itself.
func (s *Scenario) insertRows(ctx context.Context, rowsDoc RowsDoc) error {
	modelId, ok := s.modelIds[rowsDoc.Model]
	if !ok {
		return toastyerr.ErrSchema.New(fmt.Sprintf("rows reference unknown model %q", rowsDoc.Model))
	}
	mapping, ok := s.Schema.Mapping(modelId)
	if !ok {
		return toastyerr.ErrSchema.New(fmt.Sprintf("no mapping for model %q", rowsDoc.Model))
	}
	table, _ := s.Schema.Table(mapping.Table)

	rows := make([]stmt.Expr, 0, len(rowsDoc.Rows))
	for _, raw := range rowsDoc.Rows {
		row, err := toTableRow(raw, mapping, table)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	_, err := s.Driver.Exec(ctx, &op.Insert{Table: mapping.Table, Rows: rows, Returning: stmt.ReturningChanges{}})
	return err
}

// toTableRow maps a YAML row's raw scalars (already in table-column order,
// since a fixture writes literal tables rather than model-shaped input) to
// an *stmt.ExprRecord of stmt.ExprValue leaves.
func toTableRow(raw []interface{}, mapping *schema.Mapping, table *schema.Table) (stmt.Expr, error) {
	if table != nil && len(raw) != len(table.Columns) {
		return nil, toastyerr.ErrSchema.New(fmt.Sprintf("row has %d values, table %q has %d columns", len(raw), table.Name, len(table.Columns)))
	}
	fields := make([]stmt.Expr, len(raw))
	for i, v := range raw {
		val, err := toValue(v)
		if err != nil {
			return nil, err
		}
		fields[i] = stmt.Lit(val)
	}
	return &stmt.ExprRecord{Fields: fields}, nil
}

func toValue(v interface{}) (stmt.Value, error) {
	switch x := v.(type) {
	case nil:
		return stmt.Null, nil
	case bool:
		return stmt.ValueBool(x), nil
	case int:
		return stmt.ValueI64(int64(x)), nil
	case int64:
		return stmt.ValueI64(x), nil
	case string:
		return stmt.ValueString(x), nil
	default:
		return nil, toastyerr.ErrSchema.New(fmt.Sprintf("unsupported fixture literal %T", v))
	}
}
