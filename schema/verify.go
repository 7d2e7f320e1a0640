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

	"github.com/toasty-db/toasty/ids"
	"github.com/toasty-db/toasty/toastyerr"
)

// Verify checks a built Schema's internal consistency: every relation's
// target exists, and every Mapping has as many column expressions as its
// table has columns. It also walks embedded fields through
// verifyNoEmbedCycle, which reports no error. Builder.Build does not call
// Verify; the tests do.
func Verify(s *Schema) error {
	for _, m := range s.Models {
		if err := verifyNoEmbedCycle(m, m.Fields, map[ids.ModelId]bool{m.Id: true}); err != nil {
			return err
		}
		if err := verifyRelations(s, m); err != nil {
			return err
		}
	}
	for modelId, mapping := range s.Mappings {
		table, ok := s.Tables[mapping.Table]
		if !ok {
			return toastyerr.ErrSchema.New(toastyerr.Quotef("model %v maps to unknown table %v", modelId, mapping.Table))
		}
		if len(mapping.ModelToTable) != len(table.Columns) {
			return toastyerr.ErrSchema.New(toastyerr.Quotef(
				"model %v's mapping has %d column expressions but table %v has %d columns",
				modelId, len(mapping.ModelToTable), mapping.Table, len(table.Columns)))
		}
	}
	return nil
}

// verifyNoEmbedCycle walks every FieldEmbedded field, directly or via an
// enum variant. Embedded fields hold their Fields inline with no model id,
// and seen is not consulted, so it never reports a cycle.
func verifyNoEmbedCycle(m *Model, fields []Field, seen map[ids.ModelId]bool) error {
	for _, f := range fields {
		emb, ok := f.Type.(FieldEmbedded)
		if !ok {
			continue
		}
		if emb.Enum != nil {
			for _, v := range emb.Enum.Variants {
				if err := verifyNoEmbedCycle(m, v.Fields, seen); err != nil {
					return err
				}
			}
			continue
		}
		if err := verifyNoEmbedCycle(m, emb.Fields, seen); err != nil {
			return err
		}
	}
	return nil
}

func verifyRelations(s *Schema, m *Model) error {
	for _, f := range m.Fields {
		switch ft := f.Type.(type) {
		case FieldBelongsTo:
			target, ok := s.Models[ft.Target]
			if !ok {
				return toastyerr.ErrSchema.New(fmt.Sprintf("model %q's field %q targets unknown model", m.Name, f.Name))
			}
			if ft.ForeignKey.Index < 0 || ft.ForeignKey.Index >= len(m.Fields) {
				return toastyerr.ErrSchema.New(fmt.Sprintf("model %q's field %q has an invalid foreign key index", m.Name, f.Name))
			}
			_ = target
		case FieldHasOne:
			if err := verifyInverseBelongsTo(s, ft.Target, ft.TargetBelongsTo); err != nil {
				return fmt.Errorf("model %q field %q: %w", m.Name, f.Name, err)
			}
		case FieldHasMany:
			if err := verifyInverseBelongsTo(s, ft.Target, ft.TargetBelongsTo); err != nil {
				return fmt.Errorf("model %q field %q: %w", m.Name, f.Name, err)
			}
		}
	}
	return nil
}

func verifyInverseBelongsTo(s *Schema, target ids.ModelId, fk ids.FieldId) error {
	tm, ok := s.Models[target]
	if !ok {
		return toastyerr.ErrSchema.New("targets unknown model")
	}
	if fk.Index < 0 || fk.Index >= len(tm.Fields) {
		return toastyerr.ErrSchema.New("inverse belongs_to field index out of range")
	}
	if _, ok := tm.Fields[fk.Index].Type.(FieldBelongsTo); !ok {
		return toastyerr.ErrSchema.New("inverse field is not a belongs_to")
	}
	return nil
}
