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
	"fmt"
	"strconv"
	"time"

	"github.com/mitchellh/hashstructure"
	uuid "github.com/satori/go.uuid"
	"github.com/spf13/cast"

	"github.com/toasty-db/toasty/ids"
	"github.com/toasty-db/toasty/toastyerr"
	"github.com/toasty-db/toasty/tycore"
)

// Value is the closed sum of runtime values the IR can carry.
// Like Expr, it is expressed as an interface with one concrete type per
// variant rather than a single tagged struct, favoring small interfaces
// over a big switch-on-a-tag-field struct.
type Value interface {
	isValue()
	// Type reports the tycore.Type this value was constructed with.
	Type() tycore.Type
	fmt.Stringer
}

type (
	ValueNull struct{}
	ValueBool bool

	ValueI8  int8
	ValueI16 int16
	ValueI32 int32
	ValueI64 int64
	ValueU8  uint8
	ValueU16 uint16
	ValueU32 uint32
	ValueU64 uint64

	ValueString string
	ValueBytes  []byte
	ValueUuid   struct{ UUID uuid.UUID }

	// ValueId is a model-tagged opaque identifier. Exactly one of Int/Str
	// is meaningful, selected by IsString, matching "id (model-
	// tagged opaque identifier: int or string repr)".
	ValueId struct {
		Model    ids.ModelId
		IsString bool
		Int      int64
		Str      string
	}

	ValueEnum struct {
		TypeName string
		Variant  int
		Fields   []Value
	}

	ValueRecord struct{ Fields []Value }

	// ValueSparseRecord holds only the fields that were actually computed,
	// indexed by their position in the full record; used for partial
	// RETURNING projections.
	ValueSparseRecord struct{ Fields map[int]Value }

	ValueList struct{ Items []Value }

	// ValueDecimal stores a normalized decimal string; decimal support is
	// backend-optional
	ValueDecimal struct{ Repr string }

	// ValueDateTime stores an RFC3339-nanosecond formatted instant.
	ValueDateTime struct{ Repr string }
)

func (ValueNull) isValue()          {}
func (ValueBool) isValue()          {}
func (ValueI8) isValue()            {}
func (ValueI16) isValue()           {}
func (ValueI32) isValue()           {}
func (ValueI64) isValue()           {}
func (ValueU8) isValue()            {}
func (ValueU16) isValue()           {}
func (ValueU32) isValue()           {}
func (ValueU64) isValue()           {}
func (ValueString) isValue()        {}
func (ValueBytes) isValue()         {}
func (ValueUuid) isValue()          {}
func (ValueId) isValue()            {}
func (ValueEnum) isValue()          {}
func (ValueRecord) isValue()        {}
func (ValueSparseRecord) isValue()  {}
func (ValueList) isValue()          {}
func (ValueDecimal) isValue()       {}
func (ValueDateTime) isValue()      {}

func (ValueNull) Type() tycore.Type   { return tycore.TyNull{} }
func (ValueBool) Type() tycore.Type   { return tycore.TyBool{} }
func (ValueI8) Type() tycore.Type     { return tycore.TyI8{} }
func (ValueI16) Type() tycore.Type    { return tycore.TyI16{} }
func (ValueI32) Type() tycore.Type    { return tycore.TyI32{} }
func (ValueI64) Type() tycore.Type    { return tycore.TyI64{} }
func (ValueU8) Type() tycore.Type     { return tycore.TyU8{} }
func (ValueU16) Type() tycore.Type    { return tycore.TyU16{} }
func (ValueU32) Type() tycore.Type    { return tycore.TyU32{} }
func (ValueU64) Type() tycore.Type    { return tycore.TyU64{} }
func (ValueString) Type() tycore.Type { return tycore.TyString{} }
func (ValueBytes) Type() tycore.Type  { return tycore.TyBytes{} }
func (ValueUuid) Type() tycore.Type   { return tycore.TyUuid{} }
func (v ValueId) Type() tycore.Type   { return tycore.TyId{Model: v.Model} }
func (v ValueEnum) Type() tycore.Type { return tycore.TyEnum{Name: v.TypeName} }
func (v ValueRecord) Type() tycore.Type {
	fields := make([]tycore.Type, len(v.Fields))
	for i, f := range v.Fields {
		fields[i] = f.Type()
	}
	return tycore.TyRecord{Fields: fields}
}
func (v ValueSparseRecord) Type() tycore.Type { return tycore.TyRecord{} }
func (v ValueList) Type() tycore.Type {
	if len(v.Items) == 0 {
		return tycore.TyList{Item: tycore.TyUnknown{}}
	}
	return tycore.TyList{Item: v.Items[0].Type()}
}
func (ValueDecimal) Type() tycore.Type  { return tycore.TyDecimal{} }
func (ValueDateTime) Type() tycore.Type { return tycore.TyDateTime{} }

func (ValueNull) String() string   { return "null" }
func (v ValueBool) String() string { return strconv.FormatBool(bool(v)) }
func (v ValueI8) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v ValueI16) String() string  { return strconv.FormatInt(int64(v), 10) }
func (v ValueI32) String() string  { return strconv.FormatInt(int64(v), 10) }
func (v ValueI64) String() string  { return strconv.FormatInt(int64(v), 10) }
func (v ValueU8) String() string   { return strconv.FormatUint(uint64(v), 10) }
func (v ValueU16) String() string  { return strconv.FormatUint(uint64(v), 10) }
func (v ValueU32) String() string  { return strconv.FormatUint(uint64(v), 10) }
func (v ValueU64) String() string  { return strconv.FormatUint(uint64(v), 10) }
func (v ValueString) String() string { return string(v) }
func (v ValueBytes) String() string  { return fmt.Sprintf("bytes(%d)", len(v)) }
func (v ValueUuid) String() string   { return v.UUID.String() }
func (v ValueId) String() string {
	if v.IsString {
		return v.Str
	}
	return strconv.FormatInt(v.Int, 10)
}
func (v ValueEnum) String() string { return fmt.Sprintf("%s#%d", v.TypeName, v.Variant) }
func (v ValueRecord) String() string {
	return fmt.Sprintf("record(%d)", len(v.Fields))
}
func (v ValueSparseRecord) String() string {
	return fmt.Sprintf("sparse_record(%d)", len(v.Fields))
}
func (v ValueList) String() string     { return fmt.Sprintf("list(%d)", len(v.Items)) }
func (v ValueDecimal) String() string  { return v.Repr }
func (v ValueDateTime) String() string { return v.Repr }

// Null is the canonical null value.
var Null Value = ValueNull{}

// IsNull reports whether v is the null value.
func IsNull(v Value) bool {
	_, ok := v.(ValueNull)
	return ok
}

// BoolValue wraps a Go bool as a Value; convenience used throughout the
// evaluator and simplifier where a condition collapses to a constant.
func BoolValue(b bool) Value { return ValueBool(b) }

// NewDateTime formats t as the canonical RFC3339-nanosecond value used for
// chrono round-tripping.
func NewDateTime(t time.Time) Value {
	return ValueDateTime{Repr: t.UTC().Format(time.RFC3339Nano)}
}

// Time parses a ValueDateTime back into a time.Time.
func (v ValueDateTime) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v.Repr)
}

// Equal implements the structural equality evaluator semantics
// require for BinaryOp::Eq/Ne and InList membership: "null equals null".
func Equal(a, b Value) bool {
	_, aNull := a.(ValueNull)
	_, bNull := b.(ValueNull)
	if aNull || bNull {
		return aNull && bNull
	}

	if an, bn, ok := asI64Pair(a, b); ok {
		return an == bn
	}
	if au, bu, ok := asU64Pair(a, b); ok {
		return au == bu
	}

	ha, err1 := hashstructure.Hash(normalizeForHash(a), nil)
	hb, err2 := hashstructure.Hash(normalizeForHash(b), nil)
	if err1 != nil || err2 != nil {
		return deepEqualFallback(a, b)
	}
	if ha != hb {
		return false
	}
	// hashstructure collisions are possible; confirm structurally.
	return deepEqualFallback(a, b)
}

// normalizeForHash flattens a Value into plain Go data so hashstructure can
// hash it consistently regardless of the concrete Value variant used to
// represent e.g. an integer.
func normalizeForHash(v Value) interface{} {
	switch x := v.(type) {
	case ValueBool:
		return bool(x)
	case ValueString:
		return string(x)
	case ValueBytes:
		return []byte(x)
	case ValueUuid:
		return x.UUID.String()
	case ValueId:
		return []interface{}{uint32(x.Model), x.IsString, x.Int, x.Str}
	case ValueEnum:
		fields := make([]interface{}, len(x.Fields))
		for i, f := range x.Fields {
			fields[i] = normalizeForHash(f)
		}
		return []interface{}{x.TypeName, x.Variant, fields}
	case ValueRecord:
		fields := make([]interface{}, len(x.Fields))
		for i, f := range x.Fields {
			fields[i] = normalizeForHash(f)
		}
		return fields
	case ValueSparseRecord:
		out := map[int]interface{}{}
		for k, f := range x.Fields {
			out[k] = normalizeForHash(f)
		}
		return out
	case ValueList:
		items := make([]interface{}, len(x.Items))
		for i, it := range x.Items {
			items[i] = normalizeForHash(it)
		}
		return items
	case ValueDecimal:
		return x.Repr
	case ValueDateTime:
		return x.Repr
	default:
		return v.String()
	}
}

func deepEqualFallback(a, b Value) bool {
	return normalizeForHashString(a) == normalizeForHashString(b)
}

func normalizeForHashString(v Value) string {
	return fmt.Sprintf("%#v", normalizeForHash(v))
}

// HashKey returns a string that is equal for any two Values Equal
// considers equal, regardless of which concrete variant represents them
// (e.g. ValueI32(3) and ValueI64(3)). It is exported for callers that need
// to index a set of Values by equality, such as exec's in-process
// Associate join.
func HashKey(v Value) string {
	return normalizeForHashString(v)
}

func asI64Pair(a, b Value) (int64, int64, bool) {
	ai, aok := toI64(a)
	bi, bok := toI64(b)
	return ai, bi, aok && bok
}

func asU64Pair(a, b Value) (uint64, uint64, bool) {
	au, aok := toU64(a)
	bu, bok := toU64(b)
	return au, bu, aok && bok
}

func toI64(v Value) (int64, bool) {
	switch x := v.(type) {
	case ValueI8:
		return int64(x), true
	case ValueI16:
		return int64(x), true
	case ValueI32:
		return int64(x), true
	case ValueI64:
		return int64(x), true
	default:
		return 0, false
	}
}

func toU64(v Value) (uint64, bool) {
	switch x := v.(type) {
	case ValueU8:
		return uint64(x), true
	case ValueU16:
		return uint64(x), true
	case ValueU32:
		return uint64(x), true
	case ValueU64:
		return uint64(x), true
	default:
		return 0, false
	}
}

// Compare orders two values for Eval's comparison operators
// (value_cmp.rs): signed integers compare numerically irrespective of
// width, as do unsigned integers; strings, DateTime and Decimal compare by
// their string form, and false orders before true. Any other pair,
// including a signed against an unsigned integer or two different kinds,
// is an ErrEvaluation error.
func Compare(a, b Value) (int, error) {
	if ai, aok := toI64(a); aok {
		if bi, bok := toI64(b); bok {
			return cmpI64(ai, bi), nil
		}
	}
	if au, aok := toU64(a); aok {
		if bu, bok := toU64(b); bok {
			return cmpU64(au, bu), nil
		}
	}
	switch x := a.(type) {
	case ValueString:
		if y, ok := b.(ValueString); ok {
			return cmpStr(string(x), string(y)), nil
		}
	case ValueDateTime:
		if y, ok := b.(ValueDateTime); ok {
			return cmpStr(x.Repr, y.Repr), nil
		}
	case ValueDecimal:
		if y, ok := b.(ValueDecimal); ok {
			return cmpStr(x.Repr, y.Repr), nil
		}
	case ValueBool:
		if y, ok := b.(ValueBool); ok {
			return cmpBool(bool(x), bool(y)), nil
		}
	}
	return 0, toastyerr.ErrEvaluation.New(fmt.Sprintf("values of kind %T and %T are not comparable", a, b))
}

func cmpI64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpU64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpStr(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

// Entry on a null value yields null for every projection. Walking p into
// a Record/SparseRecord/List value, as needed when a Project's base is a
// computed (non Arg/Reference) expression, is done by EntryOf.
func (ValueNull) Entry(Projection) Value { return ValueNull{} }

// entry is implemented as a free function (rather than a method on the
// Value interface) because most variants don't support indexing; the
// caller (eval.go) dispatches through EntryOf.
func EntryOf(v Value, p Projection) Value {
	idx, rest, ok := p.Head()
	if !ok {
		return v
	}
	switch x := v.(type) {
	case ValueRecord:
		if idx < 0 || idx >= len(x.Fields) {
			return ValueNull{}
		}
		return EntryOf(x.Fields[idx], rest)
	case ValueSparseRecord:
		f, ok := x.Fields[idx]
		if !ok {
			return ValueNull{}
		}
		return EntryOf(f, rest)
	case ValueList:
		out := make([]Value, len(x.Items))
		for i, item := range x.Items {
			out[i] = EntryOf(item, p)
		}
		return ValueList{Items: out}
	default:
		return ValueNull{}
	}
}

// recordFromSlice builds a ValueRecord, the "constant folding" target of an
// all-Value Expr::Record
func recordFromSlice(fields []Value) Value {
	return ValueRecord{Fields: fields}
}

// castValue implements Expr::Cast's runtime semantics: null
// passes through unchanged; narrowing integer casts error on overflow;
// string<->uuid round-trips via textual form; chrono types round-trip via
// an RFC3339-like formatted string.
func castValue(v Value, target tycore.Type) (Value, error) {
	if IsNull(v) {
		return ValueNull{}, nil
	}

	switch t := target.(type) {
	case tycore.TyBool:
		b, err := cast.ToBoolE(scalarOf(v))
		if err != nil {
			return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("cannot cast %s to bool", v))
		}
		return ValueBool(b), nil
	case tycore.TyI8, tycore.TyI16, tycore.TyI32, tycore.TyI64:
		i, err := cast.ToInt64E(scalarOf(v))
		if err != nil {
			return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("cannot cast %s to %s", v, target.String()))
		}
		return narrowSigned(i, target)
	case tycore.TyU8, tycore.TyU16, tycore.TyU32, tycore.TyU64:
		u, err := cast.ToUint64E(scalarOf(v))
		if err != nil {
			return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("cannot cast %s to %s", v, target.String()))
		}
		return narrowUnsigned(u, target)
	case tycore.TyString:
		return ValueString(stringOf(v)), nil
	case tycore.TyBytes:
		if s, ok := v.(ValueString); ok {
			return ValueBytes([]byte(s)), nil
		}
		if b, ok := v.(ValueBytes); ok {
			return b, nil
		}
		return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("cannot cast %s to bytes", v))
	case tycore.TyUuid:
		s, ok := v.(ValueString)
		if !ok {
			if u, ok := v.(ValueUuid); ok {
				return u, nil
			}
			return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("cannot cast %s to uuid", v))
		}
		parsed, err := uuid.FromString(string(s))
		if err != nil {
			return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("invalid uuid literal %q", string(s)))
		}
		return ValueUuid{UUID: parsed}, nil
	case tycore.TyDecimal:
		return ValueDecimal{Repr: stringOf(v)}, nil
	case tycore.TyDateTime:
		if s, ok := v.(ValueString); ok {
			if _, err := time.Parse(time.RFC3339Nano, string(s)); err != nil {
				return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("invalid datetime literal %q", string(s)))
			}
			return ValueDateTime{Repr: string(s)}, nil
		}
		if dt, ok := v.(ValueDateTime); ok {
			return dt, nil
		}
		return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("cannot cast %s to datetime", v))
	case tycore.TyId:
		return castToId(v, t)
	default:
		return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("unsupported cast target %s", target.String()))
	}
}

func castToId(v Value, t tycore.TyId) (Value, error) {
	model, _ := t.Model.(ids.ModelId)
	switch x := v.(type) {
	case ValueId:
		return x, nil
	case ValueI64:
		return ValueId{Model: model, Int: int64(x)}, nil
	case ValueString:
		return ValueId{Model: model, IsString: true, Str: string(x)}, nil
	default:
		return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("cannot cast %s to id", v))
	}
}

func narrowSigned(i int64, target tycore.Type) (Value, error) {
	width := tycore.BitWidth(target)
	if width > 0 && width < 64 {
		limit := int64(1) << uint(width-1)
		if i < -limit || i >= limit {
			return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("integer overflow casting %d to %s", i, target.String()))
		}
	}
	switch target.(type) {
	case tycore.TyI8:
		return ValueI8(i), nil
	case tycore.TyI16:
		return ValueI16(i), nil
	case tycore.TyI32:
		return ValueI32(i), nil
	default:
		return ValueI64(i), nil
	}
}

func narrowUnsigned(u uint64, target tycore.Type) (Value, error) {
	width := tycore.BitWidth(target)
	if width > 0 && width < 64 {
		limit := uint64(1) << uint(width)
		if u >= limit {
			return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("integer overflow casting %d to %s", u, target.String()))
		}
	}
	switch target.(type) {
	case tycore.TyU8:
		return ValueU8(u), nil
	case tycore.TyU16:
		return ValueU16(u), nil
	case tycore.TyU32:
		return ValueU32(u), nil
	default:
		return ValueU64(u), nil
	}
}

func scalarOf(v Value) interface{} {
	switch x := v.(type) {
	case ValueBool:
		return bool(x)
	case ValueI8:
		return int8(x)
	case ValueI16:
		return int16(x)
	case ValueI32:
		return int32(x)
	case ValueI64:
		return int64(x)
	case ValueU8:
		return uint8(x)
	case ValueU16:
		return uint16(x)
	case ValueU32:
		return uint32(x)
	case ValueU64:
		return uint64(x)
	case ValueString:
		return string(x)
	default:
		return v.String()
	}
}

func stringOf(v Value) string {
	if s, ok := v.(ValueString); ok {
		return string(s)
	}
	return v.String()
}
