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
	"strings"

	"github.com/toasty-db/toasty/toastyerr"
)

// Eval reduces e to a concrete Value against input, implementing the
// per-row evaluator semantics of It never touches a driver:
// InSubquery/Exists/Stmt/FuncCount are set-level constructs the planner
// turns into separate actions before a row ever reaches Eval, so hitting
// one here is an evaluator error rather than a recursive query.
func Eval(e Expr, input Input) (Value, error) {
	switch x := e.(type) {
	case *ExprValue:
		return x.Value, nil

	case *ExprAnd:
		return evalAnd(x.Operands, input)
	case *ExprOr:
		return evalOr(x.Operands, input)
	case *ExprNot:
		v, err := Eval(x.Expr, input)
		if err != nil {
			return nil, err
		}
		b, err := asBool(v)
		if err != nil {
			return nil, err
		}
		return ValueBool(!b), nil

	case *ExprIsNull:
		v, err := Eval(x.Expr, input)
		if err != nil {
			return nil, err
		}
		isNull := IsNull(v)
		if x.Negate {
			isNull = !isNull
		}
		return ValueBool(isNull), nil

	case *ExprBinaryOp:
		return evalBinaryOp(x, input)

	case *ExprInList:
		return evalInList(x, input)

	case *ExprInSubquery, *ExprExists, *ExprStmt, *ExprFuncCount:
		return nil, toastyerr.ErrEvaluation.New("expression requires query execution and cannot be evaluated as a constant")

	case *ExprPattern:
		return evalPattern(x, input)

	case *ExprCast:
		v, err := Eval(x.Expr, input)
		if err != nil {
			return nil, err
		}
		return castValue(v, x.Ty)

	case *ExprList:
		items := make([]Value, len(x.Items))
		for i, it := range x.Items {
			v, err := Eval(it, input)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return ValueList{Items: items}, nil

	case *ExprRecord:
		fields := make([]Value, len(x.Fields))
		for i, f := range x.Fields {
			v, err := Eval(f, input)
			if err != nil {
				return nil, err
			}
			fields[i] = v
		}
		return recordFromSlice(fields), nil

	case *ExprMap:
		return evalMap(x, input)

	case *ExprAny:
		return evalAny(x, input)

	case *ExprProject:
		return evalProject(x, input)

	case *ExprReference:
		resolved, ok := input.ResolveRef(x, Identity())
		if !ok {
			return nil, toastyerr.ErrEvaluation.New("unresolved reference in evaluation context")
		}
		return Eval(resolved, input)

	case *ExprArg:
		resolved, ok := input.ResolveArg(x, Identity())
		if !ok {
			return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("unresolved argument at position %d", x.Position))
		}
		return Eval(resolved, input)

	case *ExprDecodeEnum:
		return evalDecodeEnum(x, input)

	case *ExprDefault:
		return nil, toastyerr.ErrEvaluation.New("default expression reached the evaluator; it must be resolved by the target before evaluation")

	case *ExprError:
		return nil, toastyerr.ErrEvaluation.New(x.Message)

	case *ExprConcatStr:
		return evalConcatStr(x, input)

	case *ExprUnaryOp:
		return evalUnaryOp(x, input)

	default:
		return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("unevaluable expression %T", e))
	}
}

// EvalConst evaluates e with no bindings available, the constant-folding
// entry point used by the simplifier; it is the Go analogue
// of the original source's eval_const / ConstInput.
func EvalConst(e Expr) (Value, error) {
	return Eval(e, NoInput{})
}

// EvalBool evaluates e and requires a boolean (or null) result, the form
// filters and preconditions are checked with.
func EvalBool(e Expr, input Input) (b bool, isNull bool, err error) {
	v, err := Eval(e, input)
	if err != nil {
		return false, false, err
	}
	if IsNull(v) {
		return false, true, nil
	}
	bv, err := asBool(v)
	if err != nil {
		return false, false, err
	}
	return bv, false, nil
}

func asBool(v Value) (bool, error) {
	b, ok := v.(ValueBool)
	if !ok {
		return false, toastyerr.ErrEvaluation.New(fmt.Sprintf("expected a bool, found %T", v))
	}
	return bool(b), nil
}

// evalAnd requires every operand to evaluate to a bool; a null (or any
// other non-bool) operand is an evaluation error, not a three-valued-logic
// null to propagate. Any false operand still short-circuits the rest.
func evalAnd(operands []Expr, input Input) (Value, error) {
	for _, op := range operands {
		v, err := Eval(op, input)
		if err != nil {
			return nil, err
		}
		b, err := asBool(v)
		if err != nil {
			return nil, err
		}
		if !b {
			return ValueBool(false), nil
		}
	}
	return ValueBool(true), nil
}

// evalOr requires every operand to evaluate to a bool; a null (or any
// other non-bool) operand is an evaluation error, not a three-valued-logic
// null to propagate. Any true operand still short-circuits the rest.
func evalOr(operands []Expr, input Input) (Value, error) {
	for _, op := range operands {
		v, err := Eval(op, input)
		if err != nil {
			return nil, err
		}
		b, err := asBool(v)
		if err != nil {
			return nil, err
		}
		if b {
			return ValueBool(true), nil
		}
	}
	return ValueBool(false), nil
}

func evalBinaryOp(x *ExprBinaryOp, input Input) (Value, error) {
	lhs, err := Eval(x.Lhs, input)
	if err != nil {
		return nil, err
	}
	rhs, err := Eval(x.Rhs, input)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case OpEq:
		return ValueBool(Equal(lhs, rhs)), nil
	case OpNe:
		return ValueBool(!Equal(lhs, rhs)), nil
	case OpIsA:
		return nil, toastyerr.ErrEvaluation.New("the IS A operator is not implemented")
	default:
		if IsNull(lhs) || IsNull(rhs) {
			return Null, nil
		}
		c, err := Compare(lhs, rhs)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case OpLt:
			return ValueBool(c < 0), nil
		case OpLe:
			return ValueBool(c <= 0), nil
		case OpGt:
			return ValueBool(c > 0), nil
		case OpGe:
			return ValueBool(c >= 0), nil
		default:
			return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("unknown binary operator %v", x.Op))
		}
	}
}

func evalInList(x *ExprInList, input Input) (Value, error) {
	target, err := Eval(x.Expr, input)
	if err != nil {
		return nil, err
	}
	list, err := Eval(x.List, input)
	if err != nil {
		return nil, err
	}
	lv, ok := list.(ValueList)
	if !ok {
		return nil, toastyerr.ErrEvaluation.New("in-list requires a list-valued right-hand side")
	}
	for _, item := range lv.Items {
		if Equal(target, item) {
			return ValueBool(true), nil
		}
	}
	return ValueBool(false), nil
}

func evalPattern(x *ExprPattern, input Input) (Value, error) {
	v, err := Eval(x.Expr, input)
	if err != nil {
		return nil, err
	}
	p, err := Eval(x.Pattern, input)
	if err != nil {
		return nil, err
	}
	if IsNull(v) || IsNull(p) {
		return Null, nil
	}
	s, ok := v.(ValueString)
	if !ok {
		return nil, toastyerr.ErrEvaluation.New("pattern matching requires a string operand")
	}
	pat, ok := p.(ValueString)
	if !ok {
		return nil, toastyerr.ErrEvaluation.New("pattern matching requires a string pattern")
	}
	switch x.Kind {
	case PatternBeginsWith:
		return ValueBool(strings.HasPrefix(string(s), string(pat))), nil
	case PatternLike:
		return ValueBool(likeMatch(string(s), string(pat))), nil
	default:
		return nil, toastyerr.ErrEvaluation.New("unknown pattern kind")
	}
}

// likeMatch implements SQL LIKE semantics for the `%` and `_` wildcards
// only (no escape character support, matching the subset the reference
// driver needs).
func likeMatch(s, pattern string) bool {
	return likeMatchRunes([]rune(s), []rune(pattern))
}

func likeMatchRunes(s, p []rune) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	switch p[0] {
	case '%':
		if likeMatchRunes(s, p[1:]) {
			return true
		}
		for i := range s {
			if likeMatchRunes(s[i+1:], p[1:]) {
				return true
			}
		}
		return false
	case '_':
		if len(s) == 0 {
			return false
		}
		return likeMatchRunes(s[1:], p[1:])
	default:
		if len(s) == 0 || s[0] != p[0] {
			return false
		}
		return likeMatchRunes(s[1:], p[1:])
	}
}

func evalMap(x *ExprMap, input Input) (Value, error) {
	base, err := Eval(x.Base, input)
	if err != nil {
		return nil, err
	}
	if IsNull(base) {
		return Null, nil
	}
	lv, ok := base.(ValueList)
	if !ok {
		return nil, toastyerr.ErrEvaluation.New("map requires a list-valued base")
	}
	out := make([]Value, len(lv.Items))
	for i, item := range lv.Items {
		args := []Value{item}
		if rec, ok := item.(ValueRecord); ok {
			args = append(args, rec.Fields...)
		}
		itemInput := ArgsInput{Args: args, Parent: input}
		v, err := Eval(x.Map, itemInput)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return ValueList{Items: out}, nil
}

func evalAny(x *ExprAny, input Input) (Value, error) {
	v, err := Eval(x.List, input)
	if err != nil {
		return nil, err
	}
	lv, ok := v.(ValueList)
	if !ok {
		return nil, toastyerr.ErrEvaluation.New("any requires a list-valued operand")
	}
	for _, item := range lv.Items {
		b, err := asBool(item)
		if err != nil {
			return nil, err
		}
		if b {
			return ValueBool(true), nil
		}
	}
	return ValueBool(false), nil
}

func evalProject(x *ExprProject, input Input) (Value, error) {
	switch base := x.Base.(type) {
	case *ExprArg:
		if resolved, ok := input.ResolveArg(base, x.Projection); ok {
			return Eval(resolved, input)
		}
		return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("unresolved argument at position %d", base.Position))
	case *ExprReference:
		if resolved, ok := input.ResolveRef(base, x.Projection); ok {
			return Eval(resolved, input)
		}
		return nil, toastyerr.ErrEvaluation.New("unresolved reference in evaluation context")
	default:
		v, err := Eval(x.Base, input)
		if err != nil {
			return nil, err
		}
		return EntryOf(v, x.Projection), nil
	}
}

func evalDecodeEnum(x *ExprDecodeEnum, input Input) (Value, error) {
	disc, err := Eval(x.Discriminant, input)
	if err != nil {
		return nil, err
	}
	if IsNull(disc) {
		return Null, nil
	}
	variant, ok := toI64(disc)
	if !ok {
		if u, ok2 := toU64(disc); ok2 {
			variant = int64(u)
		} else {
			return nil, toastyerr.ErrEvaluation.New("decode_enum discriminant must be an integer")
		}
	}
	if variant < 0 || int(variant) >= len(x.Variants) {
		return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("decode_enum discriminant %d out of range", variant))
	}
	inner, err := Eval(x.Variants[variant], input)
	if err != nil {
		return nil, err
	}
	rec, ok := inner.(ValueRecord)
	if !ok {
		return nil, toastyerr.ErrEvaluation.New("decode_enum variant must evaluate to a record")
	}
	return ValueEnum{TypeName: x.Ty.String(), Variant: int(variant), Fields: rec.Fields}, nil
}

func evalConcatStr(x *ExprConcatStr, input Input) (Value, error) {
	var b strings.Builder
	for _, it := range x.Items {
		v, err := Eval(it, input)
		if err != nil {
			return nil, err
		}
		if IsNull(v) {
			return Null, nil
		}
		s, ok := v.(ValueString)
		if !ok {
			return nil, toastyerr.ErrEvaluation.New("concat_str requires string operands")
		}
		b.WriteString(string(s))
	}
	return ValueString(b.String()), nil
}

func evalUnaryOp(x *ExprUnaryOp, input Input) (Value, error) {
	v, err := Eval(x.Expr, input)
	if err != nil {
		return nil, err
	}
	if IsNull(v) {
		return Null, nil
	}
	switch x.Op {
	case OpNeg:
		return negate(v)
	default:
		return nil, toastyerr.ErrEvaluation.New("unknown unary operator")
	}
}

func negate(v Value) (Value, error) {
	switch x := v.(type) {
	case ValueI8:
		if x == -128 {
			return nil, toastyerr.ErrEvaluation.New("integer overflow negating i8 minimum value")
		}
		return ValueI8(-x), nil
	case ValueI16:
		if x == -32768 {
			return nil, toastyerr.ErrEvaluation.New("integer overflow negating i16 minimum value")
		}
		return ValueI16(-x), nil
	case ValueI32:
		if x == -2147483648 {
			return nil, toastyerr.ErrEvaluation.New("integer overflow negating i32 minimum value")
		}
		return ValueI32(-x), nil
	case ValueI64:
		if x == -9223372036854775808 {
			return nil, toastyerr.ErrEvaluation.New("integer overflow negating i64 minimum value")
		}
		return ValueI64(-x), nil
	default:
		return nil, toastyerr.ErrEvaluation.New(fmt.Sprintf("cannot negate %T", v))
	}
}
