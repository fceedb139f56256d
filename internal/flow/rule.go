package flow

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"smartsurvey/internal/model"
)

// Evaluate applies a rule condition to an answer value. Malformed conditions and
// type mismatches evaluate to false.
func Evaluate(cond model.Condition, answer interface{}) bool {
	ok, _ := Check(cond, answer)
	return ok
}

// Check is Evaluate that also reports why a condition could not be applied.
// The boolean is always false when err is non-nil.
func Check(cond model.Condition, answer interface{}) (bool, error) {
	switch cond.Operator {
	case model.OpEquals:
		return equalValues(answer, cond.Value)
	case model.OpNotEquals:
		eq, err := equalValues(answer, cond.Value)
		if err != nil {
			return false, err
		}
		return !eq, nil
	case model.OpContains:
		return containsValue(answer, cond.Value)
	case model.OpGreaterThan, model.OpLessThan:
		a, aok := toNumber(answer)
		b, bok := toNumber(cond.Value)
		if !aok || !bok {
			return false, fmt.Errorf("%s needs numeric operands, got %T and %T", cond.Operator, answer, cond.Value)
		}
		if cond.Operator == model.OpGreaterThan {
			return a > b, nil
		}
		return a < b, nil
	case model.OpIn, model.OpNotIn:
		set, ok := operandSet(cond)
		if !ok {
			return false, fmt.Errorf("%s needs a value set", cond.Operator)
		}
		in, err := memberOf(answer, set)
		if err != nil {
			return false, err
		}
		if cond.Operator == model.OpIn {
			return in, nil
		}
		return !in, nil
	default:
		return false, fmt.Errorf("unknown operator %q", cond.Operator)
	}
}

func operandSet(cond model.Condition) ([]interface{}, bool) {
	if len(cond.Values) > 0 {
		return cond.Values, true
	}
	if s, ok := toSlice(cond.Value); ok {
		return s, true
	}
	return nil, false
}

func memberOf(answer interface{}, set []interface{}) (bool, error) {
	if items, ok := toSlice(answer); ok {
		for _, it := range items {
			if in, err := memberOf(it, set); err == nil && in {
				return true, nil
			}
		}
		return false, nil
	}
	matchedType := false
	var lastErr error
	for _, candidate := range set {
		eq, err := equalValues(answer, candidate)
		if err != nil {
			lastErr = err
			continue
		}
		matchedType = true
		if eq {
			return true, nil
		}
	}
	// Every comparison was a type mismatch: the rule cannot apply.
	if !matchedType && lastErr != nil {
		return false, lastErr
	}
	return false, nil
}

func containsValue(answer, operand interface{}) (bool, error) {
	if items, ok := toSlice(answer); ok {
		for _, it := range items {
			if eq, err := equalValues(it, operand); err == nil && eq {
				return true, nil
			}
		}
		return false, nil
	}
	s, ok := answer.(string)
	if !ok {
		return false, fmt.Errorf("contains needs a string or list answer, got %T", answer)
	}
	sub, ok := operand.(string)
	if !ok {
		sub = fmt.Sprint(operand)
	}
	return strings.Contains(s, sub), nil
}

// equalValues compares after normalizing both sides: numbers numerically, bools
// as bools, strings as-is, lists element-wise.
func equalValues(a, b interface{}) (bool, error) {
	if a == nil || b == nil {
		return a == nil && b == nil, nil
	}
	if isNumberKind(a) || isNumberKind(b) {
		x, xok := toNumber(a)
		y, yok := toNumber(b)
		if !xok || !yok {
			return false, fmt.Errorf("cannot compare %T with %T numerically", a, b)
		}
		return x == y, nil
	}
	if _, ok := a.(bool); ok {
		return equalBools(a, b)
	}
	if _, ok := b.(bool); ok {
		return equalBools(a, b)
	}
	as, aIsList := toSlice(a)
	bs, bIsList := toSlice(b)
	if aIsList || bIsList {
		if !aIsList || !bIsList {
			return false, fmt.Errorf("cannot compare %T with %T", a, b)
		}
		if len(as) != len(bs) {
			return false, nil
		}
		for i := range as {
			eq, err := equalValues(as[i], bs[i])
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return sa == sb, nil
	}
	return false, fmt.Errorf("cannot compare %T with %T", a, b)
}

func equalBools(a, b interface{}) (bool, error) {
	x, xok := toBool(a)
	y, yok := toBool(b)
	if !xok || !yok {
		return false, fmt.Errorf("cannot compare %T with %T as booleans", a, b)
	}
	return x == y, nil
}

func toBool(v interface{}) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return b, err == nil
	}
	return false, false
}

func isNumberKind(v interface{}) bool {
	switch v.(type) {
	case json.Number:
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toNumber(v interface{}) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f, !math.IsNaN(f)
	}
	return 0, false
}

// toSlice converts any list value ([]interface{}, []string, bson arrays, ...) to []interface{}
func toSlice(v interface{}) ([]interface{}, bool) {
	if v == nil {
		return nil, false
	}
	if s, ok := v.([]interface{}); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
