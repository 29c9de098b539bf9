package engine

import (
	"fmt"
	"log"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cachegrid/query/model"
	"github.com/cachegrid/query/services"
)

// matchExpression evaluates a filter expression tree against a document.
// A nil expression matches everything. An expression without an operator is
// treated as AND.
func matchExpression(doc model.Document, expr *services.FilterExpression) bool {
	if expr == nil {
		return true
	}

	or := expr.Operator == services.CombinatorOr
	result := !or // AND starts true, OR starts false

	combine := func(v bool) {
		if or {
			result = result || v
		} else {
			result = result && v
		}
	}

	for i := range expr.Filters {
		combine(matchCondition(doc, expr.Filters[i]))
	}
	for i := range expr.Groups {
		combine(matchExpression(doc, &expr.Groups[i]))
	}

	// An empty OR expression matches nothing only if it actually has clauses;
	// with no clauses at all, fall back to match-all.
	if len(expr.Filters) == 0 && len(expr.Groups) == 0 {
		result = true
	}

	if expr.Negated {
		return !result
	}
	return result
}

func matchCondition(doc model.Document, cond services.FilterCondition) bool {
	result := evalCondition(doc, cond)
	if cond.Negated {
		return !result
	}
	return result
}

func evalCondition(doc model.Document, cond services.FilterCondition) bool {
	val, exists := doc[cond.Field]

	if cond.Operator == services.OpIsNull {
		return !exists || val == nil
	}
	if !exists || val == nil {
		return false
	}

	// Array fields match when any element satisfies the condition.
	elems := fieldElements(val)

	switch cond.Operator {
	case "", services.OpEq:
		return anyEqual(elems, cond.Value)
	case services.OpNe:
		return !anyEqual(elems, cond.Value)
	case services.OpGt, services.OpGte, services.OpLt, services.OpLte:
		for _, elem := range elems {
			if cmp, ok := compareOrdered(elem, cond.Value); ok && cmpSatisfies(cmp, cond.Operator) {
				return true
			}
		}
		return false
	case services.OpBetween:
		for _, elem := range elems {
			if withinRange(elem, cond) {
				return true
			}
		}
		return false
	case services.OpIn:
		for _, candidate := range valueList(cond.Value) {
			if anyEqual(elems, candidate) {
				return true
			}
		}
		return false
	case services.OpLike:
		pattern, ok := cond.Value.(string)
		if !ok {
			return false
		}
		for _, elem := range elems {
			if s, isStr := elem.(string); isStr && likeMatch(s, pattern) {
				return true
			}
		}
		return false
	case services.OpContains:
		return containsValue(elems, cond.Value)
	case services.OpContainsAll:
		for _, candidate := range valueList(cond.Value) {
			if !containsValue(elems, candidate) {
				return false
			}
		}
		return true
	case services.OpContainsAny:
		for _, candidate := range valueList(cond.Value) {
			if containsValue(elems, candidate) {
				return true
			}
		}
		return false
	default:
		log.Printf("Warning: unknown filter operator '%s' for field '%s'. Treating as equality.", cond.Operator, cond.Field)
		return anyEqual(elems, cond.Value)
	}
}

func cmpSatisfies(cmp int, operator string) bool {
	switch operator {
	case services.OpGt:
		return cmp > 0
	case services.OpGte:
		return cmp >= 0
	case services.OpLt:
		return cmp < 0
	case services.OpLte:
		return cmp <= 0
	}
	return false
}

func withinRange(elem interface{}, cond services.FilterCondition) bool {
	cl, ok := compareOrdered(elem, cond.Value)
	if !ok {
		return false
	}
	cu, ok := compareOrdered(elem, cond.UpperValue)
	if !ok {
		return false
	}
	lowerOK := cl > 0 || (cl == 0 && cond.IncludeLower)
	upperOK := cu < 0 || (cu == 0 && cond.IncludeUpper)
	return lowerOK && upperOK
}

// containsValue reports whether the field contains the value: membership for
// collections, case-insensitive substring for strings.
func containsValue(elems []interface{}, value interface{}) bool {
	for _, elem := range elems {
		if valuesEqual(elem, value) {
			return true
		}
		if s, isStr := elem.(string); isStr {
			if sub, isSub := value.(string); isSub {
				if strings.Contains(strings.ToLower(s), strings.ToLower(sub)) {
					return true
				}
			}
		}
	}
	return false
}

func anyEqual(elems []interface{}, value interface{}) bool {
	for _, elem := range elems {
		if valuesEqual(elem, value) {
			return true
		}
	}
	return false
}

// fieldElements flattens a field value to the elements a condition is checked
// against: the elements of an array field, or the single value itself.
func fieldElements(v interface{}) []interface{} {
	switch arr := v.(type) {
	case []interface{}:
		return arr
	case []string:
		out := make([]interface{}, len(arr))
		for i, s := range arr {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]interface{}, len(arr))
		for i, f := range arr {
			out[i] = f
		}
		return out
	case []int:
		out := make([]interface{}, len(arr))
		for i, n := range arr {
			out[i] = n
		}
		return out
	default:
		return []interface{}{v}
	}
}

// valueList normalizes the filter value of list-valued operators (in,
// contains_all, contains_any).
func valueList(v interface{}) []interface{} {
	return fieldElements(v)
}

// valuesEqual compares two values for equality: strings as strings, numbers
// across numeric types, RFC3339 timestamps as instants.
func valuesEqual(docVal, filterVal interface{}) bool {
	if docStr, isDocStr := docVal.(string); isDocStr {
		if filterStr, isFilterStr := filterVal.(string); isFilterStr {
			return docStr == filterStr
		}
	}

	if docFloat, docOk := toFloat64(docVal); docOk {
		if filterFloat, filterOk := toFloat64(filterVal); filterOk {
			return docFloat == filterFloat
		}
	}

	if docTime, docOk := toTime(docVal); docOk {
		if filterTime, filterOk := toTime(filterVal); filterOk {
			return docTime.Equal(filterTime)
		}
	}

	return reflect.DeepEqual(docVal, filterVal)
}

// compareOrdered orders two values; the second result is false when the
// values are not comparable. Numbers order numerically (numeric strings
// included), timestamps chronologically, strings lexically.
func compareOrdered(docVal, filterVal interface{}) (int, bool) {
	if docFloat, docOk := toFloat64(docVal); docOk {
		if filterFloat, filterOk := toFloat64(filterVal); filterOk {
			switch {
			case docFloat < filterFloat:
				return -1, true
			case docFloat > filterFloat:
				return 1, true
			default:
				return 0, true
			}
		}
	}

	if docTime, docOk := toTime(docVal); docOk {
		if filterTime, filterOk := toTime(filterVal); filterOk {
			switch {
			case docTime.Before(filterTime):
				return -1, true
			case docTime.After(filterTime):
				return 1, true
			default:
				return 0, true
			}
		}
	}

	if docStr, isDocStr := docVal.(string); isDocStr {
		if filterStr, isFilterStr := filterVal.(string); isFilterStr {
			return strings.Compare(docStr, filterStr), true
		}
	}

	return 0, false
}

// toFloat64 converts numeric types (and numeric strings) to float64.
func toFloat64(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// toTime converts time.Time values and RFC3339 strings to time.Time.
func toTime(val interface{}) (time.Time, bool) {
	switch v := val.(type) {
	case time.Time:
		return v, true
	case string:
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// likeMatch matches s against a SQL-style pattern: '%' is any sequence,
// '_' is any single character. Matching is case-insensitive.
func likeMatch(s, pattern string) bool {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// explainExpression appends a per-clause breakdown of the expression
// evaluation to b.
func explainExpression(doc model.Document, expr *services.FilterExpression, b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	if expr == nil {
		fmt.Fprintf(b, "%s<no filter> => true\n", indent)
		return
	}

	op := expr.Operator
	if op == "" {
		op = services.CombinatorAnd
	}
	negated := ""
	if expr.Negated {
		negated = "NOT "
	}
	fmt.Fprintf(b, "%s%s%s => %v\n", indent, negated, op, matchExpression(doc, expr))

	for i := range expr.Filters {
		cond := expr.Filters[i]
		fmt.Fprintf(b, "%s  %s %s %v => %v\n", indent, cond.Field, cond.Operator, cond.Value, matchCondition(doc, cond))
	}
	for i := range expr.Groups {
		explainExpression(doc, &expr.Groups[i], b, depth+1)
	}
}
