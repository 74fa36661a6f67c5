package merge

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/randalmurphal/eventfold/pkg/eventfold/event"
)

// GrowSet merges a set-valued payload field across a concurrent group by
// union. The merge is commutative, associative, and idempotent: no addition
// is ever lost and no arbitration is needed. The result is sorted so equal
// sets compare equal.
//
// The field may hold []string, []any of strings, or a single string.
// Events missing the field contribute nothing.
func GrowSet(group []event.Event, field string) ([]string, error) {
	if len(group) == 0 {
		return nil, ErrEmptyInput
	}
	if err := validateGroup(group); err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	for _, evt := range group {
		raw, ok := evt.Payload()[field]
		if !ok {
			continue
		}
		members, err := stringSet(raw)
		if err != nil {
			return nil, fmt.Errorf("event %s field %q: %w", evt.ID(), field, err)
		}
		for _, m := range members {
			set[m] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// Counter merges an additive numeric payload field across a concurrent
// group by summation. Summation is associative and commutative but NOT
// idempotent under duplicate delivery: callers must run the group through
// event.Canonicalize (or any dedup) first.
//
// The field may hold int, int64, float64 (whole-valued), or json.Number.
// Events missing the field contribute zero.
func Counter(group []event.Event, field string) (int64, error) {
	if len(group) == 0 {
		return 0, ErrEmptyInput
	}
	if err := validateGroup(group); err != nil {
		return 0, err
	}

	var sum int64
	for _, evt := range group {
		raw, ok := evt.Payload()[field]
		if !ok {
			continue
		}
		delta, err := intValue(raw)
		if err != nil {
			return 0, fmt.Errorf("event %s field %q: %w", evt.ID(), field, err)
		}
		sum += delta
	}
	return sum, nil
}

// stringSet coerces a payload value into set members.
func stringSet(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("set member %v is %T, want string", item, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value is %T, want string or string slice", raw)
	}
}

// intValue coerces a payload value into an integer delta.
// JSON decoding yields float64 for all numbers, so whole-valued floats
// are accepted.
func intValue(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		n := int64(v)
		if float64(n) != v {
			return 0, fmt.Errorf("value %v is not a whole number", v)
		}
		return n, nil
	case json.Number:
		return v.Int64()
	default:
		return 0, fmt.Errorf("value is %T, want integer", raw)
	}
}
