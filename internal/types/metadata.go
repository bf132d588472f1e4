package types

import (
	"encoding/json"
	"fmt"
)

// ValueKind tags the dynamic type a MetadataValue carries, replacing the source
// language's dynamic typing with an explicit tagged union (spec.md §9) so the
// Property-Schema Split can preserve exact types across round-trip.
type ValueKind string

const (
	KindBool   ValueKind = "bool"
	KindInt    ValueKind = "int"
	KindFloat  ValueKind = "float"
	KindString ValueKind = "string"
	KindList   ValueKind = "list"
	KindMap    ValueKind = "map"
)

// MetadataValue is a single typed metadata value. Exactly one of the typed
// fields is meaningful, selected by Kind.
type MetadataValue struct {
	Kind ValueKind
	B    bool
	I    int64
	F    float64
	S    string
	L    []MetadataValue
	M    map[string]MetadataValue
}

func BoolValue(b bool) MetadataValue     { return MetadataValue{Kind: KindBool, B: b} }
func IntValue(i int64) MetadataValue     { return MetadataValue{Kind: KindInt, I: i} }
func FloatValue(f float64) MetadataValue { return MetadataValue{Kind: KindFloat, F: f} }
func StringValue(s string) MetadataValue { return MetadataValue{Kind: KindString, S: s} }
func ListValue(l []MetadataValue) MetadataValue {
	return MetadataValue{Kind: KindList, L: l}
}
func MapValue(m map[string]MetadataValue) MetadataValue {
	return MetadataValue{Kind: KindMap, M: m}
}

// FromJSON converts a decoded json.Unmarshal(any) tree into typed MetadataValues.
// Numbers decode to KindFloat unless they have no fractional part and fit an
// int64 exactly, in which case they decode to KindInt — this is the boundary
// where JSON's single number type is split back into the bool/int/float/string
// distinction the Property-Schema Split requires.
func FromJSON(v interface{}) (MetadataValue, error) {
	switch val := v.(type) {
	case nil:
		return MetadataValue{Kind: KindString, S: ""}, nil
	case bool:
		return BoolValue(val), nil
	case string:
		return StringValue(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return IntValue(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return MetadataValue{}, fmt.Errorf("metadata value %q is not a number: %w", val, err)
		}
		return FloatValue(f), nil
	case float64:
		if val == float64(int64(val)) {
			return IntValue(int64(val)), nil
		}
		return FloatValue(val), nil
	case []interface{}:
		out := make([]MetadataValue, 0, len(val))
		for _, item := range val {
			mv, err := FromJSON(item)
			if err != nil {
				return MetadataValue{}, err
			}
			out = append(out, mv)
		}
		return ListValue(out), nil
	case map[string]interface{}:
		out := make(map[string]MetadataValue, len(val))
		for k, item := range val {
			mv, err := FromJSON(item)
			if err != nil {
				return MetadataValue{}, err
			}
			out[k] = mv
		}
		return MapValue(out), nil
	default:
		return MetadataValue{}, fmt.Errorf("unsupported metadata value type %T", v)
	}
}

// ToJSON converts a MetadataValue back to a plain interface{} suitable for
// json.Marshal, restoring the original int/float/bool/string/list/map shape.
func (v MetadataValue) ToJSON() interface{} {
	switch v.Kind {
	case KindBool:
		return v.B
	case KindInt:
		return v.I
	case KindFloat:
		return v.F
	case KindString:
		return v.S
	case KindList:
		out := make([]interface{}, len(v.L))
		for i, item := range v.L {
			out[i] = item.ToJSON()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.M))
		for k, item := range v.M {
			out[k] = item.ToJSON()
		}
		return out
	default:
		return nil
	}
}

// MetadataFromMap converts a whole decoded JSON object into a typed metadata map.
func MetadataFromMap(raw map[string]interface{}) (map[string]MetadataValue, error) {
	out := make(map[string]MetadataValue, len(raw))
	for k, v := range raw {
		mv, err := FromJSON(v)
		if err != nil {
			return nil, fmt.Errorf("metadata key %q: %w", k, err)
		}
		out[k] = mv
	}
	return out, nil
}

// MetadataToMap converts a typed metadata map back into plain JSON-able values.
func MetadataToMap(md map[string]MetadataValue) map[string]interface{} {
	out := make(map[string]interface{}, len(md))
	for k, v := range md {
		out[k] = v.ToJSON()
	}
	return out
}

// MergeMetadata merges src into dst; src values win on key collision. Used by
// update_memory_block's merge_metadata flag (spec.md §4.5 Patch semantics).
func MergeMetadata(dst, src map[string]MetadataValue) map[string]MetadataValue {
	out := make(map[string]MetadataValue, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}
