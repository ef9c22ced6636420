// Package ftm models the FollowTheMoney vocabulary used across the
// investigation graph: multi-valued entity properties, the schema
// catalog, and the normalization rules applied before persistence.
package ftm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Properties is the multi-valued property map carried by every entity
// and edge. Keys are FTM property names, values are ordered lists of
// strings. The zero value is usable for reads.
type Properties map[string][]string

// Get returns the value list for key, or nil when absent.
func (p Properties) Get(key string) []string {
	if p == nil {
		return nil
	}
	return p[key]
}

// First returns the first value for key, or the empty string.
func (p Properties) First(key string) string {
	values := p.Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Has reports whether key holds at least one value.
func (p Properties) Has(key string) bool {
	return len(p.Get(key)) > 0
}

// Set replaces the value list for key.
func (p Properties) Set(key string, values ...string) {
	p[key] = values
}

// Add appends values to key, keeping existing entries.
func (p Properties) Add(key string, values ...string) {
	p[key] = append(p[key], values...)
}

// Keys returns the property names in sorted order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy.
func (p Properties) Clone() Properties {
	if p == nil {
		return Properties{}
	}
	out := make(Properties, len(p))
	for key, values := range p {
		out[key] = append([]string(nil), values...)
	}
	return out
}

// Merge folds other into p key-wise, appending only values not already
// present under the key. Value comparison is exact.
func (p Properties) Merge(other Properties) {
	for _, key := range other.Keys() {
		for _, value := range other[key] {
			if containsString(p[key], value) {
				continue
			}
			p[key] = append(p[key], value)
		}
	}
}

// Normalize returns a copy with empty values and empty lists dropped.
func (p Properties) Normalize() Properties {
	out := make(Properties, len(p))
	for key, values := range p {
		kept := make([]string, 0, len(values))
		for _, value := range values {
			if value != "" {
				kept = append(kept, value)
			}
		}
		if len(kept) > 0 {
			out[key] = kept
		}
	}
	return out
}

// UnmarshalJSON accepts the lenient wire forms seen in ingest payloads:
// scalars are promoted to one-element lists, null becomes an empty list,
// and numeric or boolean list members are stringified. Object values are
// rejected with a SchemaError naming the offending key.
func (p *Properties) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Properties, len(raw))
	for key, value := range raw {
		values, err := decodeValueList(key, value)
		if err != nil {
			return err
		}
		out[key] = values
	}
	*p = out
	return nil
}

func decodeValueList(key string, data json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return []string{}, nil
	}
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, NewSchemaError("Property '%s' must be a list of strings", key)
		}
		values := make([]string, 0, len(items))
		for _, item := range items {
			value, ok := decodeScalar(item)
			if !ok {
				return nil, NewSchemaError("Property '%s' must be a list of strings", key)
			}
			if value != nil {
				values = append(values, *value)
			}
		}
		return values, nil
	}
	value, ok := decodeScalar(trimmed)
	if !ok {
		return nil, NewSchemaError("Property '%s' must be a list of strings", key)
	}
	if value == nil {
		return []string{}, nil
	}
	return []string{*value}, nil
}

// decodeScalar renders one JSON scalar as text. It returns (nil, true)
// for null and (nil, false) for objects and nested arrays.
func decodeScalar(data json.RawMessage) (*string, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, true
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, false
		}
		return &s, true
	case '{', '[':
		return nil, false
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return nil, false
		}
		s := strconv.FormatBool(b)
		return &s, true
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return nil, false
		}
		s := n.String()
		return &s, true
	}
}

// FromRaw converts an untyped value map into Properties using the same
// promotion rules as UnmarshalJSON. Non-list scalars become one-element
// lists and every member is stringified.
func FromRaw(raw map[string]interface{}) Properties {
	out := make(Properties, len(raw))
	for key, value := range raw {
		out[key] = stringifyValues(value)
	}
	return out
}

func stringifyValues(value interface{}) []string {
	switch typed := value.(type) {
	case nil:
		return []string{}
	case []string:
		return append([]string(nil), typed...)
	case []interface{}:
		values := make([]string, 0, len(typed))
		for _, item := range typed {
			if item == nil {
				continue
			}
			values = append(values, stringifyScalar(item))
		}
		return values
	default:
		return []string{stringifyScalar(typed)}
	}
}

func stringifyScalar(value interface{}) string {
	switch typed := value.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}

func containsString(values []string, want string) bool {
	for _, value := range values {
		if value == want {
			return true
		}
	}
	return false
}
