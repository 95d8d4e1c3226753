// Package evidence defines the typed evidence bag shared by the
// artifact sink (which produces it from grader output) and the proof
// engine (which consumes it). Nothing in this package does I/O.
package evidence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// MetricKind discriminates the scalar kinds a metric value can carry.
type MetricKind int

const (
	KindBool MetricKind = iota
	KindInt
	KindFloat
	KindString
)

// MetricValue is a typed scalar parsed from metrics.json or
// grader_output.json. Exactly one kind is set.
type MetricValue struct {
	kind MetricKind
	b    bool
	i    int64
	f    float64
	s    string
}

func Bool(v bool) MetricValue { return MetricValue{kind: KindBool, b: v} }

func Int(v int64) MetricValue { return MetricValue{kind: KindInt, i: v} }

func Float(v float64) MetricValue { return MetricValue{kind: KindFloat, f: v} }

func String(v string) MetricValue { return MetricValue{kind: KindString, s: v} }

// Kind returns the scalar kind of the value.
func (v MetricValue) Kind() MetricKind { return v.kind }

// AsBool returns the boolean value and whether the kind matched.
func (v MetricValue) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsInt returns an integer view of the value. Floats with an integral
// value convert; everything else reports a kind mismatch.
func (v MetricValue) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		if v.f == math.Trunc(v.f) {
			return int64(v.f), true
		}
	}
	return 0, false
}

// AsFloat returns a float view of the value; integers widen.
func (v MetricValue) AsFloat() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// AsString returns the string value and whether the kind matched.
func (v MetricValue) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// Interface returns the untyped scalar, mainly for serialization.
func (v MetricValue) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	default:
		return v.s
	}
}

// String renders the scalar for rationales and evidence refs.
func (v MetricValue) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	default:
		return v.s
	}
}

// MarshalJSON writes the underlying scalar.
func (v MetricValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON reads a scalar into the matching kind. Whole-number
// JSON numbers become integers so counters survive a round trip.
func (v *MetricValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	if err := d.Decode(&raw); err != nil {
		return err
	}
	mv, err := FromJSONValue(raw)
	if err != nil {
		return err
	}
	*v = mv
	return nil
}

// FromJSONValue converts a decoded JSON scalar into a MetricValue.
// json.Number inputs keep integer precision.
func FromJSONValue(raw interface{}) (MetricValue, error) {
	switch t := raw.(type) {
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return MetricValue{}, fmt.Errorf("unparseable number %q", t.String())
		}
		return Float(f), nil
	case float64:
		if t == math.Trunc(t) {
			return Int(int64(t)), nil
		}
		return Float(t), nil
	default:
		return MetricValue{}, fmt.Errorf("unsupported metric value type %T", raw)
	}
}

// Metrics is the keyed dictionary of scalars produced by one run.
// Missing keys mean "unknown", never false or zero.
type Metrics map[string]MetricValue

// GetBool looks up a boolean metric.
func (m Metrics) GetBool(key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	return v.AsBool()
}

// GetInt looks up an integer metric.
func (m Metrics) GetInt(key string) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	return v.AsInt()
}

// GetFloat looks up a numeric metric as a float.
func (m Metrics) GetFloat(key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	return v.AsFloat()
}

// GetString looks up a string metric.
func (m Metrics) GetString(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	return v.AsString()
}

// Merge shallow-merges other on top of m, returning the result.
// Keys in other win, matching how grader_output metrics override
// metrics.json values.
func (m Metrics) Merge(other Metrics) Metrics {
	out := make(Metrics, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Keys returns the metric keys in sorted order for stable logging.
func (m Metrics) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseMetrics decodes a flat JSON object into a Metrics dictionary.
// Nested objects and arrays are rejected key by key rather than
// failing the whole document.
func ParseMetrics(data []byte) (Metrics, error) {
	var raw map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	if err := d.Decode(&raw); err != nil {
		return nil, fmt.Errorf("metrics document is not a JSON object: %w", err)
	}

	out := make(Metrics, len(raw))
	for k, rv := range raw {
		mv, err := FromJSONValue(rv)
		if err != nil {
			continue // non-scalar entry, skip
		}
		out[k] = mv
	}
	return out, nil
}

// WriteMetrics encodes a Metrics dictionary as a flat JSON object.
func WriteMetrics(m Metrics) ([]byte, error) {
	return json.Marshal(m)
}
