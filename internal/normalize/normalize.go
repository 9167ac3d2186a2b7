// Package normalize reconciles the legacy backend's loose row shapes into
// the canonical schema each endpoint exposes.
//
// The backend returns JSON shaped inconsistently: sometimes a bare array,
// sometimes {rows:[...]}, with column names in upper- and lower-case
// variants and numbers arriving as strings, numbers, or null. One schema
// per endpoint declares the canonical field names and the ordered backend
// key candidates; a single generic coalescing pass does the rest.
package normalize

import (
	"math"
	"strconv"
	"strings"
)

// LooseNumber is a float64 that marshals NaN and infinities as JSON null.
// encoding/json refuses non-finite values outright, while the dashboard's
// previous serializer emitted null for them; unguarded fields keep that
// wire behavior so one garbage column cannot blank a whole response.
type LooseNumber float64

// IsNaN reports whether the value is NaN.
func (n LooseNumber) IsNaN() bool {
	return math.IsNaN(float64(n))
}

// MarshalJSON implements json.Marshaler.
func (n LooseNumber) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'f', -1, 64), nil
}

// ExtractRows pulls a homogeneous row list out of a backend envelope.
//
//   - bare JSON array → returned verbatim
//   - object with a "rows" array → that array
//   - anything else → empty list
//
// It never errors. Callers cannot distinguish a backend that legitimately
// returned zero rows from an unrecognized envelope shape; the legacy
// contract collapses both to empty.
func ExtractRows(parsed any) []any {
	switch v := parsed.(type) {
	case []any:
		return v
	case map[string]any:
		if rows, ok := v["rows"].([]any); ok {
			return rows
		}
	}
	return []any{}
}

// Kind selects the coercion applied to a coalesced value.
type Kind int

const (
	// String stringifies the first non-absent candidate, defaulting to "".
	String Kind = iota
	// Raw passes the first non-absent candidate through untouched ("" when absent).
	Raw
	// Number applies the legacy numeric coercion; garbage stays NaN
	// internally and serializes as null (see LooseNumber).
	Number
	// NumberGuarded is Number with a finiteness guard falling back to 0.
	// Some legacy columns legitimately carry non-numeric garbage; whether a
	// field is guarded is part of each endpoint's contract.
	NumberGuarded
)

// Field maps one canonical field to its backend key candidates, in
// precedence order (upper-case name before the lower-case variant).
type Field struct {
	Name string
	Keys []string
	Kind Kind
}

// Schema is the declarative alias table for one endpoint.
type Schema []Field

// Apply normalizes one backend row. Non-object rows coalesce as all-absent.
func (s Schema) Apply(row any) map[string]any {
	obj, _ := row.(map[string]any)
	out := make(map[string]any, len(s))
	for _, f := range s {
		v, ok := lookup(obj, f.Keys)
		switch f.Kind {
		case Raw:
			if !ok {
				v = ""
			}
			out[f.Name] = v
		case Number:
			out[f.Name] = LooseNumber(ToNumber(v))
		case NumberGuarded:
			out[f.Name] = FiniteNumber(v)
		default:
			out[f.Name] = toString(v, ok)
		}
	}
	return out
}

// ApplyAll normalizes every row of an extracted list.
func (s Schema) ApplyAll(rows []any) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.Apply(row))
	}
	return out
}

// lookup returns the first candidate key that is present with a non-null
// value, mirroring the `a ?? b ?? ...` chains of the original dashboard.
func lookup(obj map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// ToNumber mirrors the legacy `Number(v ?? 0)` coercion:
// absent and null become 0, the empty string becomes 0, numeric strings
// parse, booleans map to 0/1, and anything else is NaN.
func ToNumber(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return n
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		t := strings.TrimSpace(n)
		if t == "" {
			return 0
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// FiniteNumber is ToNumber with a finiteness guard: NaN and infinities
// collapse to 0.
func FiniteNumber(v any) float64 {
	n := ToNumber(v)
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

func toString(v any, ok bool) string {
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
