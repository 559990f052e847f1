// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metatable

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Record is an ordered mapping of field name to scalar value. Values are
// strings, integers, floats, bools, time.Time, or nil for a null.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]any)}
}

// RecordOf builds a record from alternating key, value arguments.
// It panics on an odd argument count or a non-string key.
func RecordOf(kv ...any) *Record {
	if len(kv)%2 != 0 {
		panic("metatable: RecordOf needs key/value pairs")
	}
	r := NewRecord()
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic("metatable: RecordOf key must be a string")
		}
		r.Set(k, kv[i+1])
	}
	return r
}

// Len returns the number of fields.
func (r *Record) Len() int { return len(r.keys) }

// Keys returns the field names in insertion order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Has reports whether the field is present, null or not.
func (r *Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Get returns the value of key and whether it was present.
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Value returns the value of key, or nil when absent.
func (r *Record) Value(key string) any {
	return r.values[key]
}

// String returns the string form of the value at key. An absent key
// reads as a null.
func (r *Record) String(key string) string {
	return Str(r.values[key])
}

// Set assigns key. A new key is appended after the existing ones.
func (r *Record) Set(key string, value any) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Delete removes key if present.
func (r *Record) Delete(key string) {
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Rename moves the value of from to to, keeping the field's position.
// If to already exists elsewhere in the record it is replaced.
func (r *Record) Rename(from, to string) {
	v, ok := r.values[from]
	if !ok || from == to {
		return
	}
	if _, exists := r.values[to]; exists {
		r.Delete(to)
	}
	delete(r.values, from)
	r.values[to] = v
	for i, k := range r.keys {
		if k == from {
			r.keys[i] = to
			break
		}
	}
}

// Update copies every field of other into r, in other's order.
func (r *Record) Update(other *Record) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		r.Set(k, other.values[k])
	}
}

// Clone returns a shallow copy.
func (r *Record) Clone() *Record {
	c := &Record{
		keys:   make([]string, len(r.keys)),
		values: make(map[string]any, len(r.values)),
	}
	copy(c.keys, r.keys)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Equal reports whether both records hold the same field set with equal
// values. Field order is ignored. Numbers compare by value regardless of
// their Go type; a string never equals a number.
func (r *Record) Equal(o *Record) bool {
	if len(r.values) != len(o.values) {
		return false
	}
	for k, v := range r.values {
		ov, ok := o.values[k]
		if !ok || canonical(v) != canonical(ov) {
			return false
		}
	}
	return true
}

// Signature returns a string that is identical for two records exactly when
// Equal reports true. It is suitable as a map key.
func (r *Record) Signature() string {
	keys := make([]string, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(strconv.Quote(k))
		b.WriteByte('=')
		b.WriteString(strconv.Quote(canonical(r.values[k])))
		b.WriteByte(';')
	}
	return b.String()
}

// canonical tags a value with its comparison class so that "1" and 1 stay
// distinct while 1 and 1.0 collapse.
func canonical(v any) string {
	switch x := v.(type) {
	case nil:
		return "n:"
	case string:
		return "s:" + x
	case []byte:
		return "s:" + string(x)
	case bool:
		return "b:" + strconv.FormatBool(x)
	case time.Time:
		return "t:" + Str(x)
	}
	if f, ok := asFloat(v); ok {
		return "f:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	return "s:" + Str(v)
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return widen(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// Str renders a value the way the database build has always compared
// values: null is "None", bools are "True"/"False", floats use the shortest
// round-trip form with a trailing ".0" for integral values, and dates print
// as YYYY-MM-DD.
func Str(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(x)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return formatFloat(widen(x))
	case float64:
		return formatFloat(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	}
	return ""
}

// widen converts a single-precision value to the double with the same
// shortest decimal form, so 0.1 stored as FLOAT reads back as 0.1.
func widen(x float32) float64 {
	f, err := strconv.ParseFloat(strconv.FormatFloat(float64(x), 'g', -1, 32), 64)
	if err != nil {
		return float64(x)
	}
	return f
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if f == 0 {
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return sci
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}
