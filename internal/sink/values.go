// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/dbnascent/internal/metatable"
	"github.com/pdiddy/dbnascent/internal/schema"
)

// bindValue converts a record value into the Go type the column's driver
// expects. Blank strings bind as null in non-string columns.
func bindValue(c schema.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	s, isString := v.(string)
	switch c.Kind {
	case schema.KindString:
		return metatable.Str(v), nil
	case schema.KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		str := metatable.Str(v)
		return str == "1" || str == "True" || str == "true", nil
	case schema.KindInt, schema.KindBigInt:
		if !isString {
			return v, nil
		}
		if s = strings.TrimSpace(s); s == "" || s == "None" {
			return nil, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil || f != float64(int64(f)) {
				return nil, fmt.Errorf("column %s: %q is not an integer", c.Name, s)
			}
			n = int64(f)
		}
		return n, nil
	case schema.KindFloat:
		if !isString {
			return v, nil
		}
		if s = strings.TrimSpace(s); s == "" || s == "None" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %q is not a number", c.Name, s)
		}
		return f, nil
	case schema.KindDate, schema.KindTimestamp:
		if !isString {
			return v, nil
		}
		if s = strings.TrimSpace(s); s == "" || s == "None" {
			return nil, nil
		}
		return s, nil
	}
	return v, nil
}

// scanValue normalizes a value read from a driver: byte slices become
// strings and single-precision floats keep their shortest decimal form.
func scanValue(c schema.Column, v any) any {
	switch x := v.(type) {
	case []byte:
		v = string(x)
	case float32:
		f, err := strconv.ParseFloat(strconv.FormatFloat(float64(x), 'g', -1, 32), 64)
		if err == nil {
			return f
		}
		return float64(x)
	case int64:
		if c.Kind == schema.KindBool {
			return x != 0
		}
		return x
	case time.Time:
		if c.Kind == schema.KindDate {
			return time.Date(x.Year(), x.Month(), x.Day(), 0, 0, 0, 0, time.UTC)
		}
		return x
	}
	if s, ok := v.(string); ok {
		switch c.Kind {
		case schema.KindInt, schema.KindBigInt:
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		case schema.KindFloat:
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		case schema.KindBool:
			return s == "1" || s == "true" || s == "True"
		}
	}
	return v
}
