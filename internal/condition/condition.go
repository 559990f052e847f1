// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package condition expands the shorthand treatment descriptions of the
// sample metadata into one condition entry per treatment.
//
// A sample carries three semicolon-joined lists of equal length:
//
//	condition_type  heat shock;drug
//	treatment       42C;flavopiridol(300nM)
//	times           0,60,min;0,1,hr
//
// Each times element is either a single token (no time window) or
// start,end,unit. A parenthesised suffix on a treatment is its
// concentration or intensity.
package condition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/dbnascent/internal/metatable"
)

// ErrParse is wrapped by every *ParseError.
var ErrParse = errors.New("treatment parsing error")

// ParseError identifies the record whose condition fields are malformed.
type ParseError struct {
	ID     string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("treatment parsing error: %s: %s", e.ID, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// Input and output field names.
const (
	KeyConditionType = "condition_type"
	KeyTreatment     = "treatment"
	KeyTimes         = "times"

	KeyConcIntens   = "conc_intens"
	KeyStartTime    = "start_time"
	KeyEndTime      = "end_time"
	KeyTimeUnit     = "time_unit"
	KeyDuration     = "duration"
	KeyDurationUnit = "duration_unit"
)

// NoTreatment is the condition type of a sample without a treatment.
const NoTreatment = "no treatment"

// Fields lists the condition fields of every entry, in order.
var Fields = []string{
	KeyConditionType, KeyTreatment, KeyConcIntens,
	KeyStartTime, KeyEndTime, KeyTimeUnit,
	KeyDuration, KeyDurationUnit,
}

// Parser expands sample records into condition entries.
type Parser struct {
	// IDKey names the field quoted in parse errors.
	IDKey string
	// Carry lists fields copied from the sample onto each of its entries.
	Carry []string
}

// Parse expands records with a Parser that names idKey in errors and
// carries nothing.
func Parse(records []*metatable.Record, idKey string) ([]*metatable.Record, error) {
	return Parser{IDKey: idKey}.Parse(records)
}

// Parse returns the condition entries of every record, in record order.
func (p Parser) Parse(records []*metatable.Record) ([]*metatable.Record, error) {
	var out []*metatable.Record
	for _, r := range records {
		entries, err := p.parseRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

func (p Parser) entry(r *metatable.Record) *metatable.Record {
	e := metatable.NewRecord()
	for _, k := range p.Carry {
		e.Set(k, r.Value(k))
	}
	for _, k := range Fields {
		e.Set(k, nil)
	}
	return e
}

func (p Parser) fail(r *metatable.Record, format string, args ...any) error {
	return &ParseError{ID: r.String(p.IDKey), Reason: fmt.Sprintf(format, args...)}
}

func (p Parser) parseRecord(r *metatable.Record) ([]*metatable.Record, error) {
	treatment := r.Value(KeyTreatment)
	if treatment == nil || metatable.Str(treatment) == "" {
		e := p.entry(r)
		e.Set(KeyConditionType, NoTreatment)
		return []*metatable.Record{e}, nil
	}

	types := strings.Split(r.String(KeyConditionType), ";")
	treatments := strings.Split(metatable.Str(treatment), ";")
	times := strings.Split(r.String(KeyTimes), ";")
	if len(types) != len(treatments) || len(types) != len(times) {
		return nil, p.fail(r, "%d condition types, %d treatments, %d times",
			len(types), len(treatments), len(times))
	}

	out := make([]*metatable.Record, 0, len(types))
	for i := range types {
		e := p.entry(r)
		e.Set(KeyConditionType, types[i])

		name, conc, hasConc := strings.Cut(treatments[i], "(")
		e.Set(KeyTreatment, name)
		if hasConc {
			conc, _, _ = strings.Cut(conc, ")")
			e.Set(KeyConcIntens, conc)
		}

		tokens := strings.Split(times[i], ",")
		switch len(tokens) {
		case 1:
		case 3:
			start, err := strconv.Atoi(strings.TrimSpace(tokens[0]))
			if err != nil {
				return nil, p.fail(r, "start time %q", tokens[0])
			}
			end, err := strconv.Atoi(strings.TrimSpace(tokens[1]))
			if err != nil {
				return nil, p.fail(r, "end time %q", tokens[1])
			}
			unit := strings.TrimSpace(tokens[2])
			duration, durationUnit := Duration(start, end, unit)
			e.Set(KeyStartTime, start)
			e.Set(KeyEndTime, end)
			e.Set(KeyTimeUnit, unit)
			e.Set(KeyDuration, duration)
			e.Set(KeyDurationUnit, durationUnit)
		default:
			return nil, p.fail(r, "time %q needs start,end,unit", times[i])
		}
		out = append(out, e)
	}
	return out, nil
}

// Duration returns end-start promoted to the coarsest unit that divides it
// exactly. Seconds promote to minutes, hours, or days; minutes to hours or
// days; hours to days. Any other unit is reported as days, unchanged.
func Duration(start, end int, unit string) (int, string) {
	d := end - start
	switch unit {
	case "s":
		switch {
		case d%86400 == 0:
			return d / 86400, "day"
		case d%3600 == 0:
			return d / 3600, "hr"
		case d%60 == 0:
			return d / 60, "min"
		}
		return d, "s"
	case "min":
		switch {
		case d%1440 == 0:
			return d / 1440, "day"
		case d%60 == 0:
			return d / 60, "hr"
		}
		return d, "min"
	case "hr":
		if d%24 == 0 {
			return d / 24, "day"
		}
		return d, "hr"
	}
	return d, "day"
}
