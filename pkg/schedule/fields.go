package schedule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const wildcard = "*"

// Fields is a structured cron schedule. Absent fields match every value.
// Second is only rendered when set, which selects the six-field form.
type Fields struct {
	Second     Field `json:"second,omitempty"`
	Minute     Field `json:"minute,omitempty"`
	Hour       Field `json:"hour,omitempty"`
	DayOfMonth Field `json:"dayOfMonth,omitempty"`
	Month      Field `json:"month,omitempty"`
	DayOfWeek  Field `json:"dayOfWeek,omitempty"`
}

// Field is a list of values for one cron position, joined with commas.
type Field []Value

// Value is a single number or a range.
type Value struct {
	Range  *Range
	Number int
}

// Range is a span of values with an optional step.
// A nil Start is the wildcard.
type Range struct {
	Start *int
	End   *int
	Step  *int
}

// Number returns a value matching exactly n.
func Number(n int) Value {
	return Value{Number: n}
}

// Between returns a value matching start through end inclusive.
func Between(start, end int) Value {
	return Value{Range: &Range{Start: &start, End: &end}}
}

// BetweenEvery returns a value matching every step-th value from start through end.
func BetweenEvery(start, end, step int) Value {
	return Value{Range: &Range{Start: &start, End: &end, Step: &step}}
}

// Every returns a value matching every step-th value of the whole field ("*/step").
func Every(step int) Value {
	return Value{Range: &Range{Step: &step}}
}

// ToCronString renders structured fields as a cron expression. The seconds field
// is emitted first only when present.
func ToCronString(f Fields) (string, error) {
	fields := []namedField{
		{"second", f.Second},
		{"minute", f.Minute},
		{"hour", f.Hour},
		{"dayOfMonth", f.DayOfMonth},
		{"month", f.Month},
		{"dayOfWeek", f.DayOfWeek},
	}
	if len(f.Second) == 0 {
		fields = fields[1:]
	}

	parts := make([]string, 0, len(fields))
	for _, fd := range fields {
		if len(fd.field) == 0 {
			parts = append(parts, wildcard)
			continue
		}
		s, err := fd.field.cronText()
		if err != nil {
			return "", errors.Join(ErrInvalidSchedule, fmt.Errorf("field %s: %w", fd.name, err))
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " "), nil
}

type namedField struct {
	name  string
	field Field
}

func (f Field) cronText() (string, error) {
	items := make([]string, 0, len(f))
	for _, v := range f {
		s, err := v.cronText()
		if err != nil {
			return "", err
		}
		items = append(items, s)
	}
	return strings.Join(items, ","), nil
}

func (v Value) cronText() (string, error) {
	if v.Range == nil {
		if v.Number < 0 {
			return "", fmt.Errorf("negative value %d", v.Number)
		}
		return strconv.Itoa(v.Number), nil
	}
	return v.Range.cronText()
}

func (r Range) cronText() (string, error) {
	if r.Step != nil && *r.Step <= 0 {
		return "", fmt.Errorf("step must be positive, got %d", *r.Step)
	}
	if r.Start != nil && *r.Start < 0 {
		return "", fmt.Errorf("negative start %d", *r.Start)
	}

	var base string
	switch {
	case r.Start == nil && r.End != nil:
		return "", errors.New("range with an end needs a numeric start")
	case r.Start == nil:
		base = wildcard
	case r.End != nil:
		if *r.End < *r.Start {
			return "", fmt.Errorf("range end %d before start %d", *r.End, *r.Start)
		}
		base = strconv.Itoa(*r.Start) + "-" + strconv.Itoa(*r.End)
	default:
		base = strconv.Itoa(*r.Start)
	}

	if r.Step == nil {
		return base, nil
	}
	return base + "/" + strconv.Itoa(*r.Step), nil
}

// MarshalJSON writes a single value as a scalar and several values as an array.
func (f Field) MarshalJSON() ([]byte, error) {
	if len(f) == 1 {
		return json.Marshal(f[0])
	}
	return json.Marshal([]Value(f))
}

// UnmarshalJSON accepts a number, a range object or an array of those.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*f = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var values []Value
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		*f = values
		return nil
	}
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Field{v}
	return nil
}

// MarshalJSON writes a number or a range object.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Range == nil {
		return json.Marshal(v.Number)
	}
	return json.Marshal(v.Range)
}

// UnmarshalJSON accepts a number or a range object.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var r Range
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		*v = Value{Range: &r}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("schedule: field value must be a number or range: %w", err)
	}
	*v = Value{Number: n}
	return nil
}

type rangeJSON struct {
	Start json.RawMessage `json:"start,omitempty"`
	End   *int            `json:"end,omitempty"`
	Step  *int            `json:"step,omitempty"`
}

// MarshalJSON writes the wildcard start as "*".
func (r Range) MarshalJSON() ([]byte, error) {
	out := rangeJSON{End: r.End, Step: r.Step}
	if r.Start == nil {
		out.Start = json.RawMessage(`"*"`)
	} else {
		out.Start = json.RawMessage(strconv.Itoa(*r.Start))
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts a numeric start, the "*" wildcard or no start at all.
func (r *Range) UnmarshalJSON(data []byte) error {
	var in rangeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Range{End: in.End, Step: in.Step}

	start := bytes.TrimSpace(in.Start)
	if len(start) == 0 || string(start) == "null" {
		return nil
	}
	if start[0] == '"' {
		var s string
		if err := json.Unmarshal(start, &s); err != nil {
			return err
		}
		if s != wildcard {
			return fmt.Errorf("schedule: range start must be a number or %q, got %q", wildcard, s)
		}
		return nil
	}
	var n int
	if err := json.Unmarshal(start, &n); err != nil {
		return fmt.Errorf("schedule: range start: %w", err)
	}
	r.Start = &n
	return nil
}
