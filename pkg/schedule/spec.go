package schedule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts five-field and six-field (leading seconds) expressions plus
// descriptors like "@daily" and "@every 1h".
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Spec is a cron expression or a structured schedule.
type Spec struct {
	Fields *Fields
	Expr   string
}

// Cron returns a spec for a cron expression.
func Cron(expr string) Spec {
	return Spec{Expr: expr}
}

// Structured returns a spec for structured fields.
func Structured(f Fields) Spec {
	return Spec{Fields: &f}
}

// IsZero reports whether the spec carries neither an expression nor fields.
func (s Spec) IsZero() bool {
	return s.Fields == nil && strings.TrimSpace(s.Expr) == ""
}

// CronString returns the canonical cron text of the spec.
func (s Spec) CronString() (string, error) {
	if s.Fields != nil {
		return ToCronString(*s.Fields)
	}
	expr := strings.TrimSpace(s.Expr)
	if expr == "" {
		return "", errors.Join(ErrInvalidSchedule, errors.New("empty expression"))
	}
	return expr, nil
}

// String returns the cron text, or a marker when the spec is invalid.
func (s Spec) String() string {
	expr, err := s.CronString()
	if err != nil {
		return "<invalid schedule>"
	}
	return expr
}

// Schedule computes occurrences of a parsed spec.
type Schedule struct {
	schedule cron.Schedule
	expr     string
}

// Parse validates the spec and returns its schedule.
func Parse(s Spec) (Schedule, error) {
	expr, err := s.CronString()
	if err != nil {
		return Schedule{}, err
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return Schedule{}, errors.Join(ErrInvalidSchedule, fmt.Errorf("parse %q: %w", expr, err))
	}
	return Schedule{schedule: sched, expr: expr}, nil
}

// Next returns the first occurrence strictly after from.
// The zero time is returned when the schedule can never fire.
func (s Schedule) Next(from time.Time) time.Time {
	if s.schedule == nil {
		return time.Time{}
	}
	return s.schedule.Next(from)
}

// Expr returns the cron text the schedule was parsed from.
func (s Schedule) Expr() string {
	return s.expr
}

// Next parses the spec and returns its first occurrence strictly after from.
func Next(s Spec, from time.Time) (time.Time, error) {
	sched, err := Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	next := sched.Next(from)
	if next.IsZero() {
		return time.Time{}, errors.Join(ErrInvalidSchedule, fmt.Errorf("%q has no future occurrence", sched.expr))
	}
	return next, nil
}

// MarshalJSON writes an expression as a string and fields as an object.
func (s Spec) MarshalJSON() ([]byte, error) {
	if s.Fields != nil {
		return json.Marshal(s.Fields)
	}
	return json.Marshal(s.Expr)
}

// UnmarshalJSON accepts a string expression or a fields object.
func (s *Spec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var f Fields
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*s = Spec{Fields: &f}
		return nil
	}
	var expr string
	if err := json.Unmarshal(data, &expr); err != nil {
		return fmt.Errorf("schedule: spec must be a string or an object: %w", err)
	}
	*s = Spec{Expr: expr}
	return nil
}
