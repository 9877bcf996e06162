package schedule

import "errors"

// ErrInvalidSchedule is returned when a structured schedule is malformed or a
// cron expression cannot be parsed. It is never transient.
var ErrInvalidSchedule = errors.New("schedule: invalid schedule")
