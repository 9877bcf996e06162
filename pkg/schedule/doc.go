// Package schedule converts schedule descriptions into next-occurrence times.
//
// A [Spec] is either a cron expression or a structured [Fields] value. Structured
// schedules are rendered to canonical cron text with [ToCronString] and parsed with
// robfig/cron, so both forms share one parser:
//
//	spec := schedule.Structured(schedule.Fields{
//	    Minute: schedule.Field{schedule.Every(5)},
//	    Hour:   schedule.Field{schedule.Number(1), schedule.Number(2), schedule.Number(3)},
//	})
//	expr, _ := spec.CronString() // "*/5 1,2,3 * * *"
//
//	next, err := schedule.Next(spec, time.Now())
//
// Expressions may have five fields or six with a leading seconds field, and
// descriptors such as "@hourly" or "@every 90s" are accepted in string form.
//
// Both forms round-trip through JSON the same way they are written by hand: a
// string for an expression, an object for structured fields, where each field is a
// number, a range object ({"start": 0, "end": 10, "step": 2}, start may be "*") or
// an array of those.
package schedule
