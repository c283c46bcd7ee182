// Package schedule turns a cron expression into intervals anchored at a
// workflow's start date. The interval opening at logical date L closes at
// the next schedule boundary after L, and its run is due from then on.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/lakehouse/internal/common"
	"github.com/robfig/cron/v3"
)

const minEvery = time.Second

// Interval is a parsed schedule. Cron specs without a TZ= prefix are
// evaluated in the location of the times passed in, UTC everywhere in
// this module. "@every" schedules count from the start date.
type Interval struct {
	Expr  string
	sched cron.Schedule
	every time.Duration
}

// Parse accepts standard five-field cron specs and the descriptors cron
// understands (@hourly, @daily, @weekly, "@every <duration>", ...).
func Parse(expr string) (Interval, error) {
	e := strings.TrimSpace(expr)
	if e == "" {
		return Interval{}, fmt.Errorf("%w: empty schedule", common.ErrInvalidConfig)
	}

	sched, err := cron.ParseStandard(e)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: schedule %q: %v", common.ErrInvalidConfig, expr, err)
	}

	iv := Interval{Expr: e, sched: sched}
	if c, ok := sched.(cron.ConstantDelaySchedule); ok {
		// cron silently rounds anything below a second up to one.
		d, _ := time.ParseDuration(strings.TrimPrefix(e, "@every "))
		if d < minEvery {
			return Interval{}, fmt.Errorf("%w: schedule %q: period must be at least %s", common.ErrInvalidConfig, expr, minEvery)
		}
		iv.every = c.Delay
	}
	return iv, nil
}

// First returns the logical date of the first interval: the first boundary
// at or after start.
func (i Interval) First(start time.Time) time.Time {
	if i.every > 0 {
		return start
	}
	return i.sched.Next(start.Add(-time.Nanosecond))
}

// Next returns the first boundary strictly after t. Boundaries before the
// first interval do not exist.
func (i Interval) Next(start, t time.Time) time.Time {
	if i.every > 0 {
		if t.Before(start) {
			return start
		}
		n := t.Sub(start) / i.every
		return start.Add((n + 1) * i.every)
	}

	if first := i.First(start); t.Before(first) {
		return first
	}
	return i.sched.Next(t)
}

// LatestDue returns the logical date of the most recent interval that has
// closed by now. Earlier intervals are never reported (no catch-up).
func (i Interval) LatestDue(start, now time.Time) (time.Time, bool) {
	first := i.First(start)
	if now.Before(i.Next(start, first)) {
		return time.Time{}, false
	}
	closedAt := i.prev(start, now)
	return i.prev(start, closedAt.Add(-time.Nanosecond)), true
}

// NextBoundary returns the first instant after now at which a new
// interval closes.
func (i Interval) NextBoundary(start, now time.Time) time.Time {
	if first := i.First(start); now.Before(first) {
		return i.Next(start, first)
	}
	return i.Next(start, now)
}

// prev returns the latest boundary at or before t, which must not be
// earlier than First(start). cron cannot step backwards, so it looks back
// over a doubling window and then walks forward.
func (i Interval) prev(start, t time.Time) time.Time {
	first := i.First(start)
	step := i.Next(start, first).Sub(first)

	from := first
	for w := step; ; w *= 2 {
		lo := t.Add(-w)
		if !lo.After(first) {
			break
		}
		if c := i.Next(start, lo); !c.After(t) {
			from = c
			break
		}
	}

	for {
		n := i.Next(start, from)
		if n.After(t) {
			return from
		}
		from = n
	}
}
