// Package scheduler implements the background Scheduler (spec §4.7):
// cron-triggered and filesystem-triggered plan firing, serialized
// per-plan-name so two firings of the same plan never mutate a
// project concurrently.
package scheduler

import (
	"strconv"
	"strings"
	"time"
)

// CronSpec is a parsed five-field cron expression (minute hour
// day-of-month month day-of-week). Adapted from the teacher's
// pkg/ralph/schedule.go CronSpec/ParseCron/Matches — the teacher
// hand-rolls cron parsing for the identical problem (firing scheduled
// work on an expression) rather than reaching for a library, so this
// keeps that idiom instead of introducing one.
type CronSpec struct {
	minute     fieldSpec
	hour       fieldSpec
	dayOfMonth fieldSpec
	month      fieldSpec
	dayOfWeek  fieldSpec
	loc        *time.Location
}

type fieldSpec struct {
	all      bool
	interval int
	values   []int
	ranges   [][2]int
}

// CronParseError reports a malformed cron expression or timezone name.
type CronParseError struct {
	Expr   string
	Reason string
}

func (e *CronParseError) Error() string {
	return "invalid cron expression: " + e.Expr + ": " + e.Reason
}

// ParseCron parses expr under the named IANA timezone (empty defaults
// to UTC, per spec §4.7).
func ParseCron(expr, timezone string) (*CronSpec, error) {
	loc := time.UTC
	if strings.TrimSpace(timezone) != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, &CronParseError{Expr: timezone, Reason: "unknown timezone"}
		}
		loc = l
	}

	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return nil, &CronParseError{Expr: expr, Reason: "expected 5 fields"}
	}

	spec := &CronSpec{loc: loc}
	var err error
	if spec.minute, err = parseField(parts[0], 0, 59); err != nil {
		return nil, err
	}
	if spec.hour, err = parseField(parts[1], 0, 23); err != nil {
		return nil, err
	}
	if spec.dayOfMonth, err = parseField(parts[2], 1, 31); err != nil {
		return nil, err
	}
	if spec.month, err = parseField(parts[3], 1, 12); err != nil {
		return nil, err
	}
	if spec.dayOfWeek, err = parseField(parts[4], 0, 6); err != nil {
		return nil, err
	}
	return spec, nil
}

func parseField(s string, min, max int) (fieldSpec, error) {
	spec := fieldSpec{}

	if s == "*" {
		spec.all = true
		return spec, nil
	}

	if strings.HasPrefix(s, "*/") {
		n, err := strconv.Atoi(s[2:])
		if err != nil || n <= 0 {
			return spec, &CronParseError{Expr: s, Reason: "invalid interval"}
		}
		spec.interval = n
		return spec, nil
	}

	for _, part := range strings.Split(s, ",") {
		if strings.Contains(part, "-") {
			rangeParts := strings.Split(part, "-")
			if len(rangeParts) != 2 {
				return spec, &CronParseError{Expr: s, Reason: "invalid range"}
			}
			start, err1 := strconv.Atoi(rangeParts[0])
			end, err2 := strconv.Atoi(rangeParts[1])
			if err1 != nil || err2 != nil || start > end || start < min || end > max {
				return spec, &CronParseError{Expr: s, Reason: "invalid range values"}
			}
			spec.ranges = append(spec.ranges, [2]int{start, end})
		} else {
			v, err := strconv.Atoi(part)
			if err != nil || v < min || v > max {
				return spec, &CronParseError{Expr: s, Reason: "invalid value"}
			}
			spec.values = append(spec.values, v)
		}
	}
	return spec, nil
}

// Matches reports whether t, converted into the spec's timezone,
// satisfies every field.
func (c *CronSpec) Matches(t time.Time) bool {
	if c == nil {
		return false
	}
	t = t.In(c.loc)
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dayOfMonth.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dayOfWeek.matches(int(t.Weekday()))
}

func (f fieldSpec) matches(value int) bool {
	if f.all {
		return true
	}
	if f.interval > 0 {
		return value%f.interval == 0
	}
	for _, v := range f.values {
		if v == value {
			return true
		}
	}
	for _, r := range f.ranges {
		if value >= r[0] && value <= r[1] {
			return true
		}
	}
	return false
}
