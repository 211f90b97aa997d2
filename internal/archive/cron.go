package archive

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// field matches one cron position. A nil set is the wildcard.
type field struct {
	set map[int]bool
}

func (f field) matches(v int) bool { return f.set == nil || f.set[v] }

// parseField accepts "*", "*/n", single values, ranges "a-b" and comma lists
// of those, bounded by [lo, hi].
func parseField(s string, lo, hi int) (field, error) {
	if s == "*" {
		return field{}, nil
	}
	set := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		step := 1
		if base, st, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.Atoi(st)
			if err != nil || n <= 0 {
				return field{}, fmt.Errorf("bad step %q", part)
			}
			step, part = n, base
		}
		from, to := lo, hi
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			a, b, _ := strings.Cut(part, "-")
			var err1, err2 error
			from, err1 = strconv.Atoi(a)
			to, err2 = strconv.Atoi(b)
			if err := errors.Join(err1, err2); err != nil {
				return field{}, fmt.Errorf("bad range %q: %w", part, err)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return field{}, fmt.Errorf("bad value %q: %w", part, err)
			}
			from, to = v, v
		}
		if from < lo || to > hi || from > to {
			return field{}, fmt.Errorf("%q out of range [%d,%d]", part, lo, hi)
		}
		for v := from; v <= to; v += step {
			set[v] = true
		}
	}
	return field{set: set}, nil
}

type schedule struct {
	minute, hour, dom, month, dow field
}

// parseCron parses "minute hour day-of-month month day-of-week".
func parseCron(expr string) (schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return schedule{}, fmt.Errorf("want 5 fields, got %d", len(parts))
	}
	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	var fs [5]field
	for i, p := range parts {
		f, err := parseField(p, bounds[i][0], bounds[i][1])
		if err != nil {
			return schedule{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		fs[i] = f
	}
	return schedule{minute: fs[0], hour: fs[1], dom: fs[2], month: fs[3], dow: fs[4]}, nil
}

func (s schedule) matches(t time.Time) bool {
	return s.minute.matches(t.Minute()) &&
		s.hour.matches(t.Hour()) &&
		s.dom.matches(t.Day()) &&
		s.month.matches(int(t.Month())) &&
		s.dow.matches(int(t.Weekday()))
}

// next returns the first matching minute strictly after t, searching one
// year ahead.
func (s schedule) next(t time.Time) (time.Time, error) {
	c := t.Truncate(time.Minute).Add(time.Minute)
	for limit := t.Add(366 * 24 * time.Hour); c.Before(limit); c = c.Add(time.Minute) {
		if s.matches(c) {
			return c, nil
		}
	}
	return time.Time{}, errors.New("no matching time within a year")
}
