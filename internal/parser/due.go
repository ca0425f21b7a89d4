package parser

import (
	"strings"
	"time"

	"github.com/laraflow/laraflow/internal/model"
)

// DueResult is a parsed task due date.
type DueResult struct {
	Time time.Time
	// HasTime is false when only a date was given; the task is then due at
	// the end of that day.
	HasTime bool
	Error   error
}

// ParseDue parses a due date. A bare YYYY-MM-DD yields a date without a
// time. Anything else is parsed like ParseTimestamp and truncated to the
// minute.
func ParseDue(input string, ref time.Time, loc *time.Location) DueResult {
	if loc == nil {
		loc = time.UTC
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return DueResult{Error: NewDueError(input)}
	}

	if t, err := time.ParseInLocation(model.DateLayout, input, loc); err == nil {
		return DueResult{Time: t}
	}

	res := ParseTimestamp(input, ref, loc)
	if res.Error != nil {
		return DueResult{Error: NewDueError(input)}
	}
	return DueResult{Time: res.Time.In(loc).Truncate(time.Minute), HasTime: true}
}

// ParseClock parses a time of day like "17:00" or "9:30:15".
func ParseClock(input string) (hour, minute, second int, err error) {
	t, perr := model.ParseDueTime(strings.TrimSpace(input))
	if perr != nil {
		return 0, 0, 0, NewClockError(input)
	}
	return t.Hour(), t.Minute(), t.Second(), nil
}

// CombineDue applies an explicit time of day to a due result.
func CombineDue(due DueResult, clock string, loc *time.Location) (DueResult, error) {
	if clock == "" {
		return due, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	h, m, s, err := ParseClock(clock)
	if err != nil {
		return due, err
	}
	d := due.Time.In(loc)
	return DueResult{
		Time:    time.Date(d.Year(), d.Month(), d.Day(), h, m, s, 0, loc),
		HasTime: true,
	}, nil
}
