// Package parser parses human-entered times, due dates and list flags for
// the laraflow CLI.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/markusmobius/go-dateparser"
)

// TimestampResult holds the parsed timestamp and any error.
type TimestampResult struct {
	Time  time.Time
	Error error
}

// exactLayouts are tried before natural language.
var exactLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// relativeRegex matches signed offsets like "+5m", "-2h", "+3d".
var relativeRegex = regexp.MustCompile(`^([+-])(\d+)([smhdw])$`)

// ParseTimestamp parses an instant relative to ref. It accepts "now",
// signed offsets, explicit layouts in loc, and natural language.
func ParseTimestamp(input string, ref time.Time, loc *time.Location) TimestampResult {
	if loc == nil {
		loc = time.UTC
	}
	input = strings.TrimSpace(input)
	if input == "" || strings.EqualFold(input, "now") {
		return TimestampResult{Time: ref}
	}

	if match := relativeRegex.FindStringSubmatch(input); match != nil {
		d, err := relativeDuration(match[2], match[3])
		if err != nil {
			return TimestampResult{Error: NewTimestampError(input)}
		}
		if match[1] == "-" {
			d = -d
		}
		return TimestampResult{Time: ref.Add(d)}
	}

	for _, layout := range exactLayouts {
		if t, err := time.ParseInLocation(layout, input, loc); err == nil {
			return TimestampResult{Time: t}
		}
	}

	cfg := &dateparser.Configuration{
		CurrentTime: ref.In(loc),
	}

	result, err := dateparser.Parse(cfg, input)
	if err != nil || result.Time.IsZero() {
		return TimestampResult{Error: NewTimestampError(input)}
	}

	return TimestampResult{Time: result.Time}
}

func relativeDuration(amount, unit string) (time.Duration, error) {
	n, err := strconv.Atoi(amount)
	if err != nil {
		return 0, err
	}
	d := time.Duration(n)
	switch unit {
	case "s":
		return d * time.Second, nil
	case "m":
		return d * time.Minute, nil
	case "h":
		return d * time.Hour, nil
	case "d":
		return d * 24 * time.Hour, nil
	default:
		return d * 7 * 24 * time.Hour, nil
	}
}
