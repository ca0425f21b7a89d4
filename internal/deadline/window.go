package deadline

import (
	"fmt"
	"time"

	"github.com/laraflow/laraflow/internal/model"
)

// windowSpan is the inclusive length of a notification window.
const windowSpan = time.Hour - time.Second

// Window is an inclusive, clock-hour-aligned range of due instants.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies in [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// String formats the window for logs.
func (w Window) String() string {
	const layout = "2006-01-02 15:04:05"
	return fmt.Sprintf("[%s, %s]", w.Start.Format(layout), w.End.Format(layout))
}

// Anchor returns now shifted by the offset: forward for due-soon reminders,
// backward for overdue notices.
func Anchor(now time.Time, kind model.NotificationType, offsetHours int) time.Time {
	d := time.Duration(offsetHours) * time.Hour
	if kind == model.NotifyOverdue {
		return now.Add(-d)
	}
	return now.Add(d)
}

// HourWindow returns the clock hour in loc that contains t.
func HourWindow(t time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	// Step back from t rather than rebuilding the wall clock, so the
	// repeated hour after a fall-back transition keeps its own offset.
	start := lt.Add(-time.Duration(lt.Minute())*time.Minute -
		time.Duration(lt.Second())*time.Second -
		time.Duration(lt.Nanosecond()))
	return Window{Start: start, End: start.Add(windowSpan)}
}

// WindowFor returns the window of due instants that trigger a notification
// of kind at offsetHours when the job runs at now.
func WindowFor(now time.Time, kind model.NotificationType, offsetHours int, loc *time.Location) Window {
	return HourWindow(Anchor(now, kind, offsetHours), loc)
}
