// internal/scheduler/window.go
package scheduler

import "time"

// SlotSeconds is the reporting cadence while active.
const SlotSeconds = 300

// Window is the active part of the day, in local hours: [Start, Stop).
type Window struct {
	Start int
	Stop  int
}

// Active reports whether t falls inside the window.
func (w Window) Active(t time.Time) bool {
	h := t.Hour()
	return w.Start <= h && h < w.Stop
}

// UntilWindow is how long to sleep from t until the window opens.
// Minute resolution; zero when t is already inside the window.
func (w Window) UntilWindow(t time.Time) time.Duration {
	h, m := t.Hour(), t.Minute()

	var minutes int
	switch {
	case h >= w.Stop:
		// before midnight
		minutes = (w.Start-h+24)*60 - m
	case h < w.Start:
		// after midnight
		minutes = (w.Start-h)*60 - m
	default:
		return 0
	}
	return time.Duration(minutes) * time.Minute
}

// UntilNextSlot aligns the next cycle to the next 5-minute boundary.
func UntilNextSlot(t time.Time) time.Duration {
	secs := SlotSeconds - (t.Minute()%5)*60 - t.Second()
	return time.Duration(secs) * time.Second
}
