package billing

import "time"

// Window is a half-open billing period [Begin, End). A frame belongs to the
// window that contains its begin timestamp, so a frame ending exactly on the
// next period's start is never counted twice.
type Window struct {
	Begin time.Time
	End   time.Time
}

// MonthStart returns the start of t's calendar month in UTC.
func MonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NextMonthStart returns the start of the month after t's in UTC.
func NextMonthStart(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, 0)
}

// CurrentMonthWindow returns the window covering the calendar month of t.
func CurrentMonthWindow(t time.Time) Window {
	return Window{Begin: MonthStart(t), End: NextMonthStart(t)}
}

// ResolveWindow fills missing query boundaries: a nil begin defaults to the
// start of the current calendar month, a nil end to the start of the next
// one. All defaults use UTC regardless of the server's local zone.
func ResolveWindow(begin, end *time.Time) Window {
	return ResolveWindowAt(begin, end, time.Now())
}

// ResolveWindowAt is ResolveWindow with an explicit reference clock.
func ResolveWindowAt(begin, end *time.Time, now time.Time) Window {
	w := Window{}
	if begin != nil {
		w.Begin = *begin
	} else {
		w.Begin = MonthStart(now)
	}
	if end != nil {
		w.End = *end
	} else {
		w.End = NextMonthStart(now)
	}
	return w
}

// Contains reports whether t falls inside the half-open window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Begin) && t.Before(w.End)
}

// IsZero reports whether both boundaries are unset.
func (w Window) IsZero() bool {
	return w.Begin.IsZero() && w.End.IsZero()
}

// Equal reports whether both windows cover the same period.
func (w Window) Equal(other Window) bool {
	return w.Begin.Equal(other.Begin) && w.End.Equal(other.End)
}
