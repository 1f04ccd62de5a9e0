package quarter

import (
	"fmt"
	"time"
)

// Quarter represents one calendar quarter (Jan-Mar, Apr-Jun, Jul-Sep, Oct-Dec)
type Quarter struct {
	Number int // 1-4
	Year   int
}

// Of returns the quarter containing the given date
func Of(t time.Time) Quarter {
	return Quarter{
		Number: (int(t.Month())-1)/3 + 1,
		Year:   t.Year(),
	}
}

// Label returns the display label, e.g. "Q3 2026"
func (q Quarter) Label() string {
	return fmt.Sprintf("Q%d %d", q.Number, q.Year)
}

// Start returns the first instant of the quarter
func (q Quarter) Start() time.Time {
	month := time.Month((q.Number-1)*3 + 1)
	return time.Date(q.Year, month, 1, 0, 0, 0, 0, time.Local)
}

// End returns the first instant of the next quarter
func (q Quarter) End() time.Time {
	return q.Next().Start()
}

// Next returns the following quarter
func (q Quarter) Next() Quarter {
	if q.Number == 4 {
		return Quarter{Number: 1, Year: q.Year + 1}
	}
	return Quarter{Number: q.Number + 1, Year: q.Year}
}

// LabelOf is a shorthand for Of(t).Label()
func LabelOf(t time.Time) string {
	return Of(t).Label()
}

// OverdueDays returns how many whole days late "now" is relative to due.
// Any positive lateness counts as a full day (ceiling division).
func OverdueDays(due, now time.Time) int {
	if !now.After(due) {
		return 0
	}
	diff := now.Sub(due)
	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// DaysRemaining returns the number of whole days until due (negative if past)
func DaysRemaining(due, now time.Time) int {
	return int(due.Sub(now).Hours() / 24)
}
