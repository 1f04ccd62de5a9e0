package quarter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func TestOf(t *testing.T) {
	tests := []struct {
		date   time.Time
		number int
		label  string
	}{
		{date(2026, time.January, 1), 1, "Q1 2026"},
		{date(2026, time.March, 31), 1, "Q1 2026"},
		{date(2026, time.April, 1), 2, "Q2 2026"},
		{date(2026, time.June, 30), 2, "Q2 2026"},
		{date(2026, time.July, 15), 3, "Q3 2026"},
		{date(2026, time.October, 1), 4, "Q4 2026"},
		{date(2026, time.December, 31), 4, "Q4 2026"},
	}

	for _, tt := range tests {
		q := Of(tt.date)
		assert.Equal(t, tt.number, q.Number, "quarter of %s", tt.date)
		assert.Equal(t, 2026, q.Year)
		assert.Equal(t, tt.label, q.Label())
	}
}

func TestStartEndNext(t *testing.T) {
	q := Quarter{Number: 3, Year: 2026}

	assert.Equal(t, date(2026, time.July, 1), q.Start())
	assert.Equal(t, date(2026, time.October, 1), q.End())
	assert.Equal(t, Quarter{Number: 4, Year: 2026}, q.Next())

	t.Run("year rollover", func(t *testing.T) {
		q4 := Quarter{Number: 4, Year: 2026}
		assert.Equal(t, Quarter{Number: 1, Year: 2027}, q4.Next())
		assert.Equal(t, date(2027, time.January, 1), q4.End())
	})
}

func TestOverdueDays(t *testing.T) {
	due := time.Date(2026, time.August, 10, 12, 0, 0, 0, time.Local)

	t.Run("not yet due", func(t *testing.T) {
		assert.Equal(t, 0, OverdueDays(due, due.Add(-time.Hour)))
		assert.Equal(t, 0, OverdueDays(due, due))
	})

	t.Run("partial day counts as one", func(t *testing.T) {
		assert.Equal(t, 1, OverdueDays(due, due.Add(time.Minute)))
		assert.Equal(t, 1, OverdueDays(due, due.Add(23*time.Hour)))
	})

	t.Run("whole days", func(t *testing.T) {
		assert.Equal(t, 1, OverdueDays(due, due.Add(24*time.Hour)))
		assert.Equal(t, 2, OverdueDays(due, due.Add(24*time.Hour+time.Second)))
		assert.Equal(t, 10, OverdueDays(due, due.Add(10*24*time.Hour)))
	})
}

func TestDaysRemaining(t *testing.T) {
	due := time.Date(2026, time.August, 10, 12, 0, 0, 0, time.Local)

	assert.Equal(t, 3, DaysRemaining(due, due.Add(-3*24*time.Hour)))
	assert.Equal(t, 0, DaysRemaining(due, due))
	assert.Equal(t, -2, DaysRemaining(due, due.Add(48*time.Hour)), "negative once past due")
}
