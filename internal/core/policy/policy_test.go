package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeLimit(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		points   int
		maxLoans int
		level    string
	}{
		{0, 10, "None"},
		{4, 10, "None"},
		{5, 8, "Mild"},
		{8, 8, "Mild"},
		{9, 6, "Moderate"},
		{12, 6, "Moderate"},
		{13, 4, "Severe"},
		{19, 4, "Severe"},
		{20, 0, "Suspended"},
		{35, 0, "Suspended"},
	}

	for _, tt := range tests {
		limit := e.ComputeLimit(tt.points)
		assert.Equal(t, tt.maxLoans, limit.MaxLoans, "points=%d", tt.points)
		assert.Equal(t, tt.level, limit.Level, "points=%d", tt.points)
	}

	t.Run("negative points treated as zero", func(t *testing.T) {
		limit := e.ComputeLimit(-1)
		assert.Equal(t, 10, limit.MaxLoans)
		assert.Equal(t, "None", limit.Level)
	})

	t.Run("suspended only at the top tier", func(t *testing.T) {
		assert.False(t, e.ComputeLimit(19).Suspended())
		assert.True(t, e.ComputeLimit(20).Suspended())
	})
}

func TestPointsForReturn(t *testing.T) {
	t.Run("per overdue day", func(t *testing.T) {
		e := NewEngine()
		assert.Equal(t, 0, e.PointsForReturn(0))
		assert.Equal(t, 0, e.PointsForReturn(-1))
		assert.Equal(t, 1, e.PointsForReturn(1))
		assert.Equal(t, 10, e.PointsForReturn(10))
	})

	t.Run("flat per loan", func(t *testing.T) {
		e := NewEngineWith(nil, AccrualFlatPerLoan)
		assert.Equal(t, 0, e.PointsForReturn(0))
		assert.Equal(t, 2, e.PointsForReturn(1))
		assert.Equal(t, 2, e.PointsForReturn(30))
	})
}

func TestDerivedPoints(t *testing.T) {
	e := NewEngine()

	assert.Equal(t, 0, e.DerivedPoints(0))
	assert.Equal(t, 2, e.DerivedPoints(1))
	assert.Equal(t, 6, e.DerivedPoints(3))
	assert.Equal(t, 0, e.DerivedPoints(-1))
}

func TestNewEngineWithEmptyTiers(t *testing.T) {
	// An empty table falls back to the default tiers
	e := NewEngineWith(nil, AccrualPerOverdueDay)
	assert.Equal(t, 10, e.ComputeLimit(0).MaxLoans)
	assert.Equal(t, 0, e.ComputeLimit(25).MaxLoans)
}
