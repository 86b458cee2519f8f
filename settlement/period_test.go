package settlement_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/settlement-engine/settlement"
)

func TestDate_ParseAndString(t *testing.T) {
	date, err := settlement.ParseDate("2025-07-31")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-31", date.String())

	_, err = settlement.ParseDate("31/07/2025")
	assert.Error(t, err)
}

func TestDate_Comparisons(t *testing.T) {
	a := settlement.NewDate(2025, time.July, 1)
	b := settlement.NewDate(2025, time.July, 2)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.Equal(a))
	assert.True(t, a.BeforeOrEqual(a))
	assert.True(t, b.AfterOrEqual(a))
}

func TestDate_IgnoresTimeOfDay(t *testing.T) {
	morning := settlement.DateOf(time.Date(2025, time.July, 1, 8, 30, 0, 0, time.UTC))
	evening := settlement.DateOf(time.Date(2025, time.July, 1, 23, 59, 59, 0, time.UTC))
	assert.True(t, morning.Equal(evening))
}

func TestPeriod_Contains_InclusiveBounds(t *testing.T) {
	p := settlement.Period{
		Start: settlement.NewDate(2025, time.July, 1),
		End:   settlement.NewDate(2025, time.July, 31),
	}

	assert.True(t, p.Contains(p.Start))
	assert.True(t, p.Contains(p.End))
	assert.True(t, p.Contains(settlement.NewDate(2025, time.July, 15)))
	assert.False(t, p.Contains(settlement.NewDate(2025, time.June, 30)))
	assert.False(t, p.Contains(settlement.NewDate(2025, time.August, 1)))
}

func TestPeriod_Validate(t *testing.T) {
	ok := settlement.Period{
		Start: settlement.NewDate(2025, time.July, 1),
		End:   settlement.NewDate(2025, time.July, 31),
	}
	assert.NoError(t, ok.Validate())

	// Single-day period is legal.
	single := settlement.Period{Start: ok.Start, End: ok.Start}
	assert.NoError(t, single.Validate())

	backwards := settlement.Period{Start: ok.End, End: ok.Start}
	assert.ErrorIs(t, backwards.Validate(), settlement.ErrInvalidPeriod)
}

func TestMonthOf(t *testing.T) {
	p := settlement.MonthOf(settlement.NewDate(2025, time.February, 14))
	assert.Equal(t, "2025-02-01", p.Start.String())
	assert.Equal(t, "2025-02-28", p.End.String())

	// Leap year.
	p = settlement.MonthOf(settlement.NewDate(2024, time.February, 1))
	assert.Equal(t, "2024-02-29", p.End.String())

	// December rolls into the next year correctly.
	p = settlement.MonthOf(settlement.NewDate(2025, time.December, 31))
	assert.Equal(t, "2025-12-01", p.Start.String())
	assert.Equal(t, "2025-12-31", p.End.String())
}
