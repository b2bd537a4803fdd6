package prepare

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func daily(n int, f func(i int) float64) []models.Observation {
	out := make([]models.Observation, n)
	for i := range out {
		out[i] = models.Observation{Date: base.AddDate(0, 0, i), Value: f(i)}
	}
	return out
}

func TestPrepareRejectsShortSeries(t *testing.T) {
	_, err := New().Prepare("north", daily(29, func(i int) float64 { return 1 }))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInsufficientData)
	assert.Equal(t, "north", errs.EntityOf(err))
}

func TestPrepareRejectsSparseSeries(t *testing.T) {
	obs := daily(40, func(i int) float64 {
		if i%8 == 0 {
			return math.NaN()
		}
		return float64(i)
	})
	// 5 of 40 missing is 12.5%
	_, err := New().Prepare("north", obs)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInsufficientData)
	assert.Contains(t, err.Error(), "missing ratio")
}

func TestPrepareFillsGapsAndReindexes(t *testing.T) {
	obs := daily(60, func(i int) float64 { return float64(i) })
	obs[10].Value = math.NaN()
	obs[0].Value = math.NaN()
	// drop days 20..22 entirely and shuffle two rows
	obs = append(obs[:20], obs[23:]...)
	obs[30], obs[31] = obs[31], obs[30]
	// duplicate day 40 with a different value
	obs = append(obs, models.Observation{Date: base.AddDate(0, 0, 40).Add(6 * time.Hour), Value: 42})

	s, err := New().Prepare("north", obs)
	require.NoError(t, err)
	require.Equal(t, 60, s.Len())
	for i := range s.Values {
		assert.False(t, math.IsNaN(s.Values[i]), "index %d", i)
		assert.Equal(t, base.AddDate(0, 0, i), s.Dates[i])
	}
	assert.InDelta(t, 10.0, s.Values[10], 1e-9)
	assert.InDelta(t, 21.0, s.Values[21], 1e-9)
	assert.InDelta(t, 1.0, s.Values[0], 1e-9, "leading gap back-filled")
	assert.InDelta(t, 41.0, s.Values[40], 1e-9, "duplicates collapse to mean")
}

func TestPrepareDeterministic(t *testing.T) {
	obs := daily(45, func(i int) float64 { return math.Sin(float64(i)) })
	obs[5].Value = math.NaN()
	a, err := New().Prepare("x", obs)
	require.NoError(t, err)
	b, err := New().Prepare("x", obs)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

type fixedHolidays map[time.Time]bool

func (h fixedHolidays) IsHoliday(d time.Time) bool { return h[d] }

func TestCalendarFeatures(t *testing.T) {
	s := models.TimeSeries{Dates: []time.Time{base, base.AddDate(0, 0, 5)}, Values: []float64{1, 2}}
	cal := CalendarFeatures(s, fixedHolidays{base: true})
	require.Len(t, cal, 2)

	// 2024-01-01 is a Monday
	assert.Equal(t, 0, cal[0].DayOfWeek)
	assert.True(t, cal[0].IsHoliday)
	assert.False(t, cal[0].IsWeekend)
	assert.Equal(t, 1, cal[0].Quarter)
	assert.InDelta(t, 0.0, cal[0].DayOfWeekSin, 1e-12)

	assert.Equal(t, 5, cal[1].DayOfWeek)
	assert.True(t, cal[1].IsWeekend)
	assert.False(t, cal[1].IsHoliday)
}

func TestQualityReport(t *testing.T) {
	obs := daily(20, func(i int) float64 { return 10 })
	obs[1].Value = 0
	obs[2].Value = -3
	obs[3].Value = math.NaN()
	obs[4].Value = 500
	obs = append(obs, models.Observation{Date: base, Value: 10})

	rep := QualityReport("south", obs)
	assert.Equal(t, 21, rep.TotalRecords)
	assert.Equal(t, 1, rep.MissingValues)
	assert.Equal(t, 1, rep.ZeroValues)
	assert.Equal(t, 1, rep.NegativeValues)
	assert.Equal(t, 1, rep.DuplicateDates)
	assert.Equal(t, 20, rep.RangeDays)
	assert.Equal(t, 500.0, rep.Stats.Max)
	assert.Equal(t, 10.0, rep.Stats.Median)
	assert.GreaterOrEqual(t, rep.Outliers, 3)
	assert.Len(t, rep.Fingerprint, 16)
}
