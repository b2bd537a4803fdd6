package anomaly

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LoadCast/internal/domain/models"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func customer(id, region string, values ...float64) []models.CustomerReading {
	out := make([]models.CustomerReading, len(values))
	for i, v := range values {
		out[i] = models.CustomerReading{CustomerID: id, Region: region, Date: day0.AddDate(0, 0, i), Value: v}
	}
	return out
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func fixedClock() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

func TestZeroVarianceRaisesNoFlags(t *testing.T) {
	res := DetectCustomer(customer("c1", "north", repeat(50, 30)...), models.SensitivityHigh.Threshold())
	assert.False(t, res.HasAnomaly)
	assert.Zero(t, res.AnomalyCount)
	assert.Zero(t, res.MaxZScore)
	assert.Zero(t, res.StdValue)
	for _, r := range res.Records {
		assert.Equal(t, models.AnomalyFlags{}, r.Flags)
	}
}

func TestTenSigmaSpikeIsFlaggedByZScoreAndIQR(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 99
		if i%2 == 1 {
			values[i] = 101
		}
	}
	values[25] = 110 // 10 std above the stable mean
	res := DetectCustomer(customer("c1", "north", values...), models.SensitivityMedium.Threshold())

	spike := res.Records[25]
	assert.True(t, spike.Flags.ZScore)
	assert.True(t, spike.Flags.IQR)
	assert.True(t, spike.Anomaly)
	assert.Contains(t, res.AnomalyDates, day0.AddDate(0, 0, 25))
	assert.False(t, res.Records[10].Flags.ZScore)
	assert.False(t, res.Records[10].Flags.IQR)
}

func TestFiveTimesLocalMeanProducesHighAlert(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 100 + 5*math.Sin(2*math.Pi*float64(i)/7)
	}
	values[20] = 5 * values[20]

	readings := append(customer("big", "east", values...), customer("calm", "west", repeat(90, 30)...)...)
	report, err := New(WithClock(fixedClock)).Analyze(context.Background(), readings, Options{Sensitivity: models.SensitivityMedium})
	require.NoError(t, err)

	big := report.AnomalyDetails["big"]
	require.NotNil(t, big)
	assert.Contains(t, big.AnomalyDates, day0.AddDate(0, 0, 20))
	assert.Contains(t, big.AnomalyValues, values[20])
	assert.Greater(t, big.MaxZScore, 3.0)

	require.NotEmpty(t, report.Alerts)
	alert := report.Alerts[0]
	assert.Equal(t, "big", alert.CustomerID)
	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Equal(t, big.MaxZScore, alert.ZScore)

	assert.False(t, report.AnomalyDetails["calm"].HasAnomaly)
	assert.Equal(t, 1, report.Summary.CustomersWithAnomalies)
	assert.Equal(t, fixedClock(), report.Summary.AnalysisDate)
}

func TestChangeTests(t *testing.T) {
	values := repeat(100, 20)
	values[10] = 160 // +60% day over day, +60% week over week
	res := DetectCustomer(customer("c1", "north", values...), models.SensitivityLow.Threshold())

	rec := res.Records[10]
	assert.True(t, rec.Flags.DailyChange)
	assert.True(t, rec.Flags.WeeklyChange)
	assert.InDelta(t, 0.6, res.MaxDailyChange, 1e-9)
	assert.InDelta(t, 0.6, res.MaxWeeklyChange, 1e-9)
	// the drop back to 100 is -37.5%: under the daily limit
	assert.False(t, res.Records[11].Flags.DailyChange)
	assert.True(t, res.Records[17].Flags.WeeklyChange)
}

func TestJumpFromZeroTripsChangeTests(t *testing.T) {
	values := repeat(0, 20)
	values[12] = 80 // meter back online after an outage
	res := DetectCustomer(customer("c1", "north", values...), models.SensitivityLow.Threshold())

	rec := res.Records[12]
	assert.True(t, rec.Flags.DailyChange)
	assert.True(t, rec.Flags.WeeklyChange)
	assert.True(t, rec.Anomaly)
	assert.False(t, res.Records[5].Flags.DailyChange, "0 to 0 is no change")
	// unbounded ratios stay out of the reported maxima
	assert.InDelta(t, 1.0, res.MaxDailyChange, 1e-9)
	assert.False(t, math.IsInf(res.MaxWeeklyChange, 0))
}

func TestShortSeriesSkipsWindowTests(t *testing.T) {
	res := DetectCustomer(customer("c1", "north", 10, 10, 10, 10, 10, 10, 30), 3)
	assert.True(t, res.Records[6].Flags.DailyChange)
	for _, r := range res.Records {
		assert.False(t, r.Flags.WeeklyChange)
	}
	assert.Zero(t, res.MaxWeeklyChange)
}

func TestReportRanksAndSummarises(t *testing.T) {
	var readings []models.CustomerReading
	readings = append(readings, customer("a", "north", repeat(300, 10)...)...)
	readings = append(readings, customer("b", "north", repeat(200, 10)...)...)
	readings = append(readings, customer("c", "south", repeat(100, 10)...)...)
	readings = append(readings, customer("tiny", "south", 1000, 1000, 1000)...)

	report, err := New().Analyze(context.Background(), readings, Options{TopN: 3})
	require.NoError(t, err)

	require.Len(t, report.TopCustomers, 3)
	assert.Equal(t, []string{"a", "tiny", "b"}, []string{
		report.TopCustomers[0].CustomerID, report.TopCustomers[1].CustomerID, report.TopCustomers[2].CustomerID,
	})
	assert.InDelta(t, 3000.0/9000*100, report.TopCustomers[0].Percentage, 0.01)
	assert.Contains(t, report.Skipped, "tiny")
	assert.NotContains(t, report.AnomalyDetails, "tiny")
	assert.NotContains(t, report.AnomalyDetails, "c")

	assert.Equal(t, 4, report.Summary.TotalCustomers)
	assert.Equal(t, 3, report.Summary.TopCustomersAnalyzed)
	assert.Empty(t, report.Alerts)

	north := report.RegionalSummary["north"]
	assert.Equal(t, 2, north.TotalCustomers)
	assert.Equal(t, 5000.0, north.TotalValue)
	assert.Equal(t, 250.0, north.AvgValue)
	assert.Equal(t, 300.0, north.MaxValue)
	assert.Equal(t, 200.0, north.MinValue)
	south := report.RegionalSummary["south"]
	assert.Equal(t, 2, south.TotalCustomers)
	assert.Equal(t, 100.0, south.MinValue)
}

func TestAlertsSortedBySeverity(t *testing.T) {
	details := map[string]*models.EntityAnomalies{
		"low":  {HasAnomaly: true, AnomalyCount: 1, AnomalyDates: []time.Time{day0}, AnomalyValues: []float64{5}, MeanValue: 4, MaxZScore: 1.2},
		"high": {HasAnomaly: true, AnomalyCount: 2, AnomalyDates: []time.Time{day0, day0.AddDate(0, 0, 1)}, AnomalyValues: []float64{1, 9}, MeanValue: 4, MaxZScore: 4.5},
		"mid":  {HasAnomaly: true, AnomalyCount: 1, AnomalyDates: []time.Time{day0}, AnomalyValues: []float64{2}, MeanValue: 4, MaxZScore: 2.5},
		"none": {},
	}
	alerts := buildAlerts(details)
	require.Len(t, alerts, 3)
	assert.Equal(t, models.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, models.SeverityMedium, alerts[1].Severity)
	assert.Equal(t, models.SeverityLow, alerts[2].Severity)

	assert.Equal(t, 9.0, alerts[0].LatestAnomalyValue)
	assert.Equal(t, day0.AddDate(0, 0, 1), alerts[0].LatestAnomalyDate)
	assert.Equal(t, 5.0, alerts[0].DeviationFromMean)
}

func TestRealTimeAlerts(t *testing.T) {
	var readings []models.CustomerReading
	readings = append(readings, customer("spiky", "east", 10, 10, 100, 102, 98, 150)...)
	readings = append(readings, customer("flat", "east", 1, 1, 50, 50, 50, 50)...)
	readings = append(readings, customer("stale", "west", 5, 7)...)

	d := New(WithClock(fixedClock))
	alerts := d.RealTimeAlerts(readings, 2.0)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, "spiky", a.CustomerID)
	assert.Equal(t, "east", a.Region)
	assert.Equal(t, models.AlertTypeRealTime, a.AlertType)
	assert.Equal(t, 150.0, a.LatestValue)
	assert.Equal(t, day0.AddDate(0, 0, 5), a.Date)
	// window is days 2..5: mean and sample std of 100, 102, 98
	assert.Equal(t, "100.00 ± 4.00", a.ExpectedRange)
	assert.InDelta(t, 25.0, a.ZScore, 1e-9)
	assert.Equal(t, fixedClock(), a.AlertTime)

	assert.Empty(t, d.RealTimeAlerts(nil, 2.0))
}

func TestRealTimeWindowIsPerCustomer(t *testing.T) {
	var readings []models.CustomerReading
	readings = append(readings, customer("early", "east", 100, 102, 98, 101, 500)...)
	readings = append(readings, customer("late", "west", repeat(40, 20)...)...)

	alerts := New(WithClock(fixedClock)).RealTimeAlerts(readings, 2.0)
	require.Len(t, alerts, 1)
	assert.Equal(t, "early", alerts[0].CustomerID)
	assert.Equal(t, day0.AddDate(0, 0, 4), alerts[0].Date)
	assert.Equal(t, 500.0, alerts[0].LatestValue)
}
