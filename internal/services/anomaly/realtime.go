package anomaly

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"LoadCast/internal/domain/models"
	"LoadCast/pkg/logger"
)

// RecentDays is the look-back of the real-time path, counted back from each
// customer's own newest reading.
const RecentDays = 3

// RealTimeAlerts compares each customer's newest reading in its recent window
// with the mean and sample std of the readings before it in that window.
// Customers with fewer than two recent readings or a flat window are skipped.
func (d *Detector) RealTimeAlerts(readings []models.CustomerReading, threshold float64) []models.RealTimeAlert {
	if len(readings) == 0 {
		return nil
	}
	byCustomer := groupByCustomer(readings)
	ids := make([]string, 0, len(byCustomer))
	for id, rows := range byCustomer {
		byCustomer[id] = recentWindow(rows)
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := d.now().UTC()
	var alerts []models.RealTimeAlert
	for _, id := range ids {
		rows := byCustomer[id]
		if len(rows) < 2 {
			continue
		}
		prev := make([]float64, len(rows)-1)
		for i, r := range rows[:len(rows)-1] {
			prev[i] = r.Value
		}
		newest := rows[len(rows)-1]
		mean := stat.Mean(prev, nil)
		std := math.NaN()
		if len(prev) > 1 {
			std = stat.StdDev(prev, nil)
		}
		if !(std > 0) {
			continue
		}
		z := math.Abs(newest.Value-mean) / std
		if z <= threshold {
			continue
		}
		alerts = append(alerts, models.RealTimeAlert{
			CustomerID:    id,
			Region:        newest.Region,
			AlertType:     models.AlertTypeRealTime,
			Date:          newest.Date,
			LatestValue:   newest.Value,
			ExpectedRange: fmt.Sprintf("%.2f ± %.2f", mean, 2*std),
			ZScore:        z,
			AlertTime:     now,
		})
	}
	if len(alerts) > 0 {
		d.log.Info("real-time alerts raised",
			logger.Int("alerts", len(alerts)),
			logger.Float64("threshold", threshold),
		)
	}
	return alerts
}

// recentWindow keeps the date-sorted rows no older than RecentDays before the last one.
func recentWindow(rows []models.CustomerReading) []models.CustomerReading {
	if len(rows) == 0 {
		return rows
	}
	cutoff := rows[len(rows)-1].Date.AddDate(0, 0, -RecentDays)
	i := sort.Search(len(rows), func(i int) bool { return !rows[i].Date.Before(cutoff) })
	return rows[i:]
}
