package anomaly

import (
	"math"
	"sort"

	"LoadCast/internal/domain/models"
)

func groupByCustomer(readings []models.CustomerReading) map[string][]models.CustomerReading {
	out := make(map[string][]models.CustomerReading)
	for _, r := range readings {
		out[r.CustomerID] = append(out[r.CustomerID], r)
	}
	for _, rows := range out {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	}
	return out
}

// topEntities ranks customers by total value, largest first, ties by ID, and
// keeps n. Percentages are of the grand total, rounded to two decimals.
func topEntities(byCustomer map[string][]models.CustomerReading, n int) []models.TopEntity {
	all := make([]models.TopEntity, 0, len(byCustomer))
	grand := 0.0
	for id, rows := range byCustomer {
		total := 0.0
		for _, r := range rows {
			total += r.Value
		}
		grand += total
		all = append(all, models.TopEntity{CustomerID: id, TotalValue: total})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].TotalValue != all[j].TotalValue {
			return all[i].TotalValue > all[j].TotalValue
		}
		return all[i].CustomerID < all[j].CustomerID
	})
	if len(all) > n {
		all = all[:n]
	}
	for i := range all {
		if grand != 0 {
			all[i].Percentage = math.Round(all[i].TotalValue/grand*100*100) / 100
		}
	}
	return all
}

func regionalSummary(readings []models.CustomerReading) map[string]models.RegionalStats {
	type acc struct {
		customers map[string]struct{}
		stats     models.RegionalStats
		count     int
	}
	regions := make(map[string]*acc)
	for _, r := range readings {
		a, ok := regions[r.Region]
		if !ok {
			a = &acc{customers: make(map[string]struct{}), stats: models.RegionalStats{MaxValue: r.Value, MinValue: r.Value}}
			regions[r.Region] = a
		}
		a.customers[r.CustomerID] = struct{}{}
		a.stats.TotalValue += r.Value
		a.stats.MaxValue = math.Max(a.stats.MaxValue, r.Value)
		a.stats.MinValue = math.Min(a.stats.MinValue, r.Value)
		a.count++
	}
	out := make(map[string]models.RegionalStats, len(regions))
	for region, a := range regions {
		s := a.stats
		s.TotalCustomers = len(a.customers)
		s.AvgValue = s.TotalValue / float64(a.count)
		out[region] = s
	}
	return out
}

// buildAlerts emits one alert per customer with anomalies, sorted high to low
// severity, then by customer ID.
func buildAlerts(details map[string]*models.EntityAnomalies) []models.Alert {
	alerts := make([]models.Alert, 0)
	for id, res := range details {
		if !res.HasAnomaly || res.AnomalyCount == 0 {
			continue
		}
		last := len(res.AnomalyDates) - 1
		latest := res.AnomalyValues[last]
		alerts = append(alerts, models.Alert{
			CustomerID:         id,
			Severity:           severityOf(res.MaxZScore),
			AnomalyCount:       res.AnomalyCount,
			LatestAnomalyDate:  res.AnomalyDates[last],
			LatestAnomalyValue: latest,
			DeviationFromMean:  math.Abs(latest - res.MeanValue),
			ZScore:             res.MaxZScore,
		})
	}
	sort.Slice(alerts, func(i, j int) bool {
		ri, rj := alerts[i].Severity.Rank(), alerts[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return alerts[i].CustomerID < alerts[j].CustomerID
	})
	return alerts
}
