// Package anomaly flags unusual readings of the largest customers with five
// independent statistical tests and assembles the cross-customer report.
package anomaly

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"LoadCast/internal/domain/models"
	"LoadCast/internal/services/features"
	"LoadCast/pkg/logger"
)

const (
	DefaultTopN = 20
	// MinObservations is the shortest customer history that is analysed.
	MinObservations = 7

	iqrFactor       = 1.5
	dailyLimit      = 0.5
	weeklyLimit     = 0.3
	rollingWindow   = 7
	rollingStdLimit = 2.0
)

// Options select the z-score tier and how many customers are analysed.
type Options struct {
	Sensitivity models.Sensitivity
	TopN        int
}

// Observer receives the number of anomalies found per scan.
type Observer interface {
	RecordAnomalies(sensitivity string, count int)
}

type Detector struct {
	log      *logger.Logger
	observer Observer
	workers  int
	now      func() time.Time
}

type Option func(*Detector)

func WithLogger(l *logger.Logger) Option {
	return func(d *Detector) { d.log = l }
}

func WithObserver(o Observer) Option {
	return func(d *Detector) { d.observer = o }
}

// WithWorkers bounds the per-customer fan-out.
func WithWorkers(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithClock overrides the time source used for analysis and alert timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

func New(opts ...Option) *Detector {
	d := &Detector{
		log:     logger.Nop(),
		workers: runtime.GOMAXPROCS(0),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Analyze ranks customers by total value, runs the five tests on each of the
// top N that has at least MinObservations readings and assembles the report.
// Customers are analysed concurrently; the report is built after all finish.
func (d *Detector) Analyze(ctx context.Context, readings []models.CustomerReading, opts Options) (*models.AnomalyReport, error) {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	threshold := opts.Sensitivity.Threshold()

	byCustomer := groupByCustomer(readings)
	top := topEntities(byCustomer, opts.TopN)

	results := make([]*models.EntityAnomalies, len(top))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, t := range top {
		i, rows := i, byCustomer[t.CustomerID]
		if len(rows) < MinObservations {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = DetectCustomer(rows, threshold)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("anomaly scan: %w", err)
	}

	report := &models.AnomalyReport{
		TopCustomers:    top,
		AnomalyDetails:  make(map[string]*models.EntityAnomalies),
		RegionalSummary: regionalSummary(readings),
		Skipped:         make(map[string]string),
	}
	for i, t := range top {
		res := results[i]
		if res == nil {
			report.Skipped[t.CustomerID] = fmt.Sprintf("%d readings, need %d", len(byCustomer[t.CustomerID]), MinObservations)
			continue
		}
		report.AnomalyDetails[t.CustomerID] = res
		if res.HasAnomaly {
			report.Summary.CustomersWithAnomalies++
		}
		report.Summary.TotalAnomalies += res.AnomalyCount
	}
	report.Summary.TotalCustomers = len(byCustomer)
	report.Summary.TopCustomersAnalyzed = len(top)
	report.Summary.AnalysisDate = d.now().UTC()
	report.Alerts = buildAlerts(report.AnomalyDetails)

	if d.observer != nil {
		d.observer.RecordAnomalies(string(opts.Sensitivity), report.Summary.TotalAnomalies)
	}
	d.log.Info("anomaly scan finished",
		logger.Int("customers", report.Summary.TotalCustomers),
		logger.Int("analysed", len(report.AnomalyDetails)),
		logger.Int("with_anomalies", report.Summary.CustomersWithAnomalies),
		logger.Int("anomalies", report.Summary.TotalAnomalies),
		logger.String("sensitivity", string(opts.Sensitivity)),
	)
	return report, nil
}

// DetectCustomer runs the five tests over one customer's readings, which must
// be sorted by date. A date is anomalous when any test fires.
func DetectCustomer(rows []models.CustomerReading, threshold float64) *models.EntityAnomalies {
	n := len(rows)
	values := make([]float64, n)
	for i, r := range rows {
		values[i] = r.Value
	}
	last := rows[n-1]
	out := &models.EntityAnomalies{
		CustomerID: last.CustomerID,
		Region:     last.Region,
		LastValue:  last.Value,
		LastDate:   last.Date,
		Records:    make([]models.AnomalyRecord, n),
	}
	out.MeanValue, out.StdValue = stat.MeanStdDev(values, nil)
	if n < 2 {
		out.StdValue = math.NaN()
	}

	z := zScores(values)
	lo, hi := iqrBounds(values)
	daily := features.PctChange(values, 1)
	var weekly []float64
	if n > rollingWindow {
		weekly = features.PctChange(values, 7)
	}
	var rMean, rStd []float64
	if n >= rollingWindow {
		rMean = features.RollingMean(values, rollingWindow)
		rStd = features.RollingStd(values, rollingWindow)
	}

	for i, v := range values {
		flags := models.AnomalyFlags{
			ZScore:      z[i] > threshold,
			IQR:         v < lo || v > hi,
			DailyChange: math.Abs(daily[i]) > dailyLimit,
		}
		if weekly != nil {
			flags.WeeklyChange = math.Abs(weekly[i]) > weeklyLimit
		}
		if rMean != nil {
			flags.Rolling = math.Abs(v-rMean[i]) > rollingStdLimit*rStd[i]
		}
		rec := models.AnomalyRecord{
			EntityID:  out.CustomerID,
			Date:      rows[i].Date,
			Value:     v,
			Flags:     flags,
			Anomaly:   flags.Any(),
			ZScore:    finiteOr(z[i], 0),
			Deviation: v - out.MeanValue,
		}
		if rec.Anomaly {
			rec.Severity = severityOf(rec.ZScore)
			out.AnomalyCount++
			out.AnomalyDates = append(out.AnomalyDates, rec.Date)
			out.AnomalyValues = append(out.AnomalyValues, v)
		}
		out.Records[i] = rec
	}

	out.HasAnomaly = out.AnomalyCount > 0
	out.MaxZScore = nanMaxAbs(z)
	out.MaxDailyChange = nanMaxAbs(daily)
	out.MaxWeeklyChange = nanMaxAbs(weekly)
	out.AnomalyRate = float64(out.AnomalyCount) / float64(n)
	return out
}

// zScores returns |x - mean| / population std. A constant series yields NaN
// everywhere, which never exceeds a threshold.
func zScores(values []float64) []float64 {
	mean := stat.Mean(values, nil)
	std := math.Sqrt(stat.PopVariance(values, nil))
	out := make([]float64, len(values))
	for i, v := range values {
		if std == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Abs(v-mean) / std
	}
	return out
}

// iqrBounds returns the Tukey fences Q1 - 1.5·IQR and Q3 + 1.5·IQR.
func iqrBounds(values []float64) (float64, float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := features.Quantile(0.25, sorted)
	q3 := features.Quantile(0.75, sorted)
	iqr := q3 - q1
	return q1 - iqrFactor*iqr, q3 + iqrFactor*iqr
}

func severityOf(z float64) models.Severity {
	switch {
	case z > 3:
		return models.SeverityHigh
	case z < 2:
		return models.SeverityLow
	default:
		return models.SeverityMedium
	}
}

func nanMaxAbs(values []float64) float64 {
	m := 0.0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		m = math.Max(m, math.Abs(v))
	}
	return m
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
