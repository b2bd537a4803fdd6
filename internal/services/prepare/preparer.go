// Package prepare turns raw daily observations into a gap-free daily series and
// derives the calendar features and data-quality report used downstream.
package prepare

import (
	"fmt"
	"math"
	"sort"
	"time"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
	"LoadCast/internal/services/features"
	"LoadCast/pkg/logger"
)

const (
	DefaultMinObservations = 30
	DefaultMaxMissingRatio = 0.10
)

const day = 24 * time.Hour

// Preparer validates and normalises raw series.
type Preparer struct {
	minObs     int
	maxMissing float64
	log        *logger.Logger
}

// Option configures a Preparer.
type Option func(*Preparer)

// WithMinObservations overrides the minimum number of raw rows.
func WithMinObservations(n int) Option {
	return func(p *Preparer) { p.minObs = n }
}

// WithMaxMissingRatio overrides the tolerated share of missing values.
func WithMaxMissingRatio(r float64) Option {
	return func(p *Preparer) { p.maxMissing = r }
}

// WithLogger injects a structured logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Preparer) { p.log = l }
}

func New(opts ...Option) *Preparer {
	p := &Preparer{
		minObs:     DefaultMinObservations,
		maxMissing: DefaultMaxMissingRatio,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prepare validates obs and rebuilds it on a complete daily axis.
//
// Rows are sorted by date, duplicate dates collapse to their mean, interior gaps
// are interpolated linearly and the edges are forward then backward filled. The
// date axis is then reindexed to every calendar day between the first and last
// row and interpolated again. The result has no NaN and no skipped day.
func (p *Preparer) Prepare(entityID string, obs []models.Observation) (models.TimeSeries, error) {
	if len(obs) < p.minObs {
		return models.TimeSeries{}, &errs.InsufficientDataError{EntityID: entityID, Have: len(obs), Need: p.minObs}
	}
	missing := 0
	for _, o := range obs {
		if math.IsNaN(o.Value) {
			missing++
		}
	}
	if ratio := float64(missing) / float64(len(obs)); ratio > p.maxMissing {
		return models.TimeSeries{}, &errs.InsufficientDataError{
			EntityID: entityID,
			Have:     len(obs) - missing,
			Need:     p.minObs,
			Reason:   fmt.Sprintf("missing ratio %.1f%% exceeds %.1f%%", ratio*100, p.maxMissing*100),
		}
	}

	dates, values := collapse(obs)
	fill(values)

	// reindex to a complete daily range
	start, end := dates[0], dates[len(dates)-1]
	n := int(end.Sub(start)/day) + 1
	fullDates := make([]time.Time, n)
	fullValues := make([]float64, n)
	for i := range fullValues {
		fullDates[i] = start.Add(time.Duration(i) * day)
		fullValues[i] = math.NaN()
	}
	for i, d := range dates {
		fullValues[int(d.Sub(start)/day)] = values[i]
	}
	gaps := features.CountNaN(fullValues)
	fill(fullValues)

	if gaps > 0 {
		p.log.Debug("prepare reindexed series",
			logger.String("entity", entityID),
			logger.Int("rows", len(obs)),
			logger.Int("days", n),
			logger.Int("filled_days", gaps),
		)
	}
	return models.TimeSeries{EntityID: entityID, Dates: fullDates, Values: fullValues}, nil
}

// collapse sorts observations by day and averages rows sharing a day.
func collapse(obs []models.Observation) ([]time.Time, []float64) {
	sorted := make([]models.Observation, len(obs))
	copy(sorted, obs)
	for i := range sorted {
		sorted[i].Date = Day(sorted[i].Date)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	dates := make([]time.Time, 0, len(sorted))
	values := make([]float64, 0, len(sorted))
	for i := 0; i < len(sorted); {
		j := i
		sum, cnt := 0.0, 0
		for ; j < len(sorted) && sorted[j].Date.Equal(sorted[i].Date); j++ {
			if !math.IsNaN(sorted[j].Value) {
				sum += sorted[j].Value
				cnt++
			}
		}
		v := math.NaN()
		if cnt > 0 {
			v = sum / float64(cnt)
		}
		dates = append(dates, sorted[i].Date)
		values = append(values, v)
		i = j
	}
	return dates, values
}

func fill(values []float64) {
	features.Interpolate(values)
	features.ForwardFill(values)
	features.BackwardFill(values)
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
