// Package residual learns the residual error of a primary forecaster from
// calendar, lag, rolling and weather features with a random forest, and adds
// the predicted residual back onto future point forecasts.
package residual

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
	"LoadCast/internal/domain/service"
	"LoadCast/internal/services/features"
	"LoadCast/pkg/logger"
)

const (
	DefaultTestFraction = 0.2
	gridFolds           = 5
	minTrainRows        = 10
)

// Grid lists the hyper-parameter values tried by grid search. A MaxDepth of 0 means unbounded.
type Grid struct {
	Trees    []int
	MaxDepth []int
	MinSplit []int
	MinLeaf  []int
}

func DefaultGrid() Grid {
	return Grid{
		Trees:    []int{50, 100, 200},
		MaxDepth: []int{5, 10, 15, 0},
		MinSplit: []int{2, 5, 10},
		MinLeaf:  []int{1, 2, 4},
	}
}

func (g Grid) candidates(seed int64) []ForestParams {
	var out []ForestParams
	for _, t := range g.Trees {
		for _, d := range g.MaxDepth {
			for _, s := range g.MinSplit {
				for _, l := range g.MinLeaf {
					out = append(out, ForestParams{Trees: t, MaxDepth: d, MinSplit: s, MinLeaf: l, Seed: seed})
				}
			}
		}
	}
	return out
}

type trainedState struct {
	Columns    []string
	Scaler     Scaler
	Forest     *Forest
	Params     ForestParams
	Importance []models.FeatureImportance
	Metrics    models.PerformanceMetrics
	TrainedAt  time.Time
}

// Corrector owns one residual forest. Train is exclusive: concurrent calls
// queue on the trainer lock. Correct may run alongside a Train and sees the
// previously published model until the new one is complete.
type Corrector struct {
	modelID string
	params  ForestParams
	grid    Grid
	log     *logger.Logger

	trainMu sync.Mutex

	mu    sync.RWMutex
	state *trainedState
}

// Option configures a Corrector.
type Option func(*Corrector)

func WithParams(p ForestParams) Option {
	return func(c *Corrector) { c.params = p }
}

func WithGrid(g Grid) Option {
	return func(c *Corrector) { c.grid = g }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Corrector) { c.log = l }
}

// WithModelID names the corrector in errors and logs.
func WithModelID(id string) Option {
	return func(c *Corrector) { c.modelID = id }
}

func New(opts ...Option) *Corrector {
	c := &Corrector{
		modelID: "residual",
		params:  DefaultForestParams(),
		grid:    DefaultGrid(),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ModelID returns the identifier used in errors.
func (c *Corrector) ModelID() string { return c.modelID }

// PrepareFeatures builds the feature table and logs omitted groups.
func (c *Corrector) PrepareFeatures(series models.TimeSeries, weather []models.WeatherRecord, holidays service.HolidayCalendar) models.FeatureTable {
	table, warnings := PrepareFeatures(series, weather, holidays)
	for _, w := range warnings {
		c.log.Warn("feature group omitted",
			logger.String("entity", series.EntityID),
			logger.Error(w),
		)
	}
	c.log.Debug("features prepared",
		logger.String("entity", series.EntityID),
		logger.Int("rows", table.Len()),
		logger.Int("columns", len(table.Columns)),
	)
	return table
}

// Train fits the forest on residuals aligned row for row with table. The last
// testFraction of rows is held out chronologically. Rows whose residual is NaN
// are dropped. With gridSearch the parameters are chosen by 5-fold CV MSE on
// the training rows.
func (c *Corrector) Train(ctx context.Context, table models.FeatureTable, residuals []float64, testFraction float64, gridSearch bool) (*models.PerformanceMetrics, error) {
	if len(residuals) != table.Len() {
		return nil, fmt.Errorf("train %s: %d residuals for %d feature rows", c.modelID, len(residuals), table.Len())
	}
	if testFraction <= 0 || testFraction >= 1 {
		return nil, fmt.Errorf("train %s: test fraction %.2f outside (0, 1)", c.modelID, testFraction)
	}

	var x [][]float64
	var y []float64
	for i, r := range residuals {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		x = append(x, table.Rows[i])
		y = append(y, r)
	}
	n := len(y)
	if n < minTrainRows {
		return nil, &errs.InsufficientDataError{EntityID: table.EntityID, Have: n, Need: minTrainRows,
			Reason: fmt.Sprintf("%d usable residual rows, need %d", n, minTrainRows)}
	}
	testSize := int(math.Round(float64(n) * testFraction))
	if testSize < 1 {
		testSize = 1
	}
	if testSize > n-minTrainRows/2 {
		testSize = n - minTrainRows/2
	}
	trainSize := n - testSize

	c.trainMu.Lock()
	defer c.trainMu.Unlock()
	start := time.Now()

	scaler := FitScaler(x[:trainSize])
	xTrain := scaler.Transform(x[:trainSize])
	xTest := scaler.Transform(x[trainSize:])
	yTrain, yTest := y[:trainSize], y[trainSize:]

	params := c.params
	var best map[string]int
	if gridSearch {
		var err error
		params, err = c.search(ctx, xTrain, yTrain)
		if err != nil {
			return nil, err
		}
		best = map[string]int{
			"n_estimators":      params.Trees,
			"max_depth":         params.MaxDepth,
			"min_samples_split": params.MinSplit,
			"min_samples_leaf":  params.MinLeaf,
		}
	}

	forest := FitForest(xTrain, yTrain, params)
	metrics := models.PerformanceMetrics{
		Train:             splitMetrics(yTrain, forest.PredictAll(xTrain)),
		Test:              splitMetrics(yTest, forest.PredictAll(xTest)),
		TrainSize:         trainSize,
		TestSize:          testSize,
		BestParams:        best,
		FeatureImportance: rankImportance(table.Columns, forest.Importance),
	}

	c.mu.Lock()
	c.state = &trainedState{
		Columns:    append([]string(nil), table.Columns...),
		Scaler:     scaler,
		Forest:     forest,
		Params:     params,
		Importance: metrics.FeatureImportance,
		Metrics:    metrics,
		TrainedAt:  time.Now().UTC(),
	}
	c.mu.Unlock()

	c.log.Info("residual model trained",
		logger.String("model", c.modelID),
		logger.String("entity", table.EntityID),
		logger.Int("train_rows", trainSize),
		logger.Int("test_rows", testSize),
		logger.Float64("test_rmse", metrics.Test.RMSE),
		logger.Duration("took", time.Since(start)),
	)
	return &metrics, nil
}

// search scores every grid candidate by contiguous K-fold MSE. Ties keep the
// first candidate in grid order.
func (c *Corrector) search(ctx context.Context, x [][]float64, y []float64) (ForestParams, error) {
	cands := c.grid.candidates(c.params.Seed)
	if len(cands) == 0 {
		return c.params, nil
	}
	k := gridFolds
	if len(y) < 2*k {
		k = 2
	}
	foldSize := len(y) / k
	scores := make([]float64, len(cands))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for ci, p := range cands {
		ci, p := ci, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			total := 0.0
			for f := 0; f < k; f++ {
				lo, hi := f*foldSize, (f+1)*foldSize
				if f == k-1 {
					hi = len(y)
				}
				trX := append(append([][]float64(nil), x[:lo]...), x[hi:]...)
				trY := append(append([]float64(nil), y[:lo]...), y[hi:]...)
				forest := FitForest(trX, trY, p)
				total += features.MSE(y[lo:hi], forest.PredictAll(x[lo:hi]))
			}
			scores[ci] = total / float64(k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ForestParams{}, fmt.Errorf("grid search %s: %w", c.modelID, err)
	}

	bestIdx := 0
	for i, s := range scores {
		if s < scores[bestIdx] {
			bestIdx = i
		}
	}
	c.log.Info("grid search finished",
		logger.String("model", c.modelID),
		logger.Int("candidates", len(cands)),
		logger.Float64("best_mse", scores[bestIdx]),
	)
	return cands[bestIdx], nil
}

// Correct adds the predicted residual to every forecast row whose date has a
// feature row. Rows without one pass through unchanged, flagged Uncorrected,
// and a warning lists their dates. Columns the model was trained on but table
// lacks are set to their training mean.
func (c *Corrector) Correct(forecast models.Forecast, table models.FeatureTable) (models.CorrectedForecast, error) {
	c.mu.RLock()
	st := c.state
	c.mu.RUnlock()
	if st == nil {
		return models.CorrectedForecast{}, &errs.ModelNotTrainedError{ModelID: c.modelID, Op: "correct"}
	}

	byDate := make(map[time.Time]int, table.Len())
	for i, d := range table.Dates {
		byDate[d] = i
	}
	colIdx := make([]int, len(st.Columns))
	for j, name := range st.Columns {
		colIdx[j] = table.Index(name)
	}

	out := models.CorrectedForecast{EntityID: forecast.EntityID, Rows: make([]models.CorrectedRow, 0, len(forecast.Rows))}
	row := make([]float64, len(st.Columns))
	var missing []string
	for _, r := range forecast.Rows {
		i, ok := byDate[r.Date]
		if !ok {
			missing = append(missing, r.Date.Format(time.DateOnly))
			out.Rows = append(out.Rows, models.CorrectedRow{
				Date:        r.Date,
				Original:    r.Point,
				Corrected:   r.Point,
				Uncorrected: true,
			})
			continue
		}
		for j, src := range colIdx {
			if src < 0 {
				row[j] = st.Scaler.Mean[j]
				continue
			}
			row[j] = table.Rows[i][src]
		}
		corr := st.Forest.Predict(st.Scaler.TransformRow(row))
		out.Rows = append(out.Rows, models.CorrectedRow{
			Date:       r.Date,
			Original:   r.Point,
			Correction: corr,
			Corrected:  r.Point + corr,
		})
	}
	if len(missing) > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf("no features for %d of %d forecast dates, left uncorrected: %s",
			len(missing), len(forecast.Rows), strings.Join(missing, ", ")))
		c.log.Warn("forecast rows left uncorrected",
			logger.String("model", c.modelID),
			logger.Int("missing", len(missing)),
		)
	}
	return out, nil
}

// Trained reports whether a model is available for Correct.
func (c *Corrector) Trained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state != nil
}

// FeatureImportance returns the ranking of the current model, highest first.
func (c *Corrector) FeatureImportance() ([]models.FeatureImportance, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == nil {
		return nil, &errs.ModelNotTrainedError{ModelID: c.modelID, Op: "feature importance"}
	}
	return append([]models.FeatureImportance(nil), c.state.Importance...), nil
}

// Metrics returns the performance of the current model.
func (c *Corrector) Metrics() (*models.PerformanceMetrics, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == nil {
		return nil, &errs.ModelNotTrainedError{ModelID: c.modelID, Op: "metrics"}
	}
	m := c.state.Metrics
	return &m, nil
}

func splitMetrics(actual, pred []float64) models.SplitMetrics {
	return models.SplitMetrics{
		MSE:  features.MSE(actual, pred),
		MAE:  features.MAE(actual, pred),
		R2:   features.R2(actual, pred),
		RMSE: features.RMSE(actual, pred),
	}
}

func rankImportance(columns []string, importance []float64) []models.FeatureImportance {
	out := make([]models.FeatureImportance, len(columns))
	for j, name := range columns {
		out[j] = models.FeatureImportance{Feature: name}
		if j < len(importance) {
			out[j].Importance = importance[j]
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out
}
