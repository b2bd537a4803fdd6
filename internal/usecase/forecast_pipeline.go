package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
	"LoadCast/internal/domain/service"
	icache "LoadCast/internal/service/cache"
	"LoadCast/internal/services/capability"
	"LoadCast/internal/services/ensemble"
	"LoadCast/internal/services/forecasters"
	"LoadCast/internal/services/holiday"
	"LoadCast/internal/services/prepare"
	"LoadCast/internal/services/residual"
	"LoadCast/internal/services/tbats"
	"LoadCast/pkg/cache"
	applogger "LoadCast/pkg/logger"
)

// PipelineConfig holds the forecasting defaults of the service.
type PipelineConfig struct {
	Horizon      int
	Confidence   float64
	Weights      map[models.ModelKind]float64
	Strategy     ensemble.Strategy
	CVFolds      int
	CacheTTL     time.Duration
	Forest       residual.ForestParams
	TestFraction float64
	ArtifactDir  string
	Timeout      time.Duration
}

// FittedPipeline is the trained state of one entity kept in the model registry.
type FittedPipeline struct {
	Fingerprint string
	Series      models.TimeSeries
	Suite       *forecasters.Suite
	Combiner    *ensemble.Combiner
	FittedAt    time.Time
	Simulated   bool
}

// ForecastPipeline runs prepare, fit, ensemble and residual correction for one entity.
type ForecastPipeline struct {
	store     domrepo.SeriesStore
	results   domrepo.ResultStore
	publisher domrepo.Publisher
	cache     cache.Service
	registry  *icache.ModelRegistry[*FittedPipeline]
	preparer  *prepare.Preparer
	factories map[models.ModelKind]service.ForecasterFactory
	caps      service.CapabilityChecker
	calendar  *holiday.Calendar
	provider  service.HolidayProvider
	metrics   domrepo.Metrics
	cfg       PipelineConfig
	log       *applogger.Logger
	now       func() time.Time
}

// PipelineDeps are the collaborators of ForecastPipeline. Results, Publisher,
// Cache and Provider are optional.
type PipelineDeps struct {
	Store     domrepo.SeriesStore
	Results   domrepo.ResultStore
	Publisher domrepo.Publisher
	Cache     cache.Service
	Registry  *icache.ModelRegistry[*FittedPipeline]
	Preparer  *prepare.Preparer
	Factories map[models.ModelKind]service.ForecasterFactory
	Caps      service.CapabilityChecker
	Calendar  *holiday.Calendar
	Provider  service.HolidayProvider
	Metrics   domrepo.Metrics
	Logger    *applogger.Logger
}

func NewForecastPipeline(d PipelineDeps, cfg PipelineConfig) *ForecastPipeline {
	if cfg.Confidence <= 0 || cfg.Confidence >= 1 {
		cfg.Confidence = 0.95
	}
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = residual.DefaultTestFraction
	}
	if cfg.Forest.Trees == 0 {
		cfg.Forest = residual.DefaultForestParams()
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = 30
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.Strategy == "" {
		cfg.Strategy = ensemble.StrategyFixed
	}
	p := &ForecastPipeline{
		store:     d.Store,
		results:   d.Results,
		publisher: d.Publisher,
		cache:     d.Cache,
		registry:  d.Registry,
		preparer:  d.Preparer,
		factories: d.Factories,
		caps:      d.Caps,
		calendar:  d.Calendar,
		provider:  d.Provider,
		metrics:   d.Metrics,
		cfg:       cfg,
		log:       d.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if p.log == nil {
		p.log = applogger.Nop()
	}
	if p.preparer == nil {
		p.preparer = prepare.New(prepare.WithLogger(p.log))
	}
	if p.calendar == nil {
		p.calendar, _ = holiday.NewStatic(nil)
	}
	if p.registry == nil {
		p.registry = icache.NewModelRegistry[*FittedPipeline](64, time.Hour, nil)
	}
	return p
}

// Run produces the forecast result for req. Identical requests over an
// unchanged series are served from the cache.
func (p *ForecastPipeline) Run(ctx context.Context, req models.ForecastRequest) (*models.ForecastResult, error) {
	if req.Entity == "" {
		return nil, fmt.Errorf("entity required")
	}
	if req.Horizon == 0 {
		req.Horizon = p.cfg.Horizon
	}
	if req.Horizon < 0 {
		return nil, fmt.Errorf("forecast %s: horizon must be positive, got %d", req.Entity, req.Horizon)
	}
	if req.Confidence <= 0 || req.Confidence >= 1 {
		req.Confidence = p.cfg.Confidence
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	start := time.Now()

	series, err := p.loadSeries(ctx, req.Entity, req.Lookback)
	if err != nil {
		return nil, err
	}
	fp := prepare.Fingerprint(series)
	key := cache.GenerateKeyWithParams("forecast", req.Entity, fp, req.Horizon, req.Confidence, req.Ensemble, req.Correct, req.GridSearch)

	res, hit, err := cache.GetOrLoadIf(ctx, p.cache, key, p.cfg.CacheTTL, func(ctx context.Context) (*models.ForecastResult, error) {
		return p.compute(ctx, series, fp, req)
	}, func(res *models.ForecastResult) bool { return !res.Simulated })
	if err != nil {
		p.recordError("forecast")
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.RecordLatency("forecast_seconds", time.Since(start).Seconds())
	}
	if hit {
		p.log.Debug("forecast served from cache", applogger.String("entity", req.Entity), applogger.String("fingerprint", fp))
		return res, nil
	}
	p.emit(ctx, res)
	return res, nil
}

func (p *ForecastPipeline) compute(ctx context.Context, series models.TimeSeries, fp string, req models.ForecastRequest) (*models.ForecastResult, error) {
	var warnings []string
	if err := p.calendar.Ensure(ctx, p.provider, series.Start(), series.End().AddDate(0, 0, req.Horizon), p.log); err != nil {
		warnings = append(warnings, err.Error())
	}

	fitted, err := p.fit(ctx, series, fp)
	if err != nil {
		return nil, err
	}
	primaryKind, primary, err := p.primaryForecast(fitted, req.Horizon, req.Confidence)
	if err != nil {
		return nil, err
	}

	res := &models.ForecastResult{
		EntityID:    series.EntityID,
		Fingerprint: fp,
		Horizon:     req.Horizon,
		Primary:     primary,
		Fits:        fitted.Suite.Results(),
		Simulated:   fitted.Simulated,
		GeneratedAt: p.now(),
	}
	if f, ok := fitted.Suite.Get(models.KindSeasonalTrend); ok && primaryKind == models.KindSeasonalTrend {
		if st, ok := f.(*tbats.Forecaster); ok {
			if m, err := st.Model(); err == nil {
				ev := m.Evaluate()
				res.Evaluation = &ev
			}
		}
	}

	if req.Ensemble {
		ens, failures := fitted.Combiner.PredictEnsemble(req.Horizon, req.Confidence)
		res.Ensemble = ens
		for k, ferr := range failures {
			warnings = append(warnings, fmt.Sprintf("ensemble member %s: %v", k, ferr))
		}
	}

	if req.Correct {
		corrected, perf, cerr := p.correct(ctx, fitted, primaryKind, primary, req.GridSearch)
		if cerr != nil {
			warnings = append(warnings, cerr.Error())
		} else {
			res.Corrected = corrected
			res.Residual = perf
			warnings = append(warnings, corrected.Warnings...)
		}
	}
	res.Warnings = warnings
	return res, nil
}

// fit returns the registry entry for the series, training a new suite when the
// data changed since the last fit.
func (p *ForecastPipeline) fit(ctx context.Context, series models.TimeSeries, fp string) (*FittedPipeline, error) {
	if cached, ok := p.registry.Get(series.EntityID); ok && cached.Fingerprint == fp {
		return cached, nil
	}
	suite := forecasters.NewSuite(p.factories, p.caps,
		forecasters.WithSuiteLogger(p.log),
		forecasters.WithFitObserver(p.metrics),
	)
	results := suite.TrainAll(ctx, series)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fit %s: %w", series.EntityID, err)
	}
	if len(suite.Fitted()) == 0 {
		return nil, fmt.Errorf("fit %s: no model trained: %s", series.EntityID, firstFitError(results))
	}

	opts := []ensemble.Option{
		ensemble.WithWeights(p.cfg.Weights),
		ensemble.WithStrategy(p.cfg.Strategy),
		ensemble.WithLogger(p.log),
	}
	if p.metrics != nil {
		opts = append(opts, ensemble.WithCVObserver(p.metrics))
	}
	comb := ensemble.NewCombiner(suite, opts...)
	if p.cfg.Strategy == ensemble.StrategyInverseError && p.cfg.CVFolds >= 2 {
		if _, err := comb.CrossValidate(ctx, series, p.cfg.CVFolds); err != nil {
			p.log.Warn("cross-validation for weights failed, using configured weights",
				applogger.String("entity", series.EntityID),
				applogger.Error(err),
			)
		}
	}

	fitted := &FittedPipeline{Fingerprint: fp, Series: series, Suite: suite, Combiner: comb, FittedAt: p.now(), Simulated: suite.Simulated()}
	if fitted.Simulated {
		p.log.Warn("simulated fit not kept in the model registry", applogger.String("entity", series.EntityID))
		return fitted, nil
	}
	p.registry.Put(series.EntityID, fitted)
	return fitted, nil
}

// primaryForecast predicts with the seasonal-trend model, or the first fitted
// kind in enumeration order when it is unavailable.
func (p *ForecastPipeline) primaryForecast(fitted *FittedPipeline, horizon int, confidence float64) (models.ModelKind, models.Forecast, error) {
	var lastErr error
	for _, k := range models.AllKinds() {
		if _, ok := fitted.Suite.Get(k); !ok {
			continue
		}
		fc, err := fitted.Suite.PredictSingle(k, horizon, confidence)
		if err != nil {
			lastErr = err
			continue
		}
		if k != models.KindSeasonalTrend {
			p.log.Warn("seasonal-trend model unavailable, primary forecast from fallback",
				applogger.String("entity", fitted.Series.EntityID),
				applogger.String("model", string(k)),
			)
		}
		return k, fc, nil
	}
	if lastErr == nil {
		lastErr = &errs.ModelNotTrainedError{ModelID: fitted.Series.EntityID, Op: "predict"}
	}
	return "", models.Forecast{}, fmt.Errorf("primary forecast %s: %w", fitted.Series.EntityID, lastErr)
}

// correct trains a residual corrector on the in-sample residuals of the
// primary model. When training is impossible a persisted artifact of the
// entity is used instead.
func (p *ForecastPipeline) correct(ctx context.Context, fitted *FittedPipeline, kind models.ModelKind, primary models.Forecast, gridSearch bool) (*models.CorrectedForecast, *models.PerformanceMetrics, error) {
	series := fitted.Series
	if p.caps != nil && !p.caps.Available(capability.ResidualForest) {
		return nil, nil, &errs.CapabilityUnavailableError{Capability: capability.ResidualForest, ModelID: "residual:" + series.EntityID}
	}
	f, _ := fitted.Suite.Get(kind)
	src, ok := f.(service.ResidualSource)
	if !ok {
		return nil, nil, fmt.Errorf("residual correction %s: model %s exposes no residuals", series.EntityID, kind)
	}
	resid, err := src.Residuals()
	if err != nil {
		return nil, nil, fmt.Errorf("residual correction %s: %w", series.EntityID, err)
	}

	weather := p.weather(ctx, series)
	corrector := residual.New(
		residual.WithParams(p.cfg.Forest),
		residual.WithLogger(p.log),
		residual.WithModelID("residual:"+series.EntityID),
	)
	table := corrector.PrepareFeatures(series, weather, p.calendar)
	perf, err := corrector.Train(ctx, table, alignResiduals(resid, table.Len()), p.cfg.TestFraction, gridSearch)
	path := p.artifactPath(series.EntityID)
	switch {
	case err == nil:
		if path != "" {
			if serr := corrector.Save(path); serr != nil {
				p.log.Warn("residual artifact not saved", applogger.String("path", path), applogger.Error(serr))
			}
		}
	case errors.Is(err, errs.ErrInsufficientData) && path != "":
		if lerr := corrector.Load(path); lerr != nil {
			return nil, nil, fmt.Errorf("residual correction %s: %w", series.EntityID, err)
		}
		p.log.Info("residual corrector restored from artifact", applogger.String("entity", series.EntityID), applogger.String("path", path))
		perf, _ = corrector.Metrics()
	default:
		return nil, nil, fmt.Errorf("residual correction %s: %w", series.EntityID, err)
	}

	future, _ := residual.FutureFeatures(series, primary, weather, p.calendar)
	out, err := corrector.Correct(primary, future)
	if err != nil {
		return nil, nil, fmt.Errorf("residual correction %s: %w", series.EntityID, err)
	}
	return &out, perf, nil
}

func (p *ForecastPipeline) weather(ctx context.Context, series models.TimeSeries) []models.WeatherRecord {
	if p.store == nil {
		return nil
	}
	w, err := p.store.Weather(ctx, series.Start(), series.End())
	if err != nil {
		p.log.Warn("weather unavailable", applogger.String("entity", series.EntityID), applogger.Error(err))
		return nil
	}
	return w
}

func (p *ForecastPipeline) artifactPath(entity string) string {
	if p.cfg.ArtifactDir == "" {
		return ""
	}
	return filepath.Join(p.cfg.ArtifactDir, "residual_"+cache.HashKey(entity)+".lcrf")
}

// CrossValidate scores every available model on k contiguous folds.
func (p *ForecastPipeline) CrossValidate(ctx context.Context, req models.CrossValidateRequest) (*models.CVReport, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	series, err := p.loadSeries(ctx, req.Entity, req.Lookback)
	if err != nil {
		return nil, err
	}
	fp := prepare.Fingerprint(series)
	fitted, ok := p.registry.Get(series.EntityID)
	if !ok || fitted.Fingerprint != fp {
		if fitted, err = p.fit(ctx, series, fp); err != nil {
			return nil, err
		}
	}
	k := req.Folds
	if k == 0 {
		k = p.cfg.CVFolds
	}
	report, err := fitted.Combiner.CrossValidate(ctx, series, k)
	if err != nil {
		p.recordError("cross_validate")
		return nil, err
	}
	return report, nil
}

// Quality reports on the raw series before preparation.
func (p *ForecastPipeline) Quality(ctx context.Context, req models.QualityRequest) (models.DataQualityReport, error) {
	from, to := domrepo.Window(p.now(), domrepo.NormalizeLookback(req.Lookback))
	obs, err := p.store.DailySeries(ctx, req.Entity, from, to)
	if err != nil {
		return models.DataQualityReport{}, fmt.Errorf("quality %s: %w", req.Entity, err)
	}
	return prepare.QualityReport(req.Entity, obs), nil
}

// Comparison summarises the last fit of entity.
func (p *ForecastPipeline) Comparison(entity string) (models.ModelComparison, error) {
	fitted, ok := p.registry.Get(entity)
	if !ok {
		return models.ModelComparison{}, &errs.ModelNotTrainedError{ModelID: entity, Op: "compare"}
	}
	return fitted.Combiner.Comparison(), nil
}

// Trained lists the entities currently held in the model registry.
func (p *ForecastPipeline) Trained() []string { return p.registry.Keys() }

// RegistryStats exposes model registry hit counters.
func (p *ForecastPipeline) RegistryStats() icache.Stats { return p.registry.Stats() }

func (p *ForecastPipeline) loadSeries(ctx context.Context, entity string, lookback int) (models.TimeSeries, error) {
	from, to := domrepo.Window(p.now(), domrepo.NormalizeLookback(lookback))
	obs, err := p.store.DailySeries(ctx, entity, from, to)
	if err != nil {
		p.recordError("series_store")
		return models.TimeSeries{}, fmt.Errorf("load series %s: %w", entity, err)
	}
	series, err := p.preparer.Prepare(entity, obs)
	if err != nil {
		return models.TimeSeries{}, err
	}
	return series, nil
}

// emit persists and publishes a fresh result. Failures are logged, never returned.
func (p *ForecastPipeline) emit(ctx context.Context, res *models.ForecastResult) {
	if p.results != nil {
		if err := p.results.StoreForecast(ctx, res); err != nil {
			p.recordError("store_forecast")
			p.log.Error("store forecast failed", applogger.String("entity", res.EntityID), applogger.Error(err))
		}
	}
	if p.publisher != nil {
		if err := p.publisher.PublishForecast(ctx, res); err != nil {
			p.recordError("publish_forecast")
		} else if p.metrics != nil {
			p.metrics.RecordMessageSent("kafka", "forecasts")
		}
	}
}

func (p *ForecastPipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

// alignResiduals right-aligns r to n rows, padding the head with NaN.
func alignResiduals(r []float64, n int) []float64 {
	if len(r) >= n {
		return r[len(r)-n:]
	}
	out := make([]float64, n)
	pad := n - len(r)
	for i := 0; i < pad; i++ {
		out[i] = math.NaN()
	}
	copy(out[pad:], r)
	return out
}

func firstFitError(results map[models.ModelKind]models.FitResult) string {
	for _, k := range models.AllKinds() {
		if r, ok := results[k]; ok && r.Error != "" {
			return fmt.Sprintf("%s: %s", k, r.Error)
		}
	}
	return "no model available"
}

// Evict drops the fitted models of entity and deletes its persisted corrector.
// It reports whether a fitted pipeline was held.
func (p *ForecastPipeline) Evict(entity string) (bool, error) {
	held := p.registry.Remove(entity)
	path := p.artifactPath(entity)
	if path == "" {
		return held, nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return held, fmt.Errorf("evict %s: %w", entity, err)
	}
	return held, nil
}
