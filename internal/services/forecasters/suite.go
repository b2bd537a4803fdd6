package forecasters

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
	"LoadCast/internal/domain/service"
	"LoadCast/internal/services/capability"
	"LoadCast/pkg/logger"
)

// FitObserver receives per-model fit outcomes.
type FitObserver interface {
	RecordFit(kind string, seconds float64, ok bool)
}

// Suite trains every available model kind on one series and keeps the fitted instances.
type Suite struct {
	factories map[models.ModelKind]service.ForecasterFactory
	caps      service.CapabilityChecker
	log       *logger.Logger
	observer  FitObserver

	mu      sync.RWMutex
	fitted  map[models.ModelKind]service.Forecaster
	results map[models.ModelKind]models.FitResult
}

// SuiteOption configures a Suite.
type SuiteOption func(*Suite)

// WithSuiteLogger injects a structured logger.
func WithSuiteLogger(l *logger.Logger) SuiteOption {
	return func(s *Suite) { s.log = l }
}

// WithFitObserver reports fit latency and outcome per model kind.
func WithFitObserver(o FitObserver) SuiteOption {
	return func(s *Suite) { s.observer = o }
}

// NewSuite builds a suite over the given factories. The seasonal-trend kind is
// never skipped: without its capability it runs its own simulated fallback.
func NewSuite(factories map[models.ModelKind]service.ForecasterFactory, caps service.CapabilityChecker, opts ...SuiteOption) *Suite {
	s := &Suite{
		factories: factories,
		caps:      caps,
		log:       logger.Nop(),
		fitted:    make(map[models.ModelKind]service.Forecaster),
		results:   make(map[models.ModelKind]models.FitResult),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Available returns the kinds TrainAll will attempt, in enumeration order.
func (s *Suite) Available() []models.ModelKind {
	var out []models.ModelKind
	for _, k := range models.AllKinds() {
		if s.availabilityErr(k) == nil {
			out = append(out, k)
		}
	}
	return out
}

func (s *Suite) availabilityErr(k models.ModelKind) error {
	if _, ok := s.factories[k]; !ok {
		return &errs.CapabilityUnavailableError{Capability: capability.ForKind(k), ModelID: string(k)}
	}
	if k == models.KindSeasonalTrend || s.caps == nil {
		return nil
	}
	if name := capability.ForKind(k); !s.caps.Available(name) {
		return &errs.CapabilityUnavailableError{Capability: name, ModelID: string(k)}
	}
	return nil
}

// Factory returns the constructor of a kind for callers that need fresh instances.
func (s *Suite) Factory(k models.ModelKind) (service.ForecasterFactory, bool) {
	f, ok := s.factories[k]
	if !ok || s.availabilityErr(k) != nil {
		return nil, false
	}
	return f, true
}

// TrainAll fits every available kind concurrently. A failing or unavailable
// model is recorded in the result map and never aborts the others. The fitted
// set is replaced by the successful fits of this run.
func (s *Suite) TrainAll(ctx context.Context, series models.TimeSeries) map[models.ModelKind]models.FitResult {
	var (
		mu      sync.Mutex
		results = make(map[models.ModelKind]models.FitResult, len(models.AllKinds()))
		fitted  = make(map[models.ModelKind]service.Forecaster)
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range models.AllKinds() {
		kind := kind
		if err := s.availabilityErr(kind); err != nil {
			mu.Lock()
			results[kind] = models.FitResult{Kind: kind, Skipped: true, Error: err.Error()}
			mu.Unlock()
			continue
		}
		factory := s.factories[kind]
		g.Go(func() error {
			res, f := s.fitOne(gctx, kind, factory, series)
			mu.Lock()
			results[kind] = res
			if f != nil {
				fitted[kind] = f
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	s.fitted = fitted
	s.results = results
	s.mu.Unlock()

	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	s.log.Info("forecasters trained",
		logger.String("entity", series.EntityID),
		logger.Int("succeeded", ok),
		logger.Int("attempted", len(results)),
	)
	return results
}

func (s *Suite) fitOne(ctx context.Context, kind models.ModelKind, factory service.ForecasterFactory, series models.TimeSeries) (res models.FitResult, out service.Forecaster) {
	start := time.Now()
	res = models.FitResult{Kind: kind}
	defer func() {
		if rec := recover(); rec != nil {
			res.Success = false
			res.Error = fmt.Sprintf("fit panicked: %v", rec)
			out = nil
		}
		res.DurationMS = time.Since(start).Milliseconds()
		if s.observer != nil {
			s.observer.RecordFit(string(kind), time.Since(start).Seconds(), res.Success)
		}
		if !res.Success {
			s.log.Warn("forecaster fit failed",
				logger.String("entity", series.EntityID),
				logger.String("model", string(kind)),
				logger.String("error", res.Error),
			)
		}
	}()

	f := factory()
	sum, err := f.Fit(ctx, series)
	if err != nil {
		res.Error = err.Error()
		return res, nil
	}
	res.Success = true
	res.Summary = sum
	return res, f
}

// PredictSingle forecasts with one fitted kind.
func (s *Suite) PredictSingle(kind models.ModelKind, horizon int, confidence float64) (models.Forecast, error) {
	s.mu.RLock()
	f, ok := s.fitted[kind]
	s.mu.RUnlock()
	if !ok {
		if err := s.availabilityErr(kind); err != nil {
			return models.Forecast{}, err
		}
		return models.Forecast{}, &errs.ModelNotTrainedError{ModelID: string(kind), Op: "predict"}
	}
	return f.Predict(horizon, confidence)
}

// Fitted returns the successfully fitted instances of the last TrainAll.
func (s *Suite) Fitted() map[models.ModelKind]service.Forecaster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.ModelKind]service.Forecaster, len(s.fitted))
	for k, f := range s.fitted {
		out[k] = f
	}
	return out
}

// Simulated reports whether any successful fit of the last TrainAll ran a
// simulated fallback instead of the real estimator.
func (s *Suite) Simulated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.results {
		if r.Success && r.Summary != nil && r.Summary.Simulated {
			return true
		}
	}
	return false
}

// Results returns the outcome map of the last TrainAll.
func (s *Suite) Results() map[models.ModelKind]models.FitResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.ModelKind]models.FitResult, len(s.results))
	for k, r := range s.results {
		out[k] = r
	}
	return out
}

// Get returns one fitted instance.
func (s *Suite) Get(kind models.ModelKind) (service.Forecaster, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fitted[kind]
	return f, ok
}
