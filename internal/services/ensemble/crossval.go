package ensemble

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
	"LoadCast/internal/services/features"
	"LoadCast/pkg/logger"
)

// CrossValidate splits series into k contiguous folds of n/k points. For each
// fold every available kind is fitted on the concatenation of the other folds
// and forecasts the held-out length. Folds run in parallel and are merged only
// after all of them finish. Fold and model failures are recorded in the report.
func (c *Combiner) CrossValidate(ctx context.Context, series models.TimeSeries, k int) (*models.CVReport, error) {
	n := series.Len()
	if k < 2 {
		return nil, fmt.Errorf("cross-validate %q: need at least 2 folds, got %d", series.EntityID, k)
	}
	foldSize := n / k
	if foldSize < 1 {
		return nil, &errs.InsufficientDataError{EntityID: series.EntityID, Have: n, Need: k, Reason: fmt.Sprintf("%d points cannot fill %d folds", n, k)}
	}
	kinds := c.models.Available()

	// scores[fold][kind index]
	scores := make([][]models.FoldScore, k)
	g, gctx := errgroup.WithContext(ctx)
	for fold := 0; fold < k; fold++ {
		fold := fold
		g.Go(func() error {
			train, test := splitFold(series, fold, foldSize)
			row := make([]models.FoldScore, len(kinds))
			for i, kind := range kinds {
				row[i] = c.scoreFold(gctx, kind, fold, train, test)
			}
			scores[fold] = row
			return nil
		})
	}
	_ = g.Wait()

	report := &models.CVReport{
		EntityID: series.EntityID,
		K:        k,
		FoldSize: foldSize,
		Models:   make(map[models.ModelKind]*models.ModelCVScore, len(kinds)),
		Errors:   make(map[models.ModelKind]string),
	}
	for i, kind := range kinds {
		ms := &models.ModelCVScore{Kind: kind, Folds: make([]models.FoldScore, 0, k)}
		ok, mapeFolds := 0, 0
		for fold := 0; fold < k; fold++ {
			fs := scores[fold][i]
			ms.Folds = append(ms.Folds, fs)
			if fs.Error != "" {
				continue
			}
			ok++
			ms.MeanMAE += fs.MAE
			ms.MeanRMSE += fs.RMSE
			if fs.MAPEPoints > 0 {
				ms.MeanMAPE += fs.MAPE
				mapeFolds++
			}
		}
		if ok == 0 {
			report.Errors[kind] = fmt.Sprintf("all %d folds failed: %s", k, ms.Folds[0].Error)
		} else {
			ms.MeanMAE /= float64(ok)
			ms.MeanRMSE /= float64(ok)
			if mapeFolds > 0 {
				ms.MeanMAPE /= float64(mapeFolds)
			}
			if c.observer != nil {
				c.observer.RecordCVError(string(kind), "mae", ms.MeanMAE)
				c.observer.RecordCVError(string(kind), "rmse", ms.MeanRMSE)
				c.observer.RecordCVError(string(kind), "mape", ms.MeanMAPE)
			}
		}
		report.Models[kind] = ms
	}

	c.mu.Lock()
	c.lastCV = report
	c.mu.Unlock()

	c.log.Info("cross-validation finished",
		logger.String("entity", series.EntityID),
		logger.Int("folds", k),
		logger.Int("fold_size", foldSize),
		logger.Int("models", len(kinds)),
		logger.Int("failed_models", len(report.Errors)),
	)
	return report, nil
}

func (c *Combiner) scoreFold(ctx context.Context, kind models.ModelKind, fold int, train, test models.TimeSeries) (fs models.FoldScore) {
	fs = models.FoldScore{Fold: fold, TrainSize: train.Len(), TestSize: test.Len()}
	defer func() {
		if rec := recover(); rec != nil {
			fs.Error = fmt.Sprintf("panic: %v", rec)
		}
	}()
	factory, ok := c.models.Factory(kind)
	if !ok {
		fs.Error = (&errs.CapabilityUnavailableError{Capability: string(kind), ModelID: string(kind)}).Error()
		return fs
	}
	f := factory()
	if _, err := f.Fit(ctx, train); err != nil {
		fs.Error = err.Error()
		return fs
	}
	fc, err := f.Predict(test.Len(), 0.95)
	if err != nil {
		fs.Error = err.Error()
		return fs
	}
	pred := fc.Points()
	fs.MAE = features.MAE(test.Values, pred)
	fs.RMSE = features.RMSE(test.Values, pred)
	fs.MAPE, fs.MAPEPoints = features.MAPE(test.Values, pred)
	return fs
}

// splitFold holds out [fold·size, (fold+1)·size) and concatenates the rest.
// The training values are re-dated onto a contiguous daily axis starting at
// the series start.
func splitFold(series models.TimeSeries, fold, size int) (models.TimeSeries, models.TimeSeries) {
	lo, hi := fold*size, (fold+1)*size
	test := series.Slice(lo, hi)

	values := make([]float64, 0, series.Len()-size)
	values = append(values, series.Values[:lo]...)
	values = append(values, series.Values[hi:]...)
	train := models.TimeSeries{EntityID: series.EntityID, Values: values, Dates: make([]time.Time, len(values))}
	for i := range values {
		train.Dates[i] = series.Start().AddDate(0, 0, i)
	}
	return train, test
}
