package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
	pkgch "LoadCast/pkg/clickhouse"
	applogger "LoadCast/pkg/logger"
)

var (
	forecastColumns = []string{"generated_at", "entity_id", "fingerprint", "source", "date", "point", "lower", "upper", "corrected"}
	alertColumns    = []string{"analysis_date", "customer_id", "severity", "anomaly_count", "latest_anomaly_date", "latest_anomaly_value", "deviation", "z_score"}
	reportColumns   = []string{"analysis_date", "customers", "anomalies", "payload"}
)

// CHResultStore persists forecasts and anomaly reports to ClickHouse.
type CHResultStore struct {
	ch       *pkgch.Client
	database string
	l        *applogger.Logger
}

var _ domrepo.ResultStore = (*CHResultStore)(nil)

func NewCHResultStore(ch *pkgch.Client, database string) *CHResultStore {
	return &CHResultStore{ch: ch, database: database, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHResultStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CHResultStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, Schema(s.database))
}

// StoreForecast writes the primary and ensemble rows of res. Primary rows carry
// the residual-corrected value of the same date when a correction exists.
func (s *CHResultStore) StoreForecast(ctx context.Context, res *models.ForecastResult) error {
	if res == nil {
		return nil
	}
	corrected := map[time.Time]float64{}
	if res.Corrected != nil {
		for _, r := range res.Corrected.Rows {
			corrected[r.Date] = r.Corrected
		}
	}

	rows := make([][]any, 0, len(res.Primary.Rows)+len(res.Ensemble.Rows))
	appendRows := func(f models.Forecast, withCorrection bool) {
		for _, r := range f.Rows {
			source := r.Source
			if source == "" {
				source = f.Source
			}
			var corr any
			if v, ok := corrected[r.Date]; ok && withCorrection {
				corr = v
			}
			rows = append(rows, []any{res.GeneratedAt, res.EntityID, res.Fingerprint, source, r.Date, r.Point, r.Lower, r.Upper, corr})
		}
	}
	appendRows(res.Primary, true)
	appendRows(res.Ensemble, false)

	if err := s.ch.InsertRows(ctx, s.table(TableForecasts), forecastColumns, rows); err != nil {
		s.l.Error("clickhouse store_forecast error",
			applogger.String("entity", res.EntityID),
			applogger.Int("rows", len(rows)),
			applogger.Error(err),
		)
		return fmt.Errorf("store forecast: %w", err)
	}
	return nil
}

// StoreAnomalies writes one alert row per alert and the full report as a JSON payload.
func (s *CHResultStore) StoreAnomalies(ctx context.Context, report *models.AnomalyReport) error {
	if report == nil {
		return nil
	}
	at := report.Summary.AnalysisDate
	rows := make([][]any, 0, len(report.Alerts))
	for _, a := range report.Alerts {
		rows = append(rows, []any{at, a.CustomerID, string(a.Severity), uint32(a.AnomalyCount),
			a.LatestAnomalyDate, a.LatestAnomalyValue, a.DeviationFromMean, a.ZScore})
	}
	if err := s.ch.InsertRows(ctx, s.table(TableAnomalyAlerts), alertColumns, rows); err != nil {
		s.l.Error("clickhouse store_alerts error", applogger.Int("rows", len(rows)), applogger.Error(err))
		return fmt.Errorf("store alerts: %w", err)
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	summary := [][]any{{at, uint32(report.Summary.TotalCustomers), uint32(report.Summary.TotalAnomalies), string(payload)}}
	if err := s.ch.InsertRows(ctx, s.table(TableAnomalyReports), reportColumns, summary); err != nil {
		s.l.Error("clickhouse store_report error", applogger.Error(err))
		return fmt.Errorf("store report: %w", err)
	}
	return nil
}

func (s *CHResultStore) Health(ctx context.Context) error { return s.ch.Health(ctx) }

func (s *CHResultStore) table(name string) string { return s.database + "." + name }
