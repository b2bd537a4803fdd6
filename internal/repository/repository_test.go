package repository

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LoadCast/internal/domain/models"
	pkgch "LoadCast/pkg/clickhouse"
	pkgkafka "LoadCast/pkg/kafka"
)

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*pkgch.Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return pkgch.NewClientFromDB(db, 0), mock
}

func TestDailySeriesMapsNullToNaN(t *testing.T) {
	ch, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"date", "value"}).
		AddRow(day, 10.5).
		AddRow(day.AddDate(0, 0, 1), nil)
	mock.ExpectQuery(`FROM lc\.daily_load FINAL`).
		WithArgs("north", day, day.AddDate(0, 0, 1)).
		WillReturnRows(rows)

	obs, err := NewCHSeriesStore(ch, "lc").DailySeries(context.Background(), "north", day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, 10.5, obs[0].Value)
	assert.True(t, math.IsNaN(obs[1].Value))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerReadingsQueryError(t *testing.T) {
	ch, mock := newMock(t)
	mock.ExpectQuery(`FROM lc\.customer_readings`).WillReturnError(errors.New("down"))

	_, err := NewCHSeriesStore(ch, "lc").CustomerReadings(context.Background(), day, day)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customer readings")
}

func TestWeatherScansNullableColumns(t *testing.T) {
	ch, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"ts", "temperature", "humidity", "pressure", "wind_speed", "precipitation"}).
		AddRow(day.Add(time.Hour), 3.5, nil, 1012.0, 4.0, 0.2)
	mock.ExpectQuery(`FROM lc\.weather`).WillReturnRows(rows)

	w, err := NewCHSeriesStore(ch, "lc").Weather(context.Background(), day, day)
	require.NoError(t, err)
	require.Len(t, w, 1)
	assert.Equal(t, 3.5, w[0].Temperature)
	assert.True(t, math.IsNaN(w[0].Humidity))
	assert.Equal(t, 0.2, w[0].Precipitation)
}

func TestStoreForecastAttachesCorrection(t *testing.T) {
	ch, mock := newMock(t)
	gen := day.Add(12 * time.Hour)
	res := &models.ForecastResult{
		EntityID:    "north",
		Fingerprint: "abc",
		GeneratedAt: gen,
		Primary: models.Forecast{Source: "seasonal-trend", Rows: []models.ForecastRow{
			{Date: day, Point: 10, Lower: 8, Upper: 12},
		}},
		Ensemble: models.Forecast{Source: models.SourceEnsemble, Rows: []models.ForecastRow{
			{Date: day, Point: 11, Lower: 9, Upper: 13, Source: models.SourceEnsemble},
		}},
		Corrected: &models.CorrectedForecast{Rows: []models.CorrectedRow{{Date: day, Original: 10, Correction: 1.5, Corrected: 11.5}}},
	}
	mock.ExpectExec(`INSERT INTO lc\.forecasts`).
		WithArgs(gen, "north", "abc", "seasonal-trend", day, 10.0, 8.0, 12.0, 11.5,
			gen, "north", "abc", models.SourceEnsemble, day, 11.0, 9.0, 13.0, nil).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, NewCHResultStore(ch, "lc").StoreForecast(context.Background(), res))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreAnomaliesWritesAlertsAndPayload(t *testing.T) {
	ch, mock := newMock(t)
	report := &models.AnomalyReport{
		Summary: models.ReportSummary{AnalysisDate: day, TotalCustomers: 3, TotalAnomalies: 1},
		Alerts:  []models.Alert{{CustomerID: "c1", Severity: models.SeverityHigh, AnomalyCount: 1, LatestAnomalyDate: day, LatestAnomalyValue: 50, DeviationFromMean: 40, ZScore: 4.2}},
	}
	mock.ExpectExec(`INSERT INTO lc\.anomaly_alerts`).
		WithArgs(day, "c1", "high", uint32(1), day, 50.0, 40.0, 4.2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO lc\.anomaly_reports`).
		WithArgs(day, uint32(3), uint32(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewCHResultStore(ch, "lc").StoreAnomalies(context.Background(), report))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaIsQualified(t *testing.T) {
	stmts := Schema("lc")
	require.Len(t, stmts, 7)
	assert.Contains(t, stmts[0], "CREATE DATABASE IF NOT EXISTS lc")
	for _, s := range stmts[1:] {
		assert.Contains(t, s, "IF NOT EXISTS lc.")
	}
}

type recordingProducer struct {
	topics []string
	keys   [][]byte
	batch  int
	err    error
}

func (r *recordingProducer) Publish(_ context.Context, topic string, key []byte, _ interface{}) error {
	r.topics = append(r.topics, topic)
	r.keys = append(r.keys, key)
	return r.err
}

func (r *recordingProducer) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	r.topics = append(r.topics, topic)
	r.batch += len(msgs)
	return r.err
}

func (r *recordingProducer) Close() error { return nil }

func TestKafkaPublisherRoutesByTopic(t *testing.T) {
	rp := &recordingProducer{}
	p := newKafkaPublisher(rp, Topics{Forecasts: "f", Alerts: "a"})
	ctx := context.Background()

	require.NoError(t, p.PublishForecast(ctx, &models.ForecastResult{EntityID: "north"}))
	require.NoError(t, p.PublishReport(ctx, &models.AnomalyReport{}), "disabled topic is a no-op")
	require.NoError(t, p.PublishAlerts(ctx, []models.RealTimeAlert{{CustomerID: "c1"}, {CustomerID: "c2"}}))
	require.NoError(t, p.Deliver(ctx, models.RealTimeAlert{CustomerID: "c3"}))

	assert.Equal(t, []string{"f", "a", "a"}, rp.topics)
	assert.Equal(t, []byte("north"), rp.keys[0])
	assert.Equal(t, 3, rp.batch)
}

func TestKafkaPublisherWrapsErrors(t *testing.T) {
	p := newKafkaPublisher(&recordingProducer{err: errors.New("broker down")}, Topics{Forecasts: "f"})
	err := p.PublishForecast(context.Background(), &models.ForecastResult{EntityID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish forecast")
}
