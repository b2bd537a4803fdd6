package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
	pkgch "LoadCast/pkg/clickhouse"
	applogger "LoadCast/pkg/logger"
)

// CHSeriesStore implements SeriesStore backed by ClickHouse.
type CHSeriesStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

var _ domrepo.SeriesStore = (*CHSeriesStore)(nil)

func NewCHSeriesStore(ch *pkgch.Client, database string) *CHSeriesStore {
	return &CHSeriesStore{db: ch.DB(), database: database, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHSeriesStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CHSeriesStore) table(name string) string { return s.database + "." + name }

func (s *CHSeriesStore) DailySeries(ctx context.Context, entityID string, from, to time.Time) ([]models.Observation, error) {
	q := fmt.Sprintf(`
        SELECT date, value
        FROM %s FINAL
        WHERE entity_id = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `, s.table(TableDailyLoad))
	rows, err := s.db.QueryContext(ctx, q, entityID, from, to)
	if err != nil {
		s.logErr("daily_series query error", entityID, err)
		return nil, fmt.Errorf("daily series: %w", err)
	}
	defer rows.Close()

	out := make([]models.Observation, 0, 1024)
	for rows.Next() {
		var (
			o models.Observation
			v sql.NullFloat64
		)
		if err := rows.Scan(&o.Date, &v); err != nil {
			s.logErr("daily_series scan error", entityID, err)
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.Value = nullToNaN(v)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		s.logErr("daily_series rows error", entityID, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHSeriesStore) CustomerReadings(ctx context.Context, from, to time.Time) ([]models.CustomerReading, error) {
	q := fmt.Sprintf(`
        SELECT customer_id, region, date, value
        FROM %s FINAL
        WHERE date >= ? AND date <= ?
        ORDER BY customer_id ASC, date ASC
    `, s.table(TableCustomerReadings))
	rows, err := s.db.QueryContext(ctx, q, from, to)
	if err != nil {
		s.logErr("customer_readings query error", "", err)
		return nil, fmt.Errorf("customer readings: %w", err)
	}
	defer rows.Close()

	out := make([]models.CustomerReading, 0, 4096)
	for rows.Next() {
		var r models.CustomerReading
		if err := rows.Scan(&r.CustomerID, &r.Region, &r.Date, &r.Value); err != nil {
			s.logErr("customer_readings scan error", "", err)
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		s.logErr("customer_readings rows error", "", err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHSeriesStore) Weather(ctx context.Context, from, to time.Time) ([]models.WeatherRecord, error) {
	q := fmt.Sprintf(`
        SELECT ts, temperature, humidity, pressure, wind_speed, precipitation
        FROM %s FINAL
        WHERE ts >= ? AND ts < ?
        ORDER BY ts ASC
    `, s.table(TableWeather))
	rows, err := s.db.QueryContext(ctx, q, from, to.AddDate(0, 0, 1))
	if err != nil {
		s.logErr("weather query error", "", err)
		return nil, fmt.Errorf("weather: %w", err)
	}
	defer rows.Close()

	var out []models.WeatherRecord
	for rows.Next() {
		var (
			w                              models.WeatherRecord
			temp, hum, press, wind, precip sql.NullFloat64
		)
		if err := rows.Scan(&w.Time, &temp, &hum, &press, &wind, &precip); err != nil {
			s.logErr("weather scan error", "", err)
			return nil, fmt.Errorf("scan weather: %w", err)
		}
		w.Temperature = nullToNaN(temp)
		w.Humidity = nullToNaN(hum)
		w.Pressure = nullToNaN(press)
		w.WindSpeed = nullToNaN(wind)
		w.Precipitation = nullToNaN(precip)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		s.logErr("weather rows error", "", err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHSeriesStore) Health(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *CHSeriesStore) logErr(msg, entity string, err error) {
	s.l.Error("clickhouse "+msg,
		applogger.String("database", s.database),
		applogger.String("entity", entity),
		applogger.Error(err),
	)
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
