package repository

import "fmt"

// Table names inside the configured database.
const (
	TableDailyLoad        = "daily_load"
	TableCustomerReadings = "customer_readings"
	TableWeather          = "weather"
	TableForecasts        = "forecasts"
	TableAnomalyAlerts    = "anomaly_alerts"
	TableAnomalyReports   = "anomaly_reports"
)

// Schema returns the idempotent DDL for database.
func Schema(database string) []string {
	q := func(t string) string { return database + "." + t }
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            entity_id LowCardinality(String),
            date Date,
            value Nullable(Float64)
        ) ENGINE = ReplacingMergeTree
        ORDER BY (entity_id, date)`, q(TableDailyLoad)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            customer_id String,
            region LowCardinality(String),
            date Date,
            value Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (customer_id, date)`, q(TableCustomerReadings)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            ts DateTime,
            temperature Nullable(Float64),
            humidity Nullable(Float64),
            pressure Nullable(Float64),
            wind_speed Nullable(Float64),
            precipitation Nullable(Float64)
        ) ENGINE = ReplacingMergeTree
        ORDER BY ts`, q(TableWeather)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            generated_at DateTime,
            entity_id LowCardinality(String),
            fingerprint String,
            source LowCardinality(String),
            date Date,
            point Float64,
            lower Float64,
            upper Float64,
            corrected Nullable(Float64)
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMM(generated_at)
        ORDER BY (entity_id, generated_at, source, date)
        TTL generated_at + INTERVAL 180 DAY`, q(TableForecasts)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            analysis_date DateTime,
            customer_id String,
            severity LowCardinality(String),
            anomaly_count UInt32,
            latest_anomaly_date Date,
            latest_anomaly_value Float64,
            deviation Float64,
            z_score Float64
        ) ENGINE = MergeTree
        ORDER BY (analysis_date, customer_id)
        TTL analysis_date + INTERVAL 365 DAY`, q(TableAnomalyAlerts)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            analysis_date DateTime,
            customers UInt32,
            anomalies UInt32,
            payload String CODEC(ZSTD(3))
        ) ENGINE = MergeTree
        ORDER BY analysis_date
        TTL analysis_date + INTERVAL 365 DAY`, q(TableAnomalyReports)),
	}
}
