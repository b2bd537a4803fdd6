package models

import "time"

// Sensitivity selects the z-score threshold tier.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Threshold returns the z-score threshold for the tier. Unknown tiers fall back to medium.
func (s Sensitivity) Threshold() float64 {
	switch s {
	case SensitivityLow:
		return 3.0
	case SensitivityHigh:
		return 1.5
	default:
		return 2.0
	}
}

// Valid reports whether s is one of the three tiers.
func (s Sensitivity) Valid() bool {
	return s == SensitivityLow || s == SensitivityMedium || s == SensitivityHigh
}

// Severity ranks alerts.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rank orders severities high first.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	}
	return 3
}

// CustomerReading is one row of the per-entity input table.
type CustomerReading struct {
	CustomerID string    `json:"customer_id"`
	Region     string    `json:"region"`
	Date       time.Time `json:"date"`
	Value      float64   `json:"value"`
}

// AnomalyFlags are the outcomes of the five outlier tests for one date.
type AnomalyFlags struct {
	ZScore       bool `json:"z_score"`
	IQR          bool `json:"iqr"`
	DailyChange  bool `json:"daily_change"`
	WeeklyChange bool `json:"weekly_change"`
	Rolling      bool `json:"rolling"`
}

// Any reports whether at least one test fired.
func (f AnomalyFlags) Any() bool {
	return f.ZScore || f.IQR || f.DailyChange || f.WeeklyChange || f.Rolling
}

// AnomalyRecord is the per-(entity, date) detection result.
type AnomalyRecord struct {
	EntityID  string       `json:"entity_id"`
	Date      time.Time    `json:"date"`
	Value     float64      `json:"value"`
	Flags     AnomalyFlags `json:"flags"`
	Anomaly   bool         `json:"anomaly"`
	Severity  Severity     `json:"severity,omitempty"`
	ZScore    float64      `json:"z_score"`
	Deviation float64      `json:"deviation"`
}

// EntityAnomalies is the detector output for one analysed entity.
type EntityAnomalies struct {
	CustomerID      string          `json:"customer_id"`
	Region          string          `json:"region"`
	HasAnomaly      bool            `json:"has_anomaly"`
	AnomalyCount    int             `json:"anomaly_count"`
	AnomalyDates    []time.Time     `json:"anomaly_dates"`
	AnomalyValues   []float64       `json:"anomaly_values"`
	MeanValue       float64         `json:"mean_value"`
	StdValue        float64         `json:"std_value"`
	MaxZScore       float64         `json:"max_z_score"`
	MaxDailyChange  float64         `json:"max_daily_change"`
	MaxWeeklyChange float64         `json:"max_weekly_change"`
	AnomalyRate     float64         `json:"anomaly_rate"`
	LastValue       float64         `json:"last_value"`
	LastDate        time.Time       `json:"last_date"`
	Records         []AnomalyRecord `json:"records,omitempty"`
}

// TopEntity is one of the entities selected for deep analysis.
type TopEntity struct {
	CustomerID string  `json:"customer_id"`
	TotalValue float64 `json:"total_value"`
	Percentage float64 `json:"percentage"`
}

// ReportSummary carries the headline counts of an anomaly report.
type ReportSummary struct {
	TotalCustomers         int       `json:"total_customers"`
	TopCustomersAnalyzed   int       `json:"top_customers_analyzed"`
	CustomersWithAnomalies int       `json:"customers_with_anomalies"`
	TotalAnomalies         int       `json:"total_anomalies"`
	AnalysisDate           time.Time `json:"analysis_date"`
}

// RegionalStats aggregates all readings of one region.
type RegionalStats struct {
	TotalCustomers int     `json:"total_customers"`
	TotalValue     float64 `json:"total_value"`
	AvgValue       float64 `json:"avg_value"`
	MaxValue       float64 `json:"max_value"`
	MinValue       float64 `json:"min_value"`
}

// Alert is one entry of the severity-sorted alert list.
type Alert struct {
	CustomerID         string    `json:"customer_id"`
	Severity           Severity  `json:"severity"`
	AnomalyCount       int       `json:"anomaly_count"`
	LatestAnomalyDate  time.Time `json:"latest_anomaly_date"`
	LatestAnomalyValue float64   `json:"latest_anomaly_value"`
	DeviationFromMean  float64   `json:"deviation_from_mean"`
	ZScore             float64   `json:"z_score"`
}

// AnomalyReport is the nested cross-entity report handed to exporters.
type AnomalyReport struct {
	Summary         ReportSummary               `json:"summary"`
	TopCustomers    []TopEntity                 `json:"top_customers"`
	AnomalyDetails  map[string]*EntityAnomalies `json:"anomaly_details"`
	RegionalSummary map[string]RegionalStats    `json:"regional_summary"`
	Alerts          []Alert                     `json:"alerts"`
	Skipped         map[string]string           `json:"skipped,omitempty"`
}

// AlertTypeRealTime tags alerts produced by the recent-window fast path.
const AlertTypeRealTime = "real_time"

// RealTimeAlert is a low-latency alert over the most recent days of one entity.
type RealTimeAlert struct {
	CustomerID    string    `json:"customer_id"`
	Region        string    `json:"region,omitempty"`
	AlertType     string    `json:"alert_type"`
	Date          time.Time `json:"date"`
	LatestValue   float64   `json:"latest_value"`
	ExpectedRange string    `json:"expected_range"`
	ZScore        float64   `json:"z_score"`
	AlertTime     time.Time `json:"alert_time"`
}
