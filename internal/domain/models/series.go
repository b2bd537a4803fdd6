package models

import "time"

// Observation is one raw (date, value) row. A NaN value marks a missing reading.
type Observation struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// TimeSeries is a prepared daily series: one value per calendar day, no gaps, no NaN.
type TimeSeries struct {
	EntityID string      `json:"entity_id"`
	Dates    []time.Time `json:"dates"`
	Values   []float64   `json:"values"`
}

// Len returns the number of points.
func (s TimeSeries) Len() int { return len(s.Values) }

// Start returns the first date, or the zero time for an empty series.
func (s TimeSeries) Start() time.Time {
	if len(s.Dates) == 0 {
		return time.Time{}
	}
	return s.Dates[0]
}

// End returns the last date, or the zero time for an empty series.
func (s TimeSeries) End() time.Time {
	if len(s.Dates) == 0 {
		return time.Time{}
	}
	return s.Dates[len(s.Dates)-1]
}

// Slice returns the points in [from, to) sharing no memory with s.
func (s TimeSeries) Slice(from, to int) TimeSeries {
	out := TimeSeries{EntityID: s.EntityID}
	out.Dates = append([]time.Time(nil), s.Dates[from:to]...)
	out.Values = append([]float64(nil), s.Values[from:to]...)
	return out
}

// CalendarFeatures are the per-date calendar attributes derived from a prepared series.
type CalendarFeatures struct {
	Date         time.Time `json:"date"`
	DayOfWeek    int       `json:"day_of_week"` // Monday = 0
	DayOfMonth   int       `json:"day_of_month"`
	Month        int       `json:"month"`
	Quarter      int       `json:"quarter"`
	IsWeekend    bool      `json:"is_weekend"`
	IsHoliday    bool      `json:"is_holiday"`
	DayOfYearSin float64   `json:"day_sin"`
	DayOfYearCos float64   `json:"day_cos"`
	DayOfWeekSin float64   `json:"week_sin"`
	DayOfWeekCos float64   `json:"week_cos"`
}

// ValueStats summarises the non-missing values of a series.
type ValueStats struct {
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// DataQualityReport describes a raw series before preparation.
type DataQualityReport struct {
	EntityID       string     `json:"entity_id"`
	TotalRecords   int        `json:"total_records"`
	MissingValues  int        `json:"missing_values"`
	MissingRatio   float64    `json:"missing_ratio"`
	ZeroValues     int        `json:"zero_values"`
	NegativeValues int        `json:"negative_values"`
	DuplicateDates int        `json:"duplicate_dates"`
	Outliers       int        `json:"outliers"`
	Start          time.Time  `json:"start"`
	End            time.Time  `json:"end"`
	RangeDays      int        `json:"range_days"`
	Stats          ValueStats `json:"value_stats"`
	Fingerprint    string     `json:"fingerprint"`
}

// WeatherRecord is one row of the optional weather feature table. NaN marks a missing field.
type WeatherRecord struct {
	Time          time.Time `json:"time"`
	Temperature   float64   `json:"temperature"`
	Humidity      float64   `json:"humidity"`
	Pressure      float64   `json:"pressure"`
	WindSpeed     float64   `json:"wind_speed"`
	Precipitation float64   `json:"precipitation"`
}
