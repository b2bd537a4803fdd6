package residual

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
	"LoadCast/internal/domain/service"
	"LoadCast/internal/services/features"
	"LoadCast/internal/services/prepare"
)

var (
	lagDays        = []int{1, 2, 3, 7, 14, 30}
	rollingWindows = []int{3, 7, 14, 30}
)

const (
	groupWeather  = "weather"
	groupHolidays = "holidays"
)

// PrepareFeatures builds the residual regressor's design matrix for a prepared
// series. weather may be nil. A weather table that shares no day with the
// series, or a nil holiday calendar, omits that group and is reported as an
// UpstreamFeatureError both in the returned slice and in the table warnings.
func PrepareFeatures(series models.TimeSeries, weather []models.WeatherRecord, holidays service.HolidayCalendar) (models.FeatureTable, []error) {
	n := series.Len()
	b := &tableBuilder{n: n}
	var warnings []error

	cal := prepare.CalendarFeatures(series, holidays)
	col := func(fn func(c models.CalendarFeatures) float64) []float64 {
		out := make([]float64, n)
		for i, c := range cal {
			out[i] = fn(c)
		}
		return out
	}
	b.add("day_of_week", col(func(c models.CalendarFeatures) float64 { return float64(c.DayOfWeek) }))
	b.add("day_of_month", col(func(c models.CalendarFeatures) float64 { return float64(c.DayOfMonth) }))
	b.add("month", col(func(c models.CalendarFeatures) float64 { return float64(c.Month) }))
	b.add("quarter", col(func(c models.CalendarFeatures) float64 { return float64(c.Quarter) }))
	b.add("is_weekend", col(func(c models.CalendarFeatures) float64 { return boolf(c.IsWeekend) }))
	if holidays != nil {
		b.add("is_holiday", col(func(c models.CalendarFeatures) float64 { return boolf(c.IsHoliday) }))
	} else {
		warnings = append(warnings, &errs.UpstreamFeatureError{
			EntityID: series.EntityID, Group: groupHolidays, Err: errors.New("no holiday calendar"),
		})
	}
	b.add("day_sin", col(func(c models.CalendarFeatures) float64 { return c.DayOfYearSin }))
	b.add("day_cos", col(func(c models.CalendarFeatures) float64 { return c.DayOfYearCos }))
	b.add("week_sin", col(func(c models.CalendarFeatures) float64 { return c.DayOfWeekSin }))
	b.add("week_cos", col(func(c models.CalendarFeatures) float64 { return c.DayOfWeekCos }))

	for _, lag := range lagDays {
		if n > lag {
			b.add(fmt.Sprintf("lag_%d", lag), fillGaps(features.Lag(series.Values, lag)))
		}
	}
	for _, w := range rollingWindows {
		if n <= w {
			continue
		}
		b.add(fmt.Sprintf("rolling_mean_%d", w), fillGaps(features.RollingMean(series.Values, w)))
		b.add(fmt.Sprintf("rolling_std_%d", w), fillGaps(features.RollingStd(series.Values, w)))
		b.add(fmt.Sprintf("rolling_min_%d", w), fillGaps(features.RollingMin(series.Values, w)))
		b.add(fmt.Sprintf("rolling_max_%d", w), fillGaps(features.RollingMax(series.Values, w)))
	}

	if weather != nil {
		cols, err := weatherColumns(series, weather)
		if err != nil {
			warnings = append(warnings, err)
		}
		for _, c := range cols {
			b.add(c.name, c.values)
		}
	}

	trend := make([]float64, n)
	trendSq := make([]float64, n)
	for i := range trend {
		trend[i] = float64(i)
		trendSq[i] = float64(i * i)
	}
	b.add("trend", trend)
	b.add("trend_squared", trendSq)

	table := b.table(series)
	for _, w := range warnings {
		table.Warnings = append(table.Warnings, w.Error())
	}
	return table, warnings
}

// FutureFeatures builds the feature rows of forecast dates by appending the
// point forecast to the history and keeping the tail.
func FutureFeatures(history models.TimeSeries, forecast models.Forecast, weather []models.WeatherRecord, holidays service.HolidayCalendar) (models.FeatureTable, []error) {
	ext := models.TimeSeries{
		EntityID: history.EntityID,
		Dates:    append(append([]time.Time(nil), history.Dates...), make([]time.Time, 0, len(forecast.Rows))...),
		Values:   append([]float64(nil), history.Values...),
	}
	for _, r := range forecast.Rows {
		ext.Dates = append(ext.Dates, r.Date)
		ext.Values = append(ext.Values, r.Point)
	}
	table, warnings := PrepareFeatures(ext, weather, holidays)
	return table.Tail(len(forecast.Rows)), warnings
}

type namedColumn struct {
	name   string
	values []float64
}

type tableBuilder struct {
	n    int
	cols []namedColumn
}

func (b *tableBuilder) add(name string, values []float64) {
	b.cols = append(b.cols, namedColumn{name: name, values: values})
}

func (b *tableBuilder) table(series models.TimeSeries) models.FeatureTable {
	t := models.FeatureTable{
		EntityID: series.EntityID,
		Dates:    append([]time.Time(nil), series.Dates...),
		Columns:  make([]string, len(b.cols)),
		Rows:     make([][]float64, b.n),
	}
	for j, c := range b.cols {
		t.Columns[j] = c.name
	}
	for i := 0; i < b.n; i++ {
		row := make([]float64, len(b.cols))
		for j, c := range b.cols {
			row[j] = c.values[i]
		}
		t.Rows[i] = row
	}
	return t
}

type dailyWeather struct {
	sums  [4]float64
	count [4]int
	rain  float64
	rainN int
}

// weatherColumns resamples weather to days (mean of temperature, humidity,
// pressure and wind speed, sum of precipitation) and aligns it to the series.
func weatherColumns(series models.TimeSeries, weather []models.WeatherRecord) ([]namedColumn, error) {
	upstream := func(err error) error {
		return &errs.UpstreamFeatureError{EntityID: series.EntityID, Group: groupWeather, Err: err}
	}
	if len(weather) == 0 {
		return nil, upstream(errors.New("empty weather table"))
	}
	days := make(map[time.Time]*dailyWeather)
	for _, w := range weather {
		d := prepare.Day(w.Time)
		agg, ok := days[d]
		if !ok {
			agg = &dailyWeather{}
			days[d] = agg
		}
		for i, v := range []float64{w.Temperature, w.Humidity, w.Pressure, w.WindSpeed} {
			if !math.IsNaN(v) {
				agg.sums[i] += v
				agg.count[i]++
			}
		}
		if !math.IsNaN(w.Precipitation) {
			agg.rain += w.Precipitation
			agg.rainN++
		}
	}

	names := []string{"weather_temperature", "weather_humidity", "weather_pressure", "weather_wind_speed", "weather_precipitation"}
	raw := make([][]float64, len(names))
	for j := range raw {
		raw[j] = make([]float64, series.Len())
	}
	overlap := 0
	for i, d := range series.Dates {
		agg, ok := days[prepare.Day(d)]
		if ok {
			overlap++
		}
		for j := 0; j < 4; j++ {
			raw[j][i] = math.NaN()
			if ok && agg.count[j] > 0 {
				raw[j][i] = agg.sums[j] / float64(agg.count[j])
			}
		}
		raw[4][i] = math.NaN()
		if ok && agg.rainN > 0 {
			raw[4][i] = agg.rain
		}
	}
	if overlap == 0 {
		return nil, upstream(fmt.Errorf("no weather day overlaps %s..%s",
			series.Start().Format(time.DateOnly), series.End().Format(time.DateOnly)))
	}

	var cols []namedColumn
	var empty []string
	for j, name := range names {
		if features.CountNaN(raw[j]) == len(raw[j]) {
			empty = append(empty, name)
			continue
		}
		cols = append(cols, namedColumn{name: name, values: features.BackwardFill(features.ForwardFill(raw[j]))})
	}
	if len(empty) > 0 {
		sort.Strings(empty)
		return cols, upstream(fmt.Errorf("columns without data: %v", empty))
	}
	return cols, nil
}

func fillGaps(values []float64) []float64 {
	return features.FillZero(features.ForwardFill(values))
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
