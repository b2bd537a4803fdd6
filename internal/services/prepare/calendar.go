package prepare

import (
	"math"
	"time"

	"LoadCast/internal/domain/models"
	"LoadCast/internal/domain/service"
)

// CalendarFeatures derives per-date calendar attributes. A nil calendar marks no holidays.
func CalendarFeatures(series models.TimeSeries, holidays service.HolidayCalendar) []models.CalendarFeatures {
	out := make([]models.CalendarFeatures, len(series.Dates))
	for i, d := range series.Dates {
		out[i] = CalendarFor(d, holidays)
	}
	return out
}

// CalendarFor computes the calendar attributes of one date.
func CalendarFor(d time.Time, holidays service.HolidayCalendar) models.CalendarFeatures {
	dow := Weekday(d)
	doy := float64(d.YearDay())
	return models.CalendarFeatures{
		Date:         d,
		DayOfWeek:    dow,
		DayOfMonth:   d.Day(),
		Month:        int(d.Month()),
		Quarter:      (int(d.Month())-1)/3 + 1,
		IsWeekend:    dow >= 5,
		IsHoliday:    holidays != nil && holidays.IsHoliday(d),
		DayOfYearSin: math.Sin(2 * math.Pi * doy / 365.25),
		DayOfYearCos: math.Cos(2 * math.Pi * doy / 365.25),
		DayOfWeekSin: math.Sin(2 * math.Pi * float64(dow) / 7),
		DayOfWeekCos: math.Cos(2 * math.Pi * float64(dow) / 7),
	}
}

// Weekday returns the day of week with Monday = 0.
func Weekday(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}
