// Package holiday supplies the public-holiday calendar used for calendar
// features and the additive model's holiday regressor.
package holiday

import (
	"context"
	"fmt"
	"sync"
	"time"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/service"
	"LoadCast/pkg/logger"
	"LoadCast/pkg/util"
)

const dateLayout = util.DateLayout

// Calendar is a concurrency-safe set of holiday dates.
type Calendar struct {
	mu    sync.RWMutex
	days  map[string]struct{}
	years map[int]bool
}

// NewStatic builds a calendar from YYYY-MM-DD strings. Invalid entries are rejected.
func NewStatic(dates []string) (*Calendar, error) {
	c := &Calendar{days: make(map[string]struct{}), years: make(map[int]bool)}
	for _, d := range dates {
		t, ok := util.ParseDate(d)
		if !ok {
			return nil, fmt.Errorf("holiday %q: not a date", d)
		}
		c.days[t.Format(dateLayout)] = struct{}{}
	}
	return c, nil
}

// IsHoliday implements service.HolidayCalendar.
func (c *Calendar) IsHoliday(d time.Time) bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	_, ok := c.days[d.UTC().Format(dateLayout)]
	c.mu.RUnlock()
	return ok
}

// Add merges dates into the calendar.
func (c *Calendar) Add(dates ...time.Time) {
	c.mu.Lock()
	for _, d := range dates {
		c.days[d.UTC().Format(dateLayout)] = struct{}{}
	}
	c.mu.Unlock()
}

// Len returns the number of distinct holiday dates.
func (c *Calendar) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.days)
}

// Ensure loads the years spanned by [from, to] from provider once per year.
// Provider failures leave the static dates in place and are returned as
// UpstreamFeatureError so the caller can record a warning.
func (c *Calendar) Ensure(ctx context.Context, provider service.HolidayProvider, from, to time.Time, log *logger.Logger) error {
	if provider == nil {
		return nil
	}
	var firstErr error
	for y := from.Year(); y <= to.Year(); y++ {
		c.mu.RLock()
		done := c.years[y]
		c.mu.RUnlock()
		if done {
			continue
		}
		dates, err := provider.Holidays(ctx, y)
		if err != nil {
			if log != nil {
				log.Warn("holiday provider failed, using static calendar",
					logger.Int("year", y),
					logger.Error(err),
				)
			}
			if firstErr == nil {
				firstErr = &errs.UpstreamFeatureError{EntityID: fmt.Sprintf("%d", y), Group: "holidays", Err: err}
			}
			continue
		}
		c.Add(dates...)
		c.mu.Lock()
		c.years[y] = true
		c.mu.Unlock()
	}
	return firstErr
}

var _ service.HolidayCalendar = (*Calendar)(nil)
