package holiday

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"LoadCast/internal/domain/service"
	xhttp "LoadCast/pkg/http"
)

// HTTPProvider fetches public holidays from a Nager.Date compatible API
// (GET {base}/api/v3/PublicHolidays/{year}/{country}) behind a circuit breaker.
type HTTPProvider struct {
	baseURL  string
	country  string
	client   *xhttp.Client
	cb       *gobreaker.CircuitBreaker
	attempts int
}

// ProviderOption configures an HTTPProvider.
type ProviderOption func(*HTTPProvider)

// WithAttempts sets the number of tries per call before the failure counts against the breaker.
func WithAttempts(n int) ProviderOption {
	return func(p *HTTPProvider) { p.attempts = n }
}

// WithClient replaces the HTTP client.
func WithClient(c *xhttp.Client) ProviderOption {
	return func(p *HTTPProvider) { p.client = c }
}

// NewHTTPProvider builds a provider. The breaker opens after 3 consecutive
// failures and half-opens after a minute.
func NewHTTPProvider(baseURL, country string, timeout time.Duration, opts ...ProviderOption) *HTTPProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	st := gobreaker.Settings{Name: "holiday-provider"}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 3 }
	st.Timeout = time.Minute
	p := &HTTPProvider{
		baseURL:  baseURL,
		country:  country,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		cb:       gobreaker.NewCircuitBreaker(st),
		attempts: 2,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type publicHoliday struct {
	Date      string `json:"date"`
	LocalName string `json:"localName"`
	Name      string `json:"name"`
}

// Holidays implements service.HolidayProvider.
func (p *HTTPProvider) Holidays(ctx context.Context, year int) ([]time.Time, error) {
	if p.baseURL == "" {
		return nil, fmt.Errorf("holiday provider url not configured")
	}
	path := fmt.Sprintf("/api/v3/PublicHolidays/%d/%s", year, p.country)
	res, err := p.cb.Execute(func() (interface{}, error) {
		var out []publicHoliday
		if err := p.getJSONWithRetry(ctx, path, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("holidays %d/%s: %w", year, p.country, err)
	}
	raw := res.([]publicHoliday)
	dates := make([]time.Time, 0, len(raw))
	for _, h := range raw {
		d, err := time.Parse(dateLayout, h.Date)
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func (p *HTTPProvider) getJSON(ctx context.Context, path string, dest interface{}) error {
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     p.baseURL + path,
		Headers: map[string]string{"Accept": "application/json"},
	}, dest)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}

// getJSONWithRetry retries transient failures with linear backoff.
func (p *HTTPProvider) getJSONWithRetry(ctx context.Context, path string, dest interface{}) error {
	if p.attempts <= 1 {
		return p.getJSON(ctx, path, dest)
	}
	var err error
	for i := 1; i <= p.attempts; i++ {
		err = p.getJSON(ctx, path, dest)
		if err == nil {
			return nil
		}
		var se *xhttp.StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return err
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

var _ service.HolidayProvider = (*HTTPProvider)(nil)
