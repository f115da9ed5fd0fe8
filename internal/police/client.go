package police

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/varoOP/crimedb/internal/domain"
	"github.com/varoOP/crimedb/internal/metrics"
)

const (
	DefaultBaseURL  = "https://data.police.uk/api"
	DefaultInterval = 100 * time.Millisecond
	DefaultTimeout  = 10 * time.Second
)

// Client fetches street-level crimes from the police data API. All requests
// share one limiter so consecutive calls are spaced by at least the
// configured interval.
type Client struct {
	log        zerolog.Logger
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
}

var _ domain.Fetcher = (*Client)(nil)

// NewClient creates a police API client from the application config.
func NewClient(log zerolog.Logger, cfg *domain.Config, m *metrics.Metrics) *Client {
	baseURL := cfg.PoliceAPIURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	interval := cfg.RateLimitInterval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		log:     log.With().Str("module", "police").Logger(),
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		metrics: m,
	}
}

// Fetch returns every crime the source reports near lat/lng for month.
// Transport failures, non-200 responses and undecodable bodies are logged
// and produce an empty result. The only error returned is from ctx.
func (c *Client) Fetch(ctx context.Context, lat, lng float64, month domain.Month) ([]domain.Incident, error) {
	params := url.Values{
		"date": {month.String()},
		"lat":  {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lng":  {strconv.FormatFloat(lng, 'f', -1, 64)},
	}
	u := fmt.Sprintf("%s/crimes-street/all-crime?%s", c.baseURL, params.Encode())

	log := c.log.With().Stringer("month", month).Float64("lat", lat).Float64("lng", lng).Logger()

	body, err := c.get(ctx, u)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if isLimiterErr(err) {
			return nil, err
		}
		c.metrics.FetchRequests.WithLabelValues("error").Inc()
		log.Warn().Err(err).Msg("Crime request failed, treating as empty")
		return []domain.Incident{}, nil
	}

	incidents, err := decodeCrimes(body)
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues("error").Inc()
		log.Warn().Err(err).Msg("Could not decode crime response, treating as empty")
		return []domain.Incident{}, nil
	}

	outcome := "success"
	if len(incidents) == 0 {
		outcome = "empty"
	}
	c.metrics.FetchRequests.WithLabelValues(outcome).Inc()
	log.Debug().Int("count", len(incidents)).Msg("Fetched crimes")

	return incidents, nil
}

// LastUpdated returns the most recent month the source has published. The
// boolean is false when the source could not be reached or parsed.
func (c *Client) LastUpdated(ctx context.Context) (domain.Month, bool) {
	body, err := c.get(ctx, c.baseURL+"/crime-last-updated")
	if err != nil {
		c.log.Warn().Err(err).Msg("Could not fetch last updated date")
		return domain.Month{}, false
	}

	var resp struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		c.log.Warn().Err(err).Msg("Could not decode last updated response")
		return domain.Month{}, false
	}

	m, err := parseLastUpdated(resp.Date)
	if err != nil {
		c.log.Warn().Err(err).Str("date", resp.Date).Msg("Unrecognised last updated date")
		return domain.Month{}, false
	}

	return m, true
}

// parseLastUpdated accepts either YYYY-MM or a date/timestamp starting with
// YYYY-MM-DD and reduces it to a month.
func parseLastUpdated(s string) (domain.Month, error) {
	s = strings.TrimSpace(s)
	if len(s) > 7 {
		if len(s) < 10 {
			return domain.Month{}, errors.Errorf("unexpected date %q", s)
		}
		t, err := time.Parse("2006-01-02", s[:10])
		if err != nil {
			return domain.Month{}, errors.Wrapf(err, "unexpected date %q", s)
		}
		return domain.MonthOf(t), nil
	}
	return domain.ParseMonth(s)
}

type limiterError struct {
	err error
}

func (e *limiterError) Error() string { return "rate limiter: " + e.err.Error() }
func (e *limiterError) Unwrap() error { return e.err }

func isLimiterErr(err error) bool {
	var le *limiterError
	return errors.As(err, &le)
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &limiterError{err: err}
	}

	start := time.Now()
	defer func() {
		c.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	c.log.Trace().Str("url", u).Msg("GET")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, errors.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	return body, nil
}
