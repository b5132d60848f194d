// Package apiclient fetches per-country historical series from a
// disease.sh-compatible statistics API and normalizes them into daily
// records.
//
// A single Client is shared by all collection workers: its rate limiter and
// circuit breaker are global to the upstream, not per worker.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/striezel/corona-sub001/catalog"
	"github.com/striezel/corona-sub001/collect/internal/rangeselect"
	"github.com/striezel/corona-sub001/collect/internal/store"
	"github.com/striezel/corona-sub001/netsafe"
)

// Config tunes the client. Zero fields take the defaults noted.
type Config struct {
	BaseURL           string        // default DefaultBaseURL
	UserAgent         string        // default "corona-collector/1.0"
	Timeout           time.Duration // per request, default 30s
	MaxAttempts       int           // total attempts per fetch, default 3
	BaseBackoff       time.Duration // default 1s
	MaxBackoff        time.Duration // default 30s
	MaxRetryAfter     time.Duration // cap on Retry-After hints, default 2m
	RequestsPerSecond float64       // global limit, default 5; negative disables
	Burst             int           // default 1
	BreakerThreshold  int           // consecutive transient failures, default 10
	BreakerReset      time.Duration // default 1m
	MaxBytes          int64         // response cap, default 16 MiB
	AllowPrivate      bool          // skip the base URL SSRF check
}

// DefaultBaseURL is the public disease.sh COVID-19 API.
const DefaultBaseURL = "https://disease.sh/v3/covid-19"

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.UserAgent == "" {
		c.UserAgent = "corona-collector/1.0"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.MaxRetryAfter <= 0 {
		c.MaxRetryAfter = 2 * time.Minute
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 5
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.BreakerThreshold == 0 {
		c.BreakerThreshold = 10
	}
	if c.BreakerReset <= 0 {
		c.BreakerReset = time.Minute
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 16 << 20
	}
	return c
}

// Result is a successful fetch.
type Result struct {
	Records    []store.DailyRecord
	Attempts   int
	StatusCode int
}

// Client is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *Breaker
	logger  *slog.Logger
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout is left untouched.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// WithClock sets the clock used for Recent windows and the breaker.
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// WithSleep replaces the backoff wait.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// New validates cfg and builds a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("apiclient: base url: %w", err)
	}
	if !cfg.AllowPrivate {
		if err := netsafe.ValidateURL(cfg.BaseURL); err != nil {
			return nil, fmt.Errorf("apiclient: base url: %w", err)
		}
	}

	c := &Client{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond < 0 {
		limit = rate.Inf
	}
	c.limiter = rate.NewLimiter(limit, cfg.Burst)
	c.breaker = NewBreaker(cfg.BreakerThreshold, cfg.BreakerReset, c.now)
	return c, nil
}

// Breaker exposes the shared breaker state.
func (c *Client) Breaker() *Breaker { return c.breaker }

// URL returns the request URL for country and r.
func (c *Client) URL(country catalog.Country, r rangeselect.Range) string {
	lastdays := "all"
	if r.Mode == rangeselect.Recent {
		lastdays = strconv.Itoa(r.Days(c.now()))
	}
	return fmt.Sprintf("%s/historical/%s?lastdays=%s", c.cfg.BaseURL, url.PathEscape(country.UpstreamKey), lastdays)
}

// Fetch retrieves the series of country for range r. Transient failures are
// retried with exponential backoff and jitter up to MaxAttempts; a 429
// Retry-After hint replaces the computed delay. Failures are *FetchError;
// context cancellation is returned as the wrapped context error.
func (c *Client) Fetch(ctx context.Context, country catalog.Country, r rangeselect.Range) (*Result, error) {
	target := c.URL(country, r)
	log := c.logger.With("country", country.ID, "mode", r.Mode.String())

	for attempt := 1; ; attempt++ {
		if !c.breaker.Allow() {
			return nil, &FetchError{Kind: KindCircuitOpen, Attempts: attempt - 1, Err: ErrCircuitOpen}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			c.breaker.Release()
			if ctx.Err() != nil {
				return nil, fmt.Errorf("apiclient: fetch %s: %w", country.ID, ctx.Err())
			}
			return nil, &FetchError{Kind: KindNetwork, Attempts: attempt - 1, Err: err}
		}

		records, status, err := c.once(ctx, country.ID, target)
		if err == nil {
			c.breaker.Success()
			return &Result{Records: records, Attempts: attempt, StatusCode: status}, nil
		}
		if ctx.Err() != nil {
			c.breaker.Release()
			return nil, fmt.Errorf("apiclient: fetch %s: %w", country.ID, ctx.Err())
		}

		var fe *FetchError
		if !errors.As(err, &fe) {
			fe = &FetchError{Kind: KindNetwork, Err: err}
		}
		fe.Attempts = attempt
		if !fe.Kind.Transient() {
			c.breaker.Success()
			return nil, fe
		}
		c.breaker.Failure()
		if attempt >= c.cfg.MaxAttempts {
			return nil, fe
		}

		delay := c.backoff(attempt)
		if fe.RetryAfter > 0 {
			delay = min(fe.RetryAfter, c.cfg.MaxRetryAfter)
		}
		log.Warn("apiclient: retrying", "attempt", attempt, "kind", fe.Kind.String(),
			"status", fe.StatusCode, "delay_ms", delay.Milliseconds(), "error", fe.Err)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("apiclient: fetch %s: %w", country.ID, err)
		}
	}
}

// once sends a single request and classifies the outcome.
func (c *Client) once(ctx context.Context, countryID, target string) ([]store.DailyRecord, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, &FetchError{Kind: KindUpstream, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, &FetchError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, readErr := netsafe.LimitedReadAll(resp.Body, c.cfg.MaxBytes)

	switch code := resp.StatusCode; {
	case code == http.StatusTooManyRequests:
		return nil, code, &FetchError{
			Kind:       KindRateLimited,
			StatusCode: code,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.now()),
			Err:        errors.New("rate limited"),
		}
	case code == http.StatusRequestTimeout || code >= 500:
		return nil, code, &FetchError{Kind: KindNetwork, StatusCode: code, Err: fmt.Errorf("server error: %s", upstreamMessage(body))}
	case code >= 400:
		return nil, code, &FetchError{Kind: KindUpstream, StatusCode: code, Err: fmt.Errorf("rejected: %s", upstreamMessage(body))}
	case code < 200 || code >= 300:
		return nil, code, &FetchError{Kind: KindUpstream, StatusCode: code, Err: fmt.Errorf("unexpected status %d", code)}
	}

	if readErr != nil {
		if errors.Is(readErr, netsafe.ErrResponseTooLarge) {
			return nil, resp.StatusCode, &FetchError{Kind: KindParse, StatusCode: resp.StatusCode, Err: readErr}
		}
		return nil, resp.StatusCode, &FetchError{Kind: KindNetwork, StatusCode: resp.StatusCode, Err: readErr}
	}
	records, err := normalize(countryID, body)
	if err != nil {
		return nil, resp.StatusCode, &FetchError{Kind: KindParse, StatusCode: resp.StatusCode, Err: err}
	}
	return records, resp.StatusCode, nil
}

// backoff returns BaseBackoff*2^(attempt-1) capped at MaxBackoff, jittered
// into [d/2, d].
func (c *Client) backoff(attempt int) time.Duration {
	d := c.cfg.BaseBackoff
	for i := 1; i < attempt && d < c.cfg.MaxBackoff; i++ {
		d *= 2
	}
	d = min(d, c.cfg.MaxBackoff)
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half+1)
}

// parseRetryAfter reads delta-seconds or an HTTP date. Unparseable or past
// values yield 0.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
