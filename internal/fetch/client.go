// Package fetch issues rate-limited HTTP GETs against the stats site with
// bounded retries, outcome classification, and periodic identity rotation.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/albapepper/pfr-ingest/internal/ratelimit"
)

// Page is one fetched HTML body plus metadata. It is owned by the caller
// that fetched it, consumed once by the parser, then discarded.
type Page struct {
	URL        string
	Body       []byte
	StatusCode int
	FetchedAt  time.Time
}

// Metrics counts fetch outcomes across a run.
type Metrics struct {
	Total     atomic.Int64
	Succeeded atomic.Int64
	Failed    atomic.Int64
	Penalties atomic.Int64
}

// Summary renders the counters for end-of-run logging.
func (m *Metrics) Summary() string {
	return fmt.Sprintf("requests=%d ok=%d failed=%d penalties=%d",
		m.Total.Load(), m.Succeeded.Load(), m.Failed.Load(), m.Penalties.Load())
}

// Options tunes the client. Zero values fall back to defaults matching the
// site's tolerance.
type Options struct {
	Timeout      time.Duration // per-request timeout
	MaxRetries   int           // retries after the first attempt
	RetryBase    time.Duration // backoff base: base * 2^attempt
	RetryCap     time.Duration // backoff ceiling
	RotateEvery  int           // rotate identity every N successful fetches
	MaxBodyBytes int64         // response body size cap
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Timeout <= 0 {
		out.Timeout = 30 * time.Second
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = 3
	}
	if out.RetryBase <= 0 {
		out.RetryBase = 2 * time.Second
	}
	if out.RetryCap <= 0 {
		out.RetryCap = 30 * time.Second
	}
	if out.RotateEvery <= 0 {
		out.RotateEvery = 15
	}
	if out.MaxBodyBytes <= 0 {
		out.MaxBodyBytes = 8 << 20
	}
	return out
}

// Client fetches pages through the shared pacer. Safe for concurrent use;
// the pacer is the only cross-worker synchronization point.
type Client struct {
	httpClient *http.Client
	pacer      *ratelimit.Pacer
	opts       Options
	identity   *identity
	successes  atomic.Int64
	metrics    *Metrics
	logger     *slog.Logger
}

// NewClient creates a fetch client around the shared pacer.
func NewClient(pacer *ratelimit.Pacer, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	o := opts.withDefaults()
	return &Client{
		httpClient: &http.Client{Timeout: o.Timeout},
		pacer:      pacer,
		opts:       o,
		identity:   newIdentity(),
		metrics:    &Metrics{},
		logger:     logger,
	}
}

// Metrics exposes the run counters.
func (c *Client) Metrics() *Metrics { return c.metrics }

// Fetch GETs url and classifies the outcome. 2xx returns the page; 429 and
// 5xx (and network timeouts) are retried with exponential backoff after
// penalizing the pacer; any other status is terminal.
func (c *Client) Fetch(ctx context.Context, url string) (*Page, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		page, retryable, err := c.attempt(ctx, url)
		if err == nil {
			c.metrics.Succeeded.Add(1)
			c.pacer.Success()
			c.rotateIfDue()
			return page, nil
		}

		c.metrics.Failed.Add(1)
		if !retryable {
			return nil, err
		}
		c.metrics.Penalties.Add(1)
		c.pacer.Penalize()
		lastErr = err
		c.logger.Warn("retryable fetch failure",
			"url", url, "attempt", attempt+1, "error", err)
	}

	return nil, &RetryExhaustedError{URL: url, Attempts: c.opts.MaxRetries + 1, Err: lastErr}
}

// attempt performs a single paced request. The bool result reports whether
// a failure is retryable.
func (c *Client) attempt(ctx context.Context, url string) (*Page, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, &FetchError{URL: url, Err: err}
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return nil, false, &FetchError{URL: url, Err: fmt.Errorf("unsupported scheme %q", req.URL.Scheme)}
	}

	if err := c.pacer.Acquire(ctx); err != nil {
		return nil, false, err
	}
	c.metrics.Total.Add(1)
	c.identity.apply(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, transientTransport(err), &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes))
		if err != nil {
			return nil, true, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
		}
		return &Page{
			URL:        url,
			Body:       body,
			StatusCode: resp.StatusCode,
			FetchedAt:  time.Now().UTC(),
		}, false, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, &FetchError{URL: url, StatusCode: resp.StatusCode}

	default:
		return nil, false, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}
}

// transientTransport reports whether a transport-level failure is worth
// retrying. An unresolvable host is terminal; timeouts and connection
// resets retry under the same policy as 5xx.
func transientTransport(err error) bool {
	var dnsErr *net.DNSError
	return !errors.As(err, &dnsErr)
}

// backoff sleeps base * 2^(attempt-1), capped, or returns early when ctx
// is done.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	wait := c.opts.RetryBase << (attempt - 1)
	if wait > c.opts.RetryCap {
		wait = c.opts.RetryCap
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// rotateIfDue swaps the outbound identity every RotateEvery successful
// fetches. Rotation changes headers only; the next request still goes
// through the pacer like any other.
func (c *Client) rotateIfDue() {
	if n := c.successes.Add(1); n%int64(c.opts.RotateEvery) == 0 {
		c.identity.rotate()
		c.logger.Debug("rotated outbound identity", "after_fetches", n)
	}
}
