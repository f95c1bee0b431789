// Package fetcher issues throttled HTTP GETs with retry and back-off.
package fetcher

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"autoria-harvester/internal/metrics"
)

// Config controls Client behavior. Zero values fall back to defaults.
type Config struct {
	Timeout       time.Duration
	MaxRetries    int
	Referer       string
	JitterMin     time.Duration
	JitterMax     time.Duration
	BaseBackoff   time.Duration
	MaxServerWait time.Duration
	MaxBodyBytes  int64
}

// Client fetches pages with rotating browser profiles. Failures never
// surface as errors: callers receive the body or ok == false.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *zap.Logger
}

// retryable holds the status codes worth a delayed second attempt.
var retryable = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// New constructs a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Referer == "" {
		cfg.Referer = "https://auto.ria.com/"
	}
	if cfg.JitterMin <= 0 {
		cfg.JitterMin = 200 * time.Millisecond
	}
	if cfg.JitterMax <= cfg.JitterMin {
		cfg.JitterMax = cfg.JitterMin + 400*time.Millisecond
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.MaxServerWait <= 0 {
		cfg.MaxServerWait = 60 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

// Fetch GETs the URL, retrying rate-limit and transport failures with
// exponential back-off. It returns the body on HTTP 200 and ok == false in
// every other terminal case.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, bool) {
	delay := c.cfg.BaseBackoff
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if !sleepCtx(ctx, c.jitter()) {
			return nil, false
		}

		body, outcome := c.attempt(ctx, url, delay)
		switch outcome {
		case outcomeOK:
			metrics.ObserveFetch("ok")
			return body, true
		case outcomeAbort:
			metrics.ObserveFetch("failed")
			return nil, false
		case outcomeRetryServer:
			// attempt() already slept for the server-provided delay.
			metrics.ObserveFetchRetry()
			delay *= 2
		case outcomeRetryTransport:
			metrics.ObserveFetchRetry()
			if !sleepCtx(ctx, delay) {
				return nil, false
			}
			delay *= 2
		}
	}
	c.logger.Warn("fetch retries exhausted", zap.String("url", url))
	metrics.ObserveFetch("failed")
	return nil, false
}

type fetchOutcome int

const (
	outcomeOK fetchOutcome = iota
	outcomeAbort
	outcomeRetryServer
	outcomeRetryTransport
)

func (c *Client) attempt(ctx context.Context, url string, delay time.Duration) ([]byte, fetchOutcome) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.Warn("build request", zap.String("url", url), zap.Error(err))
		return nil, outcomeAbort
	}
	for k, v := range RandomProfile() {
		req.Header.Set(k, v)
	}
	req.Header.Set("Referer", c.cfg.Referer)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, outcomeAbort
		}
		c.logger.Warn("request error", zap.String("url", url), zap.Error(err))
		return nil, outcomeRetryTransport
	}
	defer drain(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
		if err != nil {
			c.logger.Warn("read body", zap.String("url", url), zap.Error(err))
			return nil, outcomeRetryTransport
		}
		return body, outcomeOK
	case retryable[resp.StatusCode]:
		wait := c.serverWait(resp, delay)
		c.logger.Warn("server asked to back off",
			zap.Int("status", resp.StatusCode),
			zap.String("url", url),
			zap.Duration("wait", wait),
		)
		if !sleepCtx(ctx, wait) {
			return nil, outcomeAbort
		}
		return nil, outcomeRetryServer
	default:
		c.logger.Warn("unexpected status",
			zap.Int("status", resp.StatusCode),
			zap.String("url", url),
		)
		return nil, outcomeAbort
	}
}

// serverWait reads a Retry-After delay in seconds, capped at MaxServerWait.
// Without the header it falls back to the current exponential delay.
func (c *Client) serverWait(resp *http.Response, delay time.Duration) time.Duration {
	wait := delay
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			wait = time.Duration(secs * float64(time.Second))
		}
	}
	if wait > c.cfg.MaxServerWait {
		wait = c.cfg.MaxServerWait
	}
	return wait
}

func (c *Client) jitter() time.Duration {
	span := c.cfg.JitterMax - c.cfg.JitterMin
	return c.cfg.JitterMin + time.Duration(rand.Int63n(int64(span)))
}

// sleepCtx sleeps for d unless the context ends first. It reports whether
// the full sleep completed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func drain(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
}
