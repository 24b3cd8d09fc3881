// Package pvgis talks to the PVGIS PVcalc service, which supplies the
// long-term monthly yield for a PV array at a location. It validates
// queries, builds request URLs, maps failures onto sentinel errors and
// caches responses.
package pvgis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iwvelando/solar-estimator/internal/metrics"
	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/constants"
	"go.uber.org/zap"
)

// maxResponseBytes bounds how much of a provider body is read.
const maxResponseBytes = 8 << 20

// Provider returns yield for a query.
type Provider interface {
	Fetch(ctx context.Context, q Query) (*Response, error)
}

// Client calls the provider over HTTP.
type Client struct {
	cfg        assumptions.PVGIS
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithMetrics records upstream failures and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// NewClient returns a client for the provider described by cfg.
func NewClient(cfg assumptions.PVGIS, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: constants.DefaultUpstreamTimeoutSeconds * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch validates q, calls the provider and decodes the reply.
//
// A non-2xx status returns *UpstreamError, a transport failure (including
// ctx cancellation) wraps ErrUnreachable, and an undecodable or incomplete
// body wraps ErrMalformedResponse.
func (c *Client) Fetch(ctx context.Context, q Query) (*Response, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	target, err := BuildURL(q, c.cfg)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.UpstreamError("unreachable")
		c.logger.Warn("yield provider unreachable",
			zap.String("op", "pvgis.Fetch"),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	c.metrics.ObserveUpstream(elapsed.Seconds())
	if err != nil {
		c.metrics.UpstreamError("unreachable")
		return nil, fmt.Errorf("%w: reading body: %w", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.UpstreamError("status")
		upErr := newUpstreamError(resp.StatusCode, body)
		c.logger.Warn("yield provider returned an error",
			zap.String("op", "pvgis.Fetch"),
			zap.Int("status", resp.StatusCode),
			zap.String("body", upErr.Body))
		return nil, upErr
	}

	decoded, err := DecodeResponse(body)
	if err != nil {
		c.metrics.UpstreamError("malformed")
		c.logger.Warn("yield provider response rejected",
			zap.String("op", "pvgis.Fetch"),
			zap.Error(err))
		return nil, err
	}

	c.logger.Debug("fetched yield",
		zap.String("op", "pvgis.Fetch"),
		zap.Float64("lat", q.Lat),
		zap.Float64("lon", q.Lon),
		zap.Float64("peakPowerKwp", q.PeakPowerKwp),
		zap.Float64("annualKwh", decoded.AnnualProduction()),
		zap.Duration("elapsed", elapsed))

	return decoded, nil
}
