// Package mirror replicates guest visit updates to the collector backend.
// Writes are best effort: failures are logged and never reach the tracker.
package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/badalhalder99/vital/internal/domain"
	"github.com/badalhalder99/vital/internal/metrics"
)

// TrackGuestVisitPath is the collector route that receives guest visits
const TrackGuestVisitPath = "/api/heatmap/track-guest-visit"

// Mirror accepts guest visits for asynchronous delivery
type Mirror interface {
	Dispatch(visit domain.GuestVisit)
	Close() error
}

// Nop drops every visit. It is used when no endpoint is configured.
type Nop struct{}

func (Nop) Dispatch(domain.GuestVisit) {}
func (Nop) Close() error              { return nil }

// Client posts guest visits to a collector over HTTP
type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger
	breaker *gobreaker.CircuitBreaker[int]

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each write
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for failed writes
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client for the collector at endpoint
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		url:     strings.TrimRight(endpoint, "/") + TrackGuestVisitPath,
		http:    &http.Client{},
		timeout: 5 * time.Second,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        "guest-visit-mirror",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info("mirror circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// Dispatch sends the visit in the background. It never blocks on the network.
func (c *Client) Dispatch(visit domain.GuestVisit) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Warn("mirror closed, dropping guest visit", zap.String("guest_id", visit.GuestID))
		metrics.MirrorWrites.WithLabelValues("dropped").Inc()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.Send(ctx, visit); err != nil {
			c.logger.Warn("guest visit mirror write failed",
				zap.String("guest_id", visit.GuestID),
				zap.Int("visit_count", visit.VisitCount),
				zap.Error(err))
		}
	}()
}

// Send posts one visit synchronously through the circuit breaker
func (c *Client) Send(ctx context.Context, visit domain.GuestVisit) error {
	_, err := c.breaker.Execute(func() (int, error) {
		return c.post(ctx, visit)
	})
	switch {
	case err == nil:
		metrics.MirrorWrites.WithLabelValues("success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.MirrorWrites.WithLabelValues("rejected").Inc()
	default:
		metrics.MirrorWrites.WithLabelValues("failure").Inc()
	}
	return err
}

func (c *Client) post(ctx context.Context, visit domain.GuestVisit) (int, error) {
	body, err := json.Marshal(visit)
	if err != nil {
		return 0, fmt.Errorf("failed to encode guest visit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to post guest visit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("collector returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Close waits for in-flight writes and rejects new ones
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wg.Wait()
	return nil
}
