// Package resilient decorates the catalog and review readers with a circuit
// breaker and a hard per-call timeout. The timeout holds even when the
// wrapped reader ignores its context: the call runs in its own goroutine and
// the decorator stops waiting once the deadline passes.
package resilient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/corey/whiskeybar/internal/logging"
	"github.com/corey/whiskeybar/internal/metrics"
	"github.com/corey/whiskeybar/internal/ports"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Config tunes the breaker and the call timeout.
type Config struct {
	Name             string
	MaxRequests      uint32        // allowed in half-open state
	Interval         time.Duration // reset interval for counts while closed
	Timeout          time.Duration // time to stay open
	FailureThreshold uint32        // consecutive failures before opening
	CallTimeout      time.Duration // per call; zero leaves only the caller's deadline
}

// DefaultConfig returns production defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		CallTimeout:      2 * time.Second,
	}
}

// Reader implements ports.CatalogReader and ports.ReviewReader on top of
// another pair of readers. Both share one breaker: they are the same store.
type Reader struct {
	catalog ports.CatalogReader
	reviews ports.ReviewReader
	cb      *gobreaker.CircuitBreaker[any]
	cfg     Config
	log     zerolog.Logger
}

// New wraps catalog and reviews.
func New(catalog ports.CatalogReader, reviews ports.ReviewReader, cfg Config) *Reader {
	if cfg.Name == "" {
		cfg.Name = "store"
	}
	r := &Reader{
		catalog: catalog,
		reviews: reviews,
		cfg:     cfg,
		log:     logging.WithComponent("resilient").With().Str("breaker", cfg.Name).Logger(),
	}

	metrics.BreakerState.WithLabelValues(cfg.Name).Set(stateToFloat(gobreaker.StateClosed))

	r.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// A caller giving up is not a store failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	return r
}

// SetLogger replaces the decorator's logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (r *Reader) SetLogger(l zerolog.Logger) {
	r.log = l
}

// State reports the breaker state: "closed", "half-open" or "open".
func (r *Reader) State() string {
	return r.cb.State().String()
}

// ScanWhiskeys implements ports.CatalogReader.
func (r *Reader) ScanWhiskeys(ctx context.Context, limit int) ([]ports.WhiskeyEntry, error) {
	return call(ctx, r, "scan_whiskeys", func(cctx context.Context) ([]ports.WhiskeyEntry, error) {
		return r.catalog.ScanWhiskeys(cctx, limit)
	})
}

// GetWhiskey implements ports.CatalogReader.
func (r *Reader) GetWhiskey(ctx context.Context, id string) (*ports.WhiskeyEntry, error) {
	return call(ctx, r, "get_whiskey", func(cctx context.Context) (*ports.WhiskeyEntry, error) {
		return r.catalog.GetWhiskey(cctx, id)
	})
}

// QueryWhiskeys implements ports.CatalogReader.
func (r *Reader) QueryWhiskeys(ctx context.Context, index ports.IndexName, value string) ([]ports.WhiskeyEntry, error) {
	return call(ctx, r, "query_whiskeys", func(cctx context.Context) ([]ports.WhiskeyEntry, error) {
		return r.catalog.QueryWhiskeys(cctx, index, value)
	})
}

// ScanReviews implements ports.ReviewReader.
func (r *Reader) ScanReviews(ctx context.Context) ([]ports.ReviewRecord, error) {
	return call(ctx, r, "scan_reviews", func(cctx context.Context) ([]ports.ReviewRecord, error) {
		return r.reviews.ScanReviews(cctx)
	})
}

// call runs fn through the breaker under the call timeout. Rejections and
// timeouts come back wrapping ports.ErrUnavailable.
func call[T any](ctx context.Context, r *Reader, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	result, err := r.cb.Execute(func() (any, error) {
		return bounded(ctx, r.cfg.CallTimeout, fn)
	})
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.BreakerRequests.WithLabelValues(r.cfg.Name, "rejected").Inc()
			r.log.Debug().Err(err).Str("op", op).Msg("store call rejected")
			return zero, fmt.Errorf("%s: %w: %w", op, ports.ErrUnavailable, err)
		case errors.Is(err, context.DeadlineExceeded):
			metrics.BreakerRequests.WithLabelValues(r.cfg.Name, "failure").Inc()
			r.log.Warn().Str("op", op).Dur("timeout", r.cfg.CallTimeout).Msg("store call timed out")
			return zero, fmt.Errorf("%s: %w: %w", op, ports.ErrUnavailable, err)
		default:
			metrics.BreakerRequests.WithLabelValues(r.cfg.Name, "failure").Inc()
			return zero, fmt.Errorf("%s: %w", op, err)
		}
	}
	metrics.BreakerRequests.WithLabelValues(r.cfg.Name, "success").Inc()

	typed, ok := result.(T)
	if !ok && result != nil {
		return zero, fmt.Errorf("%s: unexpected result type %T", op, result)
	}
	return typed, nil
}

type outcome[T any] struct {
	val T
	err error
}

// bounded runs fn in its own goroutine and returns when it finishes or the
// deadline passes, whichever is first. A call that never returns leaks its
// goroutine; the buffered channel lets a late return exit cleanly.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		v, err := fn(cctx)
		done <- outcome[T]{val: v, err: err}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-cctx.Done():
		var zero T
		return zero, cctx.Err()
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
