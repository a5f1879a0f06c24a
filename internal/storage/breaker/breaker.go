// Package breaker guards a storage backend with a circuit breaker so a
// failing object store is shed quickly instead of stalling every upload.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/marketplace/internal/storage"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = gobreaker.ErrOpenState

// Config holds configuration for the circuit breaker.
type Config struct {
	// Name identifies this breaker in metrics and logs.
	Name string

	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for clearing counts.
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration

	// FailureRatio trips the breaker once MinRequests have been seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultConfig returns the defaults used for the object store.
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// Storage wraps a storage.Storage with a circuit breaker. Ping bypasses the
// breaker so readiness reflects the backend itself.
type Storage struct {
	next    storage.Storage
	breaker *gobreaker.CircuitBreaker[*storage.UploadResult]
	state   prometheus.Gauge
	logger  *slog.Logger
}

var _ storage.Storage = (*Storage)(nil)

// New wraps next. The state gauge is registered on reg when reg is non-nil.
func New(next storage.Storage, cfg Config, reg prometheus.Registerer, logger *slog.Logger) (*Storage, error) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "storage_circuit_breaker_state",
		Help:        "Current state of the storage circuit breaker (0=closed, 1=half-open, 2=open)",
		ConstLabels: prometheus.Labels{"breaker": cfg.Name},
	})
	if reg != nil {
		if err := reg.Register(gauge); err != nil {
			return nil, err
		}
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			gauge.Set(stateToFloat(to))
		},
		// A cancelled request says nothing about the backend.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	gauge.Set(0)
	return &Storage{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*storage.UploadResult](settings),
		state:   gauge,
		logger:  logger,
	}, nil
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

// Upload runs the upload through the breaker.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	return s.breaker.Execute(func() (*storage.UploadResult, error) {
		return s.next.Upload(ctx, input)
	})
}

// Delete runs the delete through the breaker.
func (s *Storage) Delete(ctx context.Context, key string) error {
	_, err := s.breaker.Execute(func() (*storage.UploadResult, error) {
		return nil, s.next.Delete(ctx, key)
	})
	return err
}

// KeyFromURL delegates to the wrapped backend.
func (s *Storage) KeyFromURL(url string) (string, bool) {
	return s.next.KeyFromURL(url)
}

// Ping delegates to the wrapped backend.
func (s *Storage) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// State returns the current breaker state.
func (s *Storage) State() gobreaker.State {
	return s.breaker.State()
}
