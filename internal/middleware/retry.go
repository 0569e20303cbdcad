package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"FeatPull/internal/domain/models"
	domrepo "FeatPull/internal/domain/repository"
	applogger "FeatPull/pkg/logger"
	"FeatPull/pkg/metrics"
)

// DefaultMaxAttempts matches the number of tries the equity download gets by default.
const DefaultMaxAttempts = 6

var (
	// ErrRateLimited may be wrapped by providers that detect throttling structurally.
	ErrRateLimited      = errors.New("RateLimitError: upstream throttled the request")
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// rateLimitMarkers are message fragments upstream clients use when throttled.
var rateLimitMarkers = []string{"RateLimitError", "Too Many Requests"}

// FailureKind tags a download failure for the retry decision.
type FailureKind int

const (
	FailureOther FailureKind = iota
	FailureRateLimited
)

func (k FailureKind) String() string {
	switch k {
	case FailureRateLimited:
		return "rate_limited"
	default:
		return "other"
	}
}

// Classify decides whether err is a transient rate-limit failure.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureOther
	}
	if errors.Is(err, ErrRateLimited) {
		return FailureRateLimited
	}
	msg := err.Error()
	for _, m := range rateLimitMarkers {
		if strings.Contains(msg, m) {
			return FailureRateLimited
		}
	}
	return FailureOther
}

// RetriesExhaustedError is returned when every attempt was rate limited.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("download failed after %d tries: last error: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

func (e *RetriesExhaustedError) Is(target error) bool { return target == ErrRetriesExhausted }

// Backoff returns 2^attempt seconds plus jitter seconds.
func Backoff(attempt int, jitter float64) time.Duration {
	secs := math.Pow(2, float64(attempt)) + jitter
	return time.Duration(secs * float64(time.Second))
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ResilientFetcher wraps an EquitySource and retries rate-limited downloads
// with exponential backoff and jitter. Other failures pass through untouched.
type ResilientFetcher struct {
	next        domrepo.EquitySource
	source      string
	maxAttempts int
	sleep       Sleeper
	jitter      func() float64
	logger      *applogger.Logger
	metrics     domrepo.Metrics
}

type RetryOption func(*ResilientFetcher)

// WithMaxAttempts sets the default attempt budget used by Download.
func WithMaxAttempts(n int) RetryOption {
	return func(f *ResilientFetcher) {
		f.maxAttempts = n
	}
}

// WithSleeper replaces the backoff sleep.
func WithSleeper(s Sleeper) RetryOption {
	return func(f *ResilientFetcher) {
		if s != nil {
			f.sleep = s
		}
	}
}

// WithJitter replaces the uniform [0,1) jitter source.
func WithJitter(j func() float64) RetryOption {
	return func(f *ResilientFetcher) {
		if j != nil {
			f.jitter = j
		}
	}
}

// WithRetryLogger sets the logger.
func WithRetryLogger(l *applogger.Logger) RetryOption {
	return func(f *ResilientFetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithRetryMetrics sets the metrics recorder.
func WithRetryMetrics(m domrepo.Metrics) RetryOption {
	return func(f *ResilientFetcher) {
		if m != nil {
			f.metrics = m
		}
	}
}

// WithSourceName labels logs and metrics.
func WithSourceName(name string) RetryOption {
	return func(f *ResilientFetcher) {
		f.source = name
	}
}

// NewResilientFetcher wraps next.
func NewResilientFetcher(next domrepo.EquitySource, opts ...RetryOption) *ResilientFetcher {
	f := &ResilientFetcher{
		next:        next,
		source:      "equity",
		maxAttempts: DefaultMaxAttempts,
		sleep:       SleepContext,
		jitter:      rand.Float64,
		logger:      applogger.Nop(),
		metrics:     metrics.Nop{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Download implements EquitySource using the configured attempt budget.
func (f *ResilientFetcher) Download(ctx context.Context, req domrepo.EquityRequest) (*models.Panel, error) {
	return f.Fetch(ctx, req.Tickers, req.Start, req.End, f.maxAttempts)
}

// Fetch downloads tickers over [start, end], retrying only rate-limit failures.
// After the final failed attempt it returns a RetriesExhaustedError without sleeping.
func (f *ResilientFetcher) Fetch(ctx context.Context, tickers []string, start, end time.Time, maxAttempts int) (*models.Panel, error) {
	if maxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be >= 1, got %d", maxAttempts)
	}
	req := domrepo.EquityRequest{Tickers: tickers, Start: start, End: end}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		panel, err := f.next.Download(ctx, req)
		if err == nil {
			f.metrics.RecordFetchAttempt(f.source, "ok")
			return panel, nil
		}
		lastErr = err

		kind := Classify(err)
		f.metrics.RecordFetchAttempt(f.source, kind.String())
		if kind != FailureRateLimited {
			return nil, err
		}
		if attempt == maxAttempts-1 {
			break
		}

		wait := Backoff(attempt, f.jitter())
		f.logger.Warn("rate limited, backing off",
			applogger.String("source", f.source),
			applogger.Int("attempt", attempt+1),
			applogger.Int("max_attempts", maxAttempts),
			applogger.Duration("wait_ms", wait),
			applogger.Error(err),
		)
		f.metrics.RecordBackoff(wait.Seconds())
		if err := f.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	f.metrics.RecordError("retries_exhausted")
	f.logger.Error("download retries exhausted",
		applogger.String("source", f.source),
		applogger.Int("attempts", maxAttempts),
		applogger.Error(lastErr),
	)
	return nil, &RetriesExhaustedError{Attempts: maxAttempts, Last: lastErr}
}

var _ domrepo.EquitySource = (*ResilientFetcher)(nil)
