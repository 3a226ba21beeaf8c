package optimize

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig mirrors the gobreaker settings this package exposes.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

// Guarded puts a circuit breaker in front of an Optimizer and sanitizes
// whatever HTML comes back.
type Guarded struct {
	next   Optimizer
	cb     *gobreaker.CircuitBreaker
	policy *bluemonday.Policy
}

func NewGuarded(next Optimizer, cfg BreakerConfig, logger *zap.Logger) *Guarded {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "optimizer",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// A caller hanging up says nothing about the provider
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Guarded{
		next:   next,
		cb:     cb,
		policy: bluemonday.UGCPolicy(),
	}
}

var errInvalidRequest = errors.New("invalid optimize request")

func (g *Guarded) Optimize(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, errors.Join(errInvalidRequest, err)
	}

	out, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.Optimize(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Result{}, errors.Join(ErrUnavailable, err)
	}
	if err != nil {
		return Result{}, err
	}

	res := out.(Result)
	res.OptimizedContent = strings.TrimSpace(g.policy.Sanitize(res.OptimizedContent))
	res.Explanation = strings.TrimSpace(g.policy.Sanitize(res.Explanation))
	return res, nil
}

// IsInvalidRequest reports whether err came from request validation.
func IsInvalidRequest(err error) bool {
	return errors.Is(err, errInvalidRequest)
}

// State reports the current breaker state.
func (g *Guarded) State() string {
	return g.cb.State().String()
}
