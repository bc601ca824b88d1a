// Package validation runs guarded validators under an explicit failure
// policy.
package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/palletwine/palletwine-backend/pkg/errors"
	"github.com/palletwine/palletwine-backend/pkg/logger"
	"github.com/palletwine/palletwine-backend/pkg/metrics"
)

// Policy decides what callers see when a validator breaks.
type Policy int

const (
	// FailOpen swallows infrastructure errors and returns the fallback.
	FailOpen Policy = iota
	// FailClosed surfaces infrastructure errors as DEPENDENCY_ERROR.
	FailClosed
)

func (p Policy) String() string {
	switch p {
	case FailOpen:
		return "fail_open"
	case FailClosed:
		return "fail_closed"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Runner carries the logger and metrics shared by every guarded validator.
type Runner struct {
	logg    *logger.Logger
	metrics *metrics.ValidationMetrics
	now     func() time.Time
}

func NewRunner(logg *logger.Logger, m *metrics.ValidationMetrics) *Runner {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Runner{logg: logg, metrics: m, now: time.Now}
}

// businessCodes are outcomes a validator reports on purpose.
var businessCodes = map[pkgerrors.Code]struct{}{
	pkgerrors.CodeValidation:    {},
	pkgerrors.CodeStateConflict: {},
	pkgerrors.CodeNotFound:      {},
	pkgerrors.CodeConflict:      {},
}

// IsBusinessOutcome reports whether err is an expected validator result
// rather than a failure.
func IsBusinessOutcome(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	_, ok := businessCodes[typed.Code()]
	return ok
}

// Run executes fn under policy. Business outcomes pass through untouched.
// Other errors and panics either return fallback (FailOpen) or a
// DEPENDENCY_ERROR (FailClosed).
func Run[T any](ctx context.Context, r *Runner, name string, policy Policy, fallback T, fn func(context.Context) (T, error)) (result T, err error) {
	if r == nil {
		r = NewRunner(nil, nil)
	}
	start := r.now()

	result, err = guarded(ctx, fn)
	elapsed := r.now().Sub(start)

	if err == nil {
		r.metrics.Observe(name, metrics.OutcomeOK, elapsed)
		return result, nil
	}
	if IsBusinessOutcome(err) {
		r.metrics.Observe(name, metrics.OutcomeBusiness, elapsed)
		return result, err
	}

	logCtx := r.logg.WithFields(ctx, map[string]any{
		"validator": name,
		"policy":    policy.String(),
		"error":     err.Error(),
	})
	if policy == FailOpen {
		r.logg.Warn(logCtx, "validator failed open")
		r.metrics.Observe(name, metrics.OutcomeFailOpen, elapsed)
		return fallback, nil
	}

	r.logg.Error(logCtx, "validator failed closed", err)
	r.metrics.Observe(name, metrics.OutcomeFailClosed, elapsed)
	var zero T
	return zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable")
}

func guarded[T any](ctx context.Context, fn func(context.Context) (T, error)) (result T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			result = zero
			if recErr, ok := rec.(error); ok {
				err = fmt.Errorf("panic: %w", recErr)
				return
			}
			err = errors.New(fmt.Sprint("panic: ", rec))
		}
	}()
	return fn(ctx)
}
