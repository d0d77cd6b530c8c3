// Package raster renders cell ranges to images.
package raster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/grid"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/models"
)

// ErrRenderFailed reports that a range could not be rendered within the retry
// budget.
var ErrRenderFailed = errors.New("range render failed")

// Default retry policy.
const (
	DefaultAttempts = 3
	DefaultDelay    = 2 * time.Second
)

// Rasterizer renders a rectangular range of a sheet to encoded image bytes.
type Rasterizer interface {
	Render(ctx context.Context, sheet *grid.Sheet, rng models.Range) ([]byte, error)
}

// RasterizerFunc adapts a function to the Rasterizer interface.
type RasterizerFunc func(ctx context.Context, sheet *grid.Sheet, rng models.Range) ([]byte, error)

// Render calls f.
func (f RasterizerFunc) Render(ctx context.Context, sheet *grid.Sheet, rng models.Range) ([]byte, error) {
	return f(ctx, sheet, rng)
}

// Retry wraps a Rasterizer with a bounded, fixed-delay retry policy.
type Retry struct {
	Next     Rasterizer
	Attempts int
	Delay    time.Duration
	Log      *zap.Logger
}

// WithRetry wraps next using the given policy. Non-positive attempts select
// DefaultAttempts.
func WithRetry(next Rasterizer, attempts int, delay time.Duration, log *zap.Logger) *Retry {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	return &Retry{Next: next, Attempts: attempts, Delay: delay, Log: log}
}

// Render tries the wrapped rasterizer up to Attempts times, sleeping Delay
// between failures. The last failure is returned wrapped in ErrRenderFailed;
// cancellation of ctx stops the loop and is returned as is.
func (r *Retry) Render(ctx context.Context, sheet *grid.Sheet, rng models.Range) ([]byte, error) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := r.Next.Render(ctx, sheet, rng)
		if err == nil {
			return data, nil
		}
		lastErr = err
		log.Warn("Range render failed",
			zap.String("sheet", sheet.Name),
			zap.Int("attempt", attempt),
			zap.Int("attempts", r.Attempts),
			zap.Error(err))

		if attempt < r.Attempts {
			if err := sleepWithCtx(ctx, r.Delay); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRenderFailed, r.Attempts, lastErr)
}

func sleepWithCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
