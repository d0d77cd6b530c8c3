// Package anchorgrid correlates phrases with anchored images in workbooks,
// aggregates filename tags per group and fills output templates.
package anchorgrid

import (
	"time"

	"go.uber.org/zap"

	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/config"
	"github.com/ukaji3/anchorgrid/pkg/anchorgrid/raster"
)

// Options configures processing behavior.
type Options struct {
	// Rasterizer renders range fields. If nil, the built-in grid renderer is
	// used. It is always wrapped with the configured retry policy.
	Rasterizer raster.Rasterizer
	// ImagesOnly stops after correlation and tag aggregation; no output
	// document is written.
	ImagesOnly bool
	// Now stamps fallback document names. If nil, time.Now is used.
	Now func() time.Time
}

// DefaultOptions returns default processing options.
func DefaultOptions() Options {
	return Options{}
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) rasterizer(cfg *config.Config, log *zap.Logger) raster.Rasterizer {
	next := o.Rasterizer
	if next == nil {
		next = raster.NewGridRenderer()
	}
	return raster.WithRetry(next, cfg.Raster.Attempts, cfg.RenderDelay(), log)
}
