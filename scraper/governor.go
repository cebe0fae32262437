package scraper

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/Quintui/car-details-web-scraper/config"
)

// Governor bounds the outbound request rate with an independent minimum
// interval per call site. It is not adaptive: it never backs off on error or
// speeds up on success.
type Governor struct {
	listing *rate.Limiter
	detail  *rate.Limiter
	leaf    *rate.Limiter
}

// NewGovernor builds a governor from the configured per-site delays.
func NewGovernor(cfg *config.Config) *Governor {
	return &Governor{
		listing: newLimiter(cfg.ListingDelay),
		detail:  newLimiter(cfg.DetailDelay),
		leaf:    newLimiter(cfg.LeafDelay),
	}
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Listing blocks until the next listing-page fetch is allowed.
func (g *Governor) Listing(ctx context.Context) error {
	return wait(ctx, g.listing)
}

// Detail blocks until the next detail-page fetch is allowed.
func (g *Governor) Detail(ctx context.Context) error {
	return wait(ctx, g.detail)
}

// Leaf blocks until the next group leaf may start.
func (g *Governor) Leaf(ctx context.Context) error {
	return wait(ctx, g.leaf)
}

func wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return ctx.Err()
	}
	return limiter.Wait(ctx)
}
