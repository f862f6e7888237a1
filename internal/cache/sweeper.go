package cache

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/parley/internal/server"
)

// Sweepable is the part of a Cache the background sweep needs.
type Sweepable interface {
	Cleanup() int
}

// NewSweeper returns a lifecycle service that removes expired entries from c
// every interval.
//
// Precondition: interval must be > 0.
func NewSweeper(c Sweepable, interval time.Duration, logger *zap.Logger) *server.TickerService {
	return server.NewTickerService(interval, func() {
		if n := c.Cleanup(); n > 0 {
			logger.Debug("cache sweep", zap.Int("expired", n))
		}
	})
}
