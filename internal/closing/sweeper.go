package closing

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper runs the expiry sweep on a fixed interval. A single sweeper runs
// per process instance, so the sweep is never concurrent with itself.
type Sweeper struct {
	closer        *Closer
	sweepInterval time.Duration
}

func NewSweeper(closer *Closer) *Sweeper {
	return &Sweeper{
		closer:        closer,
		sweepInterval: 5 * time.Minute,
	}
}

// Start begins the sweep loop and blocks until the context is cancelled
func (s *Sweeper) Start(ctx context.Context) {
	logger := log.With().Str("component", "expiry_sweeper").Logger()
	logger.Info().Dur("interval", s.sweepInterval).Msg("starting expiry sweeper")

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down expiry sweeper")
			return
		case <-ticker.C:
			closed, err := s.closer.RunExpirySweep(s.closer.now())
			if err != nil {
				logger.Error().Err(err).Msg("expiry sweep failed")
				continue
			}
			if len(closed) > 0 {
				logger.Info().Strs("auction_ids", closed).Msg("expiry sweep closed auctions")
			}
		}
	}
}
