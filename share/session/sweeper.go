package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wricardo/pinshare/logging"
)

// DefaultSweepInterval is how often expired sessions are purged.
const DefaultSweepInterval = 30 * time.Second

// Sweeper periodically removes expired sessions from a registry,
// independently of message traffic.
type Sweeper struct {
	registry  *Registry
	interval  time.Duration
	log       zerolog.Logger
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewSweeper creates a sweeper for registry.
func NewSweeper(registry *Registry, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		registry: registry,
		interval: interval,
		log:      logging.Component(log, "session-sweeper"),
		done:     make(chan struct{}),
	}
}

// Start begins sweeping in the background. Only the first call has an effect.
func (s *Sweeper) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run(ctx)
		s.log.Info().Dur("interval", s.interval).Msg("session sweeper started")
	})
}

// Stop halts the sweeper and waits for the loop to exit. Safe to call more
// than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.log.Info().Msg("session sweeper stopped")
	})
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	removed := s.registry.Sweep(s.registry.Now())
	if removed > 0 {
		s.log.Info().Int("removed", removed).Int("remaining", s.registry.Len()).Msg("expired sessions swept")
	}
}
