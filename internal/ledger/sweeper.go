package ledger

import (
	"time"

	"slotify/pkg/logger"
)

// Sweeper periodically reclaims expired holds from a Memory ledger. Expiry is
// cooperative: correctness never depends on the sweep, since the very next
// Acquire or Consume touching a unit observes the expired hold itself.
type Sweeper struct {
	ledger   *Memory
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper; call Start to begin sweeping.
func NewSweeper(l *Memory, interval time.Duration) *Sweeper {
	return &Sweeper{
		ledger:   l,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine.
func (s *Sweeper) Start() {
	go s.run()
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if reclaimed := s.ledger.Sweep(); reclaimed > 0 {
				logger.GetDefault().Info("expired holds reclaimed", "count", reclaimed)
			}
		case <-s.stop:
			return
		}
	}
}

// Stop halts the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}
