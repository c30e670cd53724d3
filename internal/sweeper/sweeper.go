package sweeper

import (
	"context"
	"log"
	"time"

	"visitor-approval-backend/config"
)

// Target is the work done on every tick. *visitor.Service satisfies it.
type Target interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Service periodically records expiry for approvals whose window ended
// without an entry.
type Service struct {
	cfg     config.SweeperConfig
	target  Target
	onSwept func(n int)
}

// NewService creates a sweeper. onSwept, if not nil, is called after each
// sweep that recorded at least one expiry.
func NewService(cfg config.SweeperConfig, target Target, onSwept func(n int)) *Service {
	return &Service{cfg: cfg, target: target, onSwept: onSwept}
}

// Run sweeps once immediately and then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Expiry sweeper is disabled. Not starting.")
		return
	}
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = time.Duration(s.cfg.IntervalSeconds) * time.Second
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	log.Printf("Starting expiry sweeper, interval %s", interval)

	s.SweepOnce(ctx)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Expiry sweeper shutting down.")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(interval)
		}
	}
}

// SweepOnce runs a single sweep and reports how many expiries it recorded.
func (s *Service) SweepOnce(ctx context.Context) int {
	n, err := s.target.SweepExpired(ctx)
	if err != nil {
		log.Printf("Error during expiry sweep: %v", err)
	}
	if n > 0 {
		log.Printf("Expiry sweep recorded %d approvals", n)
		if s.onSwept != nil {
			s.onSwept(n)
		}
	}
	return n
}
