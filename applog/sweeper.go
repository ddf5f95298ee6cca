package applog

import (
	"context"
	"time"

	"github.com/auditmos/devdash/logging"
)

const DefaultSweepInterval = time.Hour

type Sweeper struct {
	m        *Manager
	interval time.Duration
	diag     logging.Logger
}

func NewSweeper(m *Manager, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{m: m, interval: interval, diag: m.diag}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.diag.WithFields(logging.Fields{"interval": s.interval.String()}).
		Info(component, "sweep", "Retention sweeper started")

	s.m.Cleanup()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.m.Cleanup()
		}
	}
}
