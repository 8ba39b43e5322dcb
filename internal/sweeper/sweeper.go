// Package sweeper wires up the cron job that expires overdue convocations
// and evicts stale notifications.
package sweeper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fernandolim41/picopro-clt/internal/convocation"
	"github.com/fernandolim41/picopro-clt/internal/notification"
)

// Sweeper wraps robfig/cron and manages the periodic expiry sweep. The
// sweep is the authority that persists derived expiry: reads in between
// report expired status without it, but the row only changes here or on a
// worker action.
type Sweeper struct {
	cron          *cron.Cron
	lifecycle     *convocation.Service
	notifications *notification.Center
	spec          string // cron spec, e.g. "@every 1m"
}

// New creates a Sweeper that fires every interval.
func New(lifecycle *convocation.Service, notifications *notification.Center, interval time.Duration) *Sweeper {
	return &Sweeper{
		cron:          cron.New(cron.WithLogger(cron.DefaultLogger)),
		lifecycle:     lifecycle,
		notifications: notifications,
		spec:          fmt.Sprintf("@every %s", interval),
	}
}

// Start registers the job and starts the scheduler. Also runs one sweep
// immediately so a restart catches up on deadlines that passed while the
// process was down.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runSweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[sweeper] Cron started — spec: %s", s.spec)

	go s.runSweep(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Sweeper) Stop() {
	s.cron.Stop()
	log.Println("[sweeper] Cron stopped")
}

func (s *Sweeper) runSweep(ctx context.Context) {
	expired, err := s.lifecycle.ExpireOverdue(ctx)
	if err != nil {
		log.Printf("[sweeper] ExpireOverdue error: %v", err)
	}
	if expired > 0 {
		log.Printf("[sweeper] Expired %d overdue convocation(s)", expired)
	}

	if s.notifications != nil {
		s.notifications.Evict(time.Now())
	}
}
