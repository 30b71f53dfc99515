// Package sweeper contains the background job which deletes expired posts.
package sweeper

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/freetnet/freetd/internal/service"
)

var log = logrus.WithField("package", "sweeper")

// Sweeper periodically removes posts which are past their expiration time.
// A sweep failure is logged and retried on the next tick, every deletion is
// independently idempotent.
type Sweeper struct {
	s        service.Service
	interval time.Duration
}

// New creates new instance of Sweeper.
func New(s service.Service, interval time.Duration) *Sweeper {
	return &Sweeper{
		s:        s,
		interval: interval,
	}
}

// Run sweeps expired posts until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := s.s.SweepExpiredPosts(ctx); err != nil {
				log.WithError(err).Error("failed to sweep expired posts")
			}
		}
	}
}
