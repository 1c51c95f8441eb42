package crontab

import (
	"context"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/infrastructure/metrics"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
)

// GuestEvictionSchedule runs the guest eviction every minute.
const GuestEvictionSchedule = "* * * * *"

// IdleEvicter drops guest conversations that have not been touched since before.
type IdleEvicter interface {
	EvictIdle(ctx context.Context, before time.Time) int
}

var _ IdleEvicter = (chat.GuestRepository)(nil)

type Crontab struct {
	ctab   *crontab.Crontab
	guests IdleEvicter
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewCrontab creates the scheduler for guest session housekeeping.
func NewCrontab(guests IdleEvicter, guestTTL time.Duration, log zerolog.Logger) *Crontab {
	return &Crontab{
		ctab:   crontab.New(),
		guests: guests,
		ttl:    guestTTL,
		now:    time.Now,
		log:    log.With().Str("component", "crontab").Logger(),
	}
}

// Run schedules the jobs and blocks until ctx is cancelled.
func (c *Crontab) Run(ctx context.Context) error {
	if err := c.ctab.AddJob(GuestEvictionSchedule, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		c.EvictGuests(jobCtx)
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add guest eviction job")
	}
	c.log.Info().Dur("guest_ttl", c.ttl).Msg("guest eviction scheduled every minute")

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

// EvictGuests removes guest conversations idle for longer than the guest TTL.
func (c *Crontab) EvictGuests(ctx context.Context) int {
	n := c.guests.EvictIdle(ctx, c.now().Add(-c.ttl))
	if n > 0 {
		metrics.GuestEvictions.Add(float64(n))
	}
	return n
}
