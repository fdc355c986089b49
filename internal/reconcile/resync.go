package reconcile

import (
	"context"
	"log"
	"time"

	"github.com/crosswire/intercom/internal/protocol"
	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the
// duration until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// runResyncScheduler periodically requests full client and station
// rosters so drift from missed pushes heals itself.
func (r *Reconciler) runResyncScheduler(ctx context.Context) {
	for {
		d := nextCronDuration(r.resync)
		if d == 0 {
			log.Printf("reconcile: invalid resync cron %q, resync disabled", r.resync)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
		if r.Phase() != PhaseConnected {
			continue
		}
		if err := r.adapter.Send(ctx, protocol.ListClients{}); err != nil {
			log.Printf("reconcile: request client list: %v", err)
			continue
		}
		if err := r.adapter.Send(ctx, protocol.ListStations{}); err != nil {
			log.Printf("reconcile: request station list: %v", err)
		}
	}
}
