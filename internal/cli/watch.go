package cli

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	appLog "icaltool/internal/log"
	"icaltool/internal/provider"
)

// watch runs job once, then on every tick of schedule until ctx is done. Ticks
// never overlap. Only a failure of the first run, or an access denial, ends
// the loop early.
func watch(ctx context.Context, schedule string, loc *time.Location, job func(context.Context) error) error {
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	failed := make(chan error, 1)
	if _, err := c.AddFunc(schedule, func() {
		if err := job(ctx); err != nil {
			appLog.Error("watch run failed", err, "schedule", schedule)
			if errors.Is(err, provider.ErrAccessDenied) {
				select {
				case failed <- err:
				default:
				}
			}
		}
	}); err != nil {
		return usageErrorf("--watch %q: %v", schedule, err)
	}

	if err := job(ctx); err != nil {
		return err
	}

	c.Start()
	appLog.Info("watch started", "schedule", schedule)

	var err error
	select {
	case <-ctx.Done():
	case err = <-failed:
	}

	stopCtx := c.Stop()
	<-stopCtx.Done()
	appLog.Info("watch stopped")
	return err
}
