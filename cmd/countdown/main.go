package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auctionhouse/internal/clocksync"

	"github.com/jonboulle/clockwork"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

// deadlineTracking forwards each server reading to the countdown so broadcast
// extensions show up at the next sync. A closed reading finishes it.
type deadlineTracking struct {
	src clocksync.TimeSource
	cd  *clocksync.Countdown
}

func (d *deadlineTracking) ServerTime(ctx context.Context) (clocksync.Reading, error) {
	r, err := d.src.ServerTime(ctx)
	if err == nil && !r.EndsAt.IsZero() && d.cd != nil {
		d.cd.SetEnd(r.EndsAt)
	}
	if err == nil && r.Closed && d.cd != nil {
		d.cd.Finish()
	}
	return r, err
}

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	app := &cli.App{
		Name:  "countdown",
		Usage: "print the server-synchronized countdown of one auction",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:8085", Usage: "auction API base URL", EnvVars: []string{"AUCTION_API"}},
			&cli.StringFlag{Name: "auction", Usage: "auction id", Required: true},
			&cli.DurationFlag{Name: "sync", Value: 30 * time.Second, Usage: "clock re-sync interval"},
			&cli.DurationFlag{Name: "tick", Value: time.Second, Usage: "display refresh interval"},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		Log.Fatal("countdown", zap.Error(err))
	}
}

func run(c *cli.Context) error {
	src := &deadlineTracking{src: clocksync.NewHTTPSource(c.String("server"), c.String("auction"))}
	syncer := clocksync.New(src, clockwork.NewRealClock(), c.Duration("sync"))

	if _, err := syncer.Sync(c.Context); err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}
	cd := clocksync.NewCountdown(syncer, syncer.Last().EndsAt)
	src.cd = cd

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	go syncer.Run(ctx)

	offsets, unsubscribe := syncer.Subscribe()
	defer unsubscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case off := <-offsets:
				Log.Debug("clock offset updated", zap.Duration("offset", off))
			}
		}
	}()

	cd.Run(ctx, c.Duration("tick"), func(left time.Duration) {
		if left == 0 && !cd.Finished() {
			// at zero the server either closes or has extended; ask it
			if _, err := syncer.Sync(ctx); err != nil {
				Log.Debug("resync at zero", zap.Error(err))
			}
			left = cd.Remaining()
		}
		fmt.Fprintf(c.App.Writer, "\r%s  ends %s   ", formatRemaining(left), cd.EndsAt().Local().Format(time.TimeOnly))
	})
	fmt.Fprintln(c.App.Writer)
	return nil
}

func formatRemaining(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
