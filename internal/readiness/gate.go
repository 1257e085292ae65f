package readiness

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	DefaultInterval = 1 * time.Second

	msgWaiting     = "waiting for database..."
	msgUnavailable = "Database unavailable, waiting 1 second.."
	msgAvailable   = "Database available!"
)

// ProbeFunc performs one trivial connectivity check.
type ProbeFunc func(ctx context.Context) error

// Gate blocks until Probe succeeds. There is no attempt limit: only a
// fatal probe error or a cancelled context ends the wait early.
type Gate struct {
	Probe    ProbeFunc
	Interval time.Duration
	Out      io.Writer

	// Sleep is swapped in tests. It returns early with ctx.Err() on cancel.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewGate(probe ProbeFunc, out io.Writer) *Gate {
	if out == nil {
		out = os.Stdout
	}

	return &Gate{
		Probe:    probe,
		Interval: DefaultInterval,
		Out:      out,
		Sleep:    sleepContext,
	}
}

func (g *Gate) Wait(ctx context.Context) error {
	interval := g.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	sleep := g.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	g.say(msgWaiting)

	for {
		err := g.Probe(ctx)

		if err == nil {
			g.say(msgAvailable)
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !IsNotReady(err) {
			return fmt.Errorf("database check failed: %w", err)
		}

		g.say(msgUnavailable)

		err = sleep(ctx, interval)

		if err != nil {
			return err
		}
	}
}

func (g *Gate) say(msg string) {
	if g.Out == nil {
		return
	}

	_, _ = fmt.Fprintln(g.Out, msg)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
