// Package scheduler promotes scheduled campaign records when they come due.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

// DueSender is implemented by *campaigns.Engine.
type DueSender interface {
	SendDue(ctx context.Context, limit int) (int, error)
}

const (
	defaultTick  = 15 * time.Second
	defaultLimit = 100
)

// Sweeper runs SendDue at most once per cron minute.
type Sweeper struct {
	sender DueSender
	cron   string
	isDue  func(expr string, ref ...time.Time) (bool, error)

	Tick  time.Duration
	Limit int
	Now   func() time.Time
	Log   *slog.Logger
}

func New(sender DueSender, cron string, log *slog.Logger) (*Sweeper, error) {
	g := gronx.New()
	if !g.IsValid(cron) {
		return nil, fmt.Errorf("scheduler: invalid cron expression %q", cron)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		sender: sender,
		cron:   cron,
		isDue:  g.IsDue,
		Tick:   defaultTick,
		Limit:  defaultLimit,
		Now:    time.Now,
		Log:    log,
	}, nil
}

// Run blocks until ctx is done. It never returns a sweep error; those are logged.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.Tick)
	defer t.Stop()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			last = s.step(ctx, last)
		}
	}
}

// step sweeps when the cron expression is due for the current minute and that
// minute has not been swept yet. It returns the last swept minute.
func (s *Sweeper) step(ctx context.Context, last time.Time) time.Time {
	minute := s.Now().Truncate(time.Minute)
	if minute.Equal(last) {
		return last
	}
	due, err := s.isDue(s.cron, minute)
	if err != nil {
		s.Log.Error("sweep cron check failed", "cron", s.cron, "err", err)
		return last
	}
	if !due {
		return last
	}

	n, err := s.sender.SendDue(ctx, s.Limit)
	if err != nil {
		s.Log.Error("campaign sweep failed", "err", err)
		return minute
	}
	if n > 0 {
		s.Log.Info("campaign sweep", "sent", n)
	}
	return minute
}
