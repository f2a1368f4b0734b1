package maintenance

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LoanPruner deletes closed loans returned before cutoff.
type LoanPruner interface {
	PruneLoans(ctx context.Context, cutoff time.Time) (int64, error)
}

// Retention prunes loan history once a day at a fixed local time.
type Retention struct {
	Pruner  LoanPruner
	KeepFor time.Duration
	Hour    int
	Minute  int
	Loc     *time.Location

	now func() time.Time
	log *zap.Logger
}

// NewRetention builds a daily job. at is "HH:MM" in tzName; bad values fall
// back to 03:00 and the local zone.
func NewRetention(p LoanPruner, days int, at, tzName string) *Retention {
	if days <= 0 {
		days = 365
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		loc = time.Local
	}
	h, m := parseClock(at)
	return &Retention{
		Pruner:  p,
		KeepFor: time.Duration(days) * 24 * time.Hour,
		Hour:    h,
		Minute:  m,
		Loc:     loc,
		now:     time.Now,
		log:     zap.L().Named("retention"),
	}
}

func parseClock(s string) (int, int) {
	h, m := 3, 0
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return h, m
	}
	hv, err1 := strconv.Atoi(hs)
	mv, err2 := strconv.Atoi(ms)
	if err1 != nil || err2 != nil || hv < 0 || hv > 23 || mv < 0 || mv > 59 {
		return h, m
	}
	return hv, mv
}

// Next returns the first scheduled run strictly after t.
func (r *Retention) Next(t time.Time) time.Time {
	t = t.In(r.Loc)
	next := time.Date(t.Year(), t.Month(), t.Day(), r.Hour, r.Minute, 0, 0, r.Loc)
	if !next.After(t) {
		next = time.Date(t.Year(), t.Month(), t.Day()+1, r.Hour, r.Minute, 0, 0, r.Loc)
	}
	return next
}

// RunOnce prunes loans closed more than KeepFor ago.
func (r *Retention) RunOnce(ctx context.Context) {
	cutoff := r.now().Add(-r.KeepFor)
	n, err := r.Pruner.PruneLoans(ctx, cutoff)
	if err != nil {
		r.log.Error("prune loans failed", zap.Error(err))
		return
	}
	r.log.Info("loans pruned", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
}

// Run blocks until ctx is done. Start it with go.
func (r *Retention) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(time.Until(r.Next(r.now())))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			r.RunOnce(ctx)
		}
	}
}
