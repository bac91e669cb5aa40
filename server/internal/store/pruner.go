package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes history older than a retention window on a cron schedule.
type Pruner struct {
	history   *History
	retention time.Duration
	cron      *cron.Cron
}

// NewPruner schedules h.Prune with the standard five-field cron spec.
func NewPruner(h *History, spec string, retention time.Duration) (*Pruner, error) {
	p := &Pruner{history: h, retention: retention, cron: cron.New()}
	if _, err := p.cron.AddFunc(spec, p.prune); err != nil {
		return nil, fmt.Errorf("store: prune schedule %q: %w", spec, err)
	}
	return p, nil
}

// Run starts the schedule and blocks until ctx is cancelled.
func (p *Pruner) Run(ctx context.Context) {
	p.cron.Start()
	<-ctx.Done()
	<-p.cron.Stop().Done()
}

func (p *Pruner) prune() {
	cutoff := p.history.now().Add(-p.retention)
	n, err := p.history.Prune(context.Background(), cutoff)
	if err != nil {
		slog.Error("store: prune failed", "err", err)
		return
	}
	if n > 0 {
		slog.Info("store: pruned history", "count", n, "before", cutoff)
	}
}
