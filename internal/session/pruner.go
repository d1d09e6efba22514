package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Pruner struct {
	cron     *cron.Cron
	manager  *Manager
	log      *slog.Logger
	onPruned func(clientID string)
}

// NewPruner schedules Manager.Prune every interval. onPruned, when set, is
// called for each client id whose session was removed.
func NewPruner(manager *Manager, interval time.Duration, logger *slog.Logger, onPruned func(clientID string)) (*Pruner, error) {
	if manager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pruner{
		cron:     cron.New(),
		manager:  manager,
		log:      logger,
		onPruned: onPruned,
	}

	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	if _, err := p.cron.AddFunc(fmt.Sprintf("@every %ds", seconds), p.run); err != nil {
		return nil, fmt.Errorf("schedule session pruning: %w", err)
	}
	return p, nil
}

func (p *Pruner) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ids, err := p.manager.Prune(ctx)
	for _, id := range ids {
		if p.onPruned != nil {
			p.onPruned(id)
		}
	}
	if err != nil {
		p.log.Error("session pruning failed", "error", err, "pruned", len(ids))
		return
	}
	if len(ids) > 0 {
		p.log.Info("expired sessions pruned", "count", len(ids))
	}
}

func (p *Pruner) Start() {
	p.cron.Start()
}

func (p *Pruner) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
}
