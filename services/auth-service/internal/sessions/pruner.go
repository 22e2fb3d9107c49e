package sessions

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes refresh tokens that can no longer be used.
type Pruner struct {
	repo      *RefreshRepository
	retention time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewPruner(repo *RefreshRepository, retention time.Duration, logger *slog.Logger) *Pruner {
	return &Pruner{repo: repo, retention: retention, timeout: 30 * time.Second, logger: logger, now: time.Now}
}

// Prune removes tokens that expired or were revoked more than retention ago.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.repo.DeleteStale(ctx, p.now().Add(-p.retention))
}

// Schedule registers the prune job on c using a five-field cron expression or a
// descriptor such as "@hourly".
func (p *Pruner) Schedule(ctx context.Context, c *cron.Cron, expr string) (cron.EntryID, error) {
	return c.AddFunc(expr, func() {
		n, err := p.Prune(ctx)
		if err != nil {
			p.logger.Error("refresh token prune failed", "err", err)
			return
		}
		if n > 0 {
			p.logger.Info("refresh tokens pruned", "count", n)
		}
	})
}
