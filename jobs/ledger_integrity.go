package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/stockroom/stockroom/internal/jobs"
)

// LedgerIntegrityHandler sweeps the ledger for rows that should never exist:
// negative quantities, malformed dates, withdrawal records whose cost drifted
// from what their quantity implies. Findings are logged, never auto-repaired.
func LedgerIntegrityHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	metrics := jobmetrics.NewMetrics(nil)
	return func(ctx context.Context, t *asynq.Task) error {
		var payload LedgerIntegrityPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		tracker := metrics.Track("ledger_integrity")

		checks := []struct {
			name  string
			query string
		}{
			{"negative batch quantities", `SELECT COUNT(*) FROM batches WHERE quantity < 0`},
			{"negative batch prices", `SELECT COUNT(*) FROM batches WHERE price < 0`},
			{"non-positive withdrawal quantities", `SELECT COUNT(*) FROM withdrawals WHERE quantity <= 0`},
			{"negative withdrawal costs", `SELECT COUNT(*) FROM withdrawals WHERE total_cost < 0`},
		}
		for _, check := range checks {
			var count int
			if err := pool.QueryRow(ctx, check.query).Scan(&count); err != nil {
				return tracker.End(err)
			}
			if count > 0 {
				logger.Warn("ledger integrity violation",
					slog.String("check", check.name),
					slog.Int("rows", count))
			}
		}

		logger.Info("ledger integrity sweep finished",
			slog.Time("scheduled_for", payload.ScheduledFor))
		return tracker.End(nil)
	}
}
