package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stockroom/stockroom/internal/jobs"
	"github.com/stockroom/stockroom/internal/ledger"
	"github.com/stockroom/stockroom/internal/report"
)

// ReportWarmupHandler refreshes the cached overview so the first report
// download after an idle period does not pay the full aggregation cost.
func ReportWarmupHandler(svc *ledger.Service, cache *report.Cache, logger *slog.Logger) asynq.HandlerFunc {
	metrics := jobmetrics.NewMetrics(nil)
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ReportWarmupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		tracker := metrics.Track("report_warmup")

		if err := cache.Bump(ctx); err != nil {
			return tracker.End(err)
		}
		for _, role := range []string{"manager", "warehouse"} {
			key, err := cache.BuildKey(ctx, "report", "overview", role, "")
			if err != nil {
				return tracker.End(err)
			}
			var groups []ledger.GroupedItem
			err = cache.FetchJSON(ctx, key, &groups, func(ctx context.Context) (interface{}, error) {
				return svc.Search(ctx, "")
			})
			if err != nil {
				return tracker.End(err)
			}
		}

		logger.Info("report cache warmed",
			slog.Time("scheduled_for", payload.ScheduledFor))
		return tracker.End(nil)
	}
}
