package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity triggers the nightly ledger integrity sweep.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskReportWarmup pre-builds the overview report cache.
	TaskReportWarmup = "report:warmup"
)

// LedgerIntegrityPayload carries scheduling metadata for the integrity sweep.
type LedgerIntegrityPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLedgerIntegrityTask constructs an Asynq task for the integrity sweep.
func NewLedgerIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LedgerIntegrityPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault)), nil
}

// ReportWarmupPayload carries scheduling metadata for cache warmup.
type ReportWarmupPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewReportWarmupTask constructs an Asynq task for report cache warmup.
func NewReportWarmupTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ReportWarmupPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, body, asynq.Queue(QueueDefault)), nil
}
