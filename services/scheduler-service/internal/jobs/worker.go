package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/michalsegal11/your-digital-companion/libs/db"
	"github.com/michalsegal11/your-digital-companion/libs/events"
	otelx "github.com/michalsegal11/your-digital-companion/libs/otel"
	"github.com/michalsegal11/your-digital-companion/libs/outbox"
)

// Worker turns due reminders into outbox events.
type Worker struct {
	pool      db.Querier
	repo      *Repository
	outbox    *outbox.Repository
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	backoff   time.Duration
	now       func() time.Time
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	Backoff   time.Duration
}

func NewWorker(pool db.Querier, repo *Repository, outboxRepo *outbox.Repository, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1 * time.Minute
	}
	return &Worker{
		pool:      pool,
		repo:      repo,
		outbox:    outboxRepo,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		backoff:   cfg.Backoff,
		now:       time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("reminder batch failed", "err", err)
			}
		}
	}
}

// maxBackoff caps the retry delay of a reminder that keeps failing.
const maxBackoff = time.Hour

// retryDelay doubles the base backoff per attempt already made.
func (w *Worker) retryDelay(attempts int) time.Duration {
	d := w.backoff
	for i := 1; i < attempts && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func (w *Worker) processBatch(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := w.now().UTC()
	due, err := w.repo.FetchDue(ctx, tx, now, w.batchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return tx.Commit(ctx)
	}

	var sent []int64
	for _, job := range due {
		jobCtx := otelx.ContextWithTraceContext(ctx, job.Traceparent, job.Tracestate)
		if cause := w.enqueueDue(jobCtx, tx, job); cause != nil {
			if err := w.retryLater(jobCtx, tx, job, now, cause); err != nil {
				return err
			}
			continue
		}
		sent = append(sent, job.ID)
	}
	if err := w.repo.MarkProcessed(ctx, tx, sent); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if len(sent) > 0 {
		w.logger.Info("reminders enqueued", "count", len(sent), "due", len(due))
	}
	return nil
}

// enqueueDue writes the due event inside a savepoint so one bad job does not
// abort the batch transaction.
func (w *Worker) enqueueDue(ctx context.Context, tx pgx.Tx, job Job) error {
	evt, err := outbox.NewEvent(events.AggregateReminder, job.AppointmentID, events.ReminderDue, events.ReminderDueV1{
		Appointment: job.Appointment,
		RemindAt:    job.RemindAt.UTC(),
	})
	if err != nil {
		return err
	}
	sp, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	if _, err := w.outbox.Insert(ctx, sp, evt); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}

func (w *Worker) retryLater(ctx context.Context, tx pgx.Tx, job Job, now time.Time, cause error) error {
	attempts := job.Attempts + 1
	w.logger.Warn("reminder enqueue failed", "appointment_id", job.AppointmentID, "attempt", attempts, "err", cause)
	if err := w.repo.MarkFailed(ctx, tx, job.ID, attempts, job.MaxAttempts, now.Add(w.retryDelay(attempts)), cause.Error()); err != nil {
		return err
	}
	if attempts < job.MaxAttempts {
		return nil
	}
	evt, err := outbox.NewEvent(events.AggregateReminder, job.AppointmentID, events.ReminderFailed, events.ReminderFailedV1{
		Appointment: job.Appointment,
		RemindAt:    job.RemindAt.UTC(),
		Attempts:    attempts,
		Reason:      "max attempts reached: " + cause.Error(),
	})
	if err != nil {
		return err
	}
	_, err = w.outbox.Insert(ctx, tx, evt)
	return err
}
