package mailer

import (
	"context"
	"fmt"
	"sync"

	"github.com/AsadRay/Mini-Invoice-SaaS/internal/model"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/database"
	"github.com/AsadRay/Mini-Invoice-SaaS/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dispatcher queues emails for background delivery. Every enqueued message
// gets a persisted EmailJob outbox row that the worker updates to sent or
// failed, so delivery outcomes stay visible after the response is gone.
type Dispatcher struct {
	sender Sender
	log    *zap.Logger

	queue chan queued
	wg    sync.WaitGroup
	once  sync.Once
}

type queued struct {
	jobID uint
	kind  string
	msg   Message
}

// NewDispatcher creates a dispatcher with a bounded in-memory queue.
func NewDispatcher(sender Sender, queueSize int, log *zap.Logger) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		sender: sender,
		log:    log,
		queue:  make(chan queued, queueSize),
	}
}

// Start launches the delivery worker. The worker drains the queue until
// ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case item := <-d.queue:
				prometheus.EmailQueueGauge.Dec()
				d.deliver(ctx, item)
			}
		}
	}()
}

// Stop waits for the worker to exit. Call after cancelling the context
// passed to Start.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		d.wg.Wait()
	})
}

// Enqueue persists an outbox row and schedules the message for delivery.
// The returned job reflects the queued state; delivery outcome is written
// to the same row by the worker. A full queue fails the job immediately
// rather than blocking the caller.
func (d *Dispatcher) Enqueue(job model.EmailJob, msg Message) (*model.EmailJob, error) {
	job.Status = model.EmailQueued
	if len(msg.To) > 0 {
		job.Recipient = msg.To[0]
	}
	job.Subject = msg.Subject

	if result := database.GetDB().Create(&job); result.Error != nil {
		return nil, fmt.Errorf("persist email job: %w", result.Error)
	}

	select {
	case d.queue <- queued{jobID: job.ID, kind: job.Kind, msg: msg}:
		prometheus.EmailQueueGauge.Inc()
	default:
		d.markFailed(job.ID, job.Kind, "dispatch queue full")
		return &job, fmt.Errorf("dispatch queue full")
	}

	return &job, nil
}

func (d *Dispatcher) deliver(ctx context.Context, item queued) {
	err := d.sender.Send(ctx, item.msg)

	updates := map[string]interface{}{
		"attempts": gorm.Expr("attempts + 1"),
	}
	if err != nil {
		updates["status"] = model.EmailFailed
		updates["error"] = err.Error()
		prometheus.RecordEmail(item.kind, "failed")
		d.log.Error("Email delivery failed",
			zap.Uint("job_id", item.jobID),
			zap.String("kind", item.kind),
			zap.Error(err))
	} else {
		updates["status"] = model.EmailSent
		prometheus.RecordEmail(item.kind, "sent")
		d.log.Info("Email delivered",
			zap.Uint("job_id", item.jobID),
			zap.String("kind", item.kind))
	}

	if result := database.GetDB().Model(&model.EmailJob{}).
		Where("id = ?", item.jobID).
		Updates(updates); result.Error != nil {
		d.log.Error("Failed to update email job",
			zap.Uint("job_id", item.jobID),
			zap.Error(result.Error))
	}
}

func (d *Dispatcher) markFailed(jobID uint, kind, reason string) {
	prometheus.RecordEmail(kind, "failed")
	if result := database.GetDB().Model(&model.EmailJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status": model.EmailFailed,
			"error":  reason,
		}); result.Error != nil {
		d.log.Error("Failed to mark email job failed",
			zap.Uint("job_id", jobID),
			zap.Error(result.Error))
	}
}
