package mailer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/AsadRay/Mini-Invoice-SaaS/internal/model"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/database"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type stubSender struct {
	mu   sync.Mutex
	fail bool
	sent []Message
}

func (s *stubSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("connection refused")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func setupDispatcherDB(t *testing.T) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "mailer.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	database.SetDB(db)
	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
}

func waitForJob(t *testing.T, jobID uint, status string) model.EmailJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var job model.EmailJob
	for time.Now().Before(deadline) {
		if err := database.GetDB().First(&job, jobID).Error; err == nil && job.Status == status {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %d never reached status %q (last: %+v)", jobID, status, job)
	return job
}

func TestEnqueueDeliversAndMarksSent(t *testing.T) {
	setupDispatcherDB(t)
	sender := &stubSender{}

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(sender, 4, zap.NewNop())
	d.Start(ctx)
	t.Cleanup(func() {
		cancel()
		d.Stop()
	})

	job, err := d.Enqueue(model.EmailJob{Kind: model.EmailKindInvoice}, Message{
		Subject:  "Invoice #1",
		From:     "billing@test.local",
		To:       []string{"client@example.com"},
		TextBody: "Please find your invoice attached.",
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if job.Status != model.EmailQueued {
		t.Errorf("expected queued status on return, got %q", job.Status)
	}
	if job.Recipient != "client@example.com" || job.Subject != "Invoice #1" {
		t.Errorf("outbox row missing message fields: %+v", job)
	}

	done := waitForJob(t, job.ID, model.EmailSent)
	if done.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", done.Attempts)
	}
	if done.Error != "" {
		t.Errorf("sent job carries error %q", done.Error)
	}
	if sender.count() != 1 {
		t.Errorf("expected 1 delivered message, got %d", sender.count())
	}
}

func TestEnqueueRecordsDeliveryFailure(t *testing.T) {
	setupDispatcherDB(t)
	sender := &stubSender{fail: true}

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(sender, 4, zap.NewNop())
	d.Start(ctx)
	t.Cleanup(func() {
		cancel()
		d.Stop()
	})

	job, err := d.Enqueue(model.EmailJob{Kind: model.EmailKindReminder}, Message{
		Subject: "Payment Reminder",
		From:    "billing@test.local",
		To:      []string{"client@example.com"},
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	failed := waitForJob(t, job.ID, model.EmailFailed)
	if failed.Error != "connection refused" {
		t.Errorf("expected delivery error recorded, got %q", failed.Error)
	}
	if failed.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", failed.Attempts)
	}
}

func TestEnqueueFailsFastWhenQueueFull(t *testing.T) {
	setupDispatcherDB(t)
	sender := &stubSender{}

	// Never started, so the single queue slot fills and stays full.
	d := NewDispatcher(sender, 1, zap.NewNop())

	first, err := d.Enqueue(model.EmailJob{Kind: model.EmailKindInvoice}, Message{
		Subject: "First",
		To:      []string{"a@example.com"},
	})
	if err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}
	if first.Status != model.EmailQueued {
		t.Errorf("first job status %q", first.Status)
	}

	overflow, err := d.Enqueue(model.EmailJob{Kind: model.EmailKindInvoice}, Message{
		Subject: "Second",
		To:      []string{"b@example.com"},
	})
	if err == nil {
		t.Fatal("expected queue-full error")
	}
	if overflow == nil {
		t.Fatal("expected the failed job row back")
	}

	var row model.EmailJob
	if err := database.GetDB().First(&row, overflow.ID).Error; err != nil {
		t.Fatalf("overflow job not persisted: %v", err)
	}
	if row.Status != model.EmailFailed || row.Error != "dispatch queue full" {
		t.Errorf("overflow job not marked failed: %+v", row)
	}
}
