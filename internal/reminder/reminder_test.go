package reminder

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"log/slog"

	"taskhub/internal/config"
	"taskhub/internal/model"
	"taskhub/internal/pkg/metrics"
	"taskhub/internal/pkg/notify"
)

type fakeStore struct {
	due      []DueTask
	reminded map[uint]time.Time
	markErr  error
}

func (f *fakeStore) ListDueSoon(ctx context.Context, window time.Duration) ([]DueTask, error) {
	return f.due, nil
}

func (f *fakeStore) MarkReminded(ctx context.Context, taskID uint, at time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	if f.reminded == nil {
		f.reminded = map[uint]time.Time{}
	}
	f.reminded[taskID] = at
	return nil
}

type fakeNotifier struct {
	sent    []uint
	failFor map[uint]error
}

func (f *fakeNotifier) SendDueReminder(ctx context.Context, task *model.Task, toEmail string) error {
	if err, ok := f.failFor[task.ID]; ok {
		return err
	}
	f.sent = append(f.sent, task.ID)
	return nil
}

func dueTask(id uint, email string) DueTask {
	due := time.Now().Add(2 * time.Hour)
	return DueTask{
		Task: model.Task{
			ID:      id,
			Title:   "write report",
			Status:  model.TaskStatusPending,
			DueDate: &due,
		},
		Email: email,
	}
}

func newTestReminder(store Store, notifier *fakeNotifier) *Reminder {
	metrics.InitMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, notifier, logger, time.Minute, time.Hour)
}

func TestScanOnce_SendsAndMarks(t *testing.T) {
	store := &fakeStore{due: []DueTask{dueTask(1, "a@example.com"), dueTask(2, "b@example.com")}}
	notifier := &fakeNotifier{}
	r := newTestReminder(store, notifier)

	r.scanOnce(context.Background())

	if len(notifier.sent) != 2 {
		t.Fatalf("expected 2 reminders sent, got %d", len(notifier.sent))
	}
	if _, ok := store.reminded[1]; !ok {
		t.Fatalf("task 1 must be marked reminded")
	}
	if _, ok := store.reminded[2]; !ok {
		t.Fatalf("task 2 must be marked reminded")
	}
}

func TestScanOnce_NotifierErrorSkipsMark(t *testing.T) {
	store := &fakeStore{due: []DueTask{dueTask(1, "a@example.com"), dueTask(2, "b@example.com")}}
	notifier := &fakeNotifier{failFor: map[uint]error{1: errors.New("smtp down")}}
	r := newTestReminder(store, notifier)

	r.scanOnce(context.Background())

	// 失败的任务不标记，下一轮会重试；后续任务照常发送
	if _, ok := store.reminded[1]; ok {
		t.Fatalf("failed send must not be marked reminded")
	}
	if _, ok := store.reminded[2]; !ok {
		t.Fatalf("task 2 must still be sent and marked")
	}
}

func TestScanOnce_MarkErrorDoesNotAbort(t *testing.T) {
	store := &fakeStore{
		due:     []DueTask{dueTask(1, "a@example.com"), dueTask(2, "b@example.com")},
		markErr: errors.New("db gone"),
	}
	notifier := &fakeNotifier{}
	r := newTestReminder(store, notifier)

	r.scanOnce(context.Background())

	if len(notifier.sent) != 2 {
		t.Fatalf("mark failure must not stop the scan, sent=%d", len(notifier.sent))
	}
}

func TestScanOnce_UnconfiguredMailerDoesNotMark(t *testing.T) {
	store := &fakeStore{due: []DueTask{dueTask(1, "a@example.com")}}
	metrics.InitMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mailer := notify.NewEmailNotifier(&config.EmailConfig{}, logger)
	r := New(store, mailer, logger, time.Minute, time.Hour)

	r.scanOnce(context.Background())

	// 未发出的提醒绝不能打标记，否则 SMTP 配好之后也不会补发
	if len(store.reminded) != 0 {
		t.Fatalf("task must not be marked reminded when no email was sent, got %v", store.reminded)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	r := newTestReminder(store, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after context cancel")
	}
}
