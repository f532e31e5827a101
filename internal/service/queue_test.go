package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"go.uber.org/zap"
)

func newTestQueue(t *testing.T, workers int) (*OperationQueue, *mockOperationStore) {
	t.Helper()
	store := newMockOperationStore()
	q := NewOperationQueue(store, workers, zap.NewNop())
	t.Cleanup(q.Stop)
	return q, store
}

func waitForStatus(t *testing.T, store *mockOperationStore, id uuid.UUID, want domain.OperationStatus) *domain.AsyncOperation {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		op, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("get operation: %v", err)
		}
		if op.Status == want {
			return op
		}
		time.Sleep(10 * time.Millisecond)
	}
	op, _ := store.GetByID(context.Background(), id)
	t.Fatalf("operation %s never reached %s, stuck at %s", id, want, op.Status)
	return nil
}

func TestQueueCompletesOperation(t *testing.T) {
	q, store := newTestQueue(t, 2)

	done := make(chan struct{})
	q.Register(domain.OpConsolidation, func(ctx context.Context, op *domain.AsyncOperation, payload any) error {
		close(done)
		return nil
	})
	q.Start()

	op, deduplicated, err := q.Submit(context.Background(), uuid.New(), domain.OpConsolidation, "", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if deduplicated {
		t.Error("first submission flagged as deduplicated")
	}
	if op.Status != domain.OpPending {
		t.Errorf("initial status = %s, want pending", op.Status)
	}

	<-done
	final := waitForStatus(t, store, op.ID, domain.OpCompleted)
	if final.FinishedAt == nil {
		t.Error("completed operation missing finished_at")
	}
}

func TestQueueFailedOperation(t *testing.T) {
	q, store := newTestQueue(t, 1)

	q.Register(domain.OpConsolidation, func(ctx context.Context, op *domain.AsyncOperation, payload any) error {
		return errors.New("boom")
	})
	q.Start()

	op, _, err := q.Submit(context.Background(), uuid.New(), domain.OpConsolidation, "", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitForStatus(t, store, op.ID, domain.OpFailed)
	if final.Error != "boom" {
		t.Errorf("error = %q, want boom", final.Error)
	}
}

func TestQueueDeduplicatesPending(t *testing.T) {
	q, _ := newTestQueue(t, 1)
	q.Register(domain.OpRetain, func(ctx context.Context, op *domain.AsyncOperation, payload any) error {
		return nil
	})
	// Queue not started: submissions stay pending.

	bankID := uuid.New()
	first, dedup1, err := q.Submit(context.Background(), bankID, domain.OpRetain, "same-key", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	second, dedup2, err := q.Submit(context.Background(), bankID, domain.OpRetain, "same-key", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if dedup1 {
		t.Error("first submission deduplicated")
	}
	if !dedup2 {
		t.Error("second submission not deduplicated")
	}
	if first.ID != second.ID {
		t.Errorf("dedup returned a different operation: %s vs %s", first.ID, second.ID)
	}
}

func TestQueueCancelPending(t *testing.T) {
	q, store := newTestQueue(t, 1)
	q.Register(domain.OpRetain, func(ctx context.Context, op *domain.AsyncOperation, payload any) error {
		return nil
	})
	// Not started: the item stays pending until cancelled.

	op, _, err := q.Submit(context.Background(), uuid.New(), domain.OpRetain, "", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := q.Cancel(context.Background(), op.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, _ := store.GetByID(context.Background(), op.ID)
	if got.Status != domain.OpCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}

	// Terminal: cancelling again errors.
	if err := q.Cancel(context.Background(), op.ID); !errors.Is(err, ErrOperationTerminal) {
		t.Errorf("second cancel = %v, want ErrOperationTerminal", err)
	}
}

func TestQueueCancelProcessingObservedAtSuspension(t *testing.T) {
	q, store := newTestQueue(t, 1)

	started := make(chan struct{})
	q.Register(domain.OpConsolidation, func(ctx context.Context, op *domain.AsyncOperation, payload any) error {
		close(started)
		// Suspension point: block until cancellation.
		<-ctx.Done()
		return ctx.Err()
	})
	q.Start()

	op, _, err := q.Submit(context.Background(), uuid.New(), domain.OpConsolidation, "", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	<-started
	if err := q.Cancel(context.Background(), op.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	waitForStatus(t, store, op.ID, domain.OpCancelled)
}

func TestQueueRejectsUnregisteredKind(t *testing.T) {
	q, _ := newTestQueue(t, 1)

	_, _, err := q.Submit(context.Background(), uuid.New(), domain.OpRetain, "", nil)
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}
