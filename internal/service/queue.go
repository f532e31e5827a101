package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/hindsight-ai/hindsight/internal/store"
	"go.uber.org/zap"
)

var (
	ErrOperationNotFound = errors.New("operation not found")
	ErrOperationTerminal = errors.New("operation already in a terminal state")
	ErrUnknownKind       = errors.New("no handler registered for operation kind")
)

// OperationHandler executes one queued operation. The context is cancelled
// when the operation is cancelled; handlers must observe it at suspension
// points and must not commit their final write afterwards.
type OperationHandler func(ctx context.Context, op *domain.AsyncOperation, payload any) error

// OperationQueue runs async operations on a bounded worker pool with
// pending → processing → {completed | failed | cancelled} transitions.
type OperationQueue struct {
	opStore domain.OperationStore
	logger  *zap.Logger
	workers int

	mu       sync.Mutex
	handlers map[domain.OperationKind]OperationHandler
	payloads map[uuid.UUID]any
	cancels  map[uuid.UUID]context.CancelFunc
	claimed  map[uuid.UUID]bool

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

const queuePollInterval = 250 * time.Millisecond

func NewOperationQueue(os domain.OperationStore, workers int, logger *zap.Logger) *OperationQueue {
	if workers <= 0 {
		workers = 4
	}
	return &OperationQueue{
		opStore:  os,
		logger:   logger,
		workers:  workers,
		handlers: make(map[domain.OperationKind]OperationHandler),
		payloads: make(map[uuid.UUID]any),
		cancels:  make(map[uuid.UUID]context.CancelFunc),
		claimed:  make(map[uuid.UUID]bool),
		stop:     make(chan struct{}),
	}
}

func (q *OperationQueue) Register(kind domain.OperationKind, handler OperationHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = handler
}

func (q *OperationQueue) Start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.worker()
		}
	})
}

func (q *OperationQueue) Stop() {
	close(q.stop)
	q.wg.Wait()
}

// Submit enqueues a work item. When a dedup key is supplied and a pending
// item with the same (bank, kind, key) exists, that item is returned with
// deduplicated=true and nothing new is enqueued.
func (q *OperationQueue) Submit(ctx context.Context, bankID uuid.UUID, kind domain.OperationKind, dedupKey string, payload any) (*domain.AsyncOperation, bool, error) {
	q.mu.Lock()
	_, registered := q.handlers[kind]
	q.mu.Unlock()
	if !registered {
		return nil, false, ErrUnknownKind
	}

	if dedupKey != "" {
		existing, err := q.opStore.FindPendingByDedupKey(ctx, bankID, kind, dedupKey)
		if err == nil {
			return existing, true, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, false, err
		}
	}

	op := &domain.AsyncOperation{
		BankID:   bankID,
		Kind:     kind,
		DedupKey: dedupKey,
		Status:   domain.OpPending,
	}
	if err := q.opStore.Create(ctx, op); err != nil {
		return nil, false, err
	}

	q.mu.Lock()
	q.payloads[op.ID] = payload
	q.mu.Unlock()

	return op, false, nil
}

func (q *OperationQueue) Get(ctx context.Context, id uuid.UUID) (*domain.AsyncOperation, error) {
	op, err := q.opStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOperationNotFound
		}
		return nil, err
	}
	return op, nil
}

// Cancel transitions a pending item to the terminal cancelled state; a
// processing item has its context cancelled, which the worker observes at
// the next suspension point.
func (q *OperationQueue) Cancel(ctx context.Context, id uuid.UUID) error {
	op, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	if op.Status.Terminal() {
		return ErrOperationTerminal
	}

	q.mu.Lock()
	cancel, processing := q.cancels[id]
	q.mu.Unlock()

	if processing {
		cancel()
		return nil
	}
	return q.opStore.UpdateStatus(ctx, id, domain.OpCancelled, "")
}

func (q *OperationQueue) worker() {
	defer q.wg.Done()
	ticker := time.NewTicker(queuePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stop:
			return
		case <-ticker.C:
			q.drainOnce()
		}
	}
}

func (q *OperationQueue) drainOnce() {
	ctx := context.Background()

	pending, err := q.opStore.ListPending(ctx, q.workers)
	if err != nil {
		q.logger.Warn("failed to list pending operations", zap.Error(err))
		return
	}

	for i := range pending {
		op := pending[i]
		if !q.claim(op.ID) {
			continue
		}
		q.run(&op)
		return
	}
}

func (q *OperationQueue) claim(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.claimed[id] {
		return false
	}
	q.claimed[id] = true
	return true
}

func (q *OperationQueue) run(op *domain.AsyncOperation) {
	ctx := context.Background()

	q.mu.Lock()
	handler := q.handlers[op.Kind]
	payload := q.payloads[op.ID]
	q.mu.Unlock()

	if handler == nil {
		_ = q.opStore.UpdateStatus(ctx, op.ID, domain.OpFailed, ErrUnknownKind.Error())
		q.release(op.ID)
		return
	}

	if err := q.opStore.UpdateStatus(ctx, op.ID, domain.OpProcessing, ""); err != nil {
		q.logger.Warn("failed to mark operation processing", zap.String("operation_id", op.ID.String()), zap.Error(err))
		q.release(op.ID)
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	q.mu.Lock()
	q.cancels[op.ID] = cancel
	q.mu.Unlock()

	err := handler(runCtx, op, payload)

	q.mu.Lock()
	delete(q.cancels, op.ID)
	q.mu.Unlock()
	cancel()

	switch {
	case err == nil:
		_ = q.opStore.UpdateStatus(ctx, op.ID, domain.OpCompleted, "")
	case errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrCancelled):
		_ = q.opStore.UpdateStatus(ctx, op.ID, domain.OpCancelled, "")
	default:
		q.logger.Warn("operation failed",
			zap.String("operation_id", op.ID.String()),
			zap.String("kind", string(op.Kind)),
			zap.Error(err))
		_ = q.opStore.UpdateStatus(ctx, op.ID, domain.OpFailed, err.Error())
	}

	q.release(op.ID)
}

func (q *OperationQueue) release(id uuid.UUID) {
	q.mu.Lock()
	delete(q.payloads, id)
	delete(q.claimed, id)
	q.mu.Unlock()
}
