package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/citydesk/emergency-portal/internal/config"
	"github.com/citydesk/emergency-portal/internal/observability"
	"github.com/citydesk/emergency-portal/internal/repository"
)

// DeletionDependencies bundles collaborators for the deletion worker.
type DeletionDependencies struct {
	TicketRepo    repository.TicketRepository
	DeletionQueue repository.DeletionQueue
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Config        config.LifecycleConfig
	Clock         func() time.Time
}

// DeletionWorker removes closed tickets once their grace period has passed. Queue
// entries are the fast path; a periodic sweep over closed tickets catches any whose
// entry was lost.
type DeletionWorker struct {
	tickets repository.TicketRepository
	queue   repository.DeletionQueue
	metrics *observability.Metrics
	logger  *zap.Logger
	cfg     config.LifecycleConfig
	now     func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastRec time.Time
}

// NewDeletionWorker constructs the worker. Zero config values fall back to defaults.
func NewDeletionWorker(deps DeletionDependencies) *DeletionWorker {
	w := &DeletionWorker{
		tickets: deps.TicketRepo,
		queue:   deps.DeletionQueue,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		cfg:     deps.Config,
		now:     deps.Clock,
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.cfg.DeletionGrace <= 0 {
		w.cfg.DeletionGrace = 5 * time.Second
	}
	if w.cfg.SweepInterval <= 0 {
		w.cfg.SweepInterval = 500 * time.Millisecond
	}
	if w.cfg.ReconcileSlack <= 0 {
		w.cfg.ReconcileSlack = time.Minute
	}
	if w.cfg.SweepBatchSize <= 0 {
		w.cfg.SweepBatchSize = 100
	}
	return w
}

// Start runs the poll loop in the background until ctx is cancelled or Stop is called.
// A reconciliation sweep runs immediately so deletions missed while the process was
// down are caught up.
func (w *DeletionWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		w.reconcileIfDue(ctx, true)

		ticker := time.NewTicker(w.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
					w.logger.Warn("deletion sweep failed", zap.Error(err))
				}
				w.reconcileIfDue(ctx, false)
			}
		}
	}()
	w.logger.Info("deletion worker started",
		zap.Duration("grace", w.cfg.DeletionGrace),
		zap.Duration("interval", w.cfg.SweepInterval))
}

// Stop cancels the loop and waits for the in-flight sweep to finish.
func (w *DeletionWorker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.logger.Info("deletion worker stopped")
}

// RunOnce deletes every queued ticket that is due and returns how many were removed.
func (w *DeletionWorker) RunOnce(ctx context.Context) (int, error) {
	ids, err := w.queue.Due(ctx, w.now(), w.cfg.SweepBatchSize)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, id := range ids {
		won, err := w.queue.Claim(ctx, id)
		if err != nil {
			return deleted, err
		}
		if !won {
			continue
		}
		if w.delete(ctx, id) {
			deleted++
		}
	}
	return deleted, nil
}

// Reconcile deletes closed tickets whose grace period plus slack has passed without
// a queue entry removing them.
func (w *DeletionWorker) Reconcile(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.cfg.DeletionGrace - w.cfg.ReconcileSlack)
	ids, err := w.tickets.ListClosedBefore(ctx, cutoff, w.cfg.SweepBatchSize)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, id := range ids {
		if err := w.queue.Cancel(ctx, id); err != nil {
			w.logger.Warn("drop queued deletion failed", zap.Int64("ticket_id", id), zap.Error(err))
		}
		if w.delete(ctx, id) {
			deleted++
		}
	}
	if deleted > 0 {
		w.logger.Info("reconciled closed tickets", zap.Int("deleted", deleted))
	}
	return deleted, nil
}

func (w *DeletionWorker) reconcileIfDue(ctx context.Context, force bool) {
	now := w.now()
	if !force && now.Sub(w.lastRec) < w.cfg.ReconcileSlack {
		return
	}
	w.lastRec = now
	if _, err := w.Reconcile(ctx); err != nil && ctx.Err() == nil {
		w.logger.Warn("deletion reconcile failed", zap.Error(err))
	}
}

// delete removes one ticket; a ticket already gone counts as done but not as deleted.
func (w *DeletionWorker) delete(ctx context.Context, id int64) bool {
	if err := w.tickets.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return false
		}
		w.logger.Error("delete closed ticket failed", zap.Int64("ticket_id", id), zap.Error(err))
		return false
	}
	w.metrics.RecordTicketDeleted()
	w.logger.Debug("closed ticket deleted", zap.Int64("ticket_id", id))
	return true
}
