package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kubesage/kubesage-backend/internal/pkg/metrics"
	"github.com/kubesage/kubesage-backend/internal/queue"
	"github.com/kubesage/kubesage-backend/internal/repository"
)

// consumeTimeout bounds each blocking pop so shutdown is never stuck behind
// an idle queue.
const consumeTimeout = time.Second

// Reconciler keeps the upload directory and the kubeconfig records agreed on
// what exists. Two sweeps run per cycle: the orphan sweep deletes files no
// record claims, the liveness sweep deactivates records whose file vanished.
// Cycles repeat on a fixed interval, shortened to a backoff after a failed
// cycle, and can also be triggered through the task queue.
type Reconciler struct {
	repo      *repository.Store
	queue     *queue.Queue
	uploadDir string
	interval  time.Duration
	backoff   time.Duration
	log       *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewReconciler(repo *repository.Store, q *queue.Queue, uploadDir string, interval, backoff time.Duration, log *slog.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Hour
	}
	if backoff <= 0 {
		backoff = time.Minute
	}
	return &Reconciler{
		repo:      repo,
		queue:     q,
		uploadDir: uploadDir,
		interval:  interval,
		backoff:   backoff,
		log:       log,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the periodic loop and, when the queue is available, the
// queue consumer. Both stop when ctx is cancelled or Stop is called.
func (r *Reconciler) Start(ctx context.Context) {
	go r.loop(ctx)
	if r.queue.Available() {
		go r.consume(ctx)
	}
	r.log.Info("reconciler started", "interval", r.interval, "upload_dir", r.uploadDir)
}

// Stop signals the loops to exit and waits for the periodic loop to finish
// its current cycle.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

func (r *Reconciler) loop(ctx context.Context) {
	defer close(r.doneCh)
	for {
		delay := r.interval
		if err := r.RunCycle(ctx); err != nil {
			r.log.Error("reconcile cycle failed", "error", err, "retry_in", r.backoff)
			delay = r.backoff
		}
		select {
		case <-time.After(delay):
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunCycle executes both sweeps once. Per-item failures are logged and
// skipped; only failures that prevent a sweep from running at all (unreadable
// directory, failed listing) fail the cycle.
func (r *Reconciler) RunCycle(ctx context.Context) error {
	var errs []error
	if err := r.orphanSweep(ctx); err != nil {
		errs = append(errs, fmt.Errorf("orphan sweep: %w", err))
	}
	if err := r.livenessSweep(ctx); err != nil {
		errs = append(errs, fmt.Errorf("liveness sweep: %w", err))
	}
	return errors.Join(errs...)
}

// orphanSweep deletes files in the upload directory that no record claims.
// It touches disk only, never records.
func (r *Reconciler) orphanSweep(ctx context.Context) error {
	entries, err := os.ReadDir(r.uploadDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read upload directory: %w", err)
	}

	names, err := r.repo.ListKubeconfigFilenames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list kubeconfig filenames: %w", err)
	}
	claimed := make(map[string]struct{}, len(names))
	for _, n := range names {
		claimed[n] = struct{}{}
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := claimed[entry.Name()]; ok {
			continue
		}
		path := filepath.Join(r.uploadDir, entry.Name())
		if err := os.Remove(path); err != nil {
			r.log.Error("failed to delete orphaned file", "path", path, "error", err)
			continue
		}
		metrics.ReconcilerOrphansDeletedTotal.Inc()
		r.log.Info("deleted orphaned kubeconfig file", "path", path)
	}
	return nil
}

// livenessSweep deactivates records whose backing file is gone. Records are
// kept so the owner can see what happened; only the active flag is cleared.
func (r *Reconciler) livenessSweep(ctx context.Context) error {
	kcs, err := r.repo.ListAllKubeconfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list kubeconfigs: %w", err)
	}

	for _, kc := range kcs {
		if _, err := os.Stat(kc.Path); err == nil || !os.IsNotExist(err) {
			continue
		}
		if !kc.Active {
			continue
		}
		if err := r.repo.DeactivateKubeconfig(ctx, kc.ID); err != nil {
			r.log.Error("failed to deactivate kubeconfig", "filename", kc.Filename, "error", err)
			continue
		}
		metrics.ReconcilerDeactivatedTotal.Inc()
		r.log.Warn("deactivated kubeconfig with missing file", "user_id", kc.UserID, "filename", kc.Filename)
	}
	return nil
}

// consume drains the task queue, dispatching each message to the matching
// sweep. Consume errors are logged and retried after a short pause.
func (r *Reconciler) consume(ctx context.Context) {
	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		msg, err := r.queue.Consume(ctx, consumeTimeout)
		if err != nil {
			r.log.Error("queue consume failed", "error", err)
			select {
			case <-time.After(consumeTimeout):
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
			continue
		}
		if msg == nil {
			continue
		}

		metrics.QueueMessagesTotal.WithLabelValues(msg.Type).Inc()
		switch msg.Type {
		case queue.TaskValidateKubeconfigs:
			if err := r.livenessSweep(ctx); err != nil {
				r.log.Error("queued liveness sweep failed", "error", err)
			}
		case queue.TaskCleanup:
			if err := r.orphanSweep(ctx); err != nil {
				r.log.Error("queued orphan sweep failed", "error", err)
			}
		default:
			r.log.Warn("ignoring unknown task type", "type", msg.Type)
		}
	}
}
