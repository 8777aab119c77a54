package worker

import (
	"context"
	"sync"
	"time"

	"smartfile-qa/internal/filestore"
	"smartfile-qa/internal/pkg/logging"
)

type Purger interface {
	PurgeOlderThan(ctx context.Context, days int) (*filestore.PurgeReport, error)
}

// PurgeWorker removes upload directories past retention on a fixed interval.
// The first sweep runs right after Start.
type PurgeWorker struct {
	store         Purger
	retentionDays int
	interval      time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPurgeWorker(store Purger, retentionDays int, interval time.Duration) *PurgeWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &PurgeWorker{
		store:         store,
		retentionDays: retentionDays,
		interval:      interval,
	}
}

func (w *PurgeWorker) Start(ctx context.Context) {
	if w.cancel != nil || w.retentionDays <= 0 {
		return
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.RunOnce(workerCtx)
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				w.RunOnce(workerCtx)
			}
		}
	}()
}

// RunOnce performs a single sweep and returns its report. Errors are logged.
func (w *PurgeWorker) RunOnce(ctx context.Context) *filestore.PurgeReport {
	report, err := w.store.PurgeOlderThan(ctx, w.retentionDays)
	if err != nil {
		logging.Error("purge uploads failed", "err", err)
		return report
	}
	if len(report.Removed)+len(report.Skipped)+len(report.Failed) > 0 {
		logging.Info("purge uploads finished",
			"removed", len(report.Removed),
			"skipped", len(report.Skipped),
			"failed", len(report.Failed),
		)
	}
	return report
}

func (w *PurgeWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
