package assetstore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RefStore is the chart side of asset bookkeeping: which assets are
// referenced, and how to detach a reference whose file disappeared.
type RefStore interface {
	AssetRefs() (map[string]string, error)
	ClearAssetRef(assetID string) (int, error)
}

// EventCallback is called after a watcher-driven change.
// kind is "detached" when a chart lost its image reference.
type EventCallback func(kind string, assetID string)

// Watch starts an fsnotify watcher on the asset directory and keeps
// chart rows consistent with the files on disk until ctx is cancelled:
// when an asset file is removed or renamed away, the referencing chart
// is detached from it. Bursts of removals are followed by a debounced
// reconciliation pass that catches anything the events missed.
func Watch(ctx context.Context, store *FS, refs RefStore, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(store.Root()); err != nil {
		return err
	}

	logger.Info("asset watcher: started", slog.String("root", store.Root()))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("asset watcher: stopped")
			return nil

		case <-reconcileCh:
			Reconcile(store, refs, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			ref, ok := parseFileName(filepath.Base(ev.Name))
			if !ok {
				continue
			}
			n, err := refs.ClearAssetRef(ref.ID)
			if err != nil {
				logger.Warn("asset watcher: detach failed",
					slog.String("asset", ref.ID),
					slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				logger.Debug("asset watcher: detached", slog.String("asset", ref.ID))
				if cb != nil {
					cb("detached", ref.ID)
				}
			}
			scheduleReconcile()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("asset watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// Reconcile aligns chart references with the files on disk: references
// whose file is gone are detached, and files no chart references are
// deleted. Files younger than a minute are spared, a chart row may still
// be on its way for them.
func Reconcile(store *FS, refs RefStore, logger *slog.Logger, cb EventCallback) {
	referenced, err := refs.AssetRefs()
	if err != nil {
		logger.Warn("asset reconcile: load refs failed", slog.String("error", err.Error()))
		return
	}
	files, err := store.List()
	if err != nil {
		logger.Warn("asset reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	onDisk := make(map[string]string, len(files))
	for _, f := range files {
		onDisk[f.ID] = f.Format
	}

	for id := range referenced {
		if _, ok := onDisk[id]; ok {
			continue
		}
		if n, err := refs.ClearAssetRef(id); err == nil && n > 0 {
			logger.Debug("asset reconcile: detached", slog.String("asset", id))
			if cb != nil {
				cb("detached", id)
			}
		}
	}

	for id, format := range onDisk {
		if _, ok := referenced[id]; ok {
			continue
		}
		if age, err := fileAge(store, id, format); err != nil || age < time.Minute {
			continue
		}
		if err := store.Delete(id, format); err != nil {
			logger.Warn("asset reconcile: delete orphan failed",
				slog.String("asset", id),
				slog.String("error", err.Error()))
			continue
		}
		logger.Debug("asset reconcile: removed orphan", slog.String("asset", id))
	}
}

func fileAge(store *FS, id, format string) (time.Duration, error) {
	abs, err := store.fileName(id, format)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return 0, err
	}
	return time.Since(info.ModTime()), nil
}
