package assetstore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type memRefs struct {
	mu   sync.Mutex
	refs map[string]string
}

func (m *memRefs) AssetRefs() (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.refs))
	for k, v := range m.refs {
		out[k] = v
	}
	return out, nil
}

func (m *memRefs) ClearAssetRef(id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.refs[id]; !ok {
		return 0, nil
	}
	delete(m.refs, id)
	return 1, nil
}

func (m *memRefs) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.refs[id]
	return ok
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcherDetachesOnRemove(t *testing.T) {
	store := tempStore(t)
	_ = store.Save("asset-1", "svg", []byte("<svg/>"))
	refs := &memRefs{refs: map[string]string{"asset-1": "svg"}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go Watch(ctx, store, refs, testLogger(), func(kind, id string) {
		mu.Lock()
		events = append(events, kind+":"+id)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(store.Root(), "asset-1.svg"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !refs.has("asset-1")
	}, "removed asset should be detached from its chart")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "detached:asset-1" {
				return true
			}
		}
		return false
	}, "expected detached:asset-1 callback")
}

func TestWatcherIgnoresForeignFiles(t *testing.T) {
	store := tempStore(t)
	refs := &memRefs{refs: map[string]string{"asset-1": "svg"}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, store, refs, testLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	foreign := filepath.Join(store.Root(), "random.txt")
	_ = os.WriteFile(foreign, []byte("x"), 0o644)
	_ = os.Remove(foreign)

	time.Sleep(300 * time.Millisecond)
	if !refs.has("asset-1") {
		t.Error("foreign file churn must not touch chart references")
	}
}

func TestReconcileDetachesDanglingRefs(t *testing.T) {
	store := tempStore(t)
	refs := &memRefs{refs: map[string]string{"ghost": "svg"}}

	Reconcile(store, refs, testLogger(), nil)

	if refs.has("ghost") {
		t.Error("reference without a file should be detached")
	}
}

func TestReconcileSparesFreshOrphans(t *testing.T) {
	store := tempStore(t)
	_ = store.Save("fresh", "svg", []byte("<svg/>"))
	refs := &memRefs{refs: map[string]string{}}

	Reconcile(store, refs, testLogger(), nil)

	if _, err := store.Load("fresh", "svg"); err != nil {
		t.Error("freshly written orphan must survive reconciliation")
	}
}

func TestReconcileDeletesOldOrphans(t *testing.T) {
	store := tempStore(t)
	_ = store.Save("stale", "svg", []byte("<svg/>"))
	old := time.Now().Add(-2 * time.Hour)
	_ = os.Chtimes(filepath.Join(store.Root(), "stale.svg"), old, old)
	refs := &memRefs{refs: map[string]string{}}

	Reconcile(store, refs, testLogger(), nil)

	if _, err := store.Load("stale", "svg"); err == nil {
		t.Error("old orphan file should be deleted")
	}
}

func TestReconcileKeepsReferencedAssets(t *testing.T) {
	store := tempStore(t)
	_ = store.Save("kept", "png", []byte("img"))
	old := time.Now().Add(-2 * time.Hour)
	_ = os.Chtimes(filepath.Join(store.Root(), "kept.png"), old, old)
	refs := &memRefs{refs: map[string]string{"kept": "png"}}

	Reconcile(store, refs, testLogger(), nil)

	if _, err := store.Load("kept", "png"); err != nil {
		t.Error("referenced asset must never be garbage collected")
	}
	if !refs.has("kept") {
		t.Error("reference should remain intact")
	}
}
