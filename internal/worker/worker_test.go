package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"voxpost/internal/config"
	"voxpost/internal/engine"
	"voxpost/internal/queue"
	"voxpost/internal/storage"
)

func newTestWorker(t *testing.T, snap config.Snapshot) (*Worker, *queue.StreamQueue, *storage.Store) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	q := queue.NewStreamQueue(rdb, "test:jobs", "test-group", "consumer-1", 50*time.Millisecond)

	store, err := storage.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "test.db"), true, "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	w := New(Config{
		Store:   store,
		Queue:   q,
		Engine:  engine.New(engine.Config{Logger: zerolog.Nop()}),
		Runtime: config.NewRuntime(snap),
		Logger:  zerolog.Nop(),
	})
	return w, q, store
}

func waitForHistory(t *testing.T, store *storage.Store, want int) []storage.Transcription {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := store.RecentTranscriptions(context.Background(), 10)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(got) >= want {
			return got
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d history records", want)
	return nil
}

func TestWorkerPersistsJobOutcome(t *testing.T) {
	// Summarization disabled: the engine returns the raw text without
	// touching the network, which keeps the test hermetic.
	snap := config.Snapshot{
		Enabled:         false,
		ActiveProfileID: "professional",
		Endpoint:        "http://127.0.0.1:1",
		Model:           "test-model",
	}
	w, q, store := newTestWorker(t, snap)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.EnsureGroup(ctx); err != nil {
		t.Fatalf("ensure group: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx, 2)
	}()

	if _, err := q.Enqueue(ctx, queue.TranscriptJob{Text: "um hello"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, queue.TranscriptJob{Text: "second one", ProfileID: "raw"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	records := waitForHistory(t, store, 2)

	byRaw := map[string]storage.Transcription{}
	for _, r := range records {
		byRaw[r.RawText] = r
	}

	first, ok := byRaw["um hello"]
	if !ok {
		t.Fatalf("first job missing from history: %+v", records)
	}
	// No explicit profile on the job: the active profile applies.
	if first.ProfileID != "professional" {
		t.Fatalf("expected active profile, got %q", first.ProfileID)
	}
	if first.ProcessedText != nil {
		t.Fatal("disabled summarization must leave processed_text NULL")
	}
	if first.Model != "test-model" {
		t.Fatalf("unexpected model %q", first.Model)
	}

	second, ok := byRaw["second one"]
	if !ok {
		t.Fatalf("second job missing from history: %+v", records)
	}
	if second.ProfileID != "raw" {
		t.Fatalf("job profile override lost, got %q", second.ProfileID)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestWorkerWithoutStoreStillAcks(t *testing.T) {
	snap := config.Snapshot{Enabled: false, ActiveProfileID: "raw"}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	q := queue.NewStreamQueue(rdb, "test:jobs", "test-group", "consumer-1", 50*time.Millisecond)

	w := New(Config{
		Queue:   q,
		Engine:  engine.New(engine.Config{Logger: zerolog.Nop()}),
		Runtime: config.NewRuntime(snap),
		Logger:  zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.EnsureGroup(ctx); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	go func() { _ = w.Start(ctx, 1) }()

	if _, err := q.Enqueue(ctx, queue.TranscriptJob{Text: "fire and forget"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if rdb.XLen(ctx, "test:jobs").Val() == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("job was not acked and deleted")
}
