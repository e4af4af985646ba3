package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"imageflow/internal/models"
)

// fakeStore records terminal updates in call order.
type fakeStore struct {
	mu      sync.Mutex
	updates []terminalUpdate
	failN   int // fail the first N updates
	signal  chan struct{}
}

type terminalUpdate struct {
	ID          uuid.UUID
	Status      string
	Metadata    *models.Metadata
	Thumbnails  map[string]string
	Caption     *string
	ProcessedAt time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{signal: make(chan struct{}, 64)}
}

func (f *fakeStore) UpdateTerminal(_ context.Context, id uuid.UUID, status string, meta *models.Metadata, thumbnails map[string]string, caption *string, processedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		f.signal <- struct{}{}
		return errors.New("persistence failure")
	}
	f.updates = append(f.updates, terminalUpdate{
		ID: id, Status: status, Metadata: meta, Thumbnails: thumbnails,
		Caption: caption, ProcessedAt: processedAt,
	})
	f.signal <- struct{}{}
	return nil
}

func (f *fakeStore) wait(t *testing.T, n int) []terminalUpdate {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.signal:
		case <-time.After(10 * time.Second):
			t.Fatalf("timed out waiting for terminal update %d of %d", i+1, n)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]terminalUpdate, len(f.updates))
	copy(out, f.updates)
	return out
}

// staticCaptioner satisfies Captioner without any remote calls.
type staticCaptioner struct{ caption string }

func (s staticCaptioner) Resolve(context.Context, string) string { return s.caption }

func TestWorkerSuccessfulJob(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "upload.jpg")
	writeTestImage(t, srcPath, 1000, 800)

	store := newFakeStore()
	p := New(store, staticCaptioner{caption: "a red square"}, filepath.Join(dir, "thumbs"))
	p.Start()
	defer p.Stop()

	id := uuid.New()
	p.Enqueue(id, srcPath, "upload.jpg")

	updates := store.wait(t, 1)
	up := updates[0]

	if up.ID != id {
		t.Errorf("record id = %s, want %s", up.ID, id)
	}
	if up.Status != models.StatusSuccess {
		t.Fatalf("status = %q, want %q", up.Status, models.StatusSuccess)
	}
	if up.Metadata == nil || up.Metadata.Width != 1000 || up.Metadata.Height != 800 {
		t.Errorf("metadata = %+v, want 1000x800", up.Metadata)
	}
	if up.Metadata != nil && up.Metadata.Format != "jpeg" {
		t.Errorf("format = %q, want jpeg", up.Metadata.Format)
	}
	if len(up.Thumbnails) != 2 {
		t.Fatalf("thumbnails = %v, want exactly small and medium", up.Thumbnails)
	}
	for _, label := range []string{"small", "medium"} {
		path, ok := up.Thumbnails[label]
		if !ok {
			t.Fatalf("missing thumbnail %q", label)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("thumbnail %q not on disk: %v", label, err)
		}
	}
	if up.Caption == nil || *up.Caption == "" {
		t.Error("caption must be non-empty")
	}
	if up.ProcessedAt.IsZero() {
		t.Error("processed_at must be set")
	}
}

func TestWorkerUndecodableImageFailsJob(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "broken.jpg")
	if err := os.WriteFile(srcPath, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := newFakeStore()
	p := New(store, staticCaptioner{caption: "unused"}, filepath.Join(dir, "thumbs"))
	p.Start()
	defer p.Stop()

	p.Enqueue(uuid.New(), srcPath, "broken.jpg")

	up := store.wait(t, 1)[0]
	if up.Status != models.StatusFailed {
		t.Fatalf("status = %q, want %q", up.Status, models.StatusFailed)
	}
	if up.Metadata != nil || up.Thumbnails != nil || up.Caption != nil {
		t.Error("failed record must carry no metadata, thumbnails or caption")
	}
	// processed_at is set at failure time (chosen policy).
	if up.ProcessedAt.IsZero() {
		t.Error("processed_at must be set at failure time")
	}
}

func TestWorkerProcessesJobsInOrder(t *testing.T) {
	dir := t.TempDir()

	type upload struct {
		id   uuid.UUID
		path string
	}
	var uploads []upload
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		path := filepath.Join(dir, name)
		writeTestImage(t, path, 60, 40)
		uploads = append(uploads, upload{id: uuid.New(), path: path})
	}

	store := newFakeStore()
	p := New(store, staticCaptioner{caption: "x"}, filepath.Join(dir, "thumbs"))

	// Enqueue everything before the worker starts so ordering is observable.
	for _, u := range uploads {
		p.Enqueue(u.id, u.path, filepath.Base(u.path))
	}
	p.Start()
	defer p.Stop()

	updates := store.wait(t, len(uploads))
	for i, u := range uploads {
		if updates[i].ID != u.id {
			t.Errorf("completion %d = %s, want %s", i, updates[i].ID, u.id)
		}
	}
}

func TestWorkerContinuesAfterFailedJob(t *testing.T) {
	dir := t.TempDir()

	badPath := filepath.Join(dir, "bad.jpg")
	if err := os.WriteFile(badPath, []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	goodPath := filepath.Join(dir, "good.png")
	writeTestImage(t, goodPath, 80, 80)

	store := newFakeStore()
	p := New(store, staticCaptioner{caption: "x"}, filepath.Join(dir, "thumbs"))
	p.Start()
	defer p.Stop()

	badID, goodID := uuid.New(), uuid.New()
	p.Enqueue(badID, badPath, "bad.jpg")
	p.Enqueue(goodID, goodPath, "good.png")

	updates := store.wait(t, 2)
	if updates[0].ID != badID || updates[0].Status != models.StatusFailed {
		t.Errorf("first completion = (%s, %s), want (%s, failed)", updates[0].ID, updates[0].Status, badID)
	}
	if updates[1].ID != goodID || updates[1].Status != models.StatusSuccess {
		t.Errorf("second completion = (%s, %s), want (%s, success)", updates[1].ID, updates[1].Status, goodID)
	}
}

func TestWorkerSurvivesPersistenceFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pic.png")
	writeTestImage(t, path, 30, 30)

	store := newFakeStore()
	store.failN = 1
	p := New(store, staticCaptioner{caption: "x"}, filepath.Join(dir, "thumbs"))
	p.Start()
	defer p.Stop()

	// First job's terminal write fails and is dropped; the worker moves on.
	p.Enqueue(uuid.New(), path, "pic.png")
	second := uuid.New()
	p.Enqueue(second, path, "pic.png")

	store.wait(t, 1) // dropped write
	updates := store.wait(t, 1)
	if len(updates) != 1 || updates[0].ID != second {
		t.Fatalf("updates = %+v, want only the second job persisted", updates)
	}
}

func TestPipelineStartIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pic.png")
	writeTestImage(t, path, 30, 30)

	store := newFakeStore()
	p := New(store, staticCaptioner{caption: "x"}, filepath.Join(dir, "thumbs"))
	p.Start()
	p.Start()
	p.Start()
	defer p.Stop()

	// With one worker no matter how many Start calls, a single job yields a
	// single terminal update.
	p.Enqueue(uuid.New(), path, "pic.png")
	updates := store.wait(t, 1)
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}

	time.Sleep(50 * time.Millisecond)
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.updates) != 1 {
		t.Errorf("got %d updates after settle, want 1", len(store.updates))
	}
}
