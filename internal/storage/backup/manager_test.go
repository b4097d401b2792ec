package backup

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/yndnr/docmesh-go/internal/core/domain"
	"github.com/yndnr/docmesh-go/internal/storage/memory"
	"github.com/yndnr/docmesh-go/pkg/crypto/adaptive"
)

func newStoreWithCollection(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	ctx := context.Background()
	if err := s.CreateCollection(ctx, &domain.Collection{
		ID:         "c1",
		Name:       "notes",
		Visibility: domain.VisibilityPrivate,
	}); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	for _, id := range []string{"d1", "d2"} {
		if err := s.PutDocument(ctx, "c1", &domain.Document{
			ID:         id,
			Content:    "content-" + id,
			ModifiedAt: time.Now().UnixMilli(),
		}); err != nil {
			t.Fatalf("PutDocument: %v", err)
		}
	}
	return s
}

func TestManager_BackupAndRestore(t *testing.T) {
	store := newStoreWithCollection(t)
	m, err := NewManager(Config{Dir: t.TempDir()}, store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	info, err := m.Backup(ctx, "c1")
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if info.DocumentCount != 2 {
		t.Fatalf("DocumentCount = %d, want 2", info.DocumentCount)
	}
	if info.Path == "" || info.Checksum == "" {
		t.Fatalf("on-disk backup not written: %+v", info)
	}

	// Mutate, then restore.
	if err := store.DeleteDocument(ctx, "c1", "d1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if err := m.Restore(ctx, "c1"); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := store.GetDocument(ctx, "c1", "d1"); err != nil {
		t.Fatalf("document not restored: %v", err)
	}
}

func TestManager_RestoreFromDisk(t *testing.T) {
	store := newStoreWithCollection(t)
	dir := t.TempDir()
	m, err := NewManager(Config{Dir: dir}, store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	if _, err := m.Backup(ctx, "c1"); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	// A fresh manager has no in-memory snapshot and must read the file.
	m2, err := NewManager(Config{Dir: dir}, store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	_ = store.DeleteDocument(ctx, "c1", "d2")
	if err := m2.Restore(ctx, "c1"); err != nil {
		t.Fatalf("Restore from disk: %v", err)
	}
	if _, err := store.GetDocument(ctx, "c1", "d2"); err != nil {
		t.Fatalf("document not restored: %v", err)
	}
}

func TestManager_DiskRestoreKeepsEmbeddings(t *testing.T) {
	store := newStoreWithCollection(t)
	dir := t.TempDir()
	ctx := context.Background()

	want := []float32{0.25, 0.5, 0.75}
	if err := store.PutDocument(ctx, "c1", &domain.Document{
		ID:         "vec",
		Content:    "vectored",
		ModifiedAt: time.Now().UnixMilli(),
		Embedding:  want,
	}); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}

	m, err := NewManager(Config{Dir: dir}, store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m.Backup(ctx, "c1"); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	// A fresh manager reads the file, so the vector must survive the
	// serialization round trip, not just the in-memory snapshot.
	m2, err := NewManager(Config{Dir: dir}, store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := store.DeleteCollection(ctx, "c1"); err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}
	if err := m2.Restore(ctx, "c1"); err != nil {
		t.Fatalf("Restore from disk: %v", err)
	}

	got, err := store.GetDocument(ctx, "c1", "vec")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if len(got.Embedding) != len(want) {
		t.Fatalf("embedding = %v, want %v", got.Embedding, want)
	}
	for i := range want {
		if got.Embedding[i] != want[i] {
			t.Fatalf("embedding = %v, want %v", got.Embedding, want)
		}
	}
}

func TestManager_RestoreWithoutBackup(t *testing.T) {
	store := newStoreWithCollection(t)
	m, err := NewManager(Config{Dir: t.TempDir()}, store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if err := m.Restore(context.Background(), "c1"); !errors.Is(err, domain.ErrNoBackup) {
		t.Fatalf("Restore = %v, want ErrNoBackup", err)
	}
}

func TestManager_RunWithRollback(t *testing.T) {
	store := newStoreWithCollection(t)
	m, err := NewManager(Config{}, store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	// Successful mutation is kept.
	err = m.RunWithRollback(ctx, "c1", func(ctx context.Context) error {
		return store.PutDocument(ctx, "c1", &domain.Document{ID: "d3", Content: "three"})
	})
	if err != nil {
		t.Fatalf("RunWithRollback: %v", err)
	}
	if _, err := store.GetDocument(ctx, "c1", "d3"); err != nil {
		t.Fatalf("mutation not applied: %v", err)
	}

	// Failed mutation is rolled back even if it partially applied.
	boom := errors.New("boom")
	err = m.RunWithRollback(ctx, "c1", func(ctx context.Context) error {
		_ = store.DeleteDocument(ctx, "c1", "d1")
		_ = store.DeleteDocument(ctx, "c1", "d2")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunWithRollback = %v, want boom", err)
	}
	for _, id := range []string{"d1", "d2", "d3"} {
		if _, err := store.GetDocument(ctx, "c1", id); err != nil {
			t.Fatalf("document %s not rolled back: %v", id, err)
		}
	}
}

func TestManager_RunWithRollbackDiscardsSnapshot(t *testing.T) {
	store := newStoreWithCollection(t)
	m, err := NewManager(Config{}, store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	err = m.RunWithRollback(ctx, "c1", func(ctx context.Context) error {
		return store.PutDocument(ctx, "c1", &domain.Document{ID: "d3", Content: "three"})
	})
	if err != nil {
		t.Fatalf("RunWithRollback: %v", err)
	}

	// The pre-mutation snapshot is discarded on success; a later restore
	// has nothing to resurrect it from.
	if err := m.Restore(ctx, "c1"); !errors.Is(err, domain.ErrNoBackup) {
		t.Fatalf("Restore after success = %v, want ErrNoBackup", err)
	}
	if _, err := store.GetDocument(ctx, "c1", "d3"); err != nil {
		t.Fatalf("mutation lost: %v", err)
	}
}

func TestManager_EncryptedRoundTrip(t *testing.T) {
	store := newStoreWithCollection(t)
	dir := t.TempDir()

	cipher, err := adaptive.New([]byte("backup-test-key"))
	if err != nil {
		t.Fatalf("adaptive.New: %v", err)
	}

	m, err := NewManager(Config{Dir: dir, Cipher: cipher}, store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	if _, err := m.Backup(ctx, "c1"); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	// A fresh manager with the same key can read the file.
	m2, err := NewManager(Config{Dir: dir, Cipher: cipher}, store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	_ = store.DeleteDocument(ctx, "c1", "d1")
	if err := m2.Restore(ctx, "c1"); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := store.GetDocument(ctx, "c1", "d1"); err != nil {
		t.Fatalf("document not restored: %v", err)
	}
}

func TestManager_CorruptedFileSkipped(t *testing.T) {
	store := newStoreWithCollection(t)
	dir := t.TempDir()
	m, err := NewManager(Config{Dir: dir}, store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	first, err := m.Backup(ctx, "c1")
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	second, err := m.Backup(ctx, "c1")
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}

	// Corrupt the newest file; restore must fall back to the older one.
	if err := os.WriteFile(second.Path, []byte("garbage"), 0o600); err != nil {
		t.Fatalf("corrupt file: %v", err)
	}

	m2, err := NewManager(Config{Dir: dir}, store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	_ = store.DeleteDocument(ctx, "c1", "d1")
	if err := m2.Restore(ctx, "c1"); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := store.GetDocument(ctx, "c1", "d1"); err != nil {
		t.Fatalf("fallback to %s failed: %v", first.ID, err)
	}
}

func TestManager_Cleanup(t *testing.T) {
	store := newStoreWithCollection(t)
	dir := t.TempDir()
	m, err := NewManager(Config{Dir: dir, Keep: 2}, store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := m.Backup(ctx, "c1"); err != nil {
			t.Fatalf("Backup: %v", err)
		}
	}

	if err := m.Cleanup("c1"); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	infos, err := m.List("c1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("kept %d backups, want 2", len(infos))
	}
}
