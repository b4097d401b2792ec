package sync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/docmesh-go/internal/core/domain"
	"github.com/yndnr/docmesh-go/internal/discovery"
	"github.com/yndnr/docmesh-go/internal/storage/memory"
)

// fakePeer serves the peer sync API backed by a plain document map.
type fakePeer struct {
	mu        sync.Mutex
	documents map[string]*domain.Document
	received  []*domain.Document
	failPull  bool
}

func (p *fakePeer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /collections/{id}/sync/metadata", func(w http.ResponseWriter, r *http.Request) {
		filter, err := FilterFromQuery(r.URL.Query())
		if err != nil {
			t.Errorf("parse filter: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		resp := MetadataResponse{
			CollectionID: r.PathValue("id"),
			Documents:    make(map[string]*domain.DocumentMetadata),
		}
		for _, d := range p.documents {
			meta := d.Metadata()
			if filter.Match(&meta) {
				resp.Documents[meta.ID] = &meta
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("POST /collections/{id}/sync/push", func(w http.ResponseWriter, r *http.Request) {
		var req PushRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode push: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, d := range req.Documents {
			p.documents[d.ID] = d
			p.received = append(p.received, d)
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("POST /collections/{id}/sync/pull", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.failPull {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"code":"DM-SYS-5000","message":"boom"}}`))
			return
		}
		var req PullRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		var resp PullResponse
		for _, id := range req.DocumentIDs {
			if d, ok := p.documents[id]; ok {
				resp.Documents = append(resp.Documents, d)
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	return mux
}

// peerRecord converts an httptest server address into a device record.
func peerRecord(t *testing.T, srv *httptest.Server) *domain.DeviceRecord {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse peer url: %v", err)
	}
	port, _ := strconv.Atoi(u.Port())
	return &domain.DeviceRecord{
		ID:        "peer-1",
		Name:      "peer",
		Kind:      domain.DeviceKindServer,
		IPAddress: u.Hostname(),
		Port:      port,
		LastSeen:  time.Now(),
	}
}

type staticEmbedder struct{}

func (staticEmbedder) Embed(_ context.Context, content string) ([]float32, error) {
	return []float32{float32(len(content))}, nil
}

func newSyncFixture(t *testing.T, peer *fakePeer) (*Service, *memory.Store, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(peer.handler(t))
	t.Cleanup(srv.Close)

	store := memory.New()
	ctx := context.Background()
	if err := store.CreateCollection(ctx, &domain.Collection{ID: "c1", Name: "notes"}); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	dir := discovery.NewDirectory(30*time.Second, 5*time.Minute)
	dir.Upsert(peerRecord(t, srv))

	svc := NewService(Config{
		Store:          store,
		Ledger:         newTestLedger(t),
		Directory:      dir,
		Client:         NewPeerClient(5 * time.Second),
		LocalDeviceID:  "local-dev",
		BatchSize:      2,
		ConflictWindow: 60 * time.Second,
		Policy:         domain.PolicyKeepLatest,
		AskFallback:    domain.PolicyKeepLocal,
		Embedder:       staticEmbedder{},
	})
	return svc, store, srv
}

func waitTerminal(t *testing.T, svc *Service, syncID string) *domain.SyncRun {
	t.Helper()
	svc.Wait()
	run, err := svc.GetRun(context.Background(), syncID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if !run.Status.Terminal() {
		t.Fatalf("run not terminal: %+v", run)
	}
	return run
}

func TestService_BidirectionalRun(t *testing.T) {
	now := time.Now().UnixMilli()
	peer := &fakePeer{documents: map[string]*domain.Document{
		"only-remote": {ID: "only-remote", Content: "from peer", ModifiedAt: now},
	}}
	svc, store, _ := newSyncFixture(t, peer)
	ctx := context.Background()

	if err := store.PutDocument(ctx, "c1", &domain.Document{
		ID: "only-local", Content: "from us", ModifiedAt: now,
	}); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}

	run, err := svc.InitiateSync(ctx, "c1", "peer-1", domain.DirectionBidirectional, "", Filter{})
	if err != nil {
		t.Fatalf("InitiateSync: %v", err)
	}
	if run.Status != domain.SyncPending {
		t.Fatalf("initial status = %v, want pending", run.Status)
	}

	final := waitTerminal(t, svc, run.SyncID)
	if final.Status != domain.SyncCompleted {
		t.Fatalf("run failed: %+v", final)
	}
	if final.DocumentsSynced != 2 {
		t.Fatalf("DocumentsSynced = %d, want 2", final.DocumentsSynced)
	}

	// Pushed our document to the peer.
	peer.mu.Lock()
	if _, ok := peer.documents["only-local"]; !ok {
		t.Fatal("peer never received only-local")
	}
	peer.mu.Unlock()

	// Pulled theirs, with a locally regenerated embedding.
	got, err := store.GetDocument(ctx, "c1", "only-remote")
	if err != nil {
		t.Fatalf("pulled document missing: %v", err)
	}
	if len(got.Embedding) == 0 {
		t.Fatal("embedding not regenerated on pull")
	}
}

func TestService_ConflictResolvedKeepLatest(t *testing.T) {
	base := time.Now().UnixMilli()
	peer := &fakePeer{documents: map[string]*domain.Document{
		"d1": {ID: "d1", Content: "remote version", ModifiedAt: base + 120_000},
	}}
	svc, store, _ := newSyncFixture(t, peer)
	ctx := context.Background()

	// Remote is strictly newer than the window, so this is a pull, and
	// the conflicting twin below is within the window, so it conflicts.
	_ = store.PutDocument(ctx, "c1", &domain.Document{ID: "d1", Content: "local version", ModifiedAt: base})

	peer.mu.Lock()
	peer.documents["d2"] = &domain.Document{ID: "d2", Content: "remote d2", ModifiedAt: base + 30_000}
	peer.mu.Unlock()
	_ = store.PutDocument(ctx, "c1", &domain.Document{ID: "d2", Content: "local d2", ModifiedAt: base})

	run, err := svc.InitiateSync(ctx, "c1", "peer-1", domain.DirectionBidirectional, domain.PolicyKeepLatest, Filter{})
	if err != nil {
		t.Fatalf("InitiateSync: %v", err)
	}

	final := waitTerminal(t, svc, run.SyncID)
	if final.Status != domain.SyncCompleted {
		t.Fatalf("run failed: %+v", final)
	}
	if final.ConflictsCount != 1 {
		t.Fatalf("ConflictsCount = %d, want 1", final.ConflictsCount)
	}

	// keep_latest pulled the newer remote version of the conflicted doc.
	got, _ := store.GetDocument(ctx, "c1", "d2")
	if got.Content != "remote d2" {
		t.Fatalf("d2 content = %q, want remote version", got.Content)
	}
}

func TestService_FailedRunKeepsPartialProgress(t *testing.T) {
	now := time.Now().UnixMilli()
	peer := &fakePeer{
		documents: map[string]*domain.Document{
			"remote-doc": {ID: "remote-doc", Content: "x", ModifiedAt: now},
		},
		failPull: true,
	}
	svc, store, _ := newSyncFixture(t, peer)
	ctx := context.Background()

	_ = store.PutDocument(ctx, "c1", &domain.Document{ID: "local-doc", Content: "y", ModifiedAt: now})

	run, err := svc.InitiateSync(ctx, "c1", "peer-1", domain.DirectionBidirectional, "", Filter{})
	if err != nil {
		t.Fatalf("InitiateSync: %v", err)
	}

	final := waitTerminal(t, svc, run.SyncID)
	if final.Status != domain.SyncFailed {
		t.Fatalf("status = %v, want failed", final.Status)
	}
	// The push phase finished before the pull blew up.
	if final.DocumentsSynced != 1 {
		t.Fatalf("DocumentsSynced = %d, want 1 (partial progress)", final.DocumentsSynced)
	}
	if final.ErrorMessage == "" {
		t.Fatal("ErrorMessage empty on failed run")
	}
}

func TestService_InitiateValidation(t *testing.T) {
	peer := &fakePeer{documents: map[string]*domain.Document{}}
	svc, _, _ := newSyncFixture(t, peer)
	ctx := context.Background()

	if _, err := svc.InitiateSync(ctx, "missing", "peer-1", domain.DirectionPush, "", Filter{}); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("unknown collection = %v", err)
	}
	if _, err := svc.InitiateSync(ctx, "c1", "ghost", domain.DirectionPush, "", Filter{}); !errors.Is(err, domain.ErrDeviceNotFound) {
		t.Fatalf("unknown device = %v", err)
	}
	if _, err := svc.InitiateSync(ctx, "c1", "peer-1", "sideways", "", Filter{}); !errors.Is(err, domain.ErrInvalidDirection) {
		t.Fatalf("bad direction = %v", err)
	}
	if _, err := svc.InitiateSync(ctx, "c1", "peer-1", domain.DirectionPush, "coinflip", Filter{}); !errors.Is(err, domain.ErrInvalidResolution) {
		t.Fatalf("bad policy = %v", err)
	}
}

func TestService_PushOnlyNeverWrites(t *testing.T) {
	now := time.Now().UnixMilli()
	peer := &fakePeer{documents: map[string]*domain.Document{
		"remote-only": {ID: "remote-only", Content: "x", ModifiedAt: now},
	}}
	svc, store, _ := newSyncFixture(t, peer)
	ctx := context.Background()

	run, err := svc.InitiateSync(ctx, "c1", "peer-1", domain.DirectionPush, "", Filter{})
	if err != nil {
		t.Fatalf("InitiateSync: %v", err)
	}

	final := waitTerminal(t, svc, run.SyncID)
	if final.Status != domain.SyncCompleted {
		t.Fatalf("run failed: %+v", final)
	}
	if _, err := store.GetDocument(ctx, "c1", "remote-only"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatal("push-only run pulled a document")
	}
}

func TestService_FilteredRun(t *testing.T) {
	now := time.Now().UnixMilli()
	cutoff := now - 60_000
	peer := &fakePeer{documents: map[string]*domain.Document{
		"remote-old": {ID: "remote-old", Content: "stale", ModifiedAt: cutoff - 1},
	}}
	svc, store, _ := newSyncFixture(t, peer)
	ctx := context.Background()

	_ = store.PutDocument(ctx, "c1", &domain.Document{ID: "local-old", Content: "stale", ModifiedAt: cutoff - 1})
	_ = store.PutDocument(ctx, "c1", &domain.Document{ID: "local-new", Content: "fresh", ModifiedAt: now})

	run, err := svc.InitiateSync(ctx, "c1", "peer-1", domain.DirectionBidirectional, "", Filter{ModifiedAfter: cutoff})
	if err != nil {
		t.Fatalf("InitiateSync: %v", err)
	}

	final := waitTerminal(t, svc, run.SyncID)
	if final.Status != domain.SyncCompleted {
		t.Fatalf("run failed: %+v", final)
	}
	if final.DocumentsSynced != 1 {
		t.Fatalf("DocumentsSynced = %d, want 1 (only the fresh document)", final.DocumentsSynced)
	}

	// Out-of-filter documents move in neither direction.
	peer.mu.Lock()
	if _, ok := peer.documents["local-old"]; ok {
		t.Fatal("filtered-out local document was pushed")
	}
	if _, ok := peer.documents["local-new"]; !ok {
		t.Fatal("in-filter document never pushed")
	}
	peer.mu.Unlock()
	if _, err := store.GetDocument(ctx, "c1", "remote-old"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatal("filtered-out remote document was pulled")
	}
}
