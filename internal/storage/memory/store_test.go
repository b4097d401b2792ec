package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yndnr/docmesh-go/internal/core/domain"
)

func testCollection(id string) *domain.Collection {
	return &domain.Collection{
		ID:         id,
		Name:       "notes-" + id,
		Visibility: domain.VisibilityPrivate,
	}
}

func testDocument(id, content string) *domain.Document {
	return &domain.Document{
		ID:         id,
		Content:    content,
		ModifiedAt: time.Now().UnixMilli(),
		AddedAt:    time.Now().UnixMilli(),
	}
}

func TestStore_CreateAndGetCollection(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateCollection(ctx, testCollection("c1")); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	got, err := s.GetCollection(ctx, "c1")
	if err != nil {
		t.Fatalf("GetCollection: %v", err)
	}
	if got.Name != "notes-c1" {
		t.Fatalf("Name = %q, want notes-c1", got.Name)
	}

	// Returned value is a clone.
	got.Name = "mutated"
	again, _ := s.GetCollection(ctx, "c1")
	if again.Name != "notes-c1" {
		t.Fatal("GetCollection must return a clone")
	}
}

func TestStore_CreateCollectionConflict(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateCollection(ctx, testCollection("c1")); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if err := s.CreateCollection(ctx, testCollection("c1")); !errors.Is(err, domain.ErrCollectionConflict) {
		t.Fatalf("duplicate create = %v, want ErrCollectionConflict", err)
	}
}

func TestStore_RenameAndVisibility(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.CreateCollection(ctx, testCollection("c1"))

	if err := s.RenameCollection(ctx, "c1", "renamed"); err != nil {
		t.Fatalf("RenameCollection: %v", err)
	}
	if err := s.SetCollectionVisibility(ctx, "c1", domain.VisibilityPublic); err != nil {
		t.Fatalf("SetCollectionVisibility: %v", err)
	}

	got, _ := s.GetCollection(ctx, "c1")
	if got.Name != "renamed" || got.Visibility != domain.VisibilityPublic {
		t.Fatalf("collection = %+v", got)
	}

	if err := s.RenameCollection(ctx, "missing", "x"); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("rename missing = %v, want ErrCollectionNotFound", err)
	}
	if err := s.SetCollectionVisibility(ctx, "c1", "secret"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("bad visibility = %v, want ErrInvalidArgument", err)
	}
}

func TestStore_DocumentLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.CreateCollection(ctx, testCollection("c1"))

	doc := testDocument("d1", "hello world")
	if err := s.PutDocument(ctx, "c1", doc); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}

	got, err := s.GetDocument(ctx, "c1", "d1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.ContentHash != domain.HashContent("hello world") {
		t.Fatalf("hash not computed on put: %q", got.ContentHash)
	}

	metas, err := s.ListMetadata(ctx, "c1")
	if err != nil {
		t.Fatalf("ListMetadata: %v", err)
	}
	if len(metas) != 1 || metas[0].ID != "d1" {
		t.Fatalf("metas = %+v", metas)
	}

	if err := s.DeleteDocument(ctx, "c1", "d1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := s.GetDocument(ctx, "c1", "d1"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("get after delete = %v, want ErrDocumentNotFound", err)
	}
}

func TestStore_DocumentInMissingCollection(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.PutDocument(ctx, "nope", testDocument("d1", "x")); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("PutDocument = %v, want ErrCollectionNotFound", err)
	}
	if _, err := s.ListDocuments(ctx, "nope"); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("ListDocuments = %v, want ErrCollectionNotFound", err)
	}
}

func TestStore_ExportImportRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.CreateCollection(ctx, testCollection("c1"))
	_ = s.PutDocument(ctx, "c1", testDocument("d1", "one"))
	_ = s.PutDocument(ctx, "c1", testDocument("d2", "two"))

	snap, err := s.ExportCollection(ctx, "c1")
	if err != nil {
		t.Fatalf("ExportCollection: %v", err)
	}
	if len(snap.Documents) != 2 {
		t.Fatalf("snapshot has %d docs, want 2", len(snap.Documents))
	}

	// Mutate after export, then restore.
	_ = s.DeleteDocument(ctx, "c1", "d1")
	_ = s.PutDocument(ctx, "c1", testDocument("d3", "three"))

	if err := s.ImportCollection(ctx, snap); err != nil {
		t.Fatalf("ImportCollection: %v", err)
	}

	docs, _ := s.ListDocuments(ctx, "c1")
	if len(docs) != 2 {
		t.Fatalf("restored %d docs, want 2", len(docs))
	}
	if docs[0].ID != "d1" || docs[1].ID != "d2" {
		t.Fatalf("restored docs = %v, %v", docs[0].ID, docs[1].ID)
	}
}

func TestStore_DeleteCollectionRemovesDocuments(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.CreateCollection(ctx, testCollection("c1"))
	_ = s.PutDocument(ctx, "c1", testDocument("d1", "x"))

	if err := s.DeleteCollection(ctx, "c1"); err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}
	if s.CountDocuments("c1") != 0 {
		t.Fatal("documents survived collection deletion")
	}
	if err := s.DeleteCollection(ctx, "c1"); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("double delete = %v, want ErrCollectionNotFound", err)
	}
}
