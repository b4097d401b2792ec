// Package memory provides in-memory storage for DocMesh collections.
//
// It implements storage.CollectionStore using concurrent-safe data
// structures with sharded locking, with a global lock for operations
// that must be atomic across the collection and document indexes.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/yndnr/docmesh-go/internal/core/domain"
	"github.com/yndnr/docmesh-go/internal/storage"
	"github.com/yndnr/docmesh-go/pkg/cmap"
)

// Store provides in-memory collection storage.
type Store struct {
	// Primary index: CollectionID -> Collection
	collections *cmap.Map[string, *domain.Collection]

	// Secondary index: CollectionID -> (DocumentID -> Document)
	documents *cmap.Map[string, *cmap.Map[string, *domain.Document]]

	// Global lock for operations requiring atomicity across indexes
	mu sync.RWMutex
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		collections: cmap.New[string, *domain.Collection](),
		documents:   cmap.New[string, *cmap.Map[string, *domain.Document]](),
	}
}

var _ storage.CollectionStore = (*Store)(nil)

// CreateCollection stores a new collection.
func (s *Store) CreateCollection(_ context.Context, c *domain.Collection) error {
	if c == nil || c.ID == "" {
		return domain.ErrInvalidArgument.WithDetails("collection id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections.Has(c.ID) {
		return domain.ErrCollectionConflict.WithDetails(c.ID)
	}

	s.collections.Set(c.ID, c.Clone())
	s.documents.Set(c.ID, cmap.New[string, *domain.Document]())
	return nil
}

// GetCollection retrieves a collection by ID.
func (s *Store) GetCollection(_ context.Context, id string) (*domain.Collection, error) {
	c, ok := s.collections.Get(id)
	if !ok {
		return nil, domain.ErrCollectionNotFound.WithDetails(id)
	}
	// Return a clone to prevent external modification
	return c.Clone(), nil
}

// ListCollections returns all collections sorted by name.
func (s *Store) ListCollections(_ context.Context) ([]*domain.Collection, error) {
	out := make([]*domain.Collection, 0, s.collections.Count())
	s.collections.Range(func(_ string, c *domain.Collection) bool {
		out = append(out, c.Clone())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// RenameCollection changes a collection's name.
func (s *Store) RenameCollection(_ context.Context, id, name string) error {
	if name == "" {
		return domain.ErrInvalidArgument.WithDetails("name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections.Get(id)
	if !ok {
		return domain.ErrCollectionNotFound.WithDetails(id)
	}

	clone := c.Clone()
	clone.Name = name
	s.collections.Set(id, clone)
	return nil
}

// SetCollectionVisibility changes a collection's visibility.
func (s *Store) SetCollectionVisibility(_ context.Context, id string, v domain.CollectionVisibility) error {
	if !v.Valid() {
		return domain.ErrInvalidArgument.WithDetails("unknown visibility: " + string(v))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections.Get(id)
	if !ok {
		return domain.ErrCollectionNotFound.WithDetails(id)
	}

	clone := c.Clone()
	clone.Visibility = v
	s.collections.Set(id, clone)
	return nil
}

// DeleteCollection removes a collection and all its documents.
func (s *Store) DeleteCollection(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections.Pop(id); !ok {
		return domain.ErrCollectionNotFound.WithDetails(id)
	}
	s.documents.Delete(id)
	return nil
}

// PutDocument inserts or replaces a document in a collection.
func (s *Store) PutDocument(_ context.Context, collectionID string, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidArgument.WithDetails("document id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.documents.Get(collectionID)
	if !ok {
		return domain.ErrCollectionNotFound.WithDetails(collectionID)
	}

	clone := doc.Clone()
	if clone.ContentHash == "" {
		clone.ContentHash = domain.HashContent(clone.Content)
	}
	docs.Set(clone.ID, clone)
	return nil
}

// GetDocument retrieves a document from a collection.
func (s *Store) GetDocument(_ context.Context, collectionID, docID string) (*domain.Document, error) {
	docs, ok := s.documents.Get(collectionID)
	if !ok {
		return nil, domain.ErrCollectionNotFound.WithDetails(collectionID)
	}
	doc, ok := docs.Get(docID)
	if !ok {
		return nil, domain.ErrDocumentNotFound.WithDetails(docID)
	}
	return doc.Clone(), nil
}

// DeleteDocument removes a document from a collection.
func (s *Store) DeleteDocument(_ context.Context, collectionID, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.documents.Get(collectionID)
	if !ok {
		return domain.ErrCollectionNotFound.WithDetails(collectionID)
	}
	if _, ok := docs.Pop(docID); !ok {
		return domain.ErrDocumentNotFound.WithDetails(docID)
	}
	return nil
}

// ListDocuments returns all documents in a collection sorted by ID.
func (s *Store) ListDocuments(_ context.Context, collectionID string) ([]*domain.Document, error) {
	docs, ok := s.documents.Get(collectionID)
	if !ok {
		return nil, domain.ErrCollectionNotFound.WithDetails(collectionID)
	}

	out := make([]*domain.Document, 0, docs.Count())
	docs.Range(func(_ string, d *domain.Document) bool {
		out = append(out, d.Clone())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListMetadata returns lightweight metadata for all documents in a
// collection, sorted by ID. Content and embeddings are not included.
func (s *Store) ListMetadata(_ context.Context, collectionID string) ([]*domain.DocumentMetadata, error) {
	docs, ok := s.documents.Get(collectionID)
	if !ok {
		return nil, domain.ErrCollectionNotFound.WithDetails(collectionID)
	}

	out := make([]*domain.DocumentMetadata, 0, docs.Count())
	docs.Range(func(_ string, d *domain.Document) bool {
		meta := d.Metadata()
		out = append(out, &meta)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ExportCollection captures a full copy of a collection.
func (s *Store) ExportCollection(ctx context.Context, id string) (*storage.CollectionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections.Get(id)
	if !ok {
		return nil, domain.ErrCollectionNotFound.WithDetails(id)
	}

	docs, _ := s.documents.Get(id)
	snap := &storage.CollectionSnapshot{Collection: c.Clone()}
	if docs != nil {
		snap.Documents = make([]*domain.Document, 0, docs.Count())
		docs.Range(func(_ string, d *domain.Document) bool {
			snap.Documents = append(snap.Documents, d.Clone())
			return true
		})
		sort.Slice(snap.Documents, func(i, j int) bool { return snap.Documents[i].ID < snap.Documents[j].ID })
	}
	return snap, nil
}

// ImportCollection replaces the collection with the snapshot's
// contents, creating it if absent.
func (s *Store) ImportCollection(_ context.Context, snap *storage.CollectionSnapshot) error {
	if snap == nil || snap.Collection == nil || snap.Collection.ID == "" {
		return domain.ErrInvalidArgument.WithDetails("snapshot collection is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := snap.Collection.ID
	s.collections.Set(id, snap.Collection.Clone())

	docs := cmap.New[string, *domain.Document]()
	for _, d := range snap.Documents {
		docs.Set(d.ID, d.Clone())
	}
	s.documents.Set(id, docs)
	return nil
}

// CountDocuments returns the number of documents in a collection, or
// zero if the collection does not exist.
func (s *Store) CountDocuments(collectionID string) int {
	docs, ok := s.documents.Get(collectionID)
	if !ok {
		return 0
	}
	return docs.Count()
}
