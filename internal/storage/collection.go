package storage

import (
	"context"
	"encoding/json"

	"github.com/yndnr/docmesh-go/internal/core/domain"
)

// CollectionStore is the persistence contract for knowledge-base
// collections and their documents.
//
// Implementations must return deep copies from read methods so callers
// cannot mutate stored state, and must return domain errors
// (ErrCollectionNotFound, ErrDocumentNotFound, ErrCollectionConflict)
// for the usual failure cases.
type CollectionStore interface {
	CreateCollection(ctx context.Context, c *domain.Collection) error
	GetCollection(ctx context.Context, id string) (*domain.Collection, error)
	ListCollections(ctx context.Context) ([]*domain.Collection, error)
	RenameCollection(ctx context.Context, id, name string) error
	SetCollectionVisibility(ctx context.Context, id string, v domain.CollectionVisibility) error
	DeleteCollection(ctx context.Context, id string) error

	PutDocument(ctx context.Context, collectionID string, doc *domain.Document) error
	GetDocument(ctx context.Context, collectionID, docID string) (*domain.Document, error)
	DeleteDocument(ctx context.Context, collectionID, docID string) error
	ListDocuments(ctx context.Context, collectionID string) ([]*domain.Document, error)
	ListMetadata(ctx context.Context, collectionID string) ([]*domain.DocumentMetadata, error)

	// ExportCollection captures a full copy of a collection for backup.
	ExportCollection(ctx context.Context, id string) (*CollectionSnapshot, error)

	// ImportCollection replaces the collection with the snapshot's
	// contents, creating it if absent.
	ImportCollection(ctx context.Context, snap *CollectionSnapshot) error
}

// CollectionSnapshot is a point-in-time copy of one collection.
type CollectionSnapshot struct {
	Collection *domain.Collection `json:"collection"`
	Documents  []*domain.Document `json:"documents"`
}

// snapshotDocument is the serialized form of a document inside a
// snapshot. Document itself never serializes its embedding (the sync
// wire contract), but a restore must bring vectors back verbatim, so
// snapshots carry them explicitly.
type snapshotDocument struct {
	*domain.Document
	Embedding []float32 `json:"embedding,omitempty"`
}

type snapshotJSON struct {
	Collection *domain.Collection `json:"collection"`
	Documents  []snapshotDocument `json:"documents"`
}

// MarshalJSON implements json.Marshaler.
func (s *CollectionSnapshot) MarshalJSON() ([]byte, error) {
	docs := make([]snapshotDocument, len(s.Documents))
	for i, d := range s.Documents {
		docs[i] = snapshotDocument{Document: d, Embedding: d.Embedding}
	}
	return json.Marshal(snapshotJSON{Collection: s.Collection, Documents: docs})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *CollectionSnapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Collection = raw.Collection
	s.Documents = make([]*domain.Document, len(raw.Documents))
	for i, d := range raw.Documents {
		doc := d.Document
		if doc == nil {
			doc = &domain.Document{}
		}
		doc.Embedding = d.Embedding
		s.Documents[i] = doc
	}
	return nil
}
