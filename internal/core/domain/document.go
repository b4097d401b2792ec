package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// CollectionVisibility controls whether a collection is advertised to peers.
type CollectionVisibility string

// Collection visibilities.
const (
	VisibilityPrivate CollectionVisibility = "private"
	VisibilityPublic  CollectionVisibility = "public"
)

// Valid reports whether v is a known visibility.
func (v CollectionVisibility) Valid() bool {
	return v == VisibilityPrivate || v == VisibilityPublic
}

// Collection is the structural metadata of one document collection.
// Document content lives in the collection store, keyed by collection ID.
type Collection struct {
	// ID is the stable collection identifier.
	ID string `json:"id"`

	// Name is the display name. Renames go through the backup manager
	// so a failed rename never leaves a half-applied collection.
	Name string `json:"name"`

	// Description is the optional free-form description.
	Description string `json:"description"`

	// Visibility controls advertisement to peers.
	Visibility CollectionVisibility `json:"visibility"`

	// Attributes contains custom key-value metadata.
	Attributes map[string]string `json:"attributes"`
}

// Clone returns a deep copy of the collection metadata.
func (c *Collection) Clone() *Collection {
	clone := *c
	if c.Attributes != nil {
		clone.Attributes = make(map[string]string, len(c.Attributes))
		for k, v := range c.Attributes {
			clone.Attributes[k] = v
		}
	}
	return &clone
}

// DocumentMetadata is the sync-protocol unit for one document: enough to
// compute a diff without moving content over the wire.
type DocumentMetadata struct {
	// ID is the document identifier, unique within its collection.
	ID string `json:"id"`

	// ContentHash is the SHA-256 of the document content, hex encoded.
	// Identical hashes are always a no-op for sync regardless of
	// timestamp skew.
	ContentHash string `json:"content_hash"`

	// ModifiedAt is the last modification timestamp (Unix milliseconds).
	ModifiedAt int64 `json:"modified_at"`

	// AddedAt is the creation timestamp (Unix milliseconds).
	AddedAt int64 `json:"added_at,omitempty"`

	// Attributes contains opaque document metadata.
	Attributes map[string]string `json:"metadata,omitempty"`
}

// Document is a full document: sync metadata plus content and the locally
// generated embedding vector. Embeddings are never transmitted between
// peers; each side regenerates them with its own embedding service.
type Document struct {
	ID          string            `json:"id"`
	Content     string            `json:"content"`
	ContentHash string            `json:"content_hash"`
	ModifiedAt  int64             `json:"modified_at"`
	AddedAt     int64             `json:"added_at"`
	Attributes  map[string]string `json:"metadata,omitempty"`
	Embedding   []float32         `json:"-"`
}

// HashContent computes the canonical content hash used by the sync protocol.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Metadata projects the document onto its sync-protocol metadata.
// The content hash is recomputed if it has not been set.
func (d *Document) Metadata() DocumentMetadata {
	hash := d.ContentHash
	if hash == "" {
		hash = HashContent(d.Content)
	}
	return DocumentMetadata{
		ID:          d.ID,
		ContentHash: hash,
		ModifiedAt:  d.ModifiedAt,
		AddedAt:     d.AddedAt,
		Attributes:  d.Attributes,
	}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	clone := *d
	if d.Attributes != nil {
		clone.Attributes = make(map[string]string, len(d.Attributes))
		for k, v := range d.Attributes {
			clone.Attributes[k] = v
		}
	}
	if d.Embedding != nil {
		clone.Embedding = make([]float32, len(d.Embedding))
		copy(clone.Embedding, d.Embedding)
	}
	return &clone
}
