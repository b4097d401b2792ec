package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yndnr/docmesh-go/internal/core/domain"
)

// Wire payloads of the peer sync API. The server side in
// internal/server/httpserver/handler serves the same shapes.
type (
	// MetadataResponse is the body of GET /collections/{id}/sync/metadata.
	// Documents is keyed by document ID.
	MetadataResponse struct {
		CollectionID string                              `json:"collection_id"`
		Documents    map[string]*domain.DocumentMetadata `json:"documents"`
	}

	// PushRequest is the body of POST /collections/{id}/sync/push.
	PushRequest struct {
		SourceDeviceID string             `json:"source_device_id"`
		Documents      []*domain.Document `json:"documents"`
	}

	// PullRequest is the body of POST /collections/{id}/sync/pull.
	PullRequest struct {
		DocumentIDs []string `json:"document_ids"`
	}

	// PullResponse is the body returned for a pull request.
	PullResponse struct {
		Documents []*domain.Document `json:"documents"`
	}

	// ErrorResponse is the error envelope of the peer API.
	ErrorResponse struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
)

// PeerClient talks to the sync API of peer devices.
type PeerClient struct {
	client *http.Client
}

// NewPeerClient creates a client with the given per-request timeout.
func NewPeerClient(timeout time.Duration) *PeerClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PeerClient{
		client: &http.Client{Timeout: timeout},
	}
}

// GetMetadata fetches the document metadata of a peer's collection,
// optionally narrowed by a filter.
func (c *PeerClient) GetMetadata(ctx context.Context, peer *domain.DeviceRecord, collectionID string, filter Filter) ([]*domain.DocumentMetadata, error) {
	url := fmt.Sprintf("http://%s/collections/%s/sync/metadata", peer.Address(), collectionID)
	if q := filter.Query(); len(q) > 0 {
		url += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var out MetadataResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}

	metas := make([]*domain.DocumentMetadata, 0, len(out.Documents))
	for id, m := range out.Documents {
		if m == nil {
			continue
		}
		// The map key is authoritative when the entry omits its own ID.
		if m.ID == "" {
			m.ID = id
		}
		metas = append(metas, m)
	}
	return metas, nil
}

// PushDocuments sends full documents to a peer. Embeddings are never
// part of the payload; the peer regenerates its own.
func (c *PeerClient) PushDocuments(ctx context.Context, peer *domain.DeviceRecord, collectionID, sourceDeviceID string, docs []*domain.Document) error {
	url := fmt.Sprintf("http://%s/collections/%s/sync/push", peer.Address(), collectionID)

	body, err := json.Marshal(PushRequest{
		SourceDeviceID: sourceDeviceID,
		Documents:      docs,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, nil)
}

// PullDocuments fetches full documents from a peer by ID.
func (c *PeerClient) PullDocuments(ctx context.Context, peer *domain.DeviceRecord, collectionID string, ids []string) ([]*domain.Document, error) {
	url := fmt.Sprintf("http://%s/collections/%s/sync/pull", peer.Address(), collectionID)

	body, err := json.Marshal(PullRequest{DocumentIDs: ids})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out PullResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

func (c *PeerClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.ErrPeerUnreachable.WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode peer response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var envelope ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Code != "" {
		return domain.NewDomainError(envelope.Error.Code, envelope.Error.Message)
	}
	return domain.ErrPeerUnreachable.WithDetails(fmt.Sprintf("unexpected status %d", resp.StatusCode))
}
