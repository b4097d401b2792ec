// Package backup provides pre-mutation collection backups and rollback.
//
// Every risky collection mutation runs through RunWithRollback: a
// snapshot is taken first, the mutation runs, and on failure the
// snapshot is restored so a collection is never left half-applied.
package backup

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/docmesh-go/internal/core/domain"
	"github.com/yndnr/docmesh-go/internal/storage"
	"github.com/yndnr/docmesh-go/pkg/crypto/adaptive"
)

// Magic bytes identify backup files.
var magicBytes = []byte("DOCMSNAP")

const (
	filePrefix    = "backup-"
	fileExtension = ".bak"
	checksumSize  = 32
	headerVersion = 1

	// DefaultKeep is the number of on-disk backups retained per collection.
	DefaultKeep = 3
)

var (
	ErrInvalidMagic     = errors.New("backup: invalid magic bytes")
	ErrChecksumMismatch = errors.New("backup: checksum mismatch")
)

type backupHeader struct {
	Version       int    `json:"version"`
	CreatedAt     int64  `json:"created_at"`
	CollectionID  string `json:"collection_id"`
	DocumentCount int    `json:"document_count"`
	Encrypted     bool   `json:"encrypted"`
}

// Config configures the backup manager.
type Config struct {
	// Dir is where backup files are written. Empty keeps backups in
	// memory only, which still covers rollback within a process.
	Dir string

	// Keep is the number of on-disk backups retained per collection.
	Keep int

	// Cipher, when set, encrypts the data block of backup files.
	Cipher adaptive.Cipher
}

// Info contains metadata about a backup.
type Info struct {
	ID            string `json:"id"`
	CollectionID  string `json:"collection_id"`
	DocumentCount int    `json:"document_count"`
	CreatedAt     int64  `json:"created_at"`
	Size          int64  `json:"size,omitempty"`
	Path          string `json:"path,omitempty"`
	Checksum      string `json:"checksum,omitempty"`
}

// Manager takes and restores collection backups.
type Manager struct {
	cfg    Config
	store  storage.CollectionStore
	cipher adaptive.Cipher

	// Latest in-memory snapshot per collection, used for rollback.
	mu     sync.RWMutex
	latest map[string]*storage.CollectionSnapshot

	entropy *ulid.MonotonicEntropy
	entMu   sync.Mutex
}

// NewManager creates a backup manager over the given store.
func NewManager(cfg Config, store storage.CollectionStore) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("backup: store is required")
	}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("backup: create dir: %w", err)
		}
	}
	if cfg.Keep == 0 {
		cfg.Keep = DefaultKeep
	}

	return &Manager{
		cfg:     cfg,
		store:   store,
		cipher:  cfg.Cipher,
		latest:  make(map[string]*storage.CollectionSnapshot),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}, nil
}

// Backup captures the current state of a collection. The snapshot is
// kept in memory for rollback and, when a directory is configured,
// also written to disk.
func (m *Manager) Backup(ctx context.Context, collectionID string) (*Info, error) {
	snap, err := m.store.ExportCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	info := &Info{
		ID:            m.generateID(now),
		CollectionID:  collectionID,
		DocumentCount: len(snap.Documents),
		CreatedAt:     now.UnixMilli(),
	}

	m.mu.Lock()
	m.latest[collectionID] = snap
	m.mu.Unlock()

	if m.cfg.Dir != "" {
		if err := m.writeFile(info, snap); err != nil {
			return nil, err
		}
	}

	return info, nil
}

// Restore replaces the collection with its most recent backup. The
// in-memory snapshot wins; on-disk backups are consulted when the
// process has no in-memory copy, newest first, skipping corrupted
// files.
func (m *Manager) Restore(ctx context.Context, collectionID string) error {
	m.mu.RLock()
	snap := m.latest[collectionID]
	m.mu.RUnlock()

	if snap == nil {
		var err error
		snap, err = m.loadLatest(collectionID)
		if err != nil {
			return err
		}
	}

	return m.store.ImportCollection(ctx, snap)
}

// RunWithRollback snapshots the collection, runs fn and restores the
// snapshot if fn fails. The mutation error is returned; a restore
// failure is attached as additional detail. On success the in-memory
// snapshot is discarded; it describes pre-mutation state a later
// restore must not resurrect.
func (m *Manager) RunWithRollback(ctx context.Context, collectionID string, fn func(context.Context) error) error {
	if _, err := m.Backup(ctx, collectionID); err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		if rerr := m.Restore(ctx, collectionID); rerr != nil {
			return domain.ErrInternalServer.
				WithDetails("rollback failed: " + rerr.Error()).
				WithCause(err)
		}
		return err
	}

	m.mu.Lock()
	delete(m.latest, collectionID)
	m.mu.Unlock()
	return nil
}

// List lists on-disk backups for a collection, oldest first.
func (m *Manager) List(collectionID string) ([]*Info, error) {
	if m.cfg.Dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	prefix := filePrefix + collectionID + "-"
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, fileExtension) {
			paths = append(paths, filepath.Join(m.cfg.Dir, name))
		}
	}
	// ULID suffixes sort chronologically.
	sort.Strings(paths)

	var infos []*Info
	for _, p := range paths {
		stat, err := os.Stat(p)
		if err != nil {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), prefix), fileExtension)
		infos = append(infos, &Info{
			ID:           id,
			CollectionID: collectionID,
			Path:         p,
			Size:         stat.Size(),
		})
	}
	return infos, nil
}

// Cleanup applies the retention policy, deleting all but the newest
// Keep backups of a collection.
func (m *Manager) Cleanup(collectionID string) error {
	infos, err := m.List(collectionID)
	if err != nil {
		return err
	}
	if len(infos) <= m.cfg.Keep {
		return nil
	}
	for _, info := range infos[:len(infos)-m.cfg.Keep] {
		_ = os.Remove(info.Path)
	}
	return nil
}

func (m *Manager) writeFile(info *Info, snap *storage.CollectionSnapshot) error {
	name := filePrefix + info.CollectionID + "-" + info.ID
	tempPath := filepath.Join(m.cfg.Dir, name+".tmp")
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("backup: create temp file: %w", err)
	}
	defer os.Remove(tempPath)

	hash := sha256.New()
	writer := io.MultiWriter(file, hash)

	if _, err := writer.Write(magicBytes); err != nil {
		file.Close()
		return err
	}

	hdr := backupHeader{
		Version:       headerVersion,
		CreatedAt:     info.CreatedAt,
		CollectionID:  info.CollectionID,
		DocumentCount: info.DocumentCount,
		Encrypted:     m.cipher != nil,
	}
	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		file.Close()
		return fmt.Errorf("backup: marshal header: %w", err)
	}

	var hdrLen [4]byte
	binary.BigEndian.PutUint32(hdrLen[:], uint32(len(hdrJSON)))
	if _, err := writer.Write(hdrLen[:]); err != nil {
		file.Close()
		return fmt.Errorf("backup: write header length: %w", err)
	}
	if _, err := writer.Write(hdrJSON); err != nil {
		file.Close()
		return fmt.Errorf("backup: write header: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		file.Close()
		return fmt.Errorf("backup: marshal snapshot: %w", err)
	}
	if m.cipher != nil {
		data, err = m.cipher.Encrypt(data, []byte(info.CollectionID))
		if err != nil {
			file.Close()
			return fmt.Errorf("backup: encrypt: %w", err)
		}
	}

	var dataLen [4]byte
	binary.BigEndian.PutUint32(dataLen[:], uint32(len(data)))
	if _, err := writer.Write(dataLen[:]); err != nil {
		file.Close()
		return fmt.Errorf("backup: write data length: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("backup: write data: %w", err)
	}

	// Checksum trailer is not part of the hashed region.
	sum := hash.Sum(nil)
	if _, err := file.Write(sum); err != nil {
		file.Close()
		return fmt.Errorf("backup: write checksum: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("backup: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("backup: close: %w", err)
	}

	stat, err := os.Stat(tempPath)
	if err != nil {
		return err
	}

	finalPath := filepath.Join(m.cfg.Dir, name+fileExtension)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return fmt.Errorf("backup: rename: %w", err)
	}

	info.Size = stat.Size()
	info.Path = finalPath
	info.Checksum = hex.EncodeToString(sum)
	return nil
}

// loadLatest loads the newest valid on-disk backup of a collection,
// skipping files that fail verification.
func (m *Manager) loadLatest(collectionID string) (*storage.CollectionSnapshot, error) {
	infos, err := m.List(collectionID)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, domain.ErrNoBackup.WithDetails(collectionID)
	}

	for i := len(infos) - 1; i >= 0; i-- {
		snap, err := m.loadFile(infos[i].Path)
		if err == nil {
			return snap, nil
		}
		if errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrInvalidMagic) {
			continue
		}
		return nil, err
	}

	return nil, domain.ErrBackupCorrupted.WithDetails(collectionID)
}

func (m *Manager) loadFile(path string) (*storage.CollectionSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() < int64(len(magicBytes))+checksumSize {
		return nil, ErrChecksumMismatch
	}

	// Verify checksum.
	hashedLen := stat.Size() - checksumSize
	expected := make([]byte, checksumSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, hashedLen, checksumSize), expected); err != nil {
		return nil, err
	}
	h := sha256.New()
	if _, err := io.CopyN(h, io.NewSectionReader(f, 0, hashedLen), hashedLen); err != nil {
		return nil, err
	}
	if !bytes.Equal(h.Sum(nil), expected) {
		return nil, ErrChecksumMismatch
	}

	br := bufio.NewReader(io.NewSectionReader(f, 0, hashedLen))

	magic := make([]byte, len(magicBytes))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, magicBytes) {
		return nil, ErrInvalidMagic
	}

	var hdrLenBuf [4]byte
	if _, err := io.ReadFull(br, hdrLenBuf[:]); err != nil {
		return nil, err
	}
	hdrJSON := make([]byte, binary.BigEndian.Uint32(hdrLenBuf[:]))
	if _, err := io.ReadFull(br, hdrJSON); err != nil {
		return nil, err
	}

	var hdr backupHeader
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return nil, fmt.Errorf("backup: unmarshal header: %w", err)
	}

	var dataLenBuf [4]byte
	if _, err := io.ReadFull(br, dataLenBuf[:]); err != nil {
		return nil, err
	}
	data := make([]byte, binary.BigEndian.Uint32(dataLenBuf[:]))
	if _, err := io.ReadFull(br, data); err != nil {
		return nil, err
	}

	if hdr.Encrypted {
		if m.cipher == nil {
			return nil, domain.ErrBackupCorrupted.WithDetails("encrypted backup, no cipher configured")
		}
		data, err = m.cipher.Decrypt(data, []byte(hdr.CollectionID))
		if err != nil {
			return nil, fmt.Errorf("backup: decrypt: %w", err)
		}
	}

	var snap storage.CollectionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("backup: unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (m *Manager) generateID(t time.Time) string {
	m.entMu.Lock()
	defer m.entMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), m.entropy).String()
}
