// Package storage defines the persistence contracts for DocMesh and a
// Badger-backed key-value engine used by the sync run ledger.
//
// The in-memory CollectionStore implementation lives in storage/memory,
// snapshot-based backups in storage/backup.
package storage
