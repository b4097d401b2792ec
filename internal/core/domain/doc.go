// Package domain defines the core domain models for DocMesh.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling: peer devices, document
// metadata, synchronization runs and conflict records.
package domain
