package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "DM-COLL-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Collection errors (COLL).
var (
	// ErrCollectionNotFound indicates the requested collection was not found.
	ErrCollectionNotFound = NewDomainError("DM-COLL-4040", "collection not found")

	// ErrCollectionConflict indicates the collection ID already exists.
	ErrCollectionConflict = NewDomainError("DM-COLL-4090", "collection id conflict")

	// ErrDocumentNotFound indicates the requested document was not found.
	ErrDocumentNotFound = NewDomainError("DM-COLL-4041", "document not found")
)

// Discovery errors (DISC).
var (
	// ErrDeviceNotFound indicates the device is not in the presence directory.
	ErrDeviceNotFound = NewDomainError("DM-DISC-4040", "device not found")

	// ErrDeviceValidation indicates a device record failed validation.
	ErrDeviceValidation = NewDomainError("DM-DISC-4001", "device validation failed")

	// ErrMalformedAnnouncement indicates an announcement datagram could not
	// be decoded. The datagram is dropped; the listener keeps running.
	ErrMalformedAnnouncement = NewDomainError("DM-DISC-4000", "malformed announcement")
)

// Synchronization errors (SYNC).
var (
	// ErrSyncRunNotFound indicates the sync run is not in the ledger.
	ErrSyncRunNotFound = NewDomainError("DM-SYNC-4040", "sync run not found")

	// ErrSyncRunTerminal indicates an attempt to transition a terminal run.
	ErrSyncRunTerminal = NewDomainError("DM-SYNC-4090", "sync run already terminal")

	// ErrInvalidDirection indicates an unknown sync direction.
	ErrInvalidDirection = NewDomainError("DM-SYNC-4001", "invalid sync direction")

	// ErrInvalidResolution indicates an unknown conflict resolution policy.
	ErrInvalidResolution = NewDomainError("DM-SYNC-4002", "invalid conflict resolution policy")

	// ErrPeerUnreachable indicates the remote device API did not respond.
	ErrPeerUnreachable = NewDomainError("DM-SYNC-5020", "peer unreachable")
)

// Backup errors (BKUP).
var (
	// ErrNoBackup indicates no backup exists for the collection.
	ErrNoBackup = NewDomainError("DM-BKUP-4040", "no backup available")

	// ErrBackupCorrupted indicates a backup file failed verification.
	ErrBackupCorrupted = NewDomainError("DM-BKUP-5001", "backup corrupted")
)

// System errors (SYS).
var (
	// ErrInternalServer indicates an internal error.
	ErrInternalServer = NewDomainError("DM-SYS-5000", "internal server error")

	// ErrStorageError indicates a storage layer error.
	ErrStorageError = NewDomainError("DM-SYS-5001", "storage error")
)

// Argument errors (ARG).
var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("DM-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("DM-ARG-1002", "missing required argument")
)
