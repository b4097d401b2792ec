package domain

// ConflictType classifies why two document versions are in conflict.
type ConflictType string

// Conflict types.
const (
	// ConflictModified means both sides modified the document within the
	// conflict window, so neither side is unambiguously newer.
	ConflictModified ConflictType = "modified"

	// ConflictDeleted means one side deleted a document the other side
	// modified. The diff cannot detect this today: without tombstones,
	// absence is indistinguishable from never-existed and becomes a
	// push/pull candidate. Reserved for a tombstone protocol.
	ConflictDeleted ConflictType = "deleted"
)

// Resolution is the outcome chosen for one conflict. It is filled in
// during conflict resolution and never left empty before the push/pull
// phases proceed.
type Resolution string

// Resolutions.
const (
	ResolveKeepLocal  Resolution = "keep_local"
	ResolveKeepRemote Resolution = "keep_remote"
	ResolveMerge      Resolution = "merge"
)

// ResolutionPolicy selects how detected conflicts are resolved.
type ResolutionPolicy string

// Resolution policies.
const (
	// PolicyKeepLocal always keeps the local version.
	PolicyKeepLocal ResolutionPolicy = "keep_local"

	// PolicyKeepRemote always keeps the remote version.
	PolicyKeepRemote ResolutionPolicy = "keep_remote"

	// PolicyKeepLatest keeps whichever side has the later modification
	// time; the local version wins exact ties.
	PolicyKeepLatest ResolutionPolicy = "keep_latest"

	// PolicyAsk defers to a human resolver. No interactive resolver is
	// wired in yet, so conflicts under this policy fall back to the
	// configured ask fallback policy. This is a placeholder, not a
	// design endpoint.
	PolicyAsk ResolutionPolicy = "ask"
)

// Valid reports whether the policy is one of the known values.
func (p ResolutionPolicy) Valid() bool {
	switch p {
	case PolicyKeepLocal, PolicyKeepRemote, PolicyKeepLatest, PolicyAsk:
		return true
	}
	return false
}

// ConflictRecord captures one detected conflict and, once resolution has
// run, the decision taken for it.
type ConflictRecord struct {
	DocumentID string           `json:"document_id"`
	Local      DocumentMetadata `json:"local"`
	Remote     DocumentMetadata `json:"remote"`
	Type       ConflictType     `json:"conflict_type"`
	Resolution Resolution       `json:"resolution,omitempty"`
}
