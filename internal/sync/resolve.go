package sync

import (
	"github.com/yndnr/docmesh-go/internal/core/domain"
)

// Resolve decides every conflict under the given policy and returns the
// records with their Resolution filled in. The ask policy has no
// interactive resolver wired in, so it defers to fallback; fallback
// itself must be a concrete policy.
func Resolve(conflicts []domain.ConflictRecord, policy, fallback domain.ResolutionPolicy) ([]domain.ConflictRecord, error) {
	if !policy.Valid() {
		return nil, domain.ErrInvalidResolution.WithDetails(string(policy))
	}
	if policy == domain.PolicyAsk {
		policy = fallback
		if !policy.Valid() || policy == domain.PolicyAsk {
			return nil, domain.ErrInvalidResolution.WithDetails("ask fallback: " + string(policy))
		}
	}

	resolved := make([]domain.ConflictRecord, len(conflicts))
	for i, c := range conflicts {
		switch policy {
		case domain.PolicyKeepLocal:
			c.Resolution = domain.ResolveKeepLocal
		case domain.PolicyKeepRemote:
			c.Resolution = domain.ResolveKeepRemote
		case domain.PolicyKeepLatest:
			// The local version wins exact ties.
			if c.Remote.ModifiedAt > c.Local.ModifiedAt {
				c.Resolution = domain.ResolveKeepRemote
			} else {
				c.Resolution = domain.ResolveKeepLocal
			}
		}
		resolved[i] = c
	}
	return resolved, nil
}

// Partition splits resolved conflicts into push and pull work. A
// keep_local decision means our version must reach the peer; keep_remote
// means theirs must reach us. Each document goes to exactly one side.
func Partition(resolved []domain.ConflictRecord) (push, pull []string) {
	for _, c := range resolved {
		switch c.Resolution {
		case domain.ResolveKeepLocal:
			push = append(push, c.DocumentID)
		case domain.ResolveKeepRemote:
			pull = append(pull, c.DocumentID)
		}
	}
	return push, pull
}
