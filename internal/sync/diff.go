package sync

import (
	"time"

	"github.com/yndnr/docmesh-go/internal/core/domain"
)

// Diff is the outcome of comparing local and remote metadata for one
// collection. Every document lands in exactly one bucket; documents
// with identical content hashes on both sides land in none.
type Diff struct {
	// ToPush are document IDs the local side should send.
	ToPush []string

	// ToPull are document IDs the local side should fetch.
	ToPull []string

	// Conflicts are documents where neither side is unambiguously newer.
	Conflicts []domain.ConflictRecord
}

// ComputeDiff compares the two metadata sets.
//
// Documents present on only one side are push or pull candidates.
// Documents on both sides with equal hashes are a no-op regardless of
// timestamps. Differing documents whose modification times are within
// the conflict window of each other conflict; a difference of exactly
// the window still conflicts, only a strictly larger gap makes one side
// the winner.
func ComputeDiff(local, remote []*domain.DocumentMetadata, window time.Duration) *Diff {
	remoteByID := make(map[string]*domain.DocumentMetadata, len(remote))
	for _, m := range remote {
		remoteByID[m.ID] = m
	}

	diff := &Diff{}
	windowMs := window.Milliseconds()

	for _, l := range local {
		r, ok := remoteByID[l.ID]
		if !ok {
			diff.ToPush = append(diff.ToPush, l.ID)
			continue
		}
		delete(remoteByID, l.ID)

		if l.ContentHash == r.ContentHash {
			continue
		}

		gap := l.ModifiedAt - r.ModifiedAt
		if gap < 0 {
			gap = -gap
		}
		if gap <= windowMs {
			diff.Conflicts = append(diff.Conflicts, domain.ConflictRecord{
				DocumentID: l.ID,
				Local:      *l,
				Remote:     *r,
				Type:       domain.ConflictModified,
			})
			continue
		}

		if l.ModifiedAt > r.ModifiedAt {
			diff.ToPush = append(diff.ToPush, l.ID)
		} else {
			diff.ToPull = append(diff.ToPull, l.ID)
		}
	}

	// Whatever remains exists only remotely.
	for _, r := range remote {
		if _, ok := remoteByID[r.ID]; ok {
			diff.ToPull = append(diff.ToPull, r.ID)
		}
	}

	return diff
}
