package sync

import (
	"net/url"
	"strconv"

	"github.com/yndnr/docmesh-go/internal/core/domain"
)

// Filter narrows a sync run to a subset of a collection's documents.
// The zero value matches every document. Both sides of a run apply the
// same filter: locally against the store, remotely as query parameters
// on the metadata request.
type Filter struct {
	// ModifiedAfter excludes documents last modified at or before this
	// unix-millisecond timestamp. Zero disables the bound.
	ModifiedAfter int64 `json:"modified_after,omitempty"`

	// IDPrefix restricts the run to document IDs with this prefix.
	IDPrefix string `json:"id_prefix,omitempty"`
}

// Zero reports whether the filter matches everything.
func (f Filter) Zero() bool {
	return f.ModifiedAfter == 0 && f.IDPrefix == ""
}

// Match reports whether meta passes the filter.
func (f Filter) Match(meta *domain.DocumentMetadata) bool {
	if f.ModifiedAfter != 0 && meta.ModifiedAt <= f.ModifiedAfter {
		return false
	}
	if f.IDPrefix != "" && len(meta.ID) < len(f.IDPrefix) {
		return false
	}
	if f.IDPrefix != "" && meta.ID[:len(f.IDPrefix)] != f.IDPrefix {
		return false
	}
	return true
}

// Apply returns the metadata entries passing the filter. A zero filter
// returns metas unchanged.
func (f Filter) Apply(metas []*domain.DocumentMetadata) []*domain.DocumentMetadata {
	if f.Zero() {
		return metas
	}
	out := make([]*domain.DocumentMetadata, 0, len(metas))
	for _, m := range metas {
		if f.Match(m) {
			out = append(out, m)
		}
	}
	return out
}

// Query encodes the filter as metadata-endpoint query parameters.
func (f Filter) Query() url.Values {
	q := url.Values{}
	if f.ModifiedAfter != 0 {
		q.Set("modified_after", strconv.FormatInt(f.ModifiedAfter, 10))
	}
	if f.IDPrefix != "" {
		q.Set("id_prefix", f.IDPrefix)
	}
	return q
}

// FilterFromQuery parses the query parameters emitted by Query.
func FilterFromQuery(q url.Values) (Filter, error) {
	var f Filter
	if raw := q.Get("modified_after"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ts < 0 {
			return Filter{}, domain.ErrInvalidArgument.WithDetails("modified_after must be a unix-millisecond timestamp")
		}
		f.ModifiedAfter = ts
	}
	f.IDPrefix = q.Get("id_prefix")
	return f, nil
}
