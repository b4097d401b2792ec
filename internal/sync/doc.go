// Package sync implements knowledge-base synchronization between peer
// devices.
//
// A sync run compares document metadata (content hashes and
// modification times) with a peer, classifies every document as push,
// pull, conflict or no-op, resolves conflicts under the configured
// policy and transfers full documents in batches. Runs execute
// asynchronously and are recorded in a persistent ledger.
package sync
