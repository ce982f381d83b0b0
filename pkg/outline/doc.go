// Package outline implements the collaborative outline core: hierarchy
// organization and labeling, the vote ledger, the presence tracker, the
// mutation engine with cascading deletes and reordering, and the change
// bridge that debounces store notifications into view rebuilds.
//
// The package is backend-agnostic; all state lives behind the store
// adapter, and every operation re-reads a fresh snapshot so concurrent
// remote edits are picked up on the next call.
package outline
