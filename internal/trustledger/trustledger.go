// Package trustledger keeps a hash-chained audit log of identity binding
// events: binds, unbinds, main-identity changes and host-binding requests.
//
// The chain begins with a well-known genesis entry whose Hash equals
// GenesisHash (64 hex zeros). Every later entry records the SHA-256 of its
// predecessor, so any rewrite of history is caught by Verify.
//
// MemoryLedger serves single-process deployments and tests; PostgresLedger
// is durable and safe to share between replicas.
package trustledger
