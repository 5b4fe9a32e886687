// Package store implements the KV store client: RRset/RRSIG lookup, the
// store's JSON record schema, and key construction. The store itself is a
// Redis-compatible key/value server (github.com/redis/go-redis/v9); this
// package never talks to a replica set or does schema migrations, only
// GET/MGET/LRANGE-shaped reads.
package store

import "errors"

// Error taxonomy for store operations. Every error returned by this package
// wraps one of these sentinels so callers (the resolver, mainly) can decide
// whether a failure should become SERVFAIL, NXDOMAIN, or a retryable
// condition without string-matching.
var (
	// ErrTransport covers connection failures, timeouts, and other
	// network-level faults talking to the KV store.
	ErrTransport = errors.New("store transport error")

	// ErrPool covers pool exhaustion (GetConn failing because the pool is
	// saturated and the wait timed out).
	ErrPool = errors.New("store pool error")

	// ErrInvalidStoreData means a value read back from the store could not
	// be parsed: a stored entry that fails to decode as a StoreEntry (bad
	// JSON or a StoreEntry/Rdata schema violation alike), or a zones-index
	// element that is not a valid zone name.
	ErrInvalidStoreData = errors.New("invalid store data")

	// ErrInvalidStoreValue means a value has an unexpected shape: an MGET
	// slot that is not a string, or, from StoreEntry/Rdata JSON
	// (un)marshalling called directly, a schema violation (wrong shape,
	// unknown tag, disallowed CAA tag, and so on).
	ErrInvalidStoreValue = errors.New("invalid store value")
)
