// Package cache provides a bounded in-memory store for expensive lookups.
//
// Store is a generic key-value cache with least-recently-used eviction,
// per-entry time-to-live, and a background sweep that removes expired
// entries even when they are never read again. A disabled store always
// misses on Get and ignores Set, so callers never special-case the
// configuration.
//
// Keyer derives deterministic SHA-256 cache keys from operation inputs so
// equal inputs always hit the same entry.
package cache
