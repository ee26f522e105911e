// Package fileops implements governed file operations: read, write,
// directory listing, and content search. Methods expect paths that have
// already passed validation; results for reads and listings are cached
// with TTL expiry and invalidated on write.
package fileops
