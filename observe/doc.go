// Package observe provides observability primitives for governed
// operations.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The server wires the observer around its tool
// handlers; the governance primitives report their counters through
// Metrics.
package observe
