// Package mcpserver exposes governed local operations as MCP tools over
// the stdio transport.
//
// Every tool call passes through the governance gate before touching a
// service: paths and commands are validated, the caller's request rate is
// checked, and a concurrency slot is acquired for the tool's category.
// Rejections come back as tool errors so clients can distinguish a
// permanent validation failure from a rate limit with a retry delay.
//
// The client's name and version from the initialize handshake become the
// rate-limit identity for the rest of the session. Stdout carries the
// protocol stream, so all logging and telemetry goes to stderr.
package mcpserver
