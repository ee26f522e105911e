// Package identity models the caller identity governance decisions are
// keyed by. A local MCP session has no authenticated principal; identity
// is the client the transport handed us plus a per-session ID.
package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Session identifies one connected client for the lifetime of its
// transport connection.
type Session struct {
	// ID is a unique per-connection identifier.
	ID string

	// ClientName and ClientVersion come from the protocol handshake.
	// Either may be empty for clients that do not announce themselves.
	ClientName    string
	ClientVersion string
}

// NewSession creates a session for a connecting client.
func NewSession(clientName, clientVersion string) *Session {
	return &Session{
		ID:            uuid.NewString(),
		ClientName:    clientName,
		ClientVersion: clientVersion,
	}
}

// Anonymous creates a session for a client that never completed the
// handshake.
func Anonymous() *Session {
	return &Session{ID: uuid.NewString(), ClientName: "anonymous"}
}

// Key returns the rate-limiter key for this session. Sessions from the
// same client share a key so the per-identity budget follows the client,
// not the connection.
func (s *Session) Key() string {
	name := strings.TrimSpace(s.ClientName)
	if name == "" {
		return s.ID
	}
	if s.ClientVersion == "" {
		return name
	}
	return name + "/" + s.ClientVersion
}

type contextKey struct{}

// WithSession returns a context carrying the session.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext extracts the session from ctx. Returns an anonymous
// session when none is attached, so callers always get a usable key.
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(contextKey{}).(*Session); ok && s != nil {
		return s
	}
	return Anonymous()
}
