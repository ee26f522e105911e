package identity

import (
	"context"
	"testing"
)

func TestSession_Key(t *testing.T) {
	tests := []struct {
		name    string
		session *Session
		want    string
	}{
		{
			name:    "name and version",
			session: &Session{ID: "id-1", ClientName: "claude-desktop", ClientVersion: "1.2.0"},
			want:    "claude-desktop/1.2.0",
		},
		{
			name:    "name only",
			session: &Session{ID: "id-2", ClientName: "inspector"},
			want:    "inspector",
		},
		{
			name:    "no name falls back to session ID",
			session: &Session{ID: "id-3"},
			want:    "id-3",
		},
		{
			name:    "whitespace name falls back to session ID",
			session: &Session{ID: "id-4", ClientName: "   "},
			want:    "id-4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewSession_UniqueIDs(t *testing.T) {
	a := NewSession("client", "1.0")
	b := NewSession("client", "1.0")

	if a.ID == b.ID {
		t.Error("NewSession() produced duplicate IDs")
	}
	// Same client, same rate-limit key regardless of connection
	if a.Key() != b.Key() {
		t.Errorf("Key() mismatch for same client: %q vs %q", a.Key(), b.Key())
	}
}

func TestFromContext(t *testing.T) {
	s := NewSession("client", "1.0")
	ctx := WithSession(context.Background(), s)

	if got := FromContext(ctx); got != s {
		t.Errorf("FromContext() = %+v, want the attached session", got)
	}

	// Missing session yields a usable anonymous one
	anon := FromContext(context.Background())
	if anon == nil {
		t.Fatal("FromContext() = nil for empty context")
	}
	if anon.Key() == "" {
		t.Error("anonymous session has an empty key")
	}
}
