package secret

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeProvider struct {
	name   string
	values map[string]string
	err    error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Resolve(_ context.Context, ref string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.values[ref], nil
}

func TestParseSecretRef(t *testing.T) {
	tests := []struct {
		in       string
		provider string
		ref      string
		ok       bool
	}{
		{"secretref:keyring:localops/assist_api_key", "keyring", "localops/assist_api_key", true},
		{"secretref:env:ASSIST_API_KEY", "env", "ASSIST_API_KEY", true},
		{"sk-plain-key", "", "", false},
		{"secretref:env", "", "", false},
		{"secretref::ref", "", "", false},
		{"secretref:env:", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			provider, ref, ok := ParseSecretRef(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if provider != tt.provider || ref != tt.ref {
				t.Errorf("parsed (%q, %q), want (%q, %q)", provider, ref, tt.provider, tt.ref)
			}
		})
	}
}

func TestResolver_FullReference(t *testing.T) {
	r := NewResolver(true, &fakeProvider{name: "vault", values: map[string]string{"api_key": "sk-123"}})

	got, err := r.ResolveValue(context.Background(), "secretref:vault:api_key")
	if err != nil {
		t.Fatalf("ResolveValue: %v", err)
	}
	if got != "sk-123" {
		t.Errorf("resolved = %q, want sk-123", got)
	}
}

func TestResolver_EmbeddedReference(t *testing.T) {
	r := NewResolver(true, &fakeProvider{name: "vault", values: map[string]string{"api_key": "sk-123"}})

	got, err := r.ResolveValue(context.Background(), "Bearer secretref:vault:api_key")
	if err != nil {
		t.Fatalf("ResolveValue: %v", err)
	}
	if got != "Bearer sk-123" {
		t.Errorf("resolved = %q, want %q", got, "Bearer sk-123")
	}
}

func TestResolver_LiteralPassesThrough(t *testing.T) {
	r := NewResolver(true)

	got, err := r.ResolveValue(context.Background(), "sk-literal")
	if err != nil {
		t.Fatalf("ResolveValue: %v", err)
	}
	if got != "sk-literal" {
		t.Errorf("resolved = %q, want sk-literal", got)
	}
}

func TestResolver_UnknownProvider(t *testing.T) {
	r := NewResolver(true)

	_, err := r.ResolveValue(context.Background(), "secretref:vault:api_key")
	if err == nil {
		t.Fatal("expected error for unregistered provider")
	}
	if !strings.Contains(err.Error(), "vault") {
		t.Errorf("error %q missing provider name", err)
	}
}

func TestResolver_StrictRejectsEmpty(t *testing.T) {
	p := &fakeProvider{name: "vault", values: map[string]string{}}

	if _, err := NewResolver(true, p).ResolveValue(context.Background(), "secretref:vault:missing"); err == nil {
		t.Error("strict resolver accepted empty value")
	}
	if got, err := NewResolver(false, p).ResolveValue(context.Background(), "secretref:vault:missing"); err != nil || got != "" {
		t.Errorf("lenient resolver: got %q, err %v", got, err)
	}
}

func TestResolver_ProviderErrorPropagates(t *testing.T) {
	boom := errors.New("store locked")
	r := NewResolver(true, &fakeProvider{name: "vault", err: boom})

	_, err := r.ResolveValue(context.Background(), "secretref:vault:api_key")
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}
