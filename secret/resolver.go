package secret

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Provider resolves one secret by reference. Implementations are safe
// for concurrent use and never log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
}

// Resolver turns config values into secrets. A value is first expanded
// with ExpandEnvStrict, then any "secretref:<provider>:<ref>" reference
// in it is resolved through the matching provider. Values without
// references pass through unchanged, so a literal key in config still
// works.
type Resolver struct {
	providers map[string]Provider

	// strict rejects providers that resolve to the empty string. An
	// empty API key is always a misconfiguration here.
	strict bool
}

// NewResolver creates a resolver over the given providers.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider, len(providers)), strict: strict}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// refPattern matches embedded references so a value like
// "Bearer secretref:env:ASSIST_API_KEY" resolves in place.
var refPattern = regexp.MustCompile(`secretref:([^:\s]+):([^\s]+)`)

// ResolveValue expands environment variables in value and resolves any
// secret references it contains.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}

	if provider, ref, ok := ParseSecretRef(expanded); ok {
		return r.lookup(ctx, provider, ref)
	}

	matches := refPattern.FindAllStringSubmatchIndex(expanded, -1)
	out := expanded
	// Replace from the end so earlier match offsets stay valid.
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		resolved, err := r.lookup(ctx, out[m[2]:m[3]], out[m[4]:m[5]])
		if err != nil {
			return "", err
		}
		out = out[:m[0]] + resolved + out[m[1]:]
	}
	return out, nil
}

// ParseSecretRef splits a value of the exact form
// "secretref:<provider>:<ref>". Values with surrounding text do not
// parse here; they go through the embedded-reference path instead.
func ParseSecretRef(value string) (provider, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, "secretref:")
	if !found {
		return "", "", false
	}
	provider, ref, ok = strings.Cut(rest, ":")
	if !ok || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

func (r *Resolver) lookup(ctx context.Context, providerName, ref string) (string, error) {
	provider, ok := r.providers[strings.TrimSpace(providerName)]
	if !ok {
		return "", fmt.Errorf("secret provider %q is not registered", providerName)
	}
	resolved, err := provider.Resolve(ctx, strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	if r.strict && resolved == "" {
		return "", fmt.Errorf("secret provider %q returned empty value for %q", providerName, ref)
	}
	return resolved, nil
}
