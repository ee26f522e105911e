package secret

import (
	"context"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the credential store service name used when a
// ref does not carry one.
const DefaultKeyringService = "localops"

// KeyringProvider resolves secrets from the operating system credential
// store. Refs take the form "service/key" or just "key", which uses
// DefaultKeyringService: secretref:keyring:localops/assist_api_key.
type KeyringProvider struct {
	service string
}

// NewKeyringProvider creates a keyring provider. An empty service uses
// DefaultKeyringService.
func NewKeyringProvider(service string) *KeyringProvider {
	if strings.TrimSpace(service) == "" {
		service = DefaultKeyringService
	}
	return &KeyringProvider{service: service}
}

// Name returns "keyring".
func (p *KeyringProvider) Name() string {
	return "keyring"
}

// Resolve reads a credential from the OS keyring.
func (p *KeyringProvider) Resolve(ctx context.Context, ref string) (string, error) {
	service, key := p.splitRef(ref)
	if key == "" {
		return "", fmt.Errorf("keyring secret ref is empty")
	}
	value, err := keyring.Get(service, key)
	if err != nil {
		return "", fmt.Errorf("keyring lookup %s/%s: %w", service, key, err)
	}
	return value, nil
}

// Store writes a credential to the OS keyring.
func (p *KeyringProvider) Store(ref, value string) error {
	service, key := p.splitRef(ref)
	if key == "" {
		return fmt.Errorf("keyring secret ref is empty")
	}
	if err := keyring.Set(service, key, value); err != nil {
		return fmt.Errorf("keyring store %s/%s: %w", service, key, err)
	}
	return nil
}

func (p *KeyringProvider) splitRef(ref string) (service, key string) {
	ref = strings.TrimSpace(ref)
	if idx := strings.IndexByte(ref, '/'); idx >= 0 {
		service, key = ref[:idx], ref[idx+1:]
		if strings.TrimSpace(service) == "" {
			service = p.service
		}
		return service, strings.TrimSpace(key)
	}
	return p.service, ref
}
