package secret

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvProvider resolves secrets from process environment variables.
// The ref is the variable name: secretref:env:ASSIST_API_KEY.
type EnvProvider struct{}

// NewEnvProvider creates an environment variable provider.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

// Name returns "env".
func (p *EnvProvider) Name() string {
	return "env"
}

// Resolve reads the named environment variable. A variable that is unset
// is an error; an empty value is returned as-is.
func (p *EnvProvider) Resolve(ctx context.Context, ref string) (string, error) {
	name := strings.TrimSpace(ref)
	if name == "" {
		return "", fmt.Errorf("env secret ref is empty")
	}
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("environment variable %q is not set", name)
	}
	return value, nil
}
