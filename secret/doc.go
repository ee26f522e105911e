// Package secret resolves credentials referenced from configuration so
// the config file never holds a literal key.
//
// Values pass through strict environment expansion (ExpandEnvStrict),
// then any "secretref:" reference is resolved through a Provider:
//   - Full value:  secretref:keyring:localops/assist_api_key
//   - Inline use:  Bearer secretref:env:ASSIST_API_KEY
//
// The env provider reads process environment variables; the keyring
// provider reads the operating system credential store.
package secret
