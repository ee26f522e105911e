package validate

import (
	"path/filepath"
	"strings"
)

// Config configures a Validator. All fields are immutable after New.
type Config struct {
	// AllowedDirs are the roots a validated path must resolve inside.
	// Relative inputs are resolved against the first allowed root.
	// Required: validation fails closed without at least one root.
	AllowedDirs []string

	// BlockedDirs are roots a resolved path may never fall inside, even
	// when nested under an allowed root.
	BlockedDirs []string

	// BlockedExtensions are file extensions (with leading dot) that are
	// always rejected. Matching is case-insensitive.
	BlockedExtensions []string

	// AllowedExtensions, when non-empty, restricts files to this set.
	// Matching is case-insensitive. Paths without an extension pass.
	AllowedExtensions []string

	// MaxPathLength is the maximum input length in bytes.
	// Default: 4096
	MaxPathLength int

	// DenyAbsolute rejects absolute inputs before resolution. The zero
	// value permits them; containment under an allowed root is still
	// enforced either way.
	DenyAbsolute bool

	// BlockedCommands overrides the default destructive-command
	// blocklist for Command. Base command names, exact match.
	BlockedCommands []string
}

// Validator inspects paths and command strings against structural and
// pattern rules. It is stateless and safe for concurrent use.
type Validator struct {
	config       Config
	allowedRoots []string
	blockedRoots []string
	blockedExt   map[string]bool
	allowedExt   map[string]bool
	blockedCmds  map[string]bool
}

// sensitivePrefixes are absolute prefixes rejected during the raw
// dangerous-pattern scan, before any normalization.
var sensitivePrefixes = []string{
	"/etc/",
	"/proc/",
	"/sys/",
	"/dev/",
	"/boot/",
	"/root/",
	"/var/log/",
	"/usr/bin/",
	"/usr/sbin/",
	"/bin/",
	"/sbin/",
}

// New creates a Validator.
// Returns an error if no allowed root is configured or a root is relative.
func New(config Config) (*Validator, error) {
	// Apply defaults
	if config.MaxPathLength <= 0 {
		config.MaxPathLength = 4096
	}

	if len(config.AllowedDirs) == 0 {
		return nil, reject(ReasonOutsideRoot, "no allowed roots configured")
	}

	v := &Validator{
		config:      config,
		blockedExt:  make(map[string]bool, len(config.BlockedExtensions)),
		allowedExt:  make(map[string]bool, len(config.AllowedExtensions)),
		blockedCmds: make(map[string]bool),
	}

	for _, dir := range config.AllowedDirs {
		if !filepath.IsAbs(dir) {
			return nil, reject(ReasonOutsideRoot, "allowed root %q is not absolute", dir)
		}
		v.allowedRoots = append(v.allowedRoots, filepath.Clean(dir))
	}
	for _, dir := range config.BlockedDirs {
		v.blockedRoots = append(v.blockedRoots, filepath.Clean(dir))
	}
	for _, ext := range config.BlockedExtensions {
		v.blockedExt[strings.ToLower(ext)] = true
	}
	for _, ext := range config.AllowedExtensions {
		v.allowedExt[strings.ToLower(ext)] = true
	}

	cmds := config.BlockedCommands
	if cmds == nil {
		cmds = defaultBlockedCommands
	}
	for _, c := range cmds {
		v.blockedCmds[c] = true
	}

	return v, nil
}

// Path runs the validation pipeline over input and returns the absolute
// normalized path. The checks run in a fixed order and short-circuit on
// the first failure. Callers must use only the returned value when
// touching the filesystem.
func (v *Validator) Path(input string) (string, error) {
	// 1. Non-empty
	if strings.TrimSpace(input) == "" {
		return "", reject(ReasonEmpty, "path is empty")
	}

	// 2. Maximum length
	if len(input) > v.config.MaxPathLength {
		return "", reject(ReasonTooLong, "path is %d bytes, limit %d", len(input), v.config.MaxPathLength)
	}

	// 3. Dangerous-pattern scan on the raw input
	if err := scanRaw(input); err != nil {
		return "", err
	}
	if containsTraversal(input) {
		return "", reject(ReasonTraversal, "path contains traversal segment")
	}

	// 4. Normalization
	cleaned := filepath.Clean(input)

	// 5. Post-normalization traversal re-check. Cleaning can surface a
	// leading ".." that naive raw checks would miss on other inputs.
	if containsTraversal(cleaned) {
		return "", reject(ReasonTraversal, "normalized path escapes its base")
	}

	// 6. Absolute-vs-relative policy
	if filepath.IsAbs(cleaned) && v.config.DenyAbsolute {
		return "", reject(ReasonAbsoluteDenied, "absolute paths are not permitted")
	}

	// 7. Extension allow/block list
	if err := v.checkExtension(cleaned); err != nil {
		return "", err
	}

	// 8. Resolve and check containment
	resolved := cleaned
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(v.allowedRoots[0], resolved)
	}
	resolved = filepath.Clean(resolved)

	for _, blocked := range v.blockedRoots {
		if underRoot(resolved, blocked) {
			return "", reject(ReasonBlockedRoot, "path is inside blocked root %s", blocked)
		}
	}

	for _, root := range v.allowedRoots {
		if underRoot(resolved, root) {
			return resolved, nil
		}
	}
	return "", reject(ReasonOutsideRoot, "path resolves outside allowed roots")
}

// scanRaw rejects null bytes, control characters, and sensitive absolute
// prefixes in the raw input.
func scanRaw(input string) error {
	for _, r := range input {
		if r == 0 {
			return reject(ReasonControlBytes, "path contains a null byte")
		}
		if r < 0x20 && r != '\t' {
			return reject(ReasonControlBytes, "path contains control character %#x", r)
		}
	}
	for _, prefix := range sensitivePrefixes {
		if strings.HasPrefix(input, prefix) || input == strings.TrimSuffix(prefix, "/") {
			return reject(ReasonSensitivePrefix, "path targets sensitive location %s", strings.TrimSuffix(prefix, "/"))
		}
	}
	return nil
}

// containsTraversal reports whether any path segment is "..".
func containsTraversal(path string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

func (v *Validator) checkExtension(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil
	}
	if v.blockedExt[ext] {
		return reject(ReasonExtensionBlocked, "extension %s is blocked", ext)
	}
	if len(v.allowedExt) > 0 && !v.allowedExt[ext] {
		return reject(ReasonExtensionDenied, "extension %s is not in the allow list", ext)
	}
	return nil
}

// underRoot reports whether path is root itself or nested beneath it.
func underRoot(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
