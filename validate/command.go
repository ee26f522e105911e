package validate

import (
	"regexp"
	"strings"
)

// defaultBlockedCommands are destructive base commands rejected by exact
// match regardless of arguments.
var defaultBlockedCommands = []string{
	"rm",
	"rmdir",
	"dd",
	"mkfs",
	"fdisk",
	"shred",
	"shutdown",
	"reboot",
	"halt",
	"poweroff",
	"init",
	"sudo",
	"su",
	"chown",
	"chmod",
	"kill",
	"killall",
	"pkill",
}

// DefaultBlockedCommands returns a copy of the built-in destructive
// command blocklist, for callers that extend it rather than replace it.
func DefaultBlockedCommands() []string {
	out := make([]string, len(defaultBlockedCommands))
	copy(out, defaultBlockedCommands)
	return out
}

var (
	// shellMetaPattern matches separators, pipes, and substitution
	// constructs that would let one invocation smuggle another.
	shellMetaPattern = regexp.MustCompile("[;|&]|\\$\\(|`")

	// systemRedirectPattern matches output redirection into system paths.
	systemRedirectPattern = regexp.MustCompile(`>>?\s*/(etc|dev|sys|proc|boot|usr|bin|sbin|root)(/|\s|$)`)
)

// Command rejects destructive base commands and shell-injection patterns
// in the full invocation. A nil return means the command may be handed to
// the process runner; the runner must still execute it without a shell.
func (v *Validator) Command(name string, args []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return reject(ReasonEmpty, "command is empty")
	}

	// Strip any directory prefix so "/bin/rm" and "rm" match the same
	// blocklist entry.
	base := name
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	if v.blockedCmds[base] {
		return reject(ReasonBlockedCommand, "command %q is blocked", base)
	}

	invocation := name
	if len(args) > 0 {
		invocation += " " + strings.Join(args, " ")
	}

	for _, r := range invocation {
		if r == 0 || (r < 0x20 && r != '\t') {
			return reject(ReasonControlBytes, "command contains control character %#x", r)
		}
	}
	if shellMetaPattern.MatchString(invocation) {
		return reject(ReasonShellMeta, "command contains shell metacharacters")
	}
	if systemRedirectPattern.MatchString(invocation) {
		return reject(ReasonRedirection, "command redirects into a system path")
	}

	return nil
}
