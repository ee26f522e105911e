package validate

import (
	"errors"
	"fmt"
)

// Reason identifies why an input was rejected.
type Reason string

// Rejection reasons. Each pipeline stage fails with its own reason so the
// caller can present an actionable message.
const (
	ReasonEmpty            Reason = "empty_input"
	ReasonTooLong          Reason = "path_too_long"
	ReasonTraversal        Reason = "path_traversal"
	ReasonControlBytes     Reason = "control_bytes"
	ReasonSensitivePrefix  Reason = "sensitive_prefix"
	ReasonAbsoluteDenied   Reason = "absolute_denied"
	ReasonExtensionBlocked Reason = "extension_blocked"
	ReasonExtensionDenied  Reason = "extension_not_allowed"
	ReasonOutsideRoot      Reason = "outside_allowed_root"
	ReasonBlockedRoot      Reason = "blocked_root"
	ReasonBlockedCommand   Reason = "blocked_command"
	ReasonShellMeta        Reason = "shell_metacharacters"
	ReasonRedirection      Reason = "system_redirection"
)

// Error is a validation rejection. Rejections are permanent: the same
// input will always be rejected for the same reason.
type Error struct {
	Reason Reason
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("validate: %s", e.Reason)
	}
	return fmt.Sprintf("validate: %s: %s", e.Reason, e.Detail)
}

func reject(reason Reason, format string, args ...any) error {
	return &Error{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the rejection reason from an error.
// Returns ("", false) if err is not a validation Error.
func ReasonOf(err error) (Reason, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Reason, true
	}
	return "", false
}
