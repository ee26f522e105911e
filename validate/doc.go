// Package validate gates filesystem paths and command invocations before
// they reach the operating system.
//
// It provides a Validator with an ordered, fail-fast pipeline: structural
// checks (non-empty, max length), dangerous-pattern scans (traversal
// sequences, null and control bytes, sensitive absolute prefixes),
// normalization with a post-normalization traversal re-check, extension
// allow/block lists, and containment of the resolved path inside an
// allow-list of roots.
//
// Validation is a pure function of the input plus immutable configuration;
// the Validator never touches the filesystem. Every rejection carries a
// distinct Reason so callers can surface actionable messages.
package validate
