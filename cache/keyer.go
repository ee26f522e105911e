package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Keyer derives deterministic cache keys from operation inputs. The same
// inputs must always produce the same key regardless of map iteration
// order. Implementations are safe for concurrent use.
type Keyer interface {
	Key(op string, input any) (string, error)
}

// DefaultKeyer hashes a canonical JSON rendering of the input.
// Keys look like "cache:read_file:3f2a9c01d4e5b687".
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

var _ Keyer = (*DefaultKeyer)(nil)

// Key returns "cache:<op>:<hash>", where hash is the first 8 bytes of
// SHA-256 over the canonical JSON form of input.
func (k *DefaultKeyer) Key(op string, input any) (string, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, input); err != nil {
		return "", fmt.Errorf("cache: canonicalizing input: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return "cache:" + op + ":" + hex.EncodeToString(sum[:8]), nil
}

// writeCanonical renders v as JSON with map keys in sorted order, so
// logically equal inputs hash identically.
func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}
