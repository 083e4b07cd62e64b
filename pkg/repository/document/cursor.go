package document

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"
)

// Cursor is the decoded form of an opaque pagination token. It carries one
// resume key per sub-query of the plan that produced it, plus a fingerprint
// of the filter/ordering combination. A cursor is only valid for the exact
// filter set it was minted under; a mismatched fingerprint is rejected
// instead of silently resuming the wrong query.
type Cursor struct {
	Fingerprint uint64               `json:"f"`
	Keys        map[string]ResumeKey `json:"k"`
}

// Encode serializes the cursor to an opaque URL-safe token.
func (c Cursor) Encode() string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token produced by Encode.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor: %w", err)
	}
	c.normalize()
	return c, nil
}

// normalize coerces JSON-decoded resume values back to their native types.
// Time values survive the round trip as RFC3339 strings; numbers as float64.
func (c *Cursor) normalize() {
	for name, key := range c.Keys {
		if s, ok := key.Value.(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				key.Value = t
				c.Keys[name] = key
			}
		}
	}
}

// FilterFingerprint hashes the normalized description of a filter set and
// ordering. Two listings with the same fingerprint accept each other's
// cursors.
func FilterFingerprint(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
