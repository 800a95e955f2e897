// Package cursor provides opaque pagination token encoding/decoding for
// the review service's list endpoints.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Direction indicates which side of the cursor the next page reads.
type Direction string

const (
	// DirectionForward paginates forward (seq > cursor).
	DirectionForward Direction = "fwd"
	// DirectionBackward paginates backward (seq < cursor).
	DirectionBackward Direction = "bwd"
)

// Cursor is the internal state of a pagination token.
type Cursor struct {
	// Seq is the sequence value to paginate from.
	Seq int64 `json:"seq"`
	// Dir is the pagination direction.
	Dir Direction `json:"dir"`
	// ScopeHash invalidates the token when the filter or ordering that
	// produced it changes.
	ScopeHash string `json:"scope,omitempty"`
}

// Encode encodes a cursor to an opaque base64 string.
func Encode(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode decodes an opaque base64 string to a cursor. Returns an error
// if the token is malformed.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("empty token")
	}

	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode base64: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}

	if c.Dir != DirectionForward && c.Dir != DirectionBackward {
		return Cursor{}, fmt.Errorf("invalid cursor direction: %q", c.Dir)
	}

	return c, nil
}

// HashScope computes a short hash of the request scope (filter plus
// ordering) for cursor validation. Empty scope hashes to empty.
func HashScope(scope string) string {
	if scope == "" {
		return ""
	}
	h := sha256.Sum256([]byte(scope))
	return hex.EncodeToString(h[:8])
}

// ValidateScope rejects a cursor minted under a different filter or
// ordering than the current request's.
func ValidateScope(c Cursor, scope string) error {
	if c.ScopeHash != HashScope(scope) {
		return fmt.Errorf("filter or ordering changed since token was issued")
	}
	return nil
}

// NextPage creates the token state for the page after the given last
// seq. Descending lists page backward through the sequence.
func NextPage(lastSeq int64, descending bool, scope string) Cursor {
	dir := DirectionForward
	if descending {
		dir = DirectionBackward
	}
	return Cursor{
		Seq:       lastSeq,
		Dir:       dir,
		ScopeHash: HashScope(scope),
	}
}
