// Package cursor provides opaque pagination token encoding/decoding for
// journal listings.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidToken wraps every token decode or scope failure so callers can
// treat a bad client token differently from internal errors.
var ErrInvalidToken = errors.New("invalid page token")

// Direction indicates the pagination direction.
type Direction string

const (
	// DirectionForward paginates forward (seq > cursor).
	DirectionForward Direction = "fwd"
	// DirectionBackward paginates backward (seq < cursor).
	DirectionBackward Direction = "bwd"
)

// Cursor is the internal state of a pagination token. Journal listings are
// always ordered by sequence, so the cursor carries a sequence position, a
// direction, and a hash binding the token to the scope it was issued for.
type Cursor struct {
	// Seq is the sequence number to paginate from (exclusive).
	Seq uint64 `json:"seq"`
	// Dir is the pagination direction (fwd = seq > cursor, bwd = seq < cursor).
	Dir Direction `json:"dir"`
	// ScopeHash invalidates tokens reused against a different platform.
	ScopeHash string `json:"scope_hash,omitempty"`
}

// Encode encodes a cursor to an opaque base64 string.
func Encode(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode decodes an opaque base64 string to a cursor.
// Returns an error if the token is invalid or malformed.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: decode base64: %v", ErrInvalidToken, err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: unmarshal cursor: %v", ErrInvalidToken, err)
	}

	if c.Dir != DirectionForward && c.Dir != DirectionBackward {
		return Cursor{}, fmt.Errorf("%w: invalid direction %q", ErrInvalidToken, c.Dir)
	}

	return c, nil
}

// HashScope computes a short hash of the scope string for token validation.
// Returns empty string for an empty scope.
func HashScope(scope string) string {
	if scope == "" {
		return ""
	}
	h := sha256.Sum256([]byte(scope))
	return hex.EncodeToString(h[:8])
}

// ValidateScope checks that a token was issued for the given scope.
func ValidateScope(c Cursor, scope string) error {
	if c.ScopeHash != HashScope(scope) {
		return fmt.Errorf("%w: cursor does not belong to this scope", ErrInvalidToken)
	}
	return nil
}

// NewForwardCursor creates a cursor continuing after seq in ascending order.
func NewForwardCursor(seq uint64, scope string) Cursor {
	return Cursor{Seq: seq, Dir: DirectionForward, ScopeHash: HashScope(scope)}
}

// NewBackwardCursor creates a cursor continuing before seq in descending
// order.
func NewBackwardCursor(seq uint64, scope string) Cursor {
	return Cursor{Seq: seq, Dir: DirectionBackward, ScopeHash: HashScope(scope)}
}
