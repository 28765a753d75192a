package event

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// hashFieldSeparator joins envelope fields in the canonical hash input.
// A newline cannot occur inside any non-payload field.
const hashFieldSeparator = "\n"

// EventHash computes the content hash for a single event. The hash covers
// the envelope identity fields and the canonical payload; it excludes chain
// fields so the hash of an event is stable regardless of its position.
func EventHash(evt Event) (string, error) {
	if strings.TrimSpace(evt.PlatformID) == "" {
		return "", errors.New("platform id is required")
	}
	if !evt.Type.IsValid() {
		return "", errors.New("event type is required")
	}
	input := strings.Join([]string{
		evt.PlatformID,
		fmt.Sprintf("%d", evt.Seq),
		fmt.Sprintf("%d", evt.Timestamp.UTC().UnixMilli()),
		string(evt.Type),
		evt.UserID,
		string(evt.PayloadJSON),
	}, hashFieldSeparator)

	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16]), nil
}

// ChainHash computes the hash that links an event to its predecessor. The
// first event of a platform links to the empty string.
func ChainHash(evt Event, prevChainHash string) (string, error) {
	if strings.TrimSpace(evt.Hash) == "" {
		return "", errors.New("event hash is required")
	}
	sum := sha256.Sum256([]byte(prevChainHash + hashFieldSeparator + evt.Hash))
	return hex.EncodeToString(sum[:]), nil
}
