// Package event defines the platform event envelope and its append-time
// validation registry. The event log is the sole durable source of truth;
// platform state is always derived by folding these events in order.
package event

import (
	"strings"
	"time"
)

// Type identifies the kind of a platform event.
type Type string

// Platform lifecycle events.
const (
	// TypePlatformCreated records the creation of a platform.
	TypePlatformCreated Type = "platform.created"
	// TypePlatformUpdated records a whole-platform update.
	TypePlatformUpdated Type = "platform.updated"
	// TypePlatformDeleted records a logical deletion.
	TypePlatformDeleted Type = "platform.deleted"
	// TypePlatformRestored records the restoration of a deleted platform.
	TypePlatformRestored Type = "platform.restored"
)

// Property events.
const (
	// TypePlatformPropertiesUpdated records a partial update of the
	// platform-global property scope.
	TypePlatformPropertiesUpdated Type = "platform.properties_updated"
	// TypePlatformModulePropertiesUpdated records a partial update of one
	// module instance's property scope.
	TypePlatformModulePropertiesUpdated Type = "platform.module_properties_updated"
)

// Event represents an immutable entry in the platform event journal.
type Event struct {
	// PlatformID is the platform this event belongs to.
	PlatformID string
	// Seq is the event sequence number within the platform (starts at 1).
	// Assigned by storage on append.
	Seq uint64
	// Hash is the content-addressed identity (SHA-256 truncated to 128-bit).
	// Assigned by storage on append.
	Hash string
	// PrevHash links to the chain hash of the preceding event.
	PrevHash string
	// ChainHash commits this event and its full prefix.
	ChainHash string
	// Timestamp is when the event occurred, UTC millisecond precision.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// UserID is the acting user, carried opaquely.
	UserID string
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}
