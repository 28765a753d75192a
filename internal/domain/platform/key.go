package platform

import (
	"fmt"
	"strings"
)

// Key is the natural key of a platform: a platform name within an
// application. Unique among live (non-deleted) platforms only.
type Key struct {
	ApplicationName string `json:"application_name"`
	PlatformName    string `json:"platform_name"`
}

// IsZero reports whether the key carries no identity.
func (k Key) IsZero() bool {
	return strings.TrimSpace(k.ApplicationName) == "" && strings.TrimSpace(k.PlatformName) == ""
}

// Normalize trims whitespace from both parts.
func (k Key) Normalize() Key {
	return Key{
		ApplicationName: strings.TrimSpace(k.ApplicationName),
		PlatformName:    strings.TrimSpace(k.PlatformName),
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s-%s", k.ApplicationName, k.PlatformName)
}
