// Package i18n holds localized user-facing messages for domain error codes.
package i18n

import "strings"

// Code is a string error code as it appears on the wire.
type Code = string

// Catalog maps error codes to localized message templates.
type Catalog struct {
	locale   string
	messages map[Code]string
}

// Locale returns the catalog's BCP 47 locale tag.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message for a code, substituting {{.Key}} placeholders
// from metadata. Unknown codes fall back to a generic message.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	message, ok := c.messages[code]
	if !ok {
		return "An unexpected error occurred"
	}
	for key, value := range metadata {
		message = strings.ReplaceAll(message, "{{."+key+"}}", value)
	}
	return message
}

// GetCatalog returns the catalog for a locale, defaulting to en-US.
func GetCatalog(locale string) *Catalog {
	switch locale {
	case "en-US", "":
		return enUSCatalog
	default:
		return enUSCatalog
	}
}
