// Package property defines the platform property value model and the
// resolution engine that computes effective values for deployed modules.
package property

import "strings"

// Kind discriminates the two property shapes.
type Kind string

const (
	// KindValue is a plain (name, value) property.
	KindValue Kind = "value"
	// KindIterable is a grouped property block with indexed items.
	KindIterable Kind = "iterable"
)

// Valued is a concrete (name, value) pair.
type Valued struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Item is one indexed block of an iterable property.
type Item struct {
	Title      string     `json:"title,omitempty"`
	Properties []Abstract `json:"properties"`
}

// Abstract is the closed tagged variant over plain and iterable properties.
// Kind selects which of the remaining fields is meaningful.
type Abstract struct {
	Kind  Kind   `json:"kind"`
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
	Items []Item `json:"items,omitempty"`
}

// NewValue builds a plain valued property.
func NewValue(name, value string) Abstract {
	return Abstract{Kind: KindValue, Name: name, Value: value}
}

// NewIterable builds an iterable property block.
func NewIterable(name string, items ...Item) Abstract {
	return Abstract{Kind: KindIterable, Name: name, Items: items}
}

// Model declares a property slot in a module's property skeleton.
// KindIterable models declare their member slots in Fields.
type Model struct {
	Kind         Kind    `json:"kind"`
	Name         string  `json:"name"`
	Required     bool    `json:"required,omitempty"`
	DefaultValue string  `json:"default_value,omitempty"`
	Fields       []Model `json:"fields,omitempty"`
	DefaultCount int     `json:"default_count,omitempty"`
}

// FindValued returns the property with the given name, if present.
func FindValued(properties []Valued, name string) (Valued, bool) {
	for _, p := range properties {
		if p.Name == name {
			return p, true
		}
	}
	return Valued{}, false
}

// FindAbstract returns the property with the given name, if present.
func FindAbstract(properties []Abstract, name string) (Abstract, bool) {
	for _, p := range properties {
		if p.Name == name {
			return p, true
		}
	}
	return Abstract{}, false
}

// MergeValued merges updates into existing by property name. Properties named
// in updates replace or extend existing ones; properties absent from updates
// are preserved. Relative order of existing properties is kept and new
// properties append in their given order.
func MergeValued(existing, updates []Valued) []Valued {
	merged := make([]Valued, 0, len(existing)+len(updates))
	seen := make(map[string]int, len(existing))
	for _, p := range existing {
		seen[p.Name] = len(merged)
		merged = append(merged, p)
	}
	for _, p := range updates {
		if i, ok := seen[p.Name]; ok {
			merged[i] = p
			continue
		}
		seen[p.Name] = len(merged)
		merged = append(merged, p)
	}
	return merged
}

// MergeAbstract merges updates into existing by property name, replacing a
// property wholesale when the name matches regardless of its kind.
func MergeAbstract(existing, updates []Abstract) []Abstract {
	merged := make([]Abstract, 0, len(existing)+len(updates))
	seen := make(map[string]int, len(existing))
	for _, p := range existing {
		seen[p.Name] = len(merged)
		merged = append(merged, p)
	}
	for _, p := range updates {
		if i, ok := seen[p.Name]; ok {
			merged[i] = p
			continue
		}
		seen[p.Name] = len(merged)
		merged = append(merged, p)
	}
	return merged
}

// FlattenValues returns the plain valued properties in a mixed list,
// descending into iterable items.
func FlattenValues(properties []Abstract) []Valued {
	var values []Valued
	for _, p := range properties {
		switch p.Kind {
		case KindValue:
			values = append(values, Valued{Name: p.Name, Value: p.Value})
		case KindIterable:
			for _, item := range p.Items {
				values = append(values, FlattenValues(item.Properties)...)
			}
		}
	}
	return values
}

// NormalizeName trims a property name for lookup comparisons.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}
