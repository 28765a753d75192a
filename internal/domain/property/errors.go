package property

import (
	"fmt"
	"strings"
)

// ReferenceCycleError reports a reference loop in property values.
// Path lists the property names along the cycle, first repeated last.
type ReferenceCycleError struct {
	Path []string
}

func (e *ReferenceCycleError) Error() string {
	return fmt.Sprintf("property reference cycle: %s", strings.Join(e.Path, " -> "))
}

// MissingRequiredError reports required properties that resolved to nothing.
type MissingRequiredError struct {
	Names []string
}

func (e *MissingRequiredError) Error() string {
	return fmt.Sprintf("required properties unresolved: %s", strings.Join(e.Names, ", "))
}

// MalformedReferenceError reports a reference token that cannot be parsed.
type MalformedReferenceError struct {
	Value string
}

func (e *MalformedReferenceError) Error() string {
	return fmt.Sprintf("malformed property reference in value %q", e.Value)
}
