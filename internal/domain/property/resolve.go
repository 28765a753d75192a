package property

import (
	"fmt"
	"strings"
)

const (
	tokenOpen  = "{{"
	tokenClose = "}}"
)

// Resolve computes the effective properties for a module instance from the
// module's declared skeleton, the platform-global properties, and the
// instance's own valued properties.
//
// Precedence, highest to lowest: instance override, platform-global property
// of the same name, module-declared default, unresolved. A required property
// that resolves to nothing is reported via MissingRequiredError. Reference
// tokens of the form {{name}} substitute recursively; a reference loop is a
// ReferenceCycleError. Tokens naming no known property are left in place so
// per-instance values can fill them later.
func Resolve(models []Model, globals []Valued, instance []Abstract) ([]Abstract, error) {
	table := referenceTable(models, globals, instance)

	resolved := make([]Abstract, 0, len(models))
	var missing []string
	for _, model := range models {
		switch model.Kind {
		case KindIterable:
			block, blockMissing, err := resolveIterable(model, globals, instance, table)
			if err != nil {
				return nil, err
			}
			missing = append(missing, blockMissing...)
			resolved = append(resolved, block)
		default:
			raw, ok := lookupValue(model, globals, instance)
			if !ok {
				if model.Required {
					missing = append(missing, model.Name)
				}
				continue
			}
			value, err := substitute(raw, table, nil)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, NewValue(model.Name, value))
		}
	}
	if len(missing) > 0 {
		return nil, &MissingRequiredError{Names: missing}
	}
	return resolved, nil
}

// lookupValue applies the value precedence for a plain property slot.
func lookupValue(model Model, globals []Valued, instance []Abstract) (string, bool) {
	if p, ok := FindAbstract(instance, model.Name); ok && p.Kind == KindValue {
		return p.Value, true
	}
	if p, ok := FindValued(globals, model.Name); ok {
		return p.Value, true
	}
	if model.DefaultValue != "" {
		return model.DefaultValue, true
	}
	return "", false
}

// resolveIterable resolves each item of an iterable block independently. The
// iteration count follows the instance override when present, else the
// model's default count.
func resolveIterable(model Model, globals []Valued, instance []Abstract, table map[string]string) (Abstract, []string, error) {
	var items []Item
	if p, ok := FindAbstract(instance, model.Name); ok && p.Kind == KindIterable {
		items = p.Items
	} else {
		items = make([]Item, model.DefaultCount)
	}

	var missing []string
	resolvedItems := make([]Item, 0, len(items))
	for i, item := range items {
		itemTable := itemReferenceTable(table, model.Fields, item.Properties)
		resolvedProps := make([]Abstract, 0, len(model.Fields))
		for _, field := range model.Fields {
			raw, ok := lookupItemValue(field, globals, item.Properties)
			if !ok {
				if field.Required {
					missing = append(missing, fmt.Sprintf("%s[%d].%s", model.Name, i, field.Name))
				}
				continue
			}
			value, err := substitute(raw, itemTable, nil)
			if err != nil {
				return Abstract{}, nil, err
			}
			resolvedProps = append(resolvedProps, NewValue(field.Name, value))
		}
		resolvedItems = append(resolvedItems, Item{Title: item.Title, Properties: resolvedProps})
	}
	return NewIterable(model.Name, resolvedItems...), missing, nil
}

// lookupItemValue applies the value precedence within one iteration item.
func lookupItemValue(field Model, globals []Valued, itemProps []Abstract) (string, bool) {
	if p, ok := FindAbstract(itemProps, field.Name); ok && p.Kind == KindValue {
		return p.Value, true
	}
	if p, ok := FindValued(globals, field.Name); ok {
		return p.Value, true
	}
	if field.DefaultValue != "" {
		return field.DefaultValue, true
	}
	return "", false
}

// referenceTable builds the raw value table used for {{name}} substitution,
// applying the same precedence as value resolution. Global-only names are
// included so values may reference globals the skeleton does not declare.
func referenceTable(models []Model, globals []Valued, instance []Abstract) map[string]string {
	table := make(map[string]string, len(models)+len(globals))
	for _, model := range models {
		if model.Kind == KindIterable {
			continue
		}
		if model.DefaultValue != "" {
			table[model.Name] = model.DefaultValue
		}
	}
	for _, p := range globals {
		table[p.Name] = p.Value
	}
	for _, p := range instance {
		if p.Kind == KindValue {
			table[p.Name] = p.Value
		}
	}
	return table
}

// itemReferenceTable overlays an item's own member values on the top-level
// reference table so members may reference their siblings.
func itemReferenceTable(base map[string]string, fields []Model, itemProps []Abstract) map[string]string {
	table := make(map[string]string, len(base)+len(fields))
	for name, value := range base {
		table[name] = value
	}
	for _, field := range fields {
		if field.Kind == KindIterable || field.DefaultValue == "" {
			continue
		}
		// A field default is the lowest precedence: it must not shadow a
		// global or instance value already in the base table.
		if _, ok := table[field.Name]; !ok {
			table[field.Name] = field.DefaultValue
		}
	}
	for _, p := range itemProps {
		if p.Kind == KindValue {
			table[p.Name] = p.Value
		}
	}
	return table
}

// substitute expands {{name}} tokens in raw against table. The visiting list
// carries the chain of names currently being expanded for cycle detection.
func substitute(raw string, table map[string]string, visiting []string) (string, error) {
	var out strings.Builder
	rest := raw
	for {
		open := strings.Index(rest, tokenOpen)
		if open < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		out.WriteString(rest[:open])
		rest = rest[open:]

		closing := strings.Index(rest, tokenClose)
		if closing < 0 {
			return "", &MalformedReferenceError{Value: raw}
		}
		name := strings.TrimSpace(rest[len(tokenOpen):closing])
		if name == "" || strings.Contains(name, tokenOpen) {
			return "", &MalformedReferenceError{Value: raw}
		}

		referenced, ok := table[name]
		if !ok {
			// Unknown names stay as instance-model parameters.
			out.WriteString(rest[:closing+len(tokenClose)])
			rest = rest[closing+len(tokenClose):]
			continue
		}
		for _, seen := range visiting {
			if seen == name {
				return "", &ReferenceCycleError{Path: append(append([]string{}, visiting...), name)}
			}
		}
		expanded, err := substitute(referenced, table, append(visiting, name))
		if err != nil {
			return "", err
		}
		out.WriteString(expanded)
		rest = rest[closing+len(tokenClose):]
	}
}

// CheckReferences verifies that every value expands against its siblings
// without malformed tokens or reference loops. Used to vet a property set
// before any module skeleton is known.
func CheckReferences(values []Valued) error {
	table := make(map[string]string, len(values))
	for _, p := range values {
		table[p.Name] = p.Value
	}
	for _, p := range values {
		if _, err := substitute(p.Value, table, []string{p.Name}); err != nil {
			return err
		}
	}
	return nil
}

// InstanceModel lists the distinct {{name}} tokens remaining in resolved
// properties. These are the per-instance parameters a deployment must supply.
func InstanceModel(resolved []Abstract) []string {
	seen := make(map[string]bool)
	var names []string
	var collect func(value string)
	collect = func(value string) {
		rest := value
		for {
			open := strings.Index(rest, tokenOpen)
			if open < 0 {
				return
			}
			rest = rest[open:]
			closing := strings.Index(rest, tokenClose)
			if closing < 0 {
				return
			}
			name := strings.TrimSpace(rest[len(tokenOpen):closing])
			if name != "" && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
			rest = rest[closing+len(tokenClose):]
		}
	}
	for _, p := range resolved {
		switch p.Kind {
		case KindValue:
			collect(p.Value)
		case KindIterable:
			for _, item := range p.Items {
				for _, member := range item.Properties {
					if member.Kind == KindValue {
						collect(member.Value)
					}
				}
			}
		}
	}
	return names
}

// ResolveInstance substitutes an instance's own values into the remaining
// tokens of the module's resolved properties.
func ResolveInstance(resolved []Abstract, instanceValues []Valued) ([]Abstract, error) {
	table := make(map[string]string, len(instanceValues))
	for _, p := range instanceValues {
		table[p.Name] = p.Value
	}
	out := make([]Abstract, 0, len(resolved))
	for _, p := range resolved {
		switch p.Kind {
		case KindValue:
			value, err := substitute(p.Value, table, nil)
			if err != nil {
				return nil, err
			}
			out = append(out, NewValue(p.Name, value))
		case KindIterable:
			items := make([]Item, 0, len(p.Items))
			for _, item := range p.Items {
				members := make([]Abstract, 0, len(item.Properties))
				for _, member := range item.Properties {
					if member.Kind != KindValue {
						members = append(members, member)
						continue
					}
					value, err := substitute(member.Value, table, nil)
					if err != nil {
						return nil, err
					}
					members = append(members, NewValue(member.Name, value))
				}
				items = append(items, Item{Title: item.Title, Properties: members})
			}
			out = append(out, NewIterable(p.Name, items...))
		}
	}
	return out, nil
}
