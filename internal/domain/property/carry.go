package property

// CarryForward keeps existing instance values whose name and structural
// position still have a slot in the new skeleton and drops the rest. Newly
// introduced slots stay unset. This backs the properties carry-over applied
// when a deployed module changes version.
func CarryForward(models []Model, existing []Abstract) []Abstract {
	var kept []Abstract
	for _, model := range models {
		old, ok := FindAbstract(existing, model.Name)
		if !ok {
			continue
		}
		switch model.Kind {
		case KindIterable:
			if old.Kind != KindIterable {
				continue
			}
			items := make([]Item, 0, len(old.Items))
			for _, item := range old.Items {
				items = append(items, Item{
					Title:      item.Title,
					Properties: CarryForward(model.Fields, item.Properties),
				})
			}
			kept = append(kept, NewIterable(model.Name, items...))
		default:
			// Any non-iterable kind, including the zero value, is a plain
			// value slot.
			if old.Kind != KindValue {
				continue
			}
			kept = append(kept, NewValue(model.Name, old.Value))
		}
	}
	return kept
}
