package platform

import (
	"encoding/json"
	"fmt"

	"github.com/plateau-io/plateau/internal/domain/event"
	"github.com/plateau-io/plateau/internal/domain/property"
)

// Fold applies one platform event to state. Every persisted event type must
// be handled; an unknown type means the journal was written by newer code and
// replay must stop rather than guess.
func Fold(state State, evt event.Event) (State, error) {
	switch evt.Type {
	case event.TypePlatformCreated:
		var payload CreatedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		state.Created = true
		state.Deleted = false
		state.ID = evt.PlatformID
		state.Key = payload.Platform.Key
		state.Production = payload.Platform.Production
		state.VersionID = InitialVersionID
		state.Modules = payload.Platform.Modules
		state.GlobalProperties = payload.Platform.GlobalProperties
		return state, nil

	case event.TypePlatformUpdated:
		var payload UpdatedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		state.Key = payload.Platform.Key
		state.Production = payload.Platform.Production
		state.Modules = payload.Platform.Modules
		state.GlobalProperties = payload.Platform.GlobalProperties
		state.VersionID++
		return state, nil

	case event.TypePlatformDeleted:
		state.Deleted = true
		return state, nil

	case event.TypePlatformRestored:
		state.Deleted = false
		return state, nil

	case event.TypePlatformPropertiesUpdated:
		var payload PropertiesUpdatedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		state.GlobalProperties = property.MergeValued(state.GlobalProperties, payload.ValuedProperties)
		state.VersionID = payload.PlatformVersionID
		return state, nil

	case event.TypePlatformModulePropertiesUpdated:
		var payload ModulePropertiesUpdatedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		_, i, found := state.FindModuleByPropertiesPath(payload.PropertiesPath)
		if found {
			modules := make([]DeployedModule, len(state.Modules))
			copy(modules, state.Modules)
			modules[i].Properties = property.MergeAbstract(modules[i].Properties, payload.ValuedProperties)
			state.Modules = modules
		}
		state.VersionID = payload.PlatformVersionID
		return state, nil

	default:
		return state, fmt.Errorf("fold platform event: %w: %q at seq %d", event.ErrTypeUnknown, evt.Type, evt.Seq)
	}
}
