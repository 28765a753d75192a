package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/plateau-io/plateau/internal/catalog"
	"github.com/plateau-io/plateau/internal/domain/command"
	"github.com/plateau-io/plateau/internal/domain/event"
	"github.com/plateau-io/plateau/internal/domain/property"
)

// Rejection codes returned by the platform decider.
const (
	RejectionCodeAlreadyExists     = "PLATFORM_ALREADY_EXISTS"
	RejectionCodeNotFound          = "PLATFORM_NOT_FOUND"
	RejectionCodeDuplicateKey      = "PLATFORM_KEY_DUPLICATE"
	RejectionCodeVersionConflict   = "PLATFORM_VERSION_CONFLICT"
	RejectionCodeNotDeleted        = "PLATFORM_NOT_DELETED"
	RejectionCodeModulePathUnknown = "PLATFORM_MODULE_PATH_UNKNOWN"
	RejectionCodeValidation        = "PROPERTY_VALIDATION_FAILED"
	RejectionCodeRequiredMissing   = "PROPERTY_REQUIRED_MISSING"
	RejectionCodePropertyCycle     = "PROPERTY_REFERENCE_CYCLE"
)

// Decider validates platform commands against current state and emits the
// resulting events. The module catalog is an explicit dependency so tests can
// substitute a fixed in-memory catalog.
type Decider struct {
	Catalog catalog.ModuleCatalog
}

// Decide returns the decision for a platform command against current state.
// A returned error is an infrastructure failure (catalog unreachable,
// malformed stored payload); domain refusals travel as rejections.
func (d Decider) Decide(ctx context.Context, state State, cmd command.Command, now func() time.Time) (command.Decision, error) {
	if now == nil {
		now = time.Now
	}
	switch cmd.Type {
	case CommandTypeCreate:
		return d.decideCreate(state, cmd, now)
	case CommandTypeUpdate:
		return d.decideUpdate(ctx, state, cmd, now)
	case CommandTypeDelete:
		return d.decideDelete(state, cmd, now)
	case CommandTypeRestore:
		return d.decideRestore(state, cmd, now)
	case CommandTypeUpdateProperties:
		return d.decideUpdateProperties(state, cmd, now)
	case CommandTypeUpdateModuleProperties:
		return d.decideUpdateModuleProperties(ctx, state, cmd, now)
	default:
		return command.Decision{}, fmt.Errorf("unhandled command type: %s", cmd.Type)
	}
}

func (d Decider) decideCreate(state State, cmd command.Command, now func() time.Time) (command.Decision, error) {
	if state.Created {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeAlreadyExists,
			Message: "platform id already carries a platform",
		}), nil
	}
	var payload CreatePayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil {
		return command.Decision{}, fmt.Errorf("decode create payload: %w", err)
	}
	payload.Platform.Key = payload.Platform.Key.Normalize()
	if rejection, ok := checkGlobalReferences(payload.Platform.GlobalProperties); !ok {
		return command.Reject(rejection), nil
	}

	payloadJSON, err := json.Marshal(CreatedPayload{Platform: payload.Platform})
	if err != nil {
		return command.Decision{}, fmt.Errorf("marshal created payload: %w", err)
	}
	return command.Accept(command.NewEvent(cmd, event.TypePlatformCreated, payloadJSON, now().UTC())), nil
}

func (d Decider) decideUpdate(ctx context.Context, state State, cmd command.Command, now func() time.Time) (command.Decision, error) {
	if rejection, ok := requireLive(state); !ok {
		return command.Reject(rejection), nil
	}
	var payload UpdatePayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil {
		return command.Decision{}, fmt.Errorf("decode update payload: %w", err)
	}
	payload.Platform.Key = payload.Platform.Key.Normalize()
	if rejection, ok := checkGlobalReferences(payload.Platform.GlobalProperties); !ok {
		return command.Reject(rejection), nil
	}

	modules, err := d.computeModules(ctx, state, payload.Platform.Modules, payload.CopyPropertiesForUpgradedModules)
	if err != nil {
		return command.Decision{}, err
	}
	payload.Platform.Modules = modules

	payloadJSON, err := json.Marshal(UpdatedPayload{
		Platform:                         payload.Platform,
		CopyPropertiesForUpgradedModules: payload.CopyPropertiesForUpgradedModules,
	})
	if err != nil {
		return command.Decision{}, fmt.Errorf("marshal updated payload: %w", err)
	}
	return command.Accept(command.NewEvent(cmd, event.TypePlatformUpdated, payloadJSON, now().UTC())), nil
}

// computeModules builds the new module deployment list. Unchanged modules
// keep their current properties. Version changes either carry properties
// forward through the new skeleton or reset to module defaults, depending on
// the copy flag. New deployments start with the submitted properties.
func (d Decider) computeModules(ctx context.Context, state State, submitted []DeployedModule, copyProperties bool) ([]DeployedModule, error) {
	modules := make([]DeployedModule, 0, len(submitted))
	for _, module := range submitted {
		current, found := findModuleByPath(state.Modules, module.Name, module.ModulePath)
		if found && current.Version == module.Version {
			module.Properties = current.Properties
			modules = append(modules, module)
			continue
		}
		if found {
			if !copyProperties {
				module.Properties = nil
				modules = append(modules, module)
				continue
			}
			models, err := d.propertiesModel(ctx, module.ModuleKey())
			if err != nil {
				return nil, err
			}
			if models == nil {
				// No skeleton for the new version: keep the values as-is
				// rather than dropping them all.
				module.Properties = current.Properties
			} else {
				module.Properties = property.CarryForward(models, current.Properties)
			}
		}
		modules = append(modules, module)
	}
	return modules, nil
}

func (d Decider) decideDelete(state State, cmd command.Command, now func() time.Time) (command.Decision, error) {
	if rejection, ok := requireLive(state); !ok {
		return command.Reject(rejection), nil
	}
	return command.Accept(command.NewEvent(cmd, event.TypePlatformDeleted, nil, now().UTC())), nil
}

func (d Decider) decideRestore(state State, cmd command.Command, now func() time.Time) (command.Decision, error) {
	if !state.Created {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeNotFound,
			Message: "platform does not exist",
		}), nil
	}
	if !state.Deleted {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeNotDeleted,
			Message: "platform is not deleted",
		}), nil
	}
	return command.Accept(command.NewEvent(cmd, event.TypePlatformRestored, nil, now().UTC())), nil
}

func (d Decider) decideUpdateProperties(state State, cmd command.Command, now func() time.Time) (command.Decision, error) {
	if rejection, ok := requireLive(state); !ok {
		return command.Reject(rejection), nil
	}
	var payload UpdatePropertiesPayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil {
		return command.Decision{}, fmt.Errorf("decode properties payload: %w", err)
	}
	if payload.PlatformVersionID != state.VersionID {
		return command.Reject(versionConflict(state.VersionID, payload.PlatformVersionID)), nil
	}
	merged := property.MergeValued(state.GlobalProperties, payload.ValuedProperties)
	if rejection, ok := checkGlobalReferences(merged); !ok {
		return command.Reject(rejection), nil
	}

	payloadJSON, err := json.Marshal(PropertiesUpdatedPayload{
		PlatformVersionID: state.VersionID + 1,
		ValuedProperties:  payload.ValuedProperties,
	})
	if err != nil {
		return command.Decision{}, fmt.Errorf("marshal properties payload: %w", err)
	}
	return command.Accept(command.NewEvent(cmd, event.TypePlatformPropertiesUpdated, payloadJSON, now().UTC())), nil
}

func (d Decider) decideUpdateModuleProperties(ctx context.Context, state State, cmd command.Command, now func() time.Time) (command.Decision, error) {
	if rejection, ok := requireLive(state); !ok {
		return command.Reject(rejection), nil
	}
	var payload UpdateModulePropertiesPayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil {
		return command.Decision{}, fmt.Errorf("decode module properties payload: %w", err)
	}
	if payload.PlatformVersionID != state.VersionID {
		return command.Reject(versionConflict(state.VersionID, payload.PlatformVersionID)), nil
	}
	module, _, found := state.FindModuleByPropertiesPath(payload.PropertiesPath)
	if !found {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeModulePathUnknown,
			Message: fmt.Sprintf("no deployed module at properties path %q", payload.PropertiesPath),
		}), nil
	}

	merged := property.MergeAbstract(module.Properties, payload.ValuedProperties)
	models, err := d.propertiesModel(ctx, module.ModuleKey())
	if err != nil {
		return command.Decision{}, err
	}
	if models != nil {
		if _, err := property.Resolve(models, state.GlobalProperties, merged); err != nil {
			if rejection, ok := rejectionForPropertyError(err); ok {
				return command.Reject(rejection), nil
			}
			return command.Decision{}, err
		}
	} else if err := property.CheckReferences(append(property.FlattenValues(merged), state.GlobalProperties...)); err != nil {
		if rejection, ok := rejectionForPropertyError(err); ok {
			return command.Reject(rejection), nil
		}
		return command.Decision{}, err
	}

	payloadJSON, err := json.Marshal(ModulePropertiesUpdatedPayload{
		PropertiesPath:    payload.PropertiesPath,
		PlatformVersionID: state.VersionID + 1,
		ValuedProperties:  payload.ValuedProperties,
	})
	if err != nil {
		return command.Decision{}, fmt.Errorf("marshal module properties payload: %w", err)
	}
	return command.Accept(command.NewEvent(cmd, event.TypePlatformModulePropertiesUpdated, payloadJSON, now().UTC())), nil
}

// propertiesModel fetches a module skeleton. A module missing from the
// catalog is not fatal: property validation then degrades to reference
// checks only.
func (d Decider) propertiesModel(ctx context.Context, key catalog.ModuleKey) ([]property.Model, error) {
	if d.Catalog == nil {
		return nil, nil
	}
	models, err := d.Catalog.GetPropertiesModel(ctx, key)
	if err != nil {
		if errors.Is(err, catalog.ErrModuleNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog lookup %s: %w", key, err)
	}
	return models, nil
}

func requireLive(state State) (command.Rejection, bool) {
	if !state.Created || state.Deleted {
		return command.Rejection{
			Code:    RejectionCodeNotFound,
			Message: "no live platform exists for this id",
		}, false
	}
	return command.Rejection{}, true
}

func versionConflict(current, submitted int64) command.Rejection {
	return command.Rejection{
		Code:    RejectionCodeVersionConflict,
		Message: fmt.Sprintf("platform version is %d, command carries %d", current, submitted),
	}
}

func checkGlobalReferences(globals []property.Valued) (command.Rejection, bool) {
	if err := property.CheckReferences(globals); err != nil {
		if rejection, ok := rejectionForPropertyError(err); ok {
			return rejection, false
		}
	}
	return command.Rejection{}, true
}

// rejectionForPropertyError maps property resolution failures to rejection
// codes. Non-property errors pass through as infrastructure failures.
func rejectionForPropertyError(err error) (command.Rejection, bool) {
	var cycle *property.ReferenceCycleError
	if errors.As(err, &cycle) {
		return command.Rejection{Code: RejectionCodePropertyCycle, Message: cycle.Error()}, true
	}
	var missing *property.MissingRequiredError
	if errors.As(err, &missing) {
		return command.Rejection{Code: RejectionCodeRequiredMissing, Message: missing.Error()}, true
	}
	var malformed *property.MalformedReferenceError
	if errors.As(err, &malformed) {
		return command.Rejection{Code: RejectionCodeValidation, Message: malformed.Error()}, true
	}
	return command.Rejection{}, false
}

func findModuleByPath(modules []DeployedModule, name, modulePath string) (DeployedModule, bool) {
	for _, module := range modules {
		if module.Name == name && module.ModulePath == modulePath {
			return module, true
		}
	}
	return DeployedModule{}, false
}
