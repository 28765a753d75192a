package queries

import (
	"context"
	"errors"

	"github.com/plateau-io/plateau/internal/domain/platform"
	"github.com/plateau-io/plateau/internal/domain/property"
	"github.com/plateau-io/plateau/internal/storage"
)

// GetGlobalProperties returns the platform-global property scope.
func (s Service) GetGlobalProperties(ctx context.Context, platformID string) ([]property.Valued, error) {
	state, err := s.GetPlatform(ctx, platformID)
	if err != nil {
		return nil, err
	}
	return state.GlobalProperties, nil
}

// GetModuleProperties returns the stored properties at a properties path.
// The global path ("#") returns the platform-global scope.
func (s Service) GetModuleProperties(ctx context.Context, platformID, propertiesPath string) ([]property.Abstract, error) {
	state, err := s.GetPlatform(ctx, platformID)
	if err != nil {
		return nil, err
	}
	if propertiesPath == platform.GlobalPropertiesPath {
		out := make([]property.Abstract, 0, len(state.GlobalProperties))
		for _, p := range state.GlobalProperties {
			out = append(out, property.NewValue(p.Name, p.Value))
		}
		return out, nil
	}
	module, _, found := state.FindModuleByPropertiesPath(propertiesPath)
	if !found {
		return nil, storage.ErrNotFound
	}
	return module.Properties, nil
}

// GetInstancesModel lists the per-instance parameters of a deployed module:
// the {{name}} tokens its stored properties still reference after module and
// global values are substituted.
func (s Service) GetInstancesModel(ctx context.Context, platformID, propertiesPath string) ([]string, error) {
	state, err := s.GetPlatform(ctx, platformID)
	if err != nil {
		return nil, err
	}
	module, _, found := state.FindModuleByPropertiesPath(propertiesPath)
	if !found {
		return nil, storage.ErrNotFound
	}
	// Module-level values win over globals of the same name, matching write
	// side resolution.
	table := property.MergeValued(state.GlobalProperties, property.FlattenValues(module.Properties))
	expanded, err := property.ResolveInstance(module.Properties, table)
	if err != nil {
		return nil, err
	}
	return property.InstanceModel(expanded), nil
}

// DeployedModuleExists reports whether the live platform holding the key
// deploys a module at the properties path.
func (s Service) DeployedModuleExists(ctx context.Context, key platform.Key, propertiesPath string) (bool, error) {
	state, err := s.getByKeyLenient(ctx, key)
	if err != nil {
		return false, err
	}
	if !state.Created {
		return false, nil
	}
	_, _, found := state.FindModuleByPropertiesPath(propertiesPath)
	return found, nil
}

// InstanceExists reports whether a named instance exists on the deployed
// module at the properties path.
func (s Service) InstanceExists(ctx context.Context, key platform.Key, propertiesPath, instanceName string) (bool, error) {
	state, err := s.getByKeyLenient(ctx, key)
	if err != nil {
		return false, err
	}
	if !state.Created {
		return false, nil
	}
	module, _, found := state.FindModuleByPropertiesPath(propertiesPath)
	if !found {
		return false, nil
	}
	_, found = module.FindInstance(instanceName)
	return found, nil
}

// getByKeyLenient resolves a key to state, mapping a missing platform to a
// zero state so exists-style queries can answer false instead of erroring.
func (s Service) getByKeyLenient(ctx context.Context, key platform.Key) (platform.State, error) {
	state, err := s.GetPlatformByKey(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return platform.State{}, nil
		}
		return platform.State{}, err
	}
	return state, nil
}
