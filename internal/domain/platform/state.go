package platform

import "github.com/plateau-io/plateau/internal/domain/property"

// InitialVersionID is the version counter value assigned at creation.
const InitialVersionID = 1

// State is the platform aggregate state reconstructed from the event log.
// It is a disposable projection; the log remains the source of truth.
type State struct {
	Created          bool
	ID               string
	Key              Key
	Production       bool
	VersionID        int64
	Modules          []DeployedModule
	GlobalProperties []property.Valued
	Deleted          bool
}

// Live reports whether the platform exists and is not logically deleted.
func (s State) Live() bool {
	return s.Created && !s.Deleted
}

// FindModuleByPropertiesPath returns the deployed module owning the given
// properties path and its position in the module list.
func (s State) FindModuleByPropertiesPath(path string) (DeployedModule, int, bool) {
	for i, module := range s.Modules {
		if module.EffectivePropertiesPath() == path {
			return module, i, true
		}
	}
	return DeployedModule{}, -1, false
}

// Definition returns the full-payload view of the current state.
func (s State) Definition() Definition {
	return Definition{
		Key:              s.Key,
		Production:       s.Production,
		Modules:          s.Modules,
		GlobalProperties: s.GlobalProperties,
	}
}
