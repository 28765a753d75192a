package platform

import (
	"fmt"
	"strings"

	"github.com/plateau-io/plateau/internal/catalog"
	"github.com/plateau-io/plateau/internal/domain/property"
)

// GlobalPropertiesPath is the properties path of the platform-global scope.
const GlobalPropertiesPath = "#"

// Instance is a named deployment of a module with its own property values.
type Instance struct {
	Name       string            `json:"name"`
	Properties []property.Valued `json:"properties,omitempty"`
}

// DeployedModule is one module deployment inside a platform's module tree.
type DeployedModule struct {
	Name           string              `json:"name"`
	Version        string              `json:"version"`
	ModulePath     string              `json:"module_path"`
	PropertiesPath string              `json:"properties_path,omitempty"`
	Properties     []property.Abstract `json:"properties,omitempty"`
	Instances      []Instance          `json:"instances,omitempty"`
}

// ModuleKey returns the catalog key for this deployment.
func (m DeployedModule) ModuleKey() catalog.ModuleKey {
	return catalog.ModuleKey{Name: m.Name, Version: m.Version}
}

// EffectivePropertiesPath returns the explicit properties path, or derives
// the canonical one from the module path and key.
func (m DeployedModule) EffectivePropertiesPath() string {
	if strings.TrimSpace(m.PropertiesPath) != "" {
		return m.PropertiesPath
	}
	return fmt.Sprintf("%s#%s#%s", m.ModulePath, m.Name, m.Version)
}

// FindInstance returns the named instance, if present.
func (m DeployedModule) FindInstance(name string) (Instance, bool) {
	for _, instance := range m.Instances {
		if instance.Name == name {
			return instance, true
		}
	}
	return Instance{}, false
}

// Definition is the full platform payload carried by creation and update
// commands and their events.
type Definition struct {
	Key              Key               `json:"key"`
	Production       bool              `json:"production,omitempty"`
	Modules          []DeployedModule  `json:"modules,omitempty"`
	GlobalProperties []property.Valued `json:"global_properties,omitempty"`
}
