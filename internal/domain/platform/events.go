package platform

import (
	"encoding/json"
	"errors"

	"github.com/plateau-io/plateau/internal/domain/event"
	"github.com/plateau-io/plateau/internal/domain/property"
)

// CreatedPayload carries the full platform payload of a creation event.
type CreatedPayload struct {
	Platform Definition `json:"platform"`
}

// UpdatedPayload carries the full platform payload of a whole-platform
// update, plus the flag that selected properties carry-over for upgraded
// modules.
type UpdatedPayload struct {
	Platform                         Definition `json:"platform"`
	CopyPropertiesForUpgradedModules bool       `json:"copy_properties_for_upgraded_modules,omitempty"`
}

// PropertiesUpdatedPayload carries the delta of a platform-global property
// update. PlatformVersionID records the version counter resulting from the
// update; folding overwrites the state counter with it.
type PropertiesUpdatedPayload struct {
	PlatformVersionID int64             `json:"platform_version_id"`
	ValuedProperties  []property.Valued `json:"valued_properties"`
}

// ModulePropertiesUpdatedPayload carries the delta of a module-scoped
// property update.
type ModulePropertiesUpdatedPayload struct {
	PropertiesPath    string              `json:"properties_path"`
	PlatformVersionID int64               `json:"platform_version_id"`
	ValuedProperties  []property.Abstract `json:"valued_properties"`
}

// RegisterEvents registers the platform event types with a registry.
func RegisterEvents(registry *event.Registry) error {
	definitions := []event.Definition{
		{Type: event.TypePlatformCreated, ValidatePayload: validateCreatedPayload},
		{Type: event.TypePlatformUpdated, ValidatePayload: validateUpdatedPayload},
		{Type: event.TypePlatformDeleted},
		{Type: event.TypePlatformRestored},
		{Type: event.TypePlatformPropertiesUpdated, ValidatePayload: validatePropertiesUpdatedPayload},
		{Type: event.TypePlatformModulePropertiesUpdated, ValidatePayload: validateModulePropertiesUpdatedPayload},
	}
	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// NewEventRegistry returns a registry with all platform event types
// registered.
func NewEventRegistry() (*event.Registry, error) {
	registry := event.NewRegistry()
	if err := RegisterEvents(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

func validateCreatedPayload(raw json.RawMessage) error {
	var payload CreatedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.Platform.Key.Normalize().IsZero() {
		return errors.New("platform key is required")
	}
	return nil
}

func validateUpdatedPayload(raw json.RawMessage) error {
	var payload UpdatedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.Platform.Key.Normalize().IsZero() {
		return errors.New("platform key is required")
	}
	return nil
}

func validatePropertiesUpdatedPayload(raw json.RawMessage) error {
	var payload PropertiesUpdatedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.PlatformVersionID <= 0 {
		return errors.New("platform version id must be positive")
	}
	return nil
}

func validateModulePropertiesUpdatedPayload(raw json.RawMessage) error {
	var payload ModulePropertiesUpdatedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.PropertiesPath == "" {
		return errors.New("properties path is required")
	}
	if payload.PlatformVersionID <= 0 {
		return errors.New("platform version id must be positive")
	}
	return nil
}
