package platform

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/plateau-io/plateau/internal/domain/command"
	"github.com/plateau-io/plateau/internal/domain/property"
)

// Platform command types.
const (
	CommandTypeCreate                 command.Type = "platform.create"
	CommandTypeUpdate                 command.Type = "platform.update"
	CommandTypeDelete                 command.Type = "platform.delete"
	CommandTypeRestore                command.Type = "platform.restore"
	CommandTypeUpdateProperties       command.Type = "platform.update_properties"
	CommandTypeUpdateModuleProperties command.Type = "platform.update_module_properties"
)

// CreatePayload is the payload of a platform creation command.
type CreatePayload struct {
	Platform Definition `json:"platform"`
}

// UpdatePayload is the payload of a whole-platform update command.
type UpdatePayload struct {
	Platform                         Definition `json:"platform"`
	CopyPropertiesForUpgradedModules bool       `json:"copy_properties_for_upgraded_modules,omitempty"`
}

// UpdatePropertiesPayload is the payload of a platform-global property
// update. PlatformVersionID is the version counter the client believes is
// current; a mismatch is rejected as a conflict.
type UpdatePropertiesPayload struct {
	PlatformVersionID int64             `json:"platform_version_id"`
	ValuedProperties  []property.Valued `json:"valued_properties"`
}

// UpdateModulePropertiesPayload is the payload of a module-scoped property
// update. It accepts the full abstract property shape, not just flat values.
type UpdateModulePropertiesPayload struct {
	PropertiesPath    string              `json:"properties_path"`
	PlatformVersionID int64               `json:"platform_version_id"`
	ValuedProperties  []property.Abstract `json:"valued_properties"`
}

// RegisterCommands registers the platform command types with a registry.
func RegisterCommands(registry *command.Registry) error {
	definitions := []command.Definition{
		{Type: CommandTypeCreate, ValidatePayload: validateCreateCommand},
		{Type: CommandTypeUpdate, ValidatePayload: validateUpdateCommand},
		{Type: CommandTypeDelete},
		{Type: CommandTypeRestore},
		{Type: CommandTypeUpdateProperties, ValidatePayload: validateUpdatePropertiesCommand},
		{Type: CommandTypeUpdateModuleProperties, ValidatePayload: validateUpdateModulePropertiesCommand},
	}
	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// NewCommandRegistry returns a registry with all platform command types
// registered.
func NewCommandRegistry() (*command.Registry, error) {
	registry := command.NewRegistry()
	if err := RegisterCommands(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// NewCreateCommand builds a creation command for a fresh platform id.
func NewCreateCommand(platformID string, platform Definition, userID string) (command.Command, error) {
	return newCommand(platformID, CommandTypeCreate, userID, CreatePayload{Platform: platform})
}

// NewUpdateCommand builds a whole-platform update command.
func NewUpdateCommand(platformID string, platform Definition, copyProperties bool, userID string) (command.Command, error) {
	return newCommand(platformID, CommandTypeUpdate, userID, UpdatePayload{
		Platform:                         platform,
		CopyPropertiesForUpgradedModules: copyProperties,
	})
}

// NewDeleteCommand builds a logical-deletion command.
func NewDeleteCommand(platformID, userID string) (command.Command, error) {
	return newCommand(platformID, CommandTypeDelete, userID, struct{}{})
}

// NewRestoreCommand builds a restoration command for a deleted platform.
func NewRestoreCommand(platformID, userID string) (command.Command, error) {
	return newCommand(platformID, CommandTypeRestore, userID, struct{}{})
}

// NewUpdatePropertiesCommand builds a platform-global property update.
func NewUpdatePropertiesCommand(platformID string, platformVersionID int64, properties []property.Valued, userID string) (command.Command, error) {
	return newCommand(platformID, CommandTypeUpdateProperties, userID, UpdatePropertiesPayload{
		PlatformVersionID: platformVersionID,
		ValuedProperties:  properties,
	})
}

// NewUpdateModulePropertiesCommand builds a module-scoped property update.
func NewUpdateModulePropertiesCommand(platformID, propertiesPath string, platformVersionID int64, properties []property.Abstract, userID string) (command.Command, error) {
	return newCommand(platformID, CommandTypeUpdateModuleProperties, userID, UpdateModulePropertiesPayload{
		PropertiesPath:    propertiesPath,
		PlatformVersionID: platformVersionID,
		ValuedProperties:  properties,
	})
}

func newCommand(platformID string, cmdType command.Type, userID string, payload any) (command.Command, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return command.Command{}, fmt.Errorf("marshal %s payload: %w", cmdType, err)
	}
	return command.Command{
		PlatformID:  platformID,
		Type:        cmdType,
		UserID:      userID,
		PayloadJSON: payloadJSON,
	}, nil
}

func validateCreateCommand(raw json.RawMessage) error {
	var payload CreatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.Platform.Key.Normalize().IsZero() {
		return errors.New("platform key is required")
	}
	return nil
}

func validateUpdateCommand(raw json.RawMessage) error {
	var payload UpdatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.Platform.Key.Normalize().IsZero() {
		return errors.New("platform key is required")
	}
	return nil
}

func validateUpdatePropertiesCommand(raw json.RawMessage) error {
	var payload UpdatePropertiesPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.PlatformVersionID <= 0 {
		return errors.New("platform version id must be positive")
	}
	return nil
}

func validateUpdateModulePropertiesCommand(raw json.RawMessage) error {
	var payload UpdateModulePropertiesPayload
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
