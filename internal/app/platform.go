// Package app exposes the platform core to transports. Command rejections
// and the read side's sentinel failures are mapped to coded errors here, so
// a gRPC layer only ever sees *errors.Error values it can hand to
// errors.HandleError.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/plateau-io/plateau/internal/catalog"
	"github.com/plateau-io/plateau/internal/domain/command"
	"github.com/plateau-io/plateau/internal/domain/engine"
	"github.com/plateau-io/plateau/internal/domain/event"
	"github.com/plateau-io/plateau/internal/domain/platform"
	"github.com/plateau-io/plateau/internal/domain/property"
	"github.com/plateau-io/plateau/internal/domain/replay"
	apperrors "github.com/plateau-io/plateau/internal/errors"
	"github.com/plateau-io/plateau/internal/queries"
	"github.com/plateau-io/plateau/internal/queries/filter"
	"github.com/plateau-io/plateau/internal/storage"
	"github.com/plateau-io/plateau/internal/storage/cursor"
)

// Platform is the application surface: one write path and the read queries,
// all returning coded errors.
type Platform struct {
	Commands *engine.Handler
	Queries  queries.Service
}

// Execute runs a platform command. A domain rejection comes back as a coded
// error alongside the full result, so callers can still inspect the decision.
func (p Platform) Execute(ctx context.Context, cmd command.Command) (engine.Result, error) {
	result, err := p.Commands.Execute(ctx, cmd)
	if err != nil {
		return engine.Result{}, mapSentinel(err, apperrors.CodePlatformNotFound, nil)
	}
	if !result.Accepted() {
		return result, apperrors.FromRejection(result.Decision.Rejections[0])
	}
	return result, nil
}

// GetPlatformID returns the id of the live platform holding the key.
func (p Platform) GetPlatformID(ctx context.Context, key platform.Key) (string, error) {
	id, err := p.Queries.GetPlatformID(ctx, key)
	if err != nil {
		return "", mapSentinel(err, apperrors.CodePlatformNotFound, keyMetadata(key))
	}
	return id, nil
}

// GetPlatform returns the current state of a live platform.
func (p Platform) GetPlatform(ctx context.Context, platformID string) (platform.State, error) {
	state, err := p.Queries.GetPlatform(ctx, platformID)
	if err != nil {
		return platform.State{}, mapSentinel(err, apperrors.CodePlatformNotFound, nil)
	}
	return state, nil
}

// GetPlatformByKey returns the current state of the live platform holding
// the key.
func (p Platform) GetPlatformByKey(ctx context.Context, key platform.Key) (platform.State, error) {
	state, err := p.Queries.GetPlatformByKey(ctx, key)
	if err != nil {
		return platform.State{}, mapSentinel(err, apperrors.CodePlatformNotFound, keyMetadata(key))
	}
	return state, nil
}

// GetPlatformAtTime returns the platform state as of the given instant.
func (p Platform) GetPlatformAtTime(ctx context.Context, platformID string, at time.Time) (platform.State, error) {
	state, err := p.Queries.GetPlatformAtTime(ctx, platformID, at)
	if err != nil {
		return platform.State{}, mapSentinel(err, apperrors.CodePlatformNotFound, nil)
	}
	return state, nil
}

// PlatformExists reports whether a live platform holds the key.
func (p Platform) PlatformExists(ctx context.Context, key platform.Key) (bool, error) {
	exists, err := p.Queries.PlatformExists(ctx, key)
	if err != nil {
		return false, mapSentinel(err, apperrors.CodePlatformNotFound, keyMetadata(key))
	}
	return exists, nil
}

// GetApplication returns an application and its live platforms.
func (p Platform) GetApplication(ctx context.Context, applicationName string) (queries.Application, error) {
	application, err := p.Queries.GetApplication(ctx, applicationName)
	if err != nil {
		return queries.Application{}, mapSentinel(err, apperrors.CodeApplicationNotFound,
			map[string]string{"ApplicationName": applicationName})
	}
	return application, nil
}

// ListApplications returns every application with at least one live
// platform.
func (p Platform) ListApplications(ctx context.Context) ([]queries.Application, error) {
	applications, err := p.Queries.ListApplications(ctx)
	if err != nil {
		return nil, mapSentinel(err, apperrors.CodeNotFound, nil)
	}
	return applications, nil
}

// SearchApplications returns applications whose live platforms match an
// AIP-160 filter expression.
func (p Platform) SearchApplications(ctx context.Context, filterExpr string) ([]queries.Application, error) {
	applications, err := p.Queries.SearchApplications(ctx, filterExpr)
	if err != nil {
		return nil, mapSentinel(err, apperrors.CodeNotFound, nil)
	}
	return applications, nil
}

// SearchPlatforms returns the live platforms matching an AIP-160 filter
// expression.
func (p Platform) SearchPlatforms(ctx context.Context, filterExpr string) ([]storage.IndexEntry, error) {
	entries, err := p.Queries.SearchPlatforms(ctx, filterExpr)
	if err != nil {
		return nil, mapSentinel(err, apperrors.CodeNotFound, nil)
	}
	return entries, nil
}

// PlatformsUsingModule returns the live platforms deploying the given module
// version.
func (p Platform) PlatformsUsingModule(ctx context.Context, module catalog.ModuleKey) ([]platform.State, error) {
	states, err := p.Queries.PlatformsUsingModule(ctx, module)
	if err != nil {
		return nil, mapSentinel(err, apperrors.CodeNotFound, nil)
	}
	return states, nil
}

// GetGlobalProperties returns the platform-global property scope.
func (p Platform) GetGlobalProperties(ctx context.Context, platformID string) ([]property.Valued, error) {
	globals, err := p.Queries.GetGlobalProperties(ctx, platformID)
	if err != nil {
		return nil, mapSentinel(err, apperrors.CodePlatformNotFound, nil)
	}
	return globals, nil
}

// GetModuleProperties returns the stored properties at a properties path.
func (p Platform) GetModuleProperties(ctx context.Context, platformID, propertiesPath string) ([]property.Abstract, error) {
	properties, err := p.Queries.GetModuleProperties(ctx, platformID, propertiesPath)
	if err != nil {
		return nil, mapSentinel(err, apperrors.CodeNotFound,
			map[string]string{"PropertiesPath": propertiesPath})
	}
	return properties, nil
}

// GetInstancesModel lists the per-instance parameters of a deployed module.
func (p Platform) GetInstancesModel(ctx context.Context, platformID, propertiesPath string) ([]string, error) {
	names, err := p.Queries.GetInstancesModel(ctx, platformID, propertiesPath)
	if err != nil {
		return nil, mapSentinel(err, apperrors.CodeNotFound,
			map[string]string{"PropertiesPath": propertiesPath})
	}
	return names, nil
}

// DeployedModuleExists reports whether the live platform holding the key
// deploys a module at the properties path.
func (p Platform) DeployedModuleExists(ctx context.Context, key platform.Key, propertiesPath string) (bool, error) {
	exists, err := p.Queries.DeployedModuleExists(ctx, key, propertiesPath)
	if err != nil {
		return false, mapSentinel(err, apperrors.CodeNotFound, keyMetadata(key))
	}
	return exists, nil
}

// InstanceExists reports whether a named instance exists on the deployed
// module at the properties path.
func (p Platform) InstanceExists(ctx context.Context, key platform.Key, propertiesPath, instanceName string) (bool, error) {
	exists, err := p.Queries.InstanceExists(ctx, key, propertiesPath, instanceName)
	if err != nil {
		return false, mapSentinel(err, apperrors.CodeNotFound, keyMetadata(key))
	}
	return exists, nil
}

// ListPlatformEvents pages through a platform's journal.
func (p Platform) ListPlatformEvents(ctx context.Context, platformID string, pageSize int, pageToken string, descending bool) (queries.EventPage, error) {
	page, err := p.Queries.ListPlatformEvents(ctx, platformID, pageSize, pageToken, descending)
	if err != nil {
		return queries.EventPage{}, mapSentinel(err, apperrors.CodePlatformNotFound, nil)
	}
	return page, nil
}

// mapSentinel attaches codes to the sentinel failures the domain layers
// return. Errors that already carry a code, and unrecognized infrastructure
// errors, pass through unchanged.
func mapSentinel(err error, notFound apperrors.Code, metadata map[string]string) error {
	var coded *apperrors.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.Wrap(notFound, "resource not found", err).WithMetadata(metadata)
	case errors.Is(err, catalog.ErrModuleNotFound):
		return apperrors.Wrap(apperrors.CodeModuleNotFound, "module not in catalog", err).WithMetadata(metadata)
	case errors.Is(err, filter.ErrInvalidFilter):
		return apperrors.Wrap(apperrors.CodeInvalidFilter, "invalid filter expression", err)
	case errors.Is(err, cursor.ErrInvalidToken):
		return apperrors.Wrap(apperrors.CodeInvalidPageToken, "invalid page token", err)
	case errors.Is(err, replay.ErrSequenceGap):
		return apperrors.Wrap(apperrors.CodeEventSequenceGap, "journal sequence gap", err)
	case errors.Is(err, event.ErrTypeUnknown):
		return apperrors.Wrap(apperrors.CodeEventTypeUnknown, "unknown event type in journal", err)
	default:
		return err
	}
}

func keyMetadata(key platform.Key) map[string]string {
	return map[string]string{
		"ApplicationName": key.ApplicationName,
		"PlatformName":    key.PlatformName,
	}
}
