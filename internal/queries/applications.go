package queries

import (
	"context"
	"sort"

	"github.com/plateau-io/plateau/internal/queries/filter"
	"github.com/plateau-io/plateau/internal/storage"
)

// Application groups the live platforms deployed under one application name.
type Application struct {
	Name      string
	Platforms []storage.IndexEntry
}

// GetApplication returns an application and its live platforms.
func (s Service) GetApplication(ctx context.Context, applicationName string) (Application, error) {
	entries, err := s.Store.ListEntries(ctx, storage.IndexFilter{ApplicationName: applicationName})
	if err != nil {
		return Application{}, err
	}
	if len(entries) == 0 {
		return Application{}, storage.ErrNotFound
	}
	return Application{Name: entries[0].Key.ApplicationName, Platforms: entries}, nil
}

// ListApplications returns every application with at least one live
// platform, sorted by name.
func (s Service) ListApplications(ctx context.Context) ([]Application, error) {
	entries, err := s.Store.ListEntries(ctx, storage.IndexFilter{})
	if err != nil {
		return nil, err
	}
	return groupApplications(entries), nil
}

// SearchApplications returns applications whose live platforms match an
// AIP-160 filter expression.
func (s Service) SearchApplications(ctx context.Context, filterExpr string) ([]Application, error) {
	entries, err := s.searchEntries(ctx, filterExpr)
	if err != nil {
		return nil, err
	}
	return groupApplications(entries), nil
}

// SearchPlatforms returns the live platforms matching an AIP-160 filter
// expression.
func (s Service) SearchPlatforms(ctx context.Context, filterExpr string) ([]storage.IndexEntry, error) {
	return s.searchEntries(ctx, filterExpr)
}

func (s Service) searchEntries(ctx context.Context, filterExpr string) ([]storage.IndexEntry, error) {
	condition, err := filter.ParsePlatformFilter(filterExpr)
	if err != nil {
		return nil, err
	}
	return s.Store.ListEntries(ctx, storage.IndexFilter{
		WhereSQL: condition.Clause,
		Args:     condition.Params,
	})
}

// groupApplications folds index entries into per-application groups. Entries
// arrive ordered by application then platform name, so groups stay sorted.
func groupApplications(entries []storage.IndexEntry) []Application {
	grouped := make(map[string][]storage.IndexEntry)
	var names []string
	for _, entry := range entries {
		name := entry.Key.ApplicationName
		if _, ok := grouped[name]; !ok {
			names = append(names, name)
		}
		grouped[name] = append(grouped[name], entry)
	}
	sort.Strings(names)

	out := make([]Application, 0, len(names))
	for _, name := range names {
		out = append(out, Application{Name: name, Platforms: grouped[name]})
	}
	return out
}
