// Package catalog defines the module catalog collaborator consulted for the
// property skeleton a module declares. The catalog is owned by another
// service; the core only reads from it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/plateau-io/plateau/internal/domain/property"
)

// ErrModuleNotFound indicates the catalog has no module for the given key.
var ErrModuleNotFound = errors.New("module not found in catalog")

// ModuleKey identifies a module by name and version.
type ModuleKey struct {
	Name    string
	Version string
}

// IsZero reports whether the key carries no identity.
func (k ModuleKey) IsZero() bool {
	return strings.TrimSpace(k.Name) == "" && strings.TrimSpace(k.Version) == ""
}

func (k ModuleKey) String() string {
	return fmt.Sprintf("%s/%s", k.Name, k.Version)
}

// ModuleCatalog resolves the declared property skeleton for a module key.
type ModuleCatalog interface {
	GetPropertiesModel(ctx context.Context, key ModuleKey) ([]property.Model, error)
}

// Memory is an in-memory catalog used by tests and local tooling.
type Memory struct {
	mu     sync.Mutex
	models map[ModuleKey][]property.Model
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{models: make(map[ModuleKey][]property.Model)}
}

// Put registers a module's property skeleton.
func (m *Memory) Put(key ModuleKey, models []property.Model) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models[key] = append([]property.Model(nil), models...)
}

// GetPropertiesModel returns the skeleton for a module key.
func (m *Memory) GetPropertiesModel(ctx context.Context, key ModuleKey) ([]property.Model, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	models, ok := m.models[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, key)
	}
	return append([]property.Model(nil), models...), nil
}
