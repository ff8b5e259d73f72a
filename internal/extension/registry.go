// Package extension manages the console's analysis extensions.
package extension

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/threatlens/console-backend/internal/models"
)

// Registry holds extension metadata and persists the enabled set to a state
// file so toggles survive restarts.
type Registry struct {
	mu        sync.RWMutex
	byName    map[string]*models.ExtensionInfo
	statePath string
}

// NewRegistry creates a registry seeded with the given extensions. When
// statePath exists, previously persisted enabled flags override the seeds.
func NewRegistry(statePath string, seed []models.ExtensionInfo) (*Registry, error) {
	r := &Registry{
		byName:    make(map[string]*models.ExtensionInfo, len(seed)),
		statePath: statePath,
	}
	for i := range seed {
		ext := seed[i]
		r.byName[ext.Name] = &ext
	}

	if err := r.loadState(); err != nil {
		return nil, err
	}
	return r, nil
}

// List returns all extensions sorted by name.
func (r *Registry) List() []models.ExtensionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]models.ExtensionInfo, 0, len(r.byName))
	for _, ext := range r.byName {
		list = append(list, *ext)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Get returns a single extension by name.
func (r *Registry) Get(name string) (models.ExtensionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext, ok := r.byName[name]
	if !ok {
		return models.ExtensionInfo{}, false
	}
	return *ext, true
}

// SetEnabled toggles an extension and persists the change.
func (r *Registry) SetEnabled(name string, enabled bool) (models.ExtensionInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ext, ok := r.byName[name]
	if !ok {
		return models.ExtensionInfo{}, fmt.Errorf("extension not found: %s", name)
	}
	ext.Enabled = enabled

	if err := r.saveStateLocked(); err != nil {
		return models.ExtensionInfo{}, err
	}
	return *ext, nil
}

func (r *Registry) loadState() error {
	if r.statePath == "" {
		return nil
	}
	data, err := os.ReadFile(r.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading extension state: %w", err)
	}

	var enabled map[string]bool
	if err := sonic.Unmarshal(data, &enabled); err != nil {
		return fmt.Errorf("parsing extension state: %w", err)
	}

	for name, on := range enabled {
		if ext, ok := r.byName[name]; ok {
			ext.Enabled = on
		}
	}
	return nil
}

func (r *Registry) saveStateLocked() error {
	if r.statePath == "" {
		return nil
	}

	enabled := make(map[string]bool, len(r.byName))
	for name, ext := range r.byName {
		enabled[name] = ext.Enabled
	}

	data, err := sonic.Marshal(enabled)
	if err != nil {
		return fmt.Errorf("encoding extension state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.statePath), 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if err := os.WriteFile(r.statePath, data, 0644); err != nil {
		return fmt.Errorf("writing extension state: %w", err)
	}
	return nil
}
