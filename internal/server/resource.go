package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gihan9a/braidtrack/internal/utils"
	"gihan9a/braidtrack/pkg/track"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownType is returned for resources of an unregistered entity type
	ErrUnknownType = errors.New("unknown entity type")
	// ErrTypeMismatch is returned when a seed file changes the type of a resource
	ErrTypeMismatch = errors.New("resource type mismatch")
)

// Resource is a tracked entity served under a URL path. Its mutex guards
// the whole entity tree, which performs no locking of its own.
type Resource struct {
	ID string

	mu       sync.Mutex
	entity   *track.Entity
	version  string
	snapshot []byte
}

// SeedFile is the on-disk description of a resource
type SeedFile struct {
	Type  string         `yaml:"type"`
	State map[string]any `yaml:"state"`
}

// AddResource creates a resource of a registered type, assigns its initial
// state and takes the first snapshot. An existing resource of the same type
// gets the state assigned instead, so the change is published as a diff.
func (h *Hub) AddResource(id, typeName string, state map[string]any) error {
	schema, ok := track.Lookup(typeName)
	if !ok {
		return fmt.Errorf("%s: %w %q", id, ErrUnknownType, typeName)
	}

	if res := h.resource(id); res != nil {
		res.mu.Lock()
		defer res.mu.Unlock()

		if res.entity.Schema() != schema {
			return fmt.Errorf("%s: %w: %s is a %s", id, ErrTypeMismatch, id, res.entity.Schema().Name())
		}
		if err := track.Assign(res.entity, state); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		return nil
	}

	entity := schema.New()
	if err := track.Assign(entity, state); err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	// The initial state is the baseline, not a change
	entity.ClearUpdates()

	snapshot, err := json.Marshal(entity.Serialize())
	if err != nil {
		return fmt.Errorf("%s: failed to encode snapshot: %w", id, err)
	}

	res := &Resource{
		ID:       id,
		entity:   entity,
		version:  utils.CalculateHash(snapshot),
		snapshot: snapshot,
	}

	h.mu.Lock()
	if _, exists := h.resources[id]; exists {
		h.mu.Unlock()
		return h.AddResource(id, typeName, state)
	}
	h.resources[id] = res
	h.mu.Unlock()

	h.logger.Info("Added resource", "resource", id, "type", typeName, "version", res.version)
	return nil
}

// Update runs fn on a resource entity while holding the resource lock. It
// is the in-process way for the authoritative writer to mutate a resource.
func (h *Hub) Update(id string, fn func(*track.Entity) error) error {
	res := h.resource(id)
	if res == nil {
		return fmt.Errorf("%s: %w", id, os.ErrNotExist)
	}

	res.mu.Lock()
	defer res.mu.Unlock()
	return fn(res.entity)
}

// Resources returns the ids of all served resources, sorted
func (h *Hub) Resources() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.resources))
	for id := range h.resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) resource(id string) *Resource {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.resources[id]
}

// LoadSeeds loads every seed file below the seed directory
func (h *Hub) LoadSeeds() error {
	return filepath.Walk(h.config.SeedDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isSeedFile(path) {
			return nil
		}
		return h.LoadSeedFile(path)
	})
}

// LoadSeedFile reads a seed file and adds or updates its resource
func (h *Hub) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading seed file: %w", err)
	}

	// Editors often truncate before writing, wait for the real content
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("error parsing seed file %s: %w", path, err)
	}
	if seed.Type == "" {
		h.logger.Debug("Skipping file without a type", "file", path)
		return nil
	}

	resourceID, err := h.getResourceIDFromPath(path)
	if err != nil {
		return err
	}

	return h.AddResource(resourceID, seed.Type, seed.State)
}

// getResourceIDFromPath converts a seed file path to a resource ID
func (h *Hub) getResourceIDFromPath(path string) (string, error) {
	// Make the path relative to the seed directory
	relPath, err := filepath.Rel(h.config.SeedDir, path)
	if err != nil {
		return "", err
	}

	resourceID := strings.TrimSuffix(relPath, filepath.Ext(relPath))

	// Convert Windows path separators to URL path separators
	resourceID = strings.ReplaceAll(resourceID, "\\", "/")

	if !strings.HasPrefix(resourceID, "/") {
		resourceID = "/" + resourceID
	}

	return resourceID, nil
}

func isSeedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}
