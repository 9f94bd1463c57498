// Package tenants loads the per-tenant sync configuration.
package tenants

import (
	"fmt"
	"os"
	"sort"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Tenant describes where a tenant's mirror comes from and how often it runs.
type Tenant struct {
	ID           string `yaml:"id"`
	RootFolderID string `yaml:"root_folder_id"` // empty = not configured, syncs fail fast
	Schedule     string `yaml:"schedule"`       // cron spec, empty = manual only
	Prune        bool   `yaml:"prune"`
	CreatedBy    string `yaml:"created_by"`
}

// Validate checks the tenant entry.
func (t Tenant) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.ID, validation.Required, validation.Length(1, 64)),
		validation.Field(&t.Schedule, validation.By(validSchedule)),
	)
}

func validSchedule(value interface{}) error {
	spec, _ := value.(string)
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron schedule: %v", err)
	}
	return nil
}

type file struct {
	Tenants []Tenant `yaml:"tenants"`
}

// Registry holds the configured tenants
type Registry struct {
	mu      sync.RWMutex
	tenants map[string]Tenant
}

// NewRegistry creates a registry from already-parsed tenants.
func NewRegistry(list []Tenant) (*Registry, error) {
	r := &Registry{tenants: make(map[string]Tenant, len(list))}
	for _, t := range list {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("tenant %q: %w", t.ID, err)
		}
		if _, dup := r.tenants[t.ID]; dup {
			return nil, fmt.Errorf("tenant %q listed twice", t.ID)
		}
		r.tenants[t.ID] = t
	}
	return r, nil
}

// Load reads a YAML tenants file. An empty path yields an empty registry.
func Load(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML tenants document.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tenants: %w", err)
	}
	return NewRegistry(f.Tenants)
}

// Get returns a tenant by id
func (r *Registry) Get(id string) (Tenant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[id]
	return t, ok
}

// All returns every tenant ordered by id
func (r *Registry) All() []Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
