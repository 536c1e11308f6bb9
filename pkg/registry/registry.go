// Package registry holds the per-entity sync configuration: which
// gateway drives transport, which fields exist locally, what is never
// uploaded, custom-field bindings, and the pre/post hooks.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/openmuni/cashsync/pkg/cashctrl"
	"github.com/openmuni/cashsync/pkg/codec"
	"github.com/openmuni/cashsync/pkg/models"
)

// Env is the slice of the sync session hooks may use. It is implemented
// by services.Session.
type Env interface {
	Setup() *models.APISetup
	Gateway(res cashctrl.Resource) *cashctrl.Gateway
	// Instance fetches a local row by its local id, nil when absent.
	Instance(id int64) (*models.Instance, error)
	// ResolveParent returns the local row mirroring the given remote id,
	// lazily pulling the entity once per run when it is unseen.
	ResolveParent(ctx context.Context, entity string, parentCID int64) (*models.Instance, error)
}

// PreUploadHook mutates the payload before it is encoded and posted.
type PreUploadHook func(ctx context.Context, env Env, inst *models.Instance, payload map[string]any) error

// PostGetHook runs after a downloaded payload was assigned to the
// instance but before it is persisted.
type PostGetHook func(ctx context.Context, env Env, inst *models.Instance, source map[string]any, created bool) error

// PreSaveHook runs after a successful upload, before the row is
// persisted with its new remote id.
type PreSaveHook func(ctx context.Context, env Env, inst *models.Instance) error

// Config is the sync configuration of one entity.
type Config struct {
	Resource cashctrl.Resource

	// Fields is the local schema. Downloaded keys outside it are
	// dropped. AllFields disables the filter for bag-shaped entities.
	Fields    []string
	AllFields bool

	// IgnoreKeys are never uploaded.
	IgnoreKeys []string

	// LocalizedFields carry multilingual text. Storage round trips
	// degrade their values to plain maps, so the upload pipeline
	// normalizes them back to LocalizedText before encoding.
	LocalizedFields []string

	// Bindings maps local fields to remote custom-field slots. They are
	// tenant configuration and may be replaced at runtime.
	Bindings []codec.CustomBinding

	// ParentField names the attribute holding the remote parent id for
	// hierarchical entities, "" otherwise.
	ParentField string

	PreUpload PreUploadHook
	PostGet   PostGetHook
	PreSave   PreSaveHook
}

// Hierarchical reports whether the entity self-references.
func (c *Config) Hierarchical() bool { return c.ParentField != "" }

// KeepsField reports whether key belongs to the local schema. Locals
// bound to custom-field slots count as schema fields.
func (c *Config) KeepsField(key string) bool {
	if c.AllFields || lo.Contains(c.Fields, key) {
		return true
	}
	return lo.ContainsBy(c.Bindings, func(b codec.CustomBinding) bool { return b.Local == key })
}

// Ignores reports whether key is excluded from uploads.
func (c *Config) Ignores(key string) bool {
	return lo.Contains(c.IgnoreKeys, key)
}

// Registry is the entity-name → Config table.
type Registry struct {
	configs map[string]*Config
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{configs: make(map[string]*Config)}
}

// Register adds a config under its resource name.
func (r *Registry) Register(cfg *Config) {
	r.configs[cfg.Resource.Name] = cfg
}

// Get returns the config for an entity.
func (r *Registry) Get(entity string) (*Config, bool) {
	cfg, ok := r.configs[entity]
	return cfg, ok
}

// Entities lists the registered entity names, sorted.
func (r *Registry) Entities() []string {
	names := lo.Keys(r.configs)
	sort.Strings(names)
	return names
}

// SetBindings replaces the custom-field bindings of one entity.
func (r *Registry) SetBindings(entity string, bindings []codec.CustomBinding) error {
	cfg, ok := r.configs[entity]
	if !ok {
		return fmt.Errorf("unknown entity %q", entity)
	}
	cfg.Bindings = bindings
	return nil
}
