// Package services holds the sync engine proper: the upload and
// download pipelines, the pull orchestrator and the change dispatcher.
package services

import (
	"strconv"
	"sync"

	"github.com/openmuni/cashsync/db"
	"github.com/openmuni/cashsync/pkg/cashctrl"
	"github.com/openmuni/cashsync/pkg/models"
	"github.com/openmuni/cashsync/pkg/registry"
)

// Session binds one setup's credentials, remote client, registry and
// local store together. All engine operations run through it; sessions
// for different setups are fully isolated.
type Session struct {
	setup  *models.APISetup
	client *cashctrl.Client
	store  db.Store
	reg    *registry.Registry

	// One lock per (setup, resource) so concurrent pulls of the same
	// resource for the same tenant are rejected.
	pullLocks sync.Map

	// Entities already lazily re-listed during the current pull, to
	// bound parent fetches to one extra list call per pull.
	mu          sync.Mutex
	lazyFetched map[string]bool
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithClient substitutes the remote client, mainly for tests.
func WithClient(c *cashctrl.Client) SessionOption {
	return func(s *Session) { s.client = c }
}

// WithRegistry substitutes the entity registry.
func WithRegistry(r *registry.Registry) SessionOption {
	return func(s *Session) { s.reg = r }
}

// NewSession creates a sync session for one setup.
func NewSession(setup *models.APISetup, store db.Store, opts ...SessionOption) (*Session, error) {
	if setup == nil {
		return nil, &SyncPolicyError{Reason: "session requires a setup"}
	}
	if store == nil {
		return nil, &SyncPolicyError{Reason: "session requires a local store"}
	}
	s := &Session{
		setup:       setup,
		store:       store,
		reg:         registry.Default(),
		lazyFetched: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = cashctrl.NewClient(setup)
	}
	return s, nil
}

// Setup implements registry.Env.
func (s *Session) Setup() *models.APISetup { return s.setup }

// Gateway implements registry.Env.
func (s *Session) Gateway(res cashctrl.Resource) *cashctrl.Gateway {
	return s.client.Resource(res)
}

// Instance implements registry.Env.
func (s *Session) Instance(id int64) (*models.Instance, error) {
	return s.store.GetInstance(id)
}

// Store exposes the local store for callers driving the session.
func (s *Session) Store() db.Store { return s.store }

// Registry exposes the entity registry.
func (s *Session) Registry() *registry.Registry { return s.reg }

var _ registry.Env = (*Session)(nil)

func pullLockKey(setupID int64, entity string) string {
	return strconv.FormatInt(setupID, 10) + "/" + entity
}

// asInt64 normalizes ids from typed code, JSON numbers or digit strings.
func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	}
	return 0, false
}
