package services

import (
	"context"
	"fmt"
	"time"

	"github.com/openmuni/cashsync/pkg/cashctrl"
	"github.com/openmuni/cashsync/pkg/codec"
	"github.com/openmuni/cashsync/pkg/models"
)

// ApplyRemote materializes one downloaded payload as a local row:
// decode, attach remote metadata, drop undeclared keys, unpack custom
// fields, upsert within the session's setup and run the post-get hook.
// The dirty flag is cleared before save so the write never re-triggers
// an upload. Returns the persisted instance and whether it was created.
func (s *Session) ApplyRemote(ctx context.Context, entity string, source cashctrl.Payload) (*models.Instance, bool, error) {
	cfg, ok := s.reg.Get(entity)
	if !ok {
		return nil, false, fmt.Errorf("unknown entity %q", entity)
	}

	decoded, err := codec.Decode(source)
	if err != nil {
		return nil, false, err
	}

	cid, ok := asInt64(decoded["id"])
	if !ok {
		return nil, false, fmt.Errorf("downloaded %s payload has no id", entity)
	}
	delete(decoded, "id")

	existing, err := s.store.FindByCID(s.setup.ID, entity, cid)
	if err != nil {
		return nil, false, err
	}
	created := existing == nil

	inst := existing
	if created {
		inst = &models.Instance{
			Entity:        entity,
			SetupID:       s.setup.ID,
			IsEnabledSync: true,
		}
		inst.SetRemoteID(cid)
	}

	applyAudit(inst, decoded)
	now := time.Now().UTC()
	inst.LastReceived = &now

	codec.UnpackCustom(decoded, cfg.Bindings)

	for k, v := range decoded {
		if !cfg.KeepsField(k) {
			continue
		}
		inst.SetAttr(k, v)
	}

	// Suppress the re-upload this write would otherwise trigger.
	inst.SyncToAccounting = false
	inst.Message = ""

	resume := s.store.SuspendEvents()
	defer resume()

	// Persist before the post-get hook runs: the hook may refetch the
	// entity list, and the row must already be findable by its remote id
	// so the refetch updates it instead of inserting a twin.
	if err := s.store.SaveInstance(inst); err != nil {
		return nil, false, fmt.Errorf("failed to persist downloaded instance: %w", err)
	}

	if cfg.PostGet != nil {
		if err := cfg.PostGet(ctx, s, inst, decoded, created); err != nil {
			return nil, false, err
		}
		if err := s.store.SaveInstance(inst); err != nil {
			return nil, false, fmt.Errorf("failed to persist downloaded instance: %w", err)
		}
	}

	if cfg.Hierarchical() {
		if err := s.CheckParentChain(ctx, entity, inst); err != nil {
			return nil, false, err
		}
	}

	return inst, created, nil
}

// applyAudit moves the remote audit quartet out of the decoded payload
// and onto the row's typed columns.
func applyAudit(inst *models.Instance, decoded map[string]any) {
	if t, ok := decoded["created"].(time.Time); ok {
		inst.CCreated = &t
	}
	if by, ok := decoded["created_by"].(string); ok {
		inst.CCreatedBy = by
	}
	if t, ok := decoded["last_updated"].(time.Time); ok {
		inst.CLastUpdated = &t
	}
	if by, ok := decoded["last_updated_by"].(string); ok {
		inst.CLastUpdatedBy = by
	}
	delete(decoded, "created")
	delete(decoded, "created_by")
	delete(decoded, "last_updated")
	delete(decoded, "last_updated_by")
}
