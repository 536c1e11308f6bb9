package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openmuni/cashsync/pkg/cashctrl"
	"github.com/openmuni/cashsync/pkg/codec"
	"github.com/openmuni/cashsync/pkg/models"
)

// Upload pushes one local instance to the remote: create when the row
// has no remote id yet, update otherwise. On success the remote id is
// assigned, the dirty flag cleared and the row persisted without
// re-triggering the change stream.
func (s *Session) Upload(ctx context.Context, inst *models.Instance) error {
	cfg, ok := s.reg.Get(inst.Entity)
	if !ok {
		return fmt.Errorf("unknown entity %q", inst.Entity)
	}
	if cfg.Resource.ReadOnly {
		return &SyncPolicyError{Reason: fmt.Sprintf("resource %s is read-only", cfg.Resource.Name)}
	}

	// Snapshot the attributes, dropping what is never uploaded.
	payload := make(map[string]any, len(inst.Attrs))
	for k, v := range inst.Attrs {
		if cfg.Ignores(k) {
			continue
		}
		payload[k] = v
	}

	// Attributes reloaded from storage carry plain maps; restore the
	// localized type so the codec renders <values> fragments, not JSON.
	for _, k := range cfg.LocalizedFields {
		if v, ok := payload[k]; ok && v != nil {
			if loc := models.ToLocalizedText(v); loc != nil {
				payload[k] = loc
			}
		}
	}

	codec.PackCustom(payload, cfg.Bindings)

	if cfg.PreUpload != nil {
		if err := cfg.PreUpload(ctx, s, inst, payload); err != nil {
			return err
		}
	}

	update := inst.CID != nil
	if update {
		payload["id"] = *inst.CID
	}

	encoded, err := codec.Encode(payload)
	if err != nil {
		return err
	}
	form, err := cashctrl.FormValues(encoded)
	if err != nil {
		return err
	}

	gw := s.Gateway(cfg.Resource)
	var insertID int64
	if update {
		insertID, err = gw.Update(ctx, form)
	} else {
		insertID, err = gw.Create(ctx, form)
	}
	if err != nil {
		return err
	}

	inst.SetRemoteID(insertID)
	inst.SyncToAccounting = false
	inst.Message = ""

	resume := s.store.SuspendEvents()
	defer resume()

	// Persist the remote id before any follow-up hook: the upload itself
	// succeeded, and a hook failure must not lose that fact or the next
	// push would create a remote twin. What the hook would have captured
	// heals on the next pull of the resource.
	if err := s.store.SaveInstance(inst); err != nil {
		return fmt.Errorf("failed to persist uploaded instance: %w", err)
	}

	if cfg.PreSave != nil {
		if err := cfg.PreSave(ctx, s, inst); err != nil {
			return err
		}
		if err := s.store.SaveInstance(inst); err != nil {
			return fmt.Errorf("failed to persist uploaded instance: %w", err)
		}
	}

	log.Debug().Str("entity", inst.Entity).Int64("cId", insertID).
		Bool("update", update).Msg("Uploaded instance")
	return nil
}

// DeleteRemote removes the remote resource mirrored by a deleted local
// row. A nil remote id means the row was never uploaded and no call is
// issued.
func (s *Session) DeleteRemote(ctx context.Context, entity string, cid *int64) error {
	if cid == nil {
		return nil
	}
	cfg, ok := s.reg.Get(entity)
	if !ok {
		return fmt.Errorf("unknown entity %q", entity)
	}
	if cfg.Resource.ReadOnly {
		return nil
	}
	if err := s.Gateway(cfg.Resource).Delete(ctx, *cid); err != nil {
		return err
	}
	log.Debug().Str("entity", entity).Int64("cId", *cid).Msg("Deleted remote resource")
	return nil
}

// PushDirty uploads every row flagged for sync. Failures are recorded
// on the row's message and do not stop the run.
func (s *Session) PushDirty(ctx context.Context) (int, []error) {
	dirty, err := s.store.ListDirty(s.setup.ID)
	if err != nil {
		return 0, []error{err}
	}

	pushed := 0
	var errs []error
	for _, inst := range dirty {
		if err := ctx.Err(); err != nil {
			return pushed, append(errs, err)
		}
		if err := s.Upload(ctx, inst); err != nil {
			log.Error().Err(err).Str("entity", inst.Entity).Int64("instance", inst.ID).
				Msg("Failed to upload instance")
			s.recordFailure(inst, err)
			errs = append(errs, err)
			continue
		}
		pushed++
	}
	return pushed, errs
}

// recordFailure surfaces an upload error on the row. When the remote
// call itself failed the dirty flag is still set and the next cycle
// retries; a failed follow-up hook leaves the row clean with the
// message as the only trace.
func (s *Session) recordFailure(inst *models.Instance, cause error) {
	inst.Message = cause.Error()
	resume := s.store.SuspendEvents()
	defer resume()
	if err := s.store.SaveInstance(inst); err != nil {
		log.Error().Err(err).Int64("instance", inst.ID).Msg("Failed to record sync error")
	}
}
