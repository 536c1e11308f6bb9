package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/openmuni/cashsync/pkg/models"
)

// ResolveParent implements registry.Env: it returns the local row
// mirroring parentCID. When the parent was never seen, the entity is
// re-listed from the remote, at most once per entity per pull, to bound
// the work and rule out fetch loops.
func (s *Session) ResolveParent(ctx context.Context, entity string, parentCID int64) (*models.Instance, error) {
	inst, err := s.store.FindByCID(s.setup.ID, entity, parentCID)
	if err != nil || inst != nil {
		return inst, err
	}

	s.mu.Lock()
	fetched := s.lazyFetched[entity]
	s.lazyFetched[entity] = true
	s.mu.Unlock()
	if fetched {
		return nil, nil
	}

	cfg, ok := s.reg.Get(entity)
	if !ok {
		return nil, nil
	}

	log.Info().Str("entity", entity).Int64("parentCId", parentCID).
		Msg("Parent not seen locally, fetching entity list")

	payloads, err := s.Gateway(cfg.Resource).List(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, p := range payloads {
		if _, _, err := s.ApplyRemote(ctx, entity, p); err != nil {
			log.Warn().Err(err).Str("entity", entity).Msg("Failed to apply payload during parent fetch")
		}
	}

	return s.store.FindByCID(s.setup.ID, entity, parentCID)
}

// resetLazyFetch clears the per-pull lazy fetch marks.
func (s *Session) resetLazyFetch() {
	s.mu.Lock()
	s.lazyFetched = make(map[string]bool)
	s.mu.Unlock()
}

// CheckParentChain walks a row's parent links through the local store
// and fails when the chain does not reach a root within the depth
// bound, which indicates a cycle in the remote data.
func (s *Session) CheckParentChain(ctx context.Context, entity string, inst *models.Instance) error {
	cur := inst
	for depth := 0; cur != nil; depth++ {
		if depth >= maxParentDepth {
			return &ParentChainCycleError{Entity: entity, CID: inst.RemoteID(), Depth: depth + 1}
		}
		pid, ok := asInt64(cur.Attr("parent_id"))
		if !ok || pid == 0 {
			return nil
		}
		next, err := s.store.FindByCID(s.setup.ID, entity, pid)
		if err != nil {
			return err
		}
		cur = next
	}
	return nil
}
