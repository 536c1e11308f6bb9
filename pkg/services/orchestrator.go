package services

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/openmuni/cashsync/pkg/cashctrl"
)

// PullSummary reports one completed pull of a single entity.
type PullSummary struct {
	RunID   string
	Entity  string
	Created int
	Updated int
	Deleted int
	Errors  []error
}

// Load pulls the full remote list of one entity into the local store.
// With deleteNotExisting set, local rows whose remote id is absent from
// the listing are removed first. Concurrent pulls of the same entity for
// the same setup are rejected; row-level failures are collected and do
// not abort the run.
func (s *Session) Load(ctx context.Context, entity string, params url.Values, deleteNotExisting bool, filters ...cashctrl.Filter) (*PullSummary, error) {
	cfg, ok := s.reg.Get(entity)
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}

	lock, _ := s.pullLocks.LoadOrStore(pullLockKey(s.setup.ID, entity), &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	if !mu.TryLock() {
		return nil, &SyncPolicyError{Reason: fmt.Sprintf("pull of %s already running for setup %d", entity, s.setup.ID)}
	}
	defer mu.Unlock()

	s.resetLazyFetch()

	summary := &PullSummary{RunID: uuid.NewString(), Entity: entity}
	log.Info().Str("run", summary.RunID).Str("entity", entity).Msg("Pulling entity")

	payloads, err := s.Gateway(cfg.Resource).List(ctx, params, filters...)
	if err != nil {
		return nil, err
	}

	if deleteNotExisting {
		keep := lo.FilterMap(payloads, func(p cashctrl.Payload, _ int) (int64, bool) {
			return asInt64(p["id"])
		})
		deleted, err := s.deleteNotListed(entity, keep)
		if err != nil {
			return nil, err
		}
		summary.Deleted = deleted
	}

	for _, p := range payloads {
		if err := ctx.Err(); err != nil {
			summary.Errors = append(summary.Errors, err)
			return summary, err
		}
		_, created, err := s.ApplyRemote(ctx, entity, p)
		if err != nil {
			log.Error().Err(err).Str("run", summary.RunID).Str("entity", entity).
				Msg("Failed to apply downloaded payload")
			summary.Errors = append(summary.Errors, err)
			continue
		}
		if created {
			summary.Created++
		} else {
			summary.Updated++
		}
	}

	log.Info().Str("run", summary.RunID).Str("entity", entity).
		Int("created", summary.Created).Int("updated", summary.Updated).
		Int("deleted", summary.Deleted).Int("errors", len(summary.Errors)).
		Msg("Pull finished")
	return summary, nil
}

// LoadAll pulls every registered entity in registration order and keeps
// going past per-entity failures.
func (s *Session) LoadAll(ctx context.Context, deleteNotExisting bool) ([]*PullSummary, []error) {
	var summaries []*PullSummary
	var errs []error
	for _, entity := range s.reg.Entities() {
		if err := ctx.Err(); err != nil {
			return summaries, append(errs, err)
		}
		summary, err := s.Load(ctx, entity, nil, deleteNotExisting)
		if err != nil {
			log.Error().Err(err).Str("entity", entity).Msg("Failed to pull entity")
			errs = append(errs, fmt.Errorf("failed to pull %s: %w", entity, err))
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, errs
}

// deleteNotListed drops local rows of the entity whose remote id is not
// in keep. The deletions are local reconciliation, so the change stream
// is suspended around them.
func (s *Session) deleteNotListed(entity string, keep []int64) (int, error) {
	resume := s.store.SuspendEvents()
	defer resume()
	deleted, err := s.store.DeleteWhereCIDNotIn(s.setup.ID, entity, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune vanished rows: %w", err)
	}
	return int(deleted), nil
}
