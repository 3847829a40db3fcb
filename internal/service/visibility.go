package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/veilapp/veil-server/internal/config"
	"github.com/veilapp/veil-server/internal/domain"
	domainerrors "github.com/veilapp/veil-server/internal/errors"
	"github.com/veilapp/veil-server/internal/metrics"
	"github.com/veilapp/veil-server/internal/store"
	"github.com/veilapp/veil-server/internal/validation"
)

// VisibilityService is the content-visibility exclusion engine. It turns
// a user's facts (hidden entities, content restrictions) into the
// materialized exclusion set that browse queries filter against.
//
// The service is a stateless singleton over its store handle; the only
// state it owns is the per-user locks and the deferred recompute queue.
type VisibilityService struct {
	store     store.Store
	logger    *slog.Logger
	metrics   metrics.Recorder
	validator *validation.Validator

	// sweep paces RecomputeAllUsers so a large user list does not
	// monopolize the database.
	sweep *rate.Limiter

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	queue    chan string
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewVisibilityService creates the exclusion engine.
func NewVisibilityService(st store.Store, logger *slog.Logger, rec metrics.Recorder, cfg config.VisibilityConfig) *VisibilityService {
	queueSize := cfg.RecomputeQueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	rps := cfg.RecomputeAllRPS
	if rps <= 0 {
		rps = 4
	}
	burst := cfg.RecomputeAllBurst
	if burst <= 0 {
		burst = 1
	}

	return &VisibilityService{
		store:     st,
		logger:    logger,
		metrics:   rec,
		validator: validation.New(),
		sweep:     rate.NewLimiter(rate.Limit(rps), burst),
		locks:     make(map[string]*sync.Mutex),
		queue:     make(chan string, queueSize),
		done:      make(chan struct{}),
	}
}

// Start launches the deferred recompute worker.
func (s *VisibilityService) Start() {
	s.wg.Add(1)
	go s.worker()
}

// Stop shuts the worker down and waits for an in-flight recompute to
// finish. Queued jobs that have not started are dropped; the next full
// recompute heals whatever they would have rebuilt.
func (s *VisibilityService) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

func (s *VisibilityService) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case userID := <-s.queue:
			// Deferred-path errors are logged and swallowed; they never
			// reach the caller that enqueued the job.
			if err := s.recompute(context.Background(), userID, "deferred"); err != nil {
				s.logger.Error("deferred recompute failed",
					"user_id", userID,
					"error", err,
				)
			}
		}
	}
}

// enqueueRecompute schedules a full recompute for the user. If the queue
// is full, a one-off goroutine runs the job instead so the caller never
// blocks on a rebuild; Stop still waits for it through the wait group.
func (s *VisibilityService) enqueueRecompute(userID string) {
	select {
	case s.queue <- userID:
	default:
		s.logger.Warn("recompute queue full, spawning one-off worker", "user_id", userID)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.recompute(context.Background(), userID, "deferred"); err != nil {
				s.logger.Error("deferred recompute failed", "user_id", userID, "error", err)
			}
		}()
	}
}

// userLock returns the mutex serializing recomputes for one user. Two
// recomputes for the same user never interleave; last to commit wins is
// therefore also last to start.
func (s *VisibilityService) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// RecomputeForUser rebuilds the user's entire exclusion set from facts.
func (s *VisibilityService) RecomputeForUser(ctx context.Context, userID string) error {
	return s.recompute(ctx, userID, "full")
}

// RecomputeAllUsers rebuilds every user's exclusion set sequentially.
// A failed user does not stop the sweep; errors are joined.
func (s *VisibilityService) RecomputeAllUsers(ctx context.Context) error {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, u := range users {
		if err := s.sweep.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.recompute(ctx, u.ID, "sweep"); err != nil {
			s.logger.Error("sweep recompute failed", "user_id", u.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// recompute is the transactional full rebuild: direct facts, one-hop
// cascade, empty closure, one delete+insert transaction, stats.
func (s *VisibilityService) recompute(ctx context.Context, userID, trigger string) (err error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	defer func() {
		s.metrics.ObserveRecompute(trigger, time.Since(start), err)
	}()

	set := domain.NewExclusionSet()
	if err = s.resolveDirect(ctx, userID, set); err != nil {
		return err
	}
	if err = s.propagateCascade(ctx, set); err != nil {
		return err
	}
	empties, err := s.resolveEmpty(ctx, set)
	if err != nil {
		return err
	}

	now := time.Now()
	emptyRecords := make([]domain.ExclusionRecord, 0, len(empties))
	for _, ref := range empties {
		emptyRecords = append(emptyRecords, domain.ExclusionRecord{
			UserID:     userID,
			EntityType: ref.Type,
			EntityID:   ref.ID,
			InstanceID: ref.InstanceID,
			Reason:     domain.ReasonEmpty,
			CreatedAt:  now,
		})
	}

	// Two sequential batch inserts share one transaction; readers see
	// either the old set or the complete new one.
	rebuild, err := s.store.BeginExclusionRebuild(ctx, userID)
	if err != nil {
		return err
	}
	if err = rebuild.Insert(ctx, set.Records(userID, now)); err != nil {
		rebuild.Rollback()
		return err
	}
	if err = rebuild.Insert(ctx, emptyRecords); err != nil {
		rebuild.Rollback()
		return err
	}
	if err = rebuild.Commit(); err != nil {
		return err
	}

	for _, ref := range empties {
		set.Add(ref, domain.ReasonEmpty)
	}
	counts := set.CountByType()

	// Stats failures do not undo a committed rebuild.
	if statsErr := s.store.UpsertExclusionStats(ctx, userID, counts); statsErr != nil {
		s.logger.Warn("failed to persist exclusion stats", "user_id", userID, "error", statsErr)
	}
	s.metrics.SetExcludedEntities(userID, counts)

	s.logger.Info("recomputed exclusions",
		"user_id", userID,
		"trigger", trigger,
		"total", set.Len(),
		"duration", time.Since(start),
	)
	return nil
}

// AddHiddenEntity records a manually hidden item and applies its one-hop
// cascade immediately. The empty closure is deliberately not run here;
// hiding one entity may newly empty a sibling, but that is deferred to
// the next full recompute for latency.
func (s *VisibilityService) AddHiddenEntity(ctx context.Context, userID string, ref domain.EntityRef) error {
	if !ref.Type.Valid() {
		return domainerrors.Validationf("unknown entity type %q", ref.Type)
	}
	if ref.ID == "" || ref.InstanceID == "" {
		return domainerrors.Validation("entity id and instance id are required")
	}

	now := time.Now()
	if err := s.store.UpsertHiddenEntity(ctx, &domain.HiddenEntity{
		UserID:     userID,
		EntityType: ref.Type,
		EntityID:   ref.ID,
		InstanceID: ref.InstanceID,
		CreatedAt:  now,
	}); err != nil {
		return err
	}
	if err := s.store.UpsertDirectExclusion(ctx, domain.ExclusionRecord{
		UserID:     userID,
		EntityType: ref.Type,
		EntityID:   ref.ID,
		InstanceID: ref.InstanceID,
		Reason:     domain.ReasonHidden,
		CreatedAt:  now,
	}); err != nil {
		return err
	}

	// One-hop cascade from this entity only, skip-if-present. Inserts
	// are monotonic, so a partial batch is a self-healing state.
	set := domain.NewExclusionSet()
	set.Add(ref, domain.ReasonHidden)
	if err := s.cascadeFrom(ctx, ref, set); err != nil {
		return err
	}
	records := set.Records(userID, now)
	if err := s.store.InsertExclusionsIfAbsent(ctx, records[1:]); err != nil {
		return err
	}
	s.refreshStats(ctx, userID)

	s.logger.Info("hidden entity added",
		"user_id", userID,
		"entity_type", ref.Type,
		"entity_id", ref.ID,
		"cascaded", len(records)-1,
	)
	return nil
}

// refreshStats recounts the materialized set from the store and
// republishes per-type stats. The synchronous hide path skips the full
// rebuild, so the stored counts would otherwise lag until the next
// recompute. Failures are logged and swallowed.
func (s *VisibilityService) refreshStats(ctx context.Context, userID string) {
	counts, err := s.store.CountExclusionsByType(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to count exclusions", "user_id", userID, "error", err)
		return
	}
	if err := s.store.UpsertExclusionStats(ctx, userID, counts); err != nil {
		s.logger.Warn("failed to persist exclusion stats", "user_id", userID, "error", err)
		return
	}
	s.metrics.SetExcludedEntities(userID, counts)
}

// RemoveHiddenEntity deletes the hidden fact and its direct record, then
// defers a full recompute: undoing a hide can resurrect cascade- and
// empty-derived rows elsewhere, which only a full rebuild resolves.
func (s *VisibilityService) RemoveHiddenEntity(ctx context.Context, userID string, ref domain.EntityRef) error {
	if !ref.Type.Valid() {
		return domainerrors.Validationf("unknown entity type %q", ref.Type)
	}

	if err := s.store.DeleteHiddenEntity(ctx, userID, ref); err != nil {
		return err
	}
	if err := s.store.DeleteExclusion(ctx, userID, ref); err != nil {
		return err
	}

	s.enqueueRecompute(userID)

	s.logger.Info("hidden entity removed, recompute deferred",
		"user_id", userID,
		"entity_type", ref.Type,
		"entity_id", ref.ID,
	)
	return nil
}

// ListHiddenEntities returns the user's hidden-entity facts.
func (s *VisibilityService) ListHiddenEntities(ctx context.Context, userID string) ([]*domain.HiddenEntity, error) {
	return s.store.ListHiddenEntities(ctx, userID)
}

// RestrictionInput is the caller-facing shape of a content restriction.
type RestrictionInput struct {
	EntityType string   `json:"entity_type" validate:"required"`
	InstanceID string   `json:"instance_id" validate:"required"`
	Mode       string   `json:"mode" validate:"required,oneof=EXCLUDE INCLUDE"`
	// An empty list is meaningful: INCLUDE with no allowed IDs hides
	// every entity of the type.
	EntityIDs []string `json:"entity_ids"`
	Depth     int      `json:"depth" validate:"gte=-1"`
}

// SetContentRestriction creates or replaces the restriction for one
// (user, type, instance) key and synchronously rebuilds the user's set.
func (s *VisibilityService) SetContentRestriction(ctx context.Context, userID string, in RestrictionInput) (*domain.ContentRestriction, error) {
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}
	t := domain.EntityType(in.EntityType)
	if !t.Restrictable() {
		return nil, domainerrors.Validationf("entity type %q cannot be restricted", in.EntityType)
	}

	encoded, err := domain.EncodeEntityIDs(in.EntityIDs)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	restriction := &domain.ContentRestriction{
		UserID:     userID,
		EntityType: t,
		InstanceID: in.InstanceID,
		Mode:       domain.RestrictionMode(in.Mode),
		EntityIDs:  encoded,
		Depth:      in.Depth,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.UpsertContentRestriction(ctx, restriction); err != nil {
		return nil, err
	}

	// A policy change invalidates the whole set; rebuild synchronously
	// so the caller observes the new visibility.
	if err := s.RecomputeForUser(ctx, userID); err != nil {
		return nil, err
	}
	return restriction, nil
}

// GetContentRestriction returns the restriction for one (user, type,
// instance) key.
func (s *VisibilityService) GetContentRestriction(ctx context.Context, userID string, t domain.EntityType, instanceID string) (*domain.ContentRestriction, error) {
	return s.store.GetContentRestriction(ctx, userID, t, instanceID)
}

// ListContentRestrictions returns all of the user's restrictions.
func (s *VisibilityService) ListContentRestrictions(ctx context.Context, userID string) ([]*domain.ContentRestriction, error) {
	return s.store.ListContentRestrictions(ctx, userID)
}

// DeleteContentRestriction removes the restriction and synchronously
// rebuilds the user's set.
func (s *VisibilityService) DeleteContentRestriction(ctx context.Context, userID string, t domain.EntityType, instanceID string) error {
	if err := s.store.DeleteContentRestriction(ctx, userID, t, instanceID); err != nil {
		return err
	}
	return s.RecomputeForUser(ctx, userID)
}

// ListExclusions returns the user's materialized exclusion set.
func (s *VisibilityService) ListExclusions(ctx context.Context, userID string) ([]domain.ExclusionRecord, error) {
	return s.store.ListExclusions(ctx, userID)
}

// ExclusionStats returns the per-type counts written by the last rebuild.
func (s *VisibilityService) ExclusionStats(ctx context.Context, userID string) (map[domain.EntityType]int, error) {
	return s.store.GetExclusionStats(ctx, userID)
}
