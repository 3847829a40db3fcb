package service

import (
	"context"

	"github.com/veilapp/veil-server/internal/domain"
)

// resolveDirect seeds set with the user's restriction- and hidden-derived
// exclusions. Restrictions are applied before hidden rows so an entity
// covered by both keeps the restricted reason.
func (s *VisibilityService) resolveDirect(ctx context.Context, userID string, set *domain.ExclusionSet) error {
	restrictions, err := s.store.ListContentRestrictions(ctx, userID)
	if err != nil {
		return err
	}
	for _, r := range restrictions {
		if err := s.applyRestriction(ctx, r, set); err != nil {
			return err
		}
	}

	hidden, err := s.store.ListHiddenEntities(ctx, userID)
	if err != nil {
		return err
	}
	for _, h := range hidden {
		set.Add(h.Ref(), domain.ReasonHidden)
	}
	return nil
}

func (s *VisibilityService) applyRestriction(ctx context.Context, r *domain.ContentRestriction, set *domain.ExclusionSet) error {
	ids, err := r.ParseEntityIDs()
	if err != nil {
		// One malformed restriction must not block the rebuild.
		s.logger.Warn("skipping restriction with malformed entity ids",
			"user_id", r.UserID,
			"entity_type", r.EntityType,
			"instance_id", r.InstanceID,
			"error", err,
		)
		return nil
	}

	listed := ids
	if r.EntityType.Hierarchical() && r.Depth != 0 {
		listed, err = s.expandHierarchy(ctx, r.EntityType, ids, r.InstanceID, r.Depth)
		if err != nil {
			return err
		}
	}

	switch r.Mode {
	case domain.RestrictionExclude:
		for _, id := range listed {
			set.Add(domain.Ref(r.EntityType, id, r.InstanceID), domain.ReasonRestricted)
		}
	case domain.RestrictionInclude:
		// Whitelist: exclude the universe minus the (expanded) listed set.
		universe, err := s.store.ListEntityIDs(ctx, r.EntityType, r.InstanceID)
		if err != nil {
			return err
		}
		allowed := make(map[string]struct{}, len(listed))
		for _, id := range listed {
			allowed[id] = struct{}{}
		}
		for _, id := range universe {
			if _, ok := allowed[id]; !ok {
				set.Add(domain.Ref(r.EntityType, id, r.InstanceID), domain.ReasonRestricted)
			}
		}
	default:
		s.logger.Warn("skipping restriction with unknown mode",
			"user_id", r.UserID,
			"entity_type", r.EntityType,
			"mode", r.Mode,
		)
	}
	return nil
}

// expandHierarchy widens a restriction's ID list down the tag or studio
// tree. Listed IDs that reference deleted entities fall out here: the
// recursive expansion only returns rows that exist.
func (s *VisibilityService) expandHierarchy(ctx context.Context, t domain.EntityType, ids []string, instanceID string, depth int) ([]string, error) {
	switch t {
	case domain.EntityTag:
		return s.store.ExpandTagHierarchy(ctx, ids, instanceID, depth)
	case domain.EntityStudio:
		return s.store.ExpandStudioHierarchy(ctx, ids, instanceID, depth)
	default:
		return ids, nil
	}
}
