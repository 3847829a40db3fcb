package service

import (
	"context"

	"github.com/veilapp/veil-server/internal/domain"
)

// resolveEmpty finds container entities whose entire content the direct
// and cascade passes just excluded. It is a single pass: every check
// consults set as it stood on entry, and the found refs are returned
// rather than added, so an entity emptied only by another empty entity
// stays visible until the next rebuild.
//
// An entity with no content at all counts as empty.
func (s *VisibilityService) resolveEmpty(ctx context.Context, set *domain.ExclusionSet) ([]domain.EntityRef, error) {
	var empties []domain.EntityRef

	galleries, err := s.store.ListEntityRefs(ctx, domain.EntityGallery)
	if err != nil {
		return nil, err
	}
	for _, g := range galleries {
		if set.Has(g) {
			continue
		}
		images, err := s.store.ImagesForGallery(ctx, g.ID, g.InstanceID)
		if err != nil {
			return nil, err
		}
		if allExcluded(set, domain.EntityImage, images, g.InstanceID) {
			empties = append(empties, g)
		}
	}

	performers, err := s.store.ListEntityRefs(ctx, domain.EntityPerformer)
	if err != nil {
		return nil, err
	}
	for _, p := range performers {
		if set.Has(p) {
			continue
		}
		empty, err := s.performerlikeEmpty(ctx, set, p)
		if err != nil {
			return nil, err
		}
		if empty {
			empties = append(empties, p)
		}
	}

	studios, err := s.store.ListEntityRefs(ctx, domain.EntityStudio)
	if err != nil {
		return nil, err
	}
	for _, st := range studios {
		if set.Has(st) {
			continue
		}
		empty, err := s.performerlikeEmpty(ctx, set, st)
		if err != nil {
			return nil, err
		}
		if empty {
			empties = append(empties, st)
		}
	}

	groups, err := s.store.ListEntityRefs(ctx, domain.EntityGroup)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if set.Has(g) {
			continue
		}
		scenes, err := s.store.ScenesForGroup(ctx, g.ID, g.InstanceID)
		if err != nil {
			return nil, err
		}
		if allExcluded(set, domain.EntityScene, scenes, g.InstanceID) {
			empties = append(empties, g)
		}
	}

	tags, err := s.store.ListEntityRefs(ctx, domain.EntityTag)
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		if set.Has(t) {
			continue
		}
		empty, err := s.tagEmpty(ctx, set, t)
		if err != nil {
			return nil, err
		}
		if empty {
			empties = append(empties, t)
		}
	}

	return empties, nil
}

// performerlikeEmpty reports whether a performer or studio has neither a
// visible scene nor a visible image. Performers use the appearance
// junctions; studios use scene ownership plus the studio-image junction.
func (s *VisibilityService) performerlikeEmpty(ctx context.Context, set *domain.ExclusionSet, ref domain.EntityRef) (bool, error) {
	var (
		scenes, images []string
		err            error
	)
	switch ref.Type {
	case domain.EntityPerformer:
		scenes, err = s.store.ScenesForPerformer(ctx, ref.ID, ref.InstanceID)
		if err != nil {
			return false, err
		}
		images, err = s.store.ImagesForPerformer(ctx, ref.ID, ref.InstanceID)
	case domain.EntityStudio:
		scenes, err = s.store.ScenesForStudio(ctx, ref.ID, ref.InstanceID)
		if err != nil {
			return false, err
		}
		images, err = s.store.ImagesForStudio(ctx, ref.ID, ref.InstanceID)
	}
	if err != nil {
		return false, err
	}
	return allExcluded(set, domain.EntityScene, scenes, ref.InstanceID) &&
		allExcluded(set, domain.EntityImage, images, ref.InstanceID), nil
}

// tagEmpty reports whether a tag is no longer directly attached to any
// visible scene, performer, studio, or group. Inherited scene tagging
// does not keep a tag alive; only direct attachments count here.
func (s *VisibilityService) tagEmpty(ctx context.Context, set *domain.ExclusionSet, ref domain.EntityRef) (bool, error) {
	scenes, err := s.store.ScenesTaggedWith(ctx, ref.ID, ref.InstanceID)
	if err != nil {
		return false, err
	}
	if !allExcluded(set, domain.EntityScene, scenes, ref.InstanceID) {
		return false, nil
	}

	performers, err := s.store.PerformersTaggedWith(ctx, ref.ID, ref.InstanceID)
	if err != nil {
		return false, err
	}
	if !allExcluded(set, domain.EntityPerformer, performers, ref.InstanceID) {
		return false, nil
	}

	studios, err := s.store.StudiosTaggedWith(ctx, ref.ID, ref.InstanceID)
	if err != nil {
		return false, err
	}
	if !allExcluded(set, domain.EntityStudio, studios, ref.InstanceID) {
		return false, nil
	}

	groups, err := s.store.GroupsTaggedWith(ctx, ref.ID, ref.InstanceID)
	if err != nil {
		return false, err
	}
	return allExcluded(set, domain.EntityGroup, groups, ref.InstanceID), nil
}

// allExcluded reports whether every listed ID is in the set. An empty
// list is vacuously all-excluded.
func allExcluded(set *domain.ExclusionSet, t domain.EntityType, ids []string, instanceID string) bool {
	for _, id := range ids {
		if !set.Has(domain.Ref(t, id, instanceID)) {
			return false
		}
	}
	return true
}
