package service

import (
	"context"

	"github.com/veilapp/veil-server/internal/domain"
)

// propagateCascade adds every entity one relation hop away from the
// direct exclusions in set. It iterates a snapshot of the direct refs:
// cascade-derived entries never cascade again.
func (s *VisibilityService) propagateCascade(ctx context.Context, set *domain.ExclusionSet) error {
	for _, ref := range set.Refs() {
		if err := s.cascadeFrom(ctx, ref, set); err != nil {
			return err
		}
	}
	return nil
}

// cascadeFrom applies the per-type propagation rules for a single
// excluded entity. Scenes and images are leaves and propagate nothing.
func (s *VisibilityService) cascadeFrom(ctx context.Context, ref domain.EntityRef, set *domain.ExclusionSet) error {
	switch ref.Type {
	case domain.EntityPerformer:
		scenes, err := s.store.ScenesForPerformer(ctx, ref.ID, ref.InstanceID)
		if err != nil {
			return err
		}
		addCascade(set, domain.EntityScene, scenes, ref.InstanceID)

	case domain.EntityStudio:
		scenes, err := s.store.ScenesForStudio(ctx, ref.ID, ref.InstanceID)
		if err != nil {
			return err
		}
		addCascade(set, domain.EntityScene, scenes, ref.InstanceID)

	case domain.EntityTag:
		direct, err := s.store.ScenesTaggedWith(ctx, ref.ID, ref.InstanceID)
		if err != nil {
			return err
		}
		addCascade(set, domain.EntityScene, direct, ref.InstanceID)

		inherited, err := s.store.ScenesInheritingTag(ctx, ref.ID, ref.InstanceID)
		if err != nil {
			return err
		}
		addCascade(set, domain.EntityScene, inherited, ref.InstanceID)

		performers, err := s.store.PerformersTaggedWith(ctx, ref.ID, ref.InstanceID)
		if err != nil {
			return err
		}
		addCascade(set, domain.EntityPerformer, performers, ref.InstanceID)

		studios, err := s.store.StudiosTaggedWith(ctx, ref.ID, ref.InstanceID)
		if err != nil {
			return err
		}
		addCascade(set, domain.EntityStudio, studios, ref.InstanceID)

		groups, err := s.store.GroupsTaggedWith(ctx, ref.ID, ref.InstanceID)
		if err != nil {
			return err
		}
		addCascade(set, domain.EntityGroup, groups, ref.InstanceID)

	case domain.EntityGroup:
		scenes, err := s.store.ScenesForGroup(ctx, ref.ID, ref.InstanceID)
		if err != nil {
			return err
		}
		addCascade(set, domain.EntityScene, scenes, ref.InstanceID)

	case domain.EntityGallery:
		scenes, err := s.store.ScenesForGallery(ctx, ref.ID, ref.InstanceID)
		if err != nil {
			return err
		}
		addCascade(set, domain.EntityScene, scenes, ref.InstanceID)

		images, err := s.store.ImagesForGallery(ctx, ref.ID, ref.InstanceID)
		if err != nil {
			return err
		}
		addCascade(set, domain.EntityImage, images, ref.InstanceID)

	case domain.EntityScene, domain.EntityImage:
		// Leaf types.
	}
	return nil
}

func addCascade(set *domain.ExclusionSet, t domain.EntityType, ids []string, instanceID string) {
	for _, id := range ids {
		set.Add(domain.Ref(t, id, instanceID), domain.ReasonCascade)
	}
}
