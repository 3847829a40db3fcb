package domain

import "time"

// ExclusionReason records why an entity is excluded from a user's view.
type ExclusionReason string

const (
	// ReasonRestricted marks entities named (or implied, for whitelist
	// restrictions) by a content restriction.
	ReasonRestricted ExclusionReason = "restricted"
	// ReasonHidden marks entities the user hid individually.
	ReasonHidden ExclusionReason = "hidden"
	// ReasonCascade marks entities reached one relation hop away from a
	// directly excluded entity.
	ReasonCascade ExclusionReason = "cascade"
	// ReasonEmpty marks entities left with no visible content after the
	// direct and cascade passes.
	ReasonEmpty ExclusionReason = "empty"
)

// Direct reports whether the reason came from a user fact rather than
// a derived pass. Direct reasons are never overwritten.
func (r ExclusionReason) Direct() bool {
	return r == ReasonRestricted || r == ReasonHidden
}

// ExclusionRecord is one row of the materialized exclusion set.
// At most one record exists per (user, type, id, instance); the store
// enforces this as the natural key.
type ExclusionRecord struct {
	UserID     string          `json:"user_id"`
	EntityType EntityType      `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	InstanceID string          `json:"instance_id"`
	Reason     ExclusionReason `json:"reason"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Ref returns the entity reference this record excludes.
func (r ExclusionRecord) Ref() EntityRef {
	return EntityRef{Type: r.EntityType, ID: r.EntityID, InstanceID: r.InstanceID}
}

// ExclusionSet accumulates the exclusions for one recompute run.
//
// The first reason written for a ref wins and later writes are dropped.
// Reason priority falls out of insert order: the direct pass runs before
// cascade, which runs before the empty closure, so an entity that is both
// directly hidden and cascade-reachable keeps its direct reason without
// any reconciliation pass. Insertion order is preserved so batch inserts
// are deterministic.
type ExclusionSet struct {
	reasons map[EntityRef]ExclusionReason
	order   []EntityRef
}

// NewExclusionSet creates an empty exclusion set.
func NewExclusionSet() *ExclusionSet {
	return &ExclusionSet{reasons: make(map[EntityRef]ExclusionReason)}
}

// Add records ref with the given reason unless ref is already present.
// It returns true if the ref was newly added.
func (s *ExclusionSet) Add(ref EntityRef, reason ExclusionReason) bool {
	if _, ok := s.reasons[ref]; ok {
		return false
	}
	s.reasons[ref] = reason
	s.order = append(s.order, ref)
	return true
}

// Has reports whether ref is excluded.
func (s *ExclusionSet) Has(ref EntityRef) bool {
	_, ok := s.reasons[ref]
	return ok
}

// Reason returns the recorded reason for ref.
func (s *ExclusionSet) Reason(ref EntityRef) (ExclusionReason, bool) {
	r, ok := s.reasons[ref]
	return r, ok
}

// Len returns the number of excluded entities.
func (s *ExclusionSet) Len() int {
	return len(s.reasons)
}

// Refs returns the excluded refs in insertion order.
func (s *ExclusionSet) Refs() []EntityRef {
	refs := make([]EntityRef, len(s.order))
	copy(refs, s.order)
	return refs
}

// Records materializes the set as exclusion records for userID,
// in insertion order.
func (s *ExclusionSet) Records(userID string, now time.Time) []ExclusionRecord {
	records := make([]ExclusionRecord, 0, len(s.order))
	for _, ref := range s.order {
		records = append(records, ExclusionRecord{
			UserID:     userID,
			EntityType: ref.Type,
			EntityID:   ref.ID,
			InstanceID: ref.InstanceID,
			Reason:     s.reasons[ref],
			CreatedAt:  now,
		})
	}
	return records
}

// CountByType returns per-type totals, used by the stats sink.
func (s *ExclusionSet) CountByType() map[EntityType]int {
	counts := make(map[EntityType]int)
	for ref := range s.reasons {
		counts[ref.Type]++
	}
	return counts
}
