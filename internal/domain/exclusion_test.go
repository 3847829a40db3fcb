package domain

import (
	"testing"
	"time"
)

func TestExclusionSetFirstReasonWins(t *testing.T) {
	s := NewExclusionSet()
	ref := Ref(EntityScene, "scene-1", "inst-1")

	if !s.Add(ref, ReasonHidden) {
		t.Fatal("first Add should report newly added")
	}
	if s.Add(ref, ReasonCascade) {
		t.Error("second Add for same ref should be dropped")
	}

	reason, ok := s.Reason(ref)
	if !ok {
		t.Fatal("ref should be present")
	}
	if reason != ReasonHidden {
		t.Errorf("reason: got %q, want %q", reason, ReasonHidden)
	}
	if s.Len() != 1 {
		t.Errorf("Len: got %d, want 1", s.Len())
	}
}

func TestExclusionSetInstanceScoping(t *testing.T) {
	s := NewExclusionSet()

	// Same type and ID from two instances are distinct entities.
	s.Add(Ref(EntityPerformer, "perf-1", "inst-a"), ReasonHidden)
	s.Add(Ref(EntityPerformer, "perf-1", "inst-b"), ReasonCascade)

	if s.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", s.Len())
	}
	if r, _ := s.Reason(Ref(EntityPerformer, "perf-1", "inst-b")); r != ReasonCascade {
		t.Errorf("inst-b reason: got %q, want cascade", r)
	}
}

func TestExclusionSetRecordsPreserveOrder(t *testing.T) {
	s := NewExclusionSet()
	refs := []EntityRef{
		Ref(EntityTag, "tag-1", "inst-1"),
		Ref(EntityScene, "scene-1", "inst-1"),
		Ref(EntityScene, "scene-2", "inst-1"),
	}
	reasons := []ExclusionReason{ReasonRestricted, ReasonCascade, ReasonCascade}
	for i, ref := range refs {
		s.Add(ref, reasons[i])
	}

	now := time.Now()
	records := s.Records("user-1", now)
	if len(records) != 3 {
		t.Fatalf("records: got %d, want 3", len(records))
	}
	for i, rec := range records {
		if rec.Ref() != refs[i] {
			t.Errorf("record %d: got %v, want %v", i, rec.Ref(), refs[i])
		}
		if rec.Reason != reasons[i] {
			t.Errorf("record %d reason: got %q, want %q", i, rec.Reason, reasons[i])
		}
		if rec.UserID != "user-1" {
			t.Errorf("record %d user: got %q", i, rec.UserID)
		}
		if !rec.CreatedAt.Equal(now) {
			t.Errorf("record %d created at: got %v", i, rec.CreatedAt)
		}
	}
}

func TestExclusionSetCountByType(t *testing.T) {
	s := NewExclusionSet()
	s.Add(Ref(EntityScene, "scene-1", "inst-1"), ReasonCascade)
	s.Add(Ref(EntityScene, "scene-2", "inst-1"), ReasonCascade)
	s.Add(Ref(EntityGallery, "gal-1", "inst-1"), ReasonEmpty)

	counts := s.CountByType()
	if counts[EntityScene] != 2 {
		t.Errorf("scene count: got %d, want 2", counts[EntityScene])
	}
	if counts[EntityGallery] != 1 {
		t.Errorf("gallery count: got %d, want 1", counts[EntityGallery])
	}
	if counts[EntityTag] != 0 {
		t.Errorf("tag count: got %d, want 0", counts[EntityTag])
	}
}

func TestReasonDirect(t *testing.T) {
	direct := []ExclusionReason{ReasonRestricted, ReasonHidden}
	derived := []ExclusionReason{ReasonCascade, ReasonEmpty}

	for _, r := range direct {
		if !r.Direct() {
			t.Errorf("%q should be direct", r)
		}
	}
	for _, r := range derived {
		if r.Direct() {
			t.Errorf("%q should not be direct", r)
		}
	}
}
