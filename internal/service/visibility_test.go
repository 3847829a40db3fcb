package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilapp/veil-server/internal/config"
	"github.com/veilapp/veil-server/internal/domain"
	domainerrors "github.com/veilapp/veil-server/internal/errors"
	"github.com/veilapp/veil-server/internal/id"
	"github.com/veilapp/veil-server/internal/metrics"
	"github.com/veilapp/veil-server/internal/store"
	"github.com/veilapp/veil-server/internal/store/sqlite"
)

// setupVisibilityTest creates a visibility service backed by a temporary
// on-disk store.
func setupVisibilityTest(t *testing.T) (*VisibilityService, store.Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "veil-visibility-test-*")
	require.NoError(t, err)

	s, err := sqlite.Open(filepath.Join(tmpDir, "test.db"), nil)
	require.NoError(t, err)

	logger := slog.New(slog.DiscardHandler)
	svc := NewVisibilityService(s, logger, metrics.NopRecorder{}, config.VisibilityConfig{
		RecomputeQueueSize: 8,
		RecomputeAllRPS:    1000,
		RecomputeAllBurst:  10,
	})

	cleanup := func() {
		svc.Stop()
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}
	return svc, s, cleanup
}

func createTestUser(t *testing.T, s store.Store, name string) *domain.User {
	t.Helper()

	userID, err := id.Generate("usr")
	require.NoError(t, err)

	now := time.Now()
	user := &domain.User{ID: userID, Name: name, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func seedTestInstance(t *testing.T, s store.Store, instanceID string) {
	t.Helper()

	now := time.Now()
	require.NoError(t, s.CreateInstance(context.Background(), &domain.Instance{
		ID:        instanceID,
		Name:      "test instance",
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

// graphBuilder seeds entities and links through the store with less noise.
type graphBuilder struct {
	t          *testing.T
	s          store.Store
	instanceID string
}

func newGraph(t *testing.T, s store.Store, instanceID string) *graphBuilder {
	t.Helper()
	seedTestInstance(t, s, instanceID)
	return &graphBuilder{t: t, s: s, instanceID: instanceID}
}

func (g *graphBuilder) scene(id, studioID string) {
	g.t.Helper()
	now := time.Now()
	require.NoError(g.t, g.s.CreateScene(context.Background(), &domain.Scene{
		ID: id, InstanceID: g.instanceID, Title: id, StudioID: studioID,
		CreatedAt: now, UpdatedAt: now,
	}))
}

func (g *graphBuilder) performer(id string) {
	g.t.Helper()
	now := time.Now()
	require.NoError(g.t, g.s.CreatePerformer(context.Background(), &domain.Performer{
		ID: id, InstanceID: g.instanceID, Name: id, CreatedAt: now, UpdatedAt: now,
	}))
}

func (g *graphBuilder) studio(id, parentID string) {
	g.t.Helper()
	now := time.Now()
	require.NoError(g.t, g.s.CreateStudio(context.Background(), &domain.Studio{
		ID: id, InstanceID: g.instanceID, Name: id, ParentID: parentID,
		CreatedAt: now, UpdatedAt: now,
	}))
}

func (g *graphBuilder) tag(id, parentID string) {
	g.t.Helper()
	now := time.Now()
	require.NoError(g.t, g.s.CreateTag(context.Background(), &domain.Tag{
		ID: id, InstanceID: g.instanceID, Name: id, ParentID: parentID,
		CreatedAt: now, UpdatedAt: now,
	}))
}

func (g *graphBuilder) group(id string) {
	g.t.Helper()
	now := time.Now()
	require.NoError(g.t, g.s.CreateGroup(context.Background(), &domain.Group{
		ID: id, InstanceID: g.instanceID, Name: id, CreatedAt: now, UpdatedAt: now,
	}))
}

func (g *graphBuilder) gallery(id string) {
	g.t.Helper()
	now := time.Now()
	require.NoError(g.t, g.s.CreateGallery(context.Background(), &domain.Gallery{
		ID: id, InstanceID: g.instanceID, Title: id, CreatedAt: now, UpdatedAt: now,
	}))
}

func (g *graphBuilder) image(id string) {
	g.t.Helper()
	now := time.Now()
	require.NoError(g.t, g.s.CreateImage(context.Background(), &domain.Image{
		ID: id, InstanceID: g.instanceID, Title: id, CreatedAt: now, UpdatedAt: now,
	}))
}

func (g *graphBuilder) ref(t domain.EntityType, id string) domain.EntityRef {
	return domain.Ref(t, id, g.instanceID)
}

// exclusionsByRef loads a user's exclusion set keyed by entity ref.
func exclusionsByRef(t *testing.T, s store.Store, userID string) map[domain.EntityRef]domain.ExclusionReason {
	t.Helper()

	records, err := s.ListExclusions(context.Background(), userID)
	require.NoError(t, err)

	out := make(map[domain.EntityRef]domain.ExclusionReason, len(records))
	for _, r := range records {
		out[r.Ref()] = r.Reason
	}
	return out
}

func TestAddHiddenEntity_PerformerCascadesToScenes(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.performer("perf1")
	g.scene("scene1", "")
	g.scene("scene2", "")
	require.NoError(t, s.SetScenePerformers(ctx, "scene1", "inst-1", []string{"perf1"}))
	require.NoError(t, s.SetScenePerformers(ctx, "scene2", "inst-1", []string{"perf1"}))

	err := svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityPerformer, "perf1"))
	require.NoError(t, err)

	want := map[domain.EntityRef]domain.ExclusionReason{
		g.ref(domain.EntityPerformer, "perf1"): domain.ReasonHidden,
		g.ref(domain.EntityScene, "scene1"):    domain.ReasonCascade,
		g.ref(domain.EntityScene, "scene2"):    domain.ReasonCascade,
	}
	assert.Equal(t, want, exclusionsByRef(t, s, user.ID))

	// A full rebuild from the same facts lands on the same set.
	require.NoError(t, svc.RecomputeForUser(ctx, user.ID))
	assert.Equal(t, want, exclusionsByRef(t, s, user.ID))
}

func TestRecompute_Idempotent(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.performer("perf1")
	g.scene("scene1", "")
	require.NoError(t, s.SetScenePerformers(ctx, "scene1", "inst-1", []string{"perf1"}))
	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityPerformer, "perf1")))

	require.NoError(t, svc.RecomputeForUser(ctx, user.ID))
	first := exclusionsByRef(t, s, user.ID)

	require.NoError(t, svc.RecomputeForUser(ctx, user.ID))
	assert.Equal(t, first, exclusionsByRef(t, s, user.ID))
}

func TestRecompute_TagRestrictionCascade(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")

	// tag1 tags scene1 directly and is inherited onto scene2 through its
	// child tag2. It also tags perf1, studio1, and group1 directly.
	g.tag("tag1", "")
	g.tag("tag2", "tag1")
	g.studio("studio1", "")
	g.scene("scene1", "")
	g.scene("scene2", "")
	g.scene("scene3", "")
	g.performer("perf1")
	g.performer("perf2")
	g.group("group1")
	require.NoError(t, s.SetSceneTags(ctx, "scene1", "inst-1", []string{"tag1"}))
	require.NoError(t, s.SetSceneTags(ctx, "scene2", "inst-1", []string{"tag2"}))
	require.NoError(t, s.SetPerformerTags(ctx, "perf1", "inst-1", []string{"tag1"}))
	require.NoError(t, s.SetStudioTags(ctx, "studio1", "inst-1", []string{"tag1"}))
	require.NoError(t, s.SetGroupTags(ctx, "group1", "inst-1", []string{"tag1"}))
	// Visible anchors so perf2, tag2, studio content checks do not trip
	// the empty closure: scene3 stays visible and keeps them alive.
	require.NoError(t, s.SetScenePerformers(ctx, "scene3", "inst-1", []string{"perf2"}))
	require.NoError(t, s.SetPerformerTags(ctx, "perf2", "inst-1", []string{"tag2"}))

	_, err := svc.SetContentRestriction(ctx, user.ID, RestrictionInput{
		EntityType: "tag",
		InstanceID: "inst-1",
		Mode:       "EXCLUDE",
		EntityIDs:  []string{"tag1"},
		Depth:      0,
	})
	require.NoError(t, err)

	want := map[domain.EntityRef]domain.ExclusionReason{
		g.ref(domain.EntityTag, "tag1"):        domain.ReasonRestricted,
		g.ref(domain.EntityScene, "scene1"):    domain.ReasonCascade,
		g.ref(domain.EntityScene, "scene2"):    domain.ReasonCascade,
		g.ref(domain.EntityPerformer, "perf1"): domain.ReasonCascade,
		g.ref(domain.EntityStudio, "studio1"):  domain.ReasonCascade,
		g.ref(domain.EntityGroup, "group1"):    domain.ReasonCascade,
	}
	assert.Equal(t, want, exclusionsByRef(t, s, user.ID))
}

func TestRecompute_CascadeNeverChains(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")

	// Hiding perf1 cascades to scene1. scene1 belongs to gallery1, but a
	// cascade-excluded scene must not cascade onward to its gallery.
	g.performer("perf1")
	g.performer("perf2")
	g.scene("scene1", "")
	g.scene("scene2", "")
	g.gallery("gallery1")
	g.image("img1")
	require.NoError(t, s.SetScenePerformers(ctx, "scene1", "inst-1", []string{"perf1"}))
	require.NoError(t, s.SetScenePerformers(ctx, "scene2", "inst-1", []string{"perf2"}))
	require.NoError(t, s.SetSceneGalleries(ctx, "scene1", "inst-1", []string{"gallery1"}))
	// gallery1 keeps a visible image so the empty closure leaves it alone.
	require.NoError(t, s.SetGalleryImages(ctx, "gallery1", "inst-1", []string{"img1"}))
	require.NoError(t, s.SetPerformerImages(ctx, "perf2", "inst-1", []string{"img1"}))

	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityPerformer, "perf1")))
	require.NoError(t, svc.RecomputeForUser(ctx, user.ID))

	got := exclusionsByRef(t, s, user.ID)
	assert.Equal(t, domain.ReasonHidden, got[g.ref(domain.EntityPerformer, "perf1")])
	assert.Equal(t, domain.ReasonCascade, got[g.ref(domain.EntityScene, "scene1")])
	assert.NotContains(t, got, g.ref(domain.EntityGallery, "gallery1"))
	assert.NotContains(t, got, g.ref(domain.EntityScene, "scene2"))
}

func TestRecompute_CascadeFromMultipleSourcesDedups(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.studio("studio1", "")
	g.performer("perf1")
	g.scene("scene1", "studio1")
	require.NoError(t, s.SetScenePerformers(ctx, "scene1", "inst-1", []string{"perf1"}))

	// scene1 is cascade-reachable from two hidden parents; it must
	// materialize as a single row.
	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityPerformer, "perf1")))
	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityStudio, "studio1")))
	require.NoError(t, svc.RecomputeForUser(ctx, user.ID))

	// Raw rows, not the ref-keyed map: a duplicate would collapse there.
	records, err := s.ListExclusions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)

	sceneRows := 0
	for _, rec := range records {
		if rec.EntityType == domain.EntityScene && rec.EntityID == "scene1" {
			sceneRows++
			assert.Equal(t, domain.ReasonCascade, rec.Reason)
		}
	}
	assert.Equal(t, 1, sceneRows)
}

func TestRecompute_IncludeModeInvertsUniverse(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.performer("perf1")
	g.performer("perf2")
	g.performer("perf3")
	g.scene("scene1", "")
	g.scene("scene2", "")
	g.scene("scene3", "")
	require.NoError(t, s.SetScenePerformers(ctx, "scene1", "inst-1", []string{"perf1"}))
	require.NoError(t, s.SetScenePerformers(ctx, "scene2", "inst-1", []string{"perf2"}))
	require.NoError(t, s.SetScenePerformers(ctx, "scene3", "inst-1", []string{"perf3"}))

	_, err := svc.SetContentRestriction(ctx, user.ID, RestrictionInput{
		EntityType: "performer",
		InstanceID: "inst-1",
		Mode:       "INCLUDE",
		EntityIDs:  []string{"perf1"},
	})
	require.NoError(t, err)

	want := map[domain.EntityRef]domain.ExclusionReason{
		g.ref(domain.EntityPerformer, "perf2"): domain.ReasonRestricted,
		g.ref(domain.EntityPerformer, "perf3"): domain.ReasonRestricted,
		g.ref(domain.EntityScene, "scene2"):    domain.ReasonCascade,
		g.ref(domain.EntityScene, "scene3"):    domain.ReasonCascade,
	}
	assert.Equal(t, want, exclusionsByRef(t, s, user.ID))
}

func TestSetContentRestriction_IncludeEmptyListHidesType(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.performer("perf1")
	g.performer("perf2")
	g.scene("scene1", "")
	require.NoError(t, s.SetScenePerformers(ctx, "scene1", "inst-1", []string{"perf1"}))

	// INCLUDE with no allowed IDs: the whole type disappears.
	_, err := svc.SetContentRestriction(ctx, user.ID, RestrictionInput{
		EntityType: "performer",
		InstanceID: "inst-1",
		Mode:       "INCLUDE",
		EntityIDs:  nil,
	})
	require.NoError(t, err)

	want := map[domain.EntityRef]domain.ExclusionReason{
		g.ref(domain.EntityPerformer, "perf1"): domain.ReasonRestricted,
		g.ref(domain.EntityPerformer, "perf2"): domain.ReasonRestricted,
		g.ref(domain.EntityScene, "scene1"):    domain.ReasonCascade,
	}
	assert.Equal(t, want, exclusionsByRef(t, s, user.ID))
}

func TestRecompute_RestrictionDepthExpansion(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.tag("root", "")
	g.tag("child", "root")
	g.tag("grand", "child")
	g.scene("scene1", "")
	g.scene("scene2", "")
	g.scene("scene3", "")
	g.performer("perf1")
	require.NoError(t, s.SetSceneTags(ctx, "scene1", "inst-1", []string{"child"}))
	require.NoError(t, s.SetSceneTags(ctx, "scene2", "inst-1", []string{"grand"}))
	// grand keeps a visible attachment (perf1, anchored by scene3) so a
	// depth-limited restriction leaves it out rather than the empty
	// closure sweeping it up.
	require.NoError(t, s.SetPerformerTags(ctx, "perf1", "inst-1", []string{"grand"}))
	require.NoError(t, s.SetScenePerformers(ctx, "scene3", "inst-1", []string{"perf1"}))

	// Depth 1 reaches the child but not the grandchild.
	_, err := svc.SetContentRestriction(ctx, user.ID, RestrictionInput{
		EntityType: "tag",
		InstanceID: "inst-1",
		Mode:       "EXCLUDE",
		EntityIDs:  []string{"root"},
		Depth:      1,
	})
	require.NoError(t, err)

	got := exclusionsByRef(t, s, user.ID)
	assert.Equal(t, domain.ReasonRestricted, got[g.ref(domain.EntityTag, "root")])
	assert.Equal(t, domain.ReasonRestricted, got[g.ref(domain.EntityTag, "child")])
	assert.NotContains(t, got, g.ref(domain.EntityTag, "grand"))

	// Unlimited depth reaches the whole subtree.
	_, err = svc.SetContentRestriction(ctx, user.ID, RestrictionInput{
		EntityType: "tag",
		InstanceID: "inst-1",
		Mode:       "EXCLUDE",
		EntityIDs:  []string{"root"},
		Depth:      -1,
	})
	require.NoError(t, err)

	got = exclusionsByRef(t, s, user.ID)
	assert.Equal(t, domain.ReasonRestricted, got[g.ref(domain.EntityTag, "grand")])
}

func TestRecompute_ReasonPriority(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.performer("perf1")
	g.scene("scene1", "")
	require.NoError(t, s.SetScenePerformers(ctx, "scene1", "inst-1", []string{"perf1"}))

	// scene1 is both individually hidden and cascade-reachable from
	// perf1; the direct reason must win.
	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityScene, "scene1")))
	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityPerformer, "perf1")))
	require.NoError(t, svc.RecomputeForUser(ctx, user.ID))

	got := exclusionsByRef(t, s, user.ID)
	assert.Equal(t, domain.ReasonHidden, got[g.ref(domain.EntityScene, "scene1")])
}

func TestRecompute_RestrictedBeatsHidden(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.tag("tag1", "")
	g.scene("scene1", "")
	require.NoError(t, s.SetSceneTags(ctx, "scene1", "inst-1", []string{"tag1"}))

	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityTag, "tag1")))
	_, err := svc.SetContentRestriction(ctx, user.ID, RestrictionInput{
		EntityType: "tag",
		InstanceID: "inst-1",
		Mode:       "EXCLUDE",
		EntityIDs:  []string{"tag1"},
	})
	require.NoError(t, err)

	got := exclusionsByRef(t, s, user.ID)
	assert.Equal(t, domain.ReasonRestricted, got[g.ref(domain.EntityTag, "tag1")])
}

func TestRecompute_EmptyGallery(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.gallery("gallery1")
	g.image("image1")
	require.NoError(t, s.SetGalleryImages(ctx, "gallery1", "inst-1", []string{"image1"}))

	// Hiding the only image leaves the gallery without visible content,
	// but the closure only runs on the next full rebuild.
	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityImage, "image1")))
	got := exclusionsByRef(t, s, user.ID)
	assert.NotContains(t, got, g.ref(domain.EntityGallery, "gallery1"))

	require.NoError(t, svc.RecomputeForUser(ctx, user.ID))
	want := map[domain.EntityRef]domain.ExclusionReason{
		g.ref(domain.EntityImage, "image1"):     domain.ReasonHidden,
		g.ref(domain.EntityGallery, "gallery1"): domain.ReasonEmpty,
	}
	assert.Equal(t, want, exclusionsByRef(t, s, user.ID))
}

func TestRecompute_GalleryWithVisibleImageStays(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.gallery("gallery1")
	g.image("image1")
	g.image("image2")
	require.NoError(t, s.SetGalleryImages(ctx, "gallery1", "inst-1", []string{"image1", "image2"}))

	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityImage, "image1")))
	require.NoError(t, svc.RecomputeForUser(ctx, user.ID))

	got := exclusionsByRef(t, s, user.ID)
	assert.NotContains(t, got, g.ref(domain.EntityGallery, "gallery1"))
}

func TestRecompute_EmptyClosureIsSinglePass(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")

	// group1's only scene is hidden, so group1 becomes empty. tag1 is
	// attached only to group1, but "empty" entries do not feed further
	// emptiness checks in the same pass, so tag1 stays visible.
	g.scene("scene1", "")
	g.group("group1")
	g.tag("tag1", "")
	require.NoError(t, s.SetSceneGroups(ctx, "scene1", "inst-1", []string{"group1"}))
	require.NoError(t, s.SetGroupTags(ctx, "group1", "inst-1", []string{"tag1"}))

	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityScene, "scene1")))
	require.NoError(t, svc.RecomputeForUser(ctx, user.ID))

	got := exclusionsByRef(t, s, user.ID)
	assert.Equal(t, domain.ReasonEmpty, got[g.ref(domain.EntityGroup, "group1")])
	assert.NotContains(t, got, g.ref(domain.EntityTag, "tag1"))
}

func TestRecompute_PerformerEmptyNeedsScenesAndImagesGone(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.performer("perf1")
	g.scene("scene1", "")
	g.image("image1")
	require.NoError(t, s.SetScenePerformers(ctx, "scene1", "inst-1", []string{"perf1"}))
	require.NoError(t, s.SetPerformerImages(ctx, "perf1", "inst-1", []string{"image1"}))

	// Only the scene is hidden; perf1 still has a visible image.
	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityScene, "scene1")))
	require.NoError(t, svc.RecomputeForUser(ctx, user.ID))
	got := exclusionsByRef(t, s, user.ID)
	assert.NotContains(t, got, g.ref(domain.EntityPerformer, "perf1"))

	// Hiding the image as well empties the performer.
	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityImage, "image1")))
	require.NoError(t, svc.RecomputeForUser(ctx, user.ID))
	got = exclusionsByRef(t, s, user.ID)
	assert.Equal(t, domain.ReasonEmpty, got[g.ref(domain.EntityPerformer, "perf1")])
}

func TestRemoveHiddenEntity_DeferredRecomputeMatchesDirect(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	svc.Start()
	ctx := context.Background()

	// Two users with identical facts. u1 removes a hide and waits for the
	// deferred recompute; u2 removes the same facts and recomputes
	// directly. The resulting sets must be identical modulo user ID.
	u1 := createTestUser(t, s, "alice")
	u2 := createTestUser(t, s, "bob")

	g := newGraph(t, s, "inst-1")
	g.performer("perf1")
	g.performer("perf2")
	g.scene("scene1", "")
	g.scene("scene2", "")
	require.NoError(t, s.SetScenePerformers(ctx, "scene1", "inst-1", []string{"perf1"}))
	require.NoError(t, s.SetScenePerformers(ctx, "scene2", "inst-1", []string{"perf2"}))

	for _, u := range []*domain.User{u1, u2} {
		require.NoError(t, svc.AddHiddenEntity(ctx, u.ID, g.ref(domain.EntityPerformer, "perf1")))
		require.NoError(t, svc.AddHiddenEntity(ctx, u.ID, g.ref(domain.EntityPerformer, "perf2")))
		require.NoError(t, svc.RecomputeForUser(ctx, u.ID))
	}

	// u2: synchronous path.
	require.NoError(t, s.DeleteHiddenEntity(ctx, u2.ID, g.ref(domain.EntityPerformer, "perf1")))
	require.NoError(t, s.DeleteExclusion(ctx, u2.ID, g.ref(domain.EntityPerformer, "perf1")))
	require.NoError(t, svc.RecomputeForUser(ctx, u2.ID))
	want := exclusionsByRef(t, s, u2.ID)

	// u1: deferred path.
	require.NoError(t, svc.RemoveHiddenEntity(ctx, u1.ID, g.ref(domain.EntityPerformer, "perf1")))
	assert.Eventually(t, func() bool {
		got := exclusionsByRef(t, s, u1.ID)
		if len(got) != len(want) {
			return false
		}
		for ref, reason := range want {
			if got[ref] != reason {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRemoveHiddenEntity_ImmediatelyDropsDirectRow(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	// Worker not started: only the synchronous part of removal runs.
	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.performer("perf1")
	g.scene("scene1", "")
	require.NoError(t, s.SetScenePerformers(ctx, "scene1", "inst-1", []string{"perf1"}))
	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityPerformer, "perf1")))

	require.NoError(t, svc.RemoveHiddenEntity(ctx, user.ID, g.ref(domain.EntityPerformer, "perf1")))

	got := exclusionsByRef(t, s, user.ID)
	assert.NotContains(t, got, g.ref(domain.EntityPerformer, "perf1"))
	// The stale cascade row lingers until the deferred rebuild runs.
	assert.Contains(t, got, g.ref(domain.EntityScene, "scene1"))

	hidden, err := s.ListHiddenEntities(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, hidden)
}

func TestRemoveHiddenEntity_QueueOverflowStillRecomputes(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "veil-visibility-test-*")
	require.NoError(t, err)

	s, err := sqlite.Open(filepath.Join(tmpDir, "test.db"), nil)
	require.NoError(t, err)

	// Queue of one, worker never started: the second removal overflows
	// and must still recompute without blocking the caller.
	svc := NewVisibilityService(s, slog.New(slog.DiscardHandler), metrics.NopRecorder{}, config.VisibilityConfig{
		RecomputeQueueSize: 1,
		RecomputeAllRPS:    1000,
		RecomputeAllBurst:  10,
	})
	defer func() {
		svc.Stop()
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.performer("perf1")
	g.performer("perf2")
	g.scene("scene1", "")
	g.scene("scene2", "")
	require.NoError(t, s.SetScenePerformers(ctx, "scene1", "inst-1", []string{"perf1"}))
	require.NoError(t, s.SetScenePerformers(ctx, "scene2", "inst-1", []string{"perf2"}))
	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityPerformer, "perf1")))
	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityPerformer, "perf2")))

	require.NoError(t, svc.RemoveHiddenEntity(ctx, user.ID, g.ref(domain.EntityPerformer, "perf1")))
	require.NoError(t, svc.RemoveHiddenEntity(ctx, user.ID, g.ref(domain.EntityPerformer, "perf2")))

	// The overflow path rebuilds from facts, so every stale row clears.
	assert.Eventually(t, func() bool {
		return len(exclusionsByRef(t, s, user.ID)) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRecomputeAllUsers(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	u1 := createTestUser(t, s, "alice")
	u2 := createTestUser(t, s, "bob")

	g := newGraph(t, s, "inst-1")
	g.performer("perf1")
	g.scene("scene1", "")
	require.NoError(t, s.SetScenePerformers(ctx, "scene1", "inst-1", []string{"perf1"}))

	// Facts without materialized rows, as if written by an older import.
	now := time.Now()
	require.NoError(t, s.UpsertHiddenEntity(ctx, &domain.HiddenEntity{
		UserID: u1.ID, EntityType: domain.EntityPerformer, EntityID: "perf1",
		InstanceID: "inst-1", CreatedAt: now,
	}))

	require.NoError(t, svc.RecomputeAllUsers(ctx))

	got1 := exclusionsByRef(t, s, u1.ID)
	assert.Equal(t, domain.ReasonHidden, got1[g.ref(domain.EntityPerformer, "perf1")])
	assert.Equal(t, domain.ReasonCascade, got1[g.ref(domain.EntityScene, "scene1")])

	// u2 has no facts; the rebuild leaves an empty set (scene1 is visible
	// and perf1 has a visible scene).
	got2 := exclusionsByRef(t, s, u2.ID)
	assert.Empty(t, got2)
}

func TestSetContentRestriction_Validation(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	seedTestInstance(t, s, "inst-1")

	tests := []struct {
		name  string
		input RestrictionInput
	}{
		{
			name: "scene type not restrictable",
			input: RestrictionInput{
				EntityType: "scene", InstanceID: "inst-1",
				Mode: "EXCLUDE", EntityIDs: []string{"s1"},
			},
		},
		{
			name: "unknown mode",
			input: RestrictionInput{
				EntityType: "tag", InstanceID: "inst-1",
				Mode: "BLOCK", EntityIDs: []string{"t1"},
			},
		},
		{
			name: "missing instance",
			input: RestrictionInput{
				EntityType: "tag", Mode: "EXCLUDE", EntityIDs: []string{"t1"},
			},
		},
		{
			name: "depth below -1",
			input: RestrictionInput{
				EntityType: "tag", InstanceID: "inst-1",
				Mode: "EXCLUDE", EntityIDs: []string{"t1"}, Depth: -2,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SetContentRestriction(ctx, user.ID, tt.input)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
		})
	}
}

func TestDeleteContentRestriction_RestoresVisibility(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.tag("tag1", "")
	g.scene("scene1", "")
	require.NoError(t, s.SetSceneTags(ctx, "scene1", "inst-1", []string{"tag1"}))

	_, err := svc.SetContentRestriction(ctx, user.ID, RestrictionInput{
		EntityType: "tag", InstanceID: "inst-1",
		Mode: "EXCLUDE", EntityIDs: []string{"tag1"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, exclusionsByRef(t, s, user.ID))

	require.NoError(t, svc.DeleteContentRestriction(ctx, user.ID, domain.EntityTag, "inst-1"))
	assert.Empty(t, exclusionsByRef(t, s, user.ID))
}

func TestRecompute_SkipsMalformedRestriction(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.performer("perf1")
	g.scene("scene1", "")
	require.NoError(t, s.SetScenePerformers(ctx, "scene1", "inst-1", []string{"perf1"}))

	// Written behind the service's back with a corrupt ID payload.
	now := time.Now()
	require.NoError(t, s.UpsertContentRestriction(ctx, &domain.ContentRestriction{
		UserID: user.ID, EntityType: domain.EntityTag, InstanceID: "inst-1",
		Mode: domain.RestrictionExclude, EntityIDs: "not json",
		CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityPerformer, "perf1")))

	// The rebuild must survive the bad row and still apply the hide.
	require.NoError(t, svc.RecomputeForUser(ctx, user.ID))
	got := exclusionsByRef(t, s, user.ID)
	assert.Equal(t, domain.ReasonHidden, got[g.ref(domain.EntityPerformer, "perf1")])
	assert.Equal(t, domain.ReasonCascade, got[g.ref(domain.EntityScene, "scene1")])
}

func TestAddHiddenEntity_UnknownType(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()

	user := createTestUser(t, s, "alice")

	err := svc.AddHiddenEntity(context.Background(), user.ID, domain.Ref("album", "x", "inst-1"))
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
}

func TestExclusionStats(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.performer("perf1")
	g.scene("scene1", "")
	g.scene("scene2", "")
	require.NoError(t, s.SetScenePerformers(ctx, "scene1", "inst-1", []string{"perf1"}))
	require.NoError(t, s.SetScenePerformers(ctx, "scene2", "inst-1", []string{"perf1"}))

	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityPerformer, "perf1")))
	require.NoError(t, svc.RecomputeForUser(ctx, user.ID))

	stats, err := svc.ExclusionStats(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[domain.EntityPerformer])
	assert.Equal(t, 2, stats[domain.EntityScene])
	assert.Equal(t, 0, stats[domain.EntityGallery])
	assert.Len(t, stats, len(domain.EntityTypes()))
}

func TestAddHiddenEntity_RefreshesStats(t *testing.T) {
	svc, s, cleanup := setupVisibilityTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.performer("perf1")
	g.scene("scene1", "")
	g.scene("scene2", "")
	require.NoError(t, s.SetScenePerformers(ctx, "scene1", "inst-1", []string{"perf1"}))
	require.NoError(t, s.SetScenePerformers(ctx, "scene2", "inst-1", []string{"perf1"}))

	// The synchronous hide path skips the full rebuild but must still
	// leave stats matching the materialized set.
	require.NoError(t, svc.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityPerformer, "perf1")))

	stats, err := svc.ExclusionStats(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[domain.EntityPerformer])
	assert.Equal(t, 2, stats[domain.EntityScene])
	assert.Equal(t, 0, stats[domain.EntityTag])
}
