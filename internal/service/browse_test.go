package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilapp/veil-server/internal/config"
	"github.com/veilapp/veil-server/internal/domain"
	domainerrors "github.com/veilapp/veil-server/internal/errors"
	"github.com/veilapp/veil-server/internal/metrics"
	"github.com/veilapp/veil-server/internal/store"
	"github.com/veilapp/veil-server/internal/store/sqlite"
)

func setupBrowseTest(t *testing.T) (*BrowseService, *VisibilityService, store.Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "veil-browse-test-*")
	require.NoError(t, err)

	s, err := sqlite.Open(filepath.Join(tmpDir, "test.db"), nil)
	require.NoError(t, err)

	logger := slog.New(slog.DiscardHandler)
	browse := NewBrowseService(s, logger)
	visibility := NewVisibilityService(s, logger, metrics.NopRecorder{}, config.VisibilityConfig{})

	cleanup := func() {
		visibility.Stop()
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}
	return browse, visibility, s, cleanup
}

func TestListScenes_FiltersExcluded(t *testing.T) {
	browse, visibility, s, cleanup := setupBrowseTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	other := createTestUser(t, s, "bob")
	g := newGraph(t, s, "inst-1")
	g.performer("perf1")
	g.scene("scene1", "")
	g.scene("scene2", "")
	require.NoError(t, s.SetScenePerformers(ctx, "scene1", "inst-1", []string{"perf1"}))

	require.NoError(t, visibility.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityPerformer, "perf1")))

	scenes, err := browse.ListScenes(ctx, user.ID, "inst-1")
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	assert.Equal(t, "scene2", scenes[0].ID)

	// Exclusions are per user.
	scenes, err = browse.ListScenes(ctx, other.ID, "inst-1")
	require.NoError(t, err)
	assert.Len(t, scenes, 2)
}

func TestListGalleries_FiltersExcluded(t *testing.T) {
	browse, visibility, s, cleanup := setupBrowseTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	g := newGraph(t, s, "inst-1")
	g.gallery("gallery1")
	g.gallery("gallery2")
	g.image("image1")
	g.image("image2")
	require.NoError(t, s.SetGalleryImages(ctx, "gallery1", "inst-1", []string{"image1"}))
	require.NoError(t, s.SetGalleryImages(ctx, "gallery2", "inst-1", []string{"image2"}))

	// Hiding gallery1's only image empties it on the next rebuild.
	require.NoError(t, visibility.AddHiddenEntity(ctx, user.ID, g.ref(domain.EntityImage, "image1")))
	require.NoError(t, visibility.RecomputeForUser(ctx, user.ID))

	galleries, err := browse.ListGalleries(ctx, user.ID, "inst-1")
	require.NoError(t, err)
	require.Len(t, galleries, 1)
	assert.Equal(t, "gallery2", galleries[0].ID)
}

func TestBrowse_UnknownUserOrInstance(t *testing.T) {
	browse, _, s, cleanup := setupBrowseTest(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, s, "alice")
	seedTestInstance(t, s, "inst-1")

	_, err := browse.ListScenes(ctx, "usr-missing", "inst-1")
	require.Error(t, err)
	var storeErr *store.Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, store.ErrNotFound.Code, storeErr.Code)

	_, err = browse.ListScenes(ctx, user.ID, "inst-missing")
	require.Error(t, err)
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, store.ErrNotFound.Code, storeErr.Code)

	_, err = browse.ListScenes(ctx, "", "inst-1")
	require.Error(t, err)
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
}
