// Package main provides a tool to seed the database with a demo library.
//
// It creates an instance with a small relationship graph plus a demo user,
// hides one performer, and rebuilds the exclusion set, so the browse and
// exclusion endpoints have data to show.
//
// Usage:
//
//	go run ./cmd/seed -db ~/Veil/veil.db
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/veilapp/veil-server/internal/config"
	"github.com/veilapp/veil-server/internal/domain"
	"github.com/veilapp/veil-server/internal/metrics"
	"github.com/veilapp/veil-server/internal/service"
	"github.com/veilapp/veil-server/internal/store/sqlite"
)

func main() {
	dbPath := flag.String("db", "veil.db", "Path to the SQLite database")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	st, err := sqlite.Open(*dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	library := service.NewLibraryService(st, logger)
	visibility := service.NewVisibilityService(st, logger, metrics.NopRecorder{}, config.VisibilityConfig{})
	defer visibility.Stop()

	instance, err := library.RegisterInstance(ctx, "demo library", "http://localhost:9999")
	if err != nil {
		fatal(logger, "register instance", err)
	}

	seed := func(name string, err error) {
		if err != nil {
			fatal(logger, name, err)
		}
	}

	now := time.Now()
	seed("studio", st.CreateStudio(ctx, &domain.Studio{ID: "studio-acme", InstanceID: instance.ID, Name: "Acme Films", CreatedAt: now, UpdatedAt: now}))
	seed("tag", st.CreateTag(ctx, &domain.Tag{ID: "tag-outdoor", InstanceID: instance.ID, Name: "Outdoor", CreatedAt: now, UpdatedAt: now}))
	seed("tag", st.CreateTag(ctx, &domain.Tag{ID: "tag-hiking", InstanceID: instance.ID, Name: "Hiking", ParentID: "tag-outdoor", CreatedAt: now, UpdatedAt: now}))

	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("perf-%d", i)
		seed("performer", st.CreatePerformer(ctx, &domain.Performer{ID: id, InstanceID: instance.ID, Name: fmt.Sprintf("Performer %d", i), CreatedAt: now, UpdatedAt: now}))
	}
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("scene-%d", i)
		seed("scene", st.CreateScene(ctx, &domain.Scene{ID: id, InstanceID: instance.ID, Title: fmt.Sprintf("Scene %d", i), StudioID: "studio-acme", CreatedAt: now, UpdatedAt: now}))
	}
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("img-%d", i)
		seed("image", st.CreateImage(ctx, &domain.Image{ID: id, InstanceID: instance.ID, Title: fmt.Sprintf("Image %d", i), CreatedAt: now, UpdatedAt: now}))
	}
	seed("gallery", st.CreateGallery(ctx, &domain.Gallery{ID: "gal-1", InstanceID: instance.ID, Title: "Trip Photos", CreatedAt: now, UpdatedAt: now}))
	seed("group", st.CreateGroup(ctx, &domain.Group{ID: "grp-1", InstanceID: instance.ID, Name: "Season One", CreatedAt: now, UpdatedAt: now}))

	seed("links", st.SetScenePerformers(ctx, "scene-1", instance.ID, []string{"perf-1", "perf-2"}))
	seed("links", st.SetScenePerformers(ctx, "scene-2", instance.ID, []string{"perf-1"}))
	seed("links", st.SetScenePerformers(ctx, "scene-3", instance.ID, []string{"perf-3"}))
	seed("links", st.SetSceneTags(ctx, "scene-4", instance.ID, []string{"tag-hiking"}))
	seed("links", st.SetSceneGroups(ctx, "scene-5", instance.ID, []string{"grp-1"}))
	seed("links", st.SetGalleryImages(ctx, "gal-1", instance.ID, []string{"img-1", "img-2", "img-3"}))
	seed("links", st.SetPerformerImages(ctx, "perf-2", instance.ID, []string{"img-4"}))

	user, err := library.CreateUser(ctx, "demo")
	if err != nil {
		fatal(logger, "create user", err)
	}

	// Hide one performer so the demo user's browse view differs from the
	// raw catalog.
	if err := visibility.AddHiddenEntity(ctx, user.ID, domain.Ref(domain.EntityPerformer, "perf-1", instance.ID)); err != nil {
		fatal(logger, "hide performer", err)
	}
	if err := visibility.RecomputeForUser(ctx, user.ID); err != nil {
		fatal(logger, "recompute", err)
	}

	logger.Info("seeded demo library",
		"instance_id", instance.ID,
		"user_id", user.ID,
	)
}

func fatal(logger *slog.Logger, step string, err error) {
	logger.Error("seed failed", "step", step, "error", err)
	os.Exit(1)
}
