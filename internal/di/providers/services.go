package providers

import (
	"github.com/samber/do/v2"

	"github.com/veilapp/veil-server/internal/config"
	"github.com/veilapp/veil-server/internal/logger"
	"github.com/veilapp/veil-server/internal/metrics"
	"github.com/veilapp/veil-server/internal/service"
)

// ProvideLibraryService provides the catalog mirror service.
func ProvideLibraryService(i do.Injector) (*service.LibraryService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLibraryService(storeHandle.Store, log.Logger), nil
}

// ProvideBrowseService provides the filtered browse service.
func ProvideBrowseService(i do.Injector) (*service.BrowseService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBrowseService(storeHandle.Store, log.Logger), nil
}

// VisibilityServiceHandle wraps the exclusion engine with its deferred
// recompute worker lifecycle.
type VisibilityServiceHandle struct {
	*service.VisibilityService
}

// Shutdown implements do.Shutdownable.
func (h *VisibilityServiceHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideVisibilityService provides the exclusion engine with its worker
// already started.
func ProvideVisibilityService(i do.Injector) (*VisibilityServiceHandle, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	cfg := do.MustInvoke[*config.Config](i)
	recorder := do.MustInvoke[*metrics.PromRecorder](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewVisibilityService(storeHandle.Store, log.Logger, recorder, cfg.Visibility)
	svc.Start()

	log.Info("Visibility engine started",
		"recompute_queue_size", cfg.Visibility.RecomputeQueueSize,
		"recompute_all_rps", cfg.Visibility.RecomputeAllRPS,
	)

	return &VisibilityServiceHandle{VisibilityService: svc}, nil
}
