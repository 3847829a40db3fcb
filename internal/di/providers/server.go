package providers

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"

	"github.com/veilapp/veil-server/internal/api"
	"github.com/veilapp/veil-server/internal/config"
	"github.com/veilapp/veil-server/internal/logger"
	"github.com/veilapp/veil-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	registry := do.MustInvoke[*prometheus.Registry](i)
	log := do.MustInvoke[*logger.Logger](i)

	libraryService := do.MustInvoke[*service.LibraryService](i)
	visibilityHandle := do.MustInvoke[*VisibilityServiceHandle](i)
	browseService := do.MustInvoke[*service.BrowseService](i)

	services := &api.Services{
		Library:    libraryService,
		Visibility: visibilityHandle.VisibilityService,
		Browse:     browseService,
	}

	handler := api.NewServer(storeHandle.Store, services, registry, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
