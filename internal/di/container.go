// Package di provides dependency injection configuration for the Veil server.
package di

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"

	"github.com/veilapp/veil-server/internal/config"
	"github.com/veilapp/veil-server/internal/di/providers"
	"github.com/veilapp/veil-server/internal/logger"
	"github.com/veilapp/veil-server/internal/metrics"
	"github.com/veilapp/veil-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Metrics
	do.Provide(injector, providers.ProvideMetricsRegistry)
	do.Provide(injector, providers.ProvideMetricsRecorder)

	// Business services
	do.Provide(injector, providers.ProvideLibraryService)
	do.Provide(injector, providers.ProvideBrowseService)
	do.Provide(injector, providers.ProvideVisibilityService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*prometheus.Registry](injector)
	_ = do.MustInvoke[*metrics.PromRecorder](injector)

	// Business services
	_ = do.MustInvoke[*service.LibraryService](injector)
	_ = do.MustInvoke[*service.BrowseService](injector)
	_ = do.MustInvoke[*providers.VisibilityServiceHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
