package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chazu/facet/pkg/api"
	"github.com/chazu/facet/pkg/config"
	"github.com/chazu/facet/pkg/fit"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/kernel/brep"
	"github.com/chazu/facet/pkg/kernel/sdfx"
	"github.com/chazu/facet/pkg/metrics"
	"github.com/chazu/facet/pkg/scene"
	"github.com/chazu/facet/pkg/script"
	"github.com/chazu/facet/pkg/stlstore"
	"github.com/chazu/facet/pkg/tessellate"
	"go.uber.org/zap"
)

// shutdownTimeout bounds how long in-flight requests get on shutdown.
const shutdownTimeout = 5 * time.Second

// App wires the kernel, scene, fitter, script engine and STL store
// behind the HTTP API.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	kernel  kernel.Kernel
	scenes  *scene.Service
	scripts *script.Engine
	store   *stlstore.Store
	server  *api.Server
}

// EvalResult is the outcome of a script run with fatal errors folded
// into Errors. Both slices are non-nil.
type EvalResult struct {
	Meshes []*tessellate.Mesh  `json:"meshes"`
	Errors []script.EvalError `json:"errors"`
}

// newKernel returns the kernel named by the configuration.
func newKernel(name string) (kernel.Kernel, error) {
	switch name {
	case config.KernelBRep:
		return brep.New(), nil
	case config.KernelSDFX:
		return sdfx.New(), nil
	}
	return nil, fmt.Errorf("unknown kernel %q", name)
}

// NewApp builds an App from cfg. A nil logger discards output.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	k, err := newKernel(cfg.GetKernel())
	if err != nil {
		return nil, err
	}
	store, err := stlstore.New(cfg.GetSTLDir(), cfg.GetExportsDir())
	if err != nil {
		return nil, err
	}

	m := metrics.New(nil).WithRuntimeCollectors()
	scenes := scene.NewService(k, logger.Named("scene"), m)
	scripts := script.NewEngine(scenes, cfg.GetScriptTimeout(), logger.Named("script"))

	server := api.NewServer(api.Deps{
		Scenes:  scenes,
		Fitter:  fit.NewFitter(),
		Scripts: scripts,
		Store:   store,
		Metrics: m,
		Logger:  logger.Named("api"),
	}, api.Options{
		UploadDir:      cfg.GetUploadDir(),
		MaxUploadBytes: cfg.GetMaxUploadBytes(),
		Kernel:         cfg.GetKernel(),
	})

	return &App{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		kernel:  k,
		scenes:  scenes,
		scripts: scripts,
		store:   store,
		server:  server,
	}, nil
}

// Handler returns the HTTP handler serving every route.
func (a *App) Handler() http.Handler {
	return a.server.Router()
}

// Run serves HTTP on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.GetListen(),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", zap.String("addr", srv.Addr), zap.String("kernel", a.cfg.GetKernel()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Evaluate runs a scene script outside any session.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Meshes: []*tessellate.Mesh{},
		Errors: []script.EvalError{},
	}

	res, err := a.scripts.Evaluate("", source)
	if err != nil {
		a.logger.Error("evaluate fatal error", zap.Error(err))
		result.Errors = append(result.Errors, script.EvalError{Message: err.Error()})
		return result
	}
	result.Meshes = append(result.Meshes, res.Meshes...)
	result.Errors = append(result.Errors, res.Errors...)
	return result
}
