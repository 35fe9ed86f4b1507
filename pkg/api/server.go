// Package api serves the scene, fitting, scripting and STL storage
// operations over HTTP with gin.
package api

import (
	"time"

	"github.com/chazu/facet/pkg/fit"
	"github.com/chazu/facet/pkg/metrics"
	"github.com/chazu/facet/pkg/scene"
	"github.com/chazu/facet/pkg/script"
	"github.com/chazu/facet/pkg/stlstore"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServerName is reported by the health endpoints.
const ServerName = "facet (Go + gin)"

// Deps are the collaborators a Server dispatches to.
type Deps struct {
	Scenes  *scene.Service
	Fitter  *fit.Fitter
	Scripts *script.Engine
	Store   *stlstore.Store
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Options are the request-handling settings.
type Options struct {
	UploadDir      string
	MaxUploadBytes int64
	Kernel         string
}

// Server holds the handlers.
type Server struct {
	scenes  *scene.Service
	fitter  *fit.Fitter
	scripts *script.Engine
	store   *stlstore.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	opts    Options
	now     func() time.Time
}

// NewServer returns a Server. A nil logger discards output and nil
// metrics get a private registry.
func NewServer(d Deps, opts Options) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New(nil)
	}
	return &Server{
		scenes:  d.Scenes,
		fitter:  d.Fitter,
		scripts: d.Scripts,
		store:   d.Store,
		metrics: d.Metrics,
		logger:  d.Logger,
		opts:    opts,
		now:     time.Now,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(s.recovery(), s.requestLogger(), s.recordRequests(), cors())
	r.MaxMultipartMemory = 32 << 20

	r.POST("/process-step", s.ProcessStep)
	r.GET("/health", s.Health)
	r.GET("/test", s.Test)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	apiRouter := r.Group("/api")
	{
		apiRouter.POST("/create/box", s.CreateBox)
		apiRouter.POST("/create/cylinder", s.CreateCylinder)
		apiRouter.POST("/transform/:id", s.Transform)
	}
	{
		apiRouter.GET("/shapes/:id/mesh", s.ShapeMesh)
		apiRouter.GET("/shapes/:id/bounds", s.ShapeBounds)
		apiRouter.POST("/shapes/:id/export", s.ExportShape)
	}
	{
		apiRouter.POST("/recognize/cylinder", s.RecognizeCylinder)
		apiRouter.POST("/script", s.RunScript)
	}
	{
		apiRouter.POST("/store-stl", s.StoreSTL)
		apiRouter.GET("/project/:projectId", s.ProjectStatus)
		apiRouter.GET("/list-projects", s.ListProjects)
		apiRouter.GET("/download-stl/:projectId/:filename", s.DownloadSTL)
		apiRouter.POST("/save-stl", s.SaveSTL)
		apiRouter.GET("/health", s.APIHealth)
	}
	return r
}

// unixSeconds renders t as fractional seconds since the epoch.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
