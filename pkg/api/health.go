package api

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
)

// APIHealth is the storage server liveness check.
func (s *Server) APIHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"message":   "STL storage server is running",
		"timestamp": unixSeconds(s.now()),
		"server":    ServerName,
	})
}

// Health reports the server's directories and registry size.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":                "healthy",
		"timestamp":             unixSeconds(s.now()),
		"server":                ServerName,
		"kernel":                s.opts.Kernel,
		"stl_storage_available": true,
		"shapes":                s.scenes.Registry().Len(),
		"directories": gin.H{
			"upload":      s.opts.UploadDir,
			"stl_storage": s.store.Root(),
			"exports":     s.store.Exports(),
		},
	})
}

// Test describes the running server.
func (s *Server) Test(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":            "facet STEP server with STL export is working",
		"go_version":         runtime.Version(),
		"gin_version":        gin.Version,
		"kernel":             s.opts.Kernel,
		"server_type":        ServerName,
		"stl_export_enabled": true,
	})
}
