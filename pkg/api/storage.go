package api

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/chazu/facet/pkg/stlstore"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type storeRequest struct {
	ProjectID string         `json:"projectId"`
	GroupName string         `json:"groupName"`
	STLData   string         `json:"stlData"`
	Metadata  map[string]any `json:"metadata"`
}

type saveRequest struct {
	Filename string `json:"filename"`
	STLData  string `json:"stlData"`
}

func storedResponse(st *stlstore.Stored) gin.H {
	return gin.H{
		"success":   true,
		"filePath":  st.FilePath,
		"fileSize":  st.FileSize,
		"projectId": st.ProjectID,
		"groupName": st.GroupName,
		"timestamp": st.Timestamp,
	}
}

// StoreSTL stores base64-encoded STL data under a project.
func (s *Server) StoreSTL(c *gin.Context) {
	var req storeRequest
	if err := bindJSON(c, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			badRequest(c, "No JSON data received")
			return
		}
		badRequest(c, err.Error())
		return
	}
	if req.ProjectID == "" || req.GroupName == "" || req.STLData == "" {
		badRequest(c, "Missing required fields: projectId, groupName, stlData")
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.STLData)
	if err != nil {
		badRequest(c, "Failed to decode base64 STL data: "+err.Error())
		return
	}

	stored, err := s.store.Save(req.ProjectID, req.GroupName, data, req.Metadata)
	if err != nil {
		s.fail(c, "Store failed", err)
		return
	}
	s.logger.Info("stored STL", zap.String("path", stored.FilePath), zap.Int64("bytes", stored.FileSize))
	c.JSON(http.StatusOK, storedResponse(stored))
}

// ProjectStatus lists a project's files.
func (s *Server) ProjectStatus(c *gin.Context) {
	st, err := s.store.Project(c.Param("projectId"))
	if err != nil {
		if errors.Is(err, stlstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Project not found"})
			return
		}
		s.fail(c, "Project lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"projectId":  st.ProjectID,
		"files":      st.Files,
		"totalFiles": st.TotalFiles,
		"totalSize":  st.TotalSize,
	})
}

// ListProjects lists every project.
func (s *Server) ListProjects(c *gin.Context) {
	projects, err := s.store.Projects()
	if err != nil {
		s.fail(c, "Project listing failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "projects": projects})
}

// DownloadSTL sends a stored file as an attachment.
func (s *Server) DownloadSTL(c *gin.Context) {
	filename := c.Param("filename")
	path, err := s.store.Path(c.Param("projectId"), filename)
	if err != nil {
		if errors.Is(err, stlstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "File not found"})
			return
		}
		s.fail(c, "Download failed", err)
		return
	}
	c.FileAttachment(path, filename)
}

// SaveSTL writes text STL data to the exports directory.
func (s *Server) SaveSTL(c *gin.Context) {
	var req saveRequest
	if err := bindJSON(c, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			badRequest(c, "No JSON data received")
			return
		}
		badRequest(c, err.Error())
		return
	}
	if req.Filename == "" || req.STLData == "" {
		badRequest(c, "Missing filename or stlData")
		return
	}
	path, n, err := s.store.SaveExport(req.Filename, req.STLData)
	if err != nil {
		s.fail(c, "Save failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "STL file saved on server",
		"filePath": path,
		"fileSize": n,
	})
}
