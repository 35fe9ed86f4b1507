package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/scene"
	"github.com/chazu/facet/pkg/tessellate"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Defaults for omitted primitive dimensions.
const (
	defaultBoxSize        = 10.0
	defaultCylinderRadius = 5.0
	defaultCylinderHeight = 20.0
)

// MeshResponse wraps one mesh.
type MeshResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Mesh    *tessellate.Mesh `json:"mesh"`
}

// Statistics summarises an import.
type Statistics struct {
	TotalVertices  int    `json:"totalVertices"`
	TotalTriangles int    `json:"totalTriangles"`
	TotalFaces     int    `json:"totalFaces"`
	FileName       string `json:"fileName"`
	FileSize       int64  `json:"fileSize"`
}

// ImportData is the payload of a successful import.
type ImportData struct {
	Meshes     []*tessellate.Mesh `json:"meshes"`
	Faces      int                `json:"faces"`
	Statistics Statistics         `json:"statistics"`
}

// ImportResponse is returned by ProcessStep.
type ImportResponse struct {
	Success bool       `json:"success"`
	Data    ImportData `json:"data"`
}

// ProcessStep imports an uploaded STEP or IGES file from the stepFile
// form field. The upload is written to a temporary file that is removed
// on every path out of the handler.
func (s *Server) ProcessStep(c *gin.Context) {
	if max := s.opts.MaxUploadBytes; max > 0 {
		if c.Request.ContentLength > max {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
	}

	file, err := c.FormFile("stepFile")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	if file.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file selected"})
		return
	}
	filename := filepath.Base(file.Filename)
	ext := filepath.Ext(filename)
	if kernel.FormatForExtension(ext) == kernel.FormatUnknown {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type. Only STEP and IGES files are allowed."})
		return
	}

	path, err := s.tempUploadPath(ext)
	if err != nil {
		s.logger.Error("create upload file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process STEP file", "details": err.Error()})
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("upload cleanup failed", zap.String("path", path), zap.Error(err))
		}
	}()

	if err := c.SaveUploadedFile(file, path); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process STEP file", "details": err.Error()})
		return
	}
	s.logger.Info("processing upload", zap.String("file", filename), zap.Int64("size", file.Size))

	mesh, err := s.scenes.Import(path, ext)
	if err != nil {
		if statusFor(err) == http.StatusBadRequest {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("import failed", zap.String("file", filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process STEP file", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ImportResponse{
		Success: true,
		Data: ImportData{
			Meshes: []*tessellate.Mesh{mesh},
			Faces:  mesh.FaceCount,
			Statistics: Statistics{
				TotalVertices:  mesh.VertexCount,
				TotalTriangles: mesh.TriangleCount,
				TotalFaces:     mesh.FaceCount,
				FileName:       filename,
				FileSize:       file.Size,
			},
		},
	})
}

// tempUploadPath reserves a uniquely named file in the upload directory.
func (s *Server) tempUploadPath(ext string) (string, error) {
	dir := s.opts.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, fmt.Sprintf("%d-*%s", s.now().Unix(), ext))
	if err != nil {
		return "", err
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

type boxRequest struct {
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
	Depth  *float64 `json:"depth"`
}

type cylinderRequest struct {
	Radius *float64 `json:"radius"`
	Height *float64 `json:"height"`
}

func orDefault(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// CreateBox creates a box. Omitted dimensions default to 10.
func (s *Server) CreateBox(c *gin.Context) {
	var req boxRequest
	if err := bindJSON(c, &req); err != nil && !errors.Is(err, errEmptyBody) {
		badRequest(c, err.Error())
		return
	}
	mesh, err := s.scenes.CreateBox(
		orDefault(req.Width, defaultBoxSize),
		orDefault(req.Height, defaultBoxSize),
		orDefault(req.Depth, defaultBoxSize))
	if err != nil {
		s.fail(c, "Box creation failed", err)
		return
	}
	c.JSON(http.StatusOK, MeshResponse{Success: true, Message: "Box created successfully", Mesh: mesh})
}

// CreateCylinder creates a cylinder. Omitted dimensions default to
// radius 5 and height 20.
func (s *Server) CreateCylinder(c *gin.Context) {
	var req cylinderRequest
	if err := bindJSON(c, &req); err != nil && !errors.Is(err, errEmptyBody) {
		badRequest(c, err.Error())
		return
	}
	mesh, err := s.scenes.CreateCylinder(
		orDefault(req.Radius, defaultCylinderRadius),
		orDefault(req.Height, defaultCylinderHeight))
	if err != nil {
		s.fail(c, "Cylinder creation failed", err)
		return
	}
	c.JSON(http.StatusOK, MeshResponse{Success: true, Message: "Cylinder created successfully", Mesh: mesh})
}

type rotationRequest struct {
	Axis  *[3]float64 `json:"axis"`
	Angle float64     `json:"angle"`
}

type transformRequest struct {
	Translation *scene.Translation `json:"translation"`
	Rotation    *rotationRequest   `json:"rotation"`
}

// Transform translates and then rotates a registered shape. An unknown
// id is reported before the body is looked at.
func (s *Server) Transform(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.scenes.Registry().Get(id); err != nil {
		s.fail(c, "Transform failed", err)
		return
	}

	var req transformRequest
	if err := bindJSON(c, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			badRequest(c, "No transformation data provided")
			return
		}
		badRequest(c, err.Error())
		return
	}

	var rot *scene.Rotation
	if req.Rotation != nil {
		rot = &scene.Rotation{Axis: [3]float64{0, 0, 1}, Angle: req.Rotation.Angle}
		if req.Rotation.Axis != nil {
			rot.Axis = *req.Rotation.Axis
		}
	}

	mesh, err := s.scenes.Transform(id, req.Translation, rot)
	if err != nil {
		s.fail(c, "Transform failed", err)
		return
	}
	c.JSON(http.StatusOK, MeshResponse{
		Success: true,
		Message: fmt.Sprintf("Shape %s transformed successfully", id),
		Mesh:    mesh,
	})
}

// ShapeMesh returns the current mesh of a registered shape.
func (s *Server) ShapeMesh(c *gin.Context) {
	mesh, err := s.scenes.Mesh(c.Param("id"))
	if err != nil {
		s.fail(c, "Mesh failed", err)
		return
	}
	c.JSON(http.StatusOK, MeshResponse{Success: true, Mesh: mesh})
}

// ShapeBounds returns the world-space bounding box of a registered
// shape. A void box is reported as all zeros.
func (s *Server) ShapeBounds(c *gin.Context) {
	box, ok, err := s.scenes.BoundingBox(c.Param("id"))
	if err != nil {
		s.fail(c, "Bounds failed", err)
		return
	}
	var lo, hi, center [3]float64
	if ok {
		mid := box.Center()
		lo = [3]float64{box.Min.X, box.Min.Y, box.Min.Z}
		hi = [3]float64{box.Max.X, box.Max.Y, box.Max.Z}
		center = [3]float64{mid.X, mid.Y, mid.Z}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "min": lo, "max": hi, "center": center})
}

type exportRequest struct {
	ProjectID string `json:"projectId"`
	GroupName string `json:"groupName"`
}

// ExportShape writes a registered shape's current mesh to the STL store
// as a binary STL. groupName defaults to the shape id.
func (s *Server) ExportShape(c *gin.Context) {
	id := c.Param("id")
	var req exportRequest
	if err := bindJSON(c, &req); err != nil && !errors.Is(err, errEmptyBody) {
		badRequest(c, err.Error())
		return
	}
	if req.ProjectID == "" {
		badRequest(c, "Missing required field: projectId")
		return
	}
	if req.GroupName == "" {
		req.GroupName = id
	}

	mesh, err := s.scenes.Mesh(id)
	if err != nil {
		s.fail(c, "Export failed", err)
		return
	}
	stored, err := s.store.SaveMesh(req.ProjectID, req.GroupName, mesh)
	if err != nil {
		s.fail(c, "Export failed", err)
		return
	}
	s.logger.Info("shape exported", zap.String("id", id), zap.String("path", stored.FilePath))
	c.JSON(http.StatusOK, storedResponse(stored))
}
