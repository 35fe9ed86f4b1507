package api

import (
	"errors"
	"net/http"

	"github.com/chazu/facet/pkg/script"
	"github.com/chazu/facet/pkg/tessellate"
	"github.com/gin-gonic/gin"
)

type scriptRequest struct {
	Source  string `json:"source"`
	Session string `json:"session"`
}

// ScriptResponse is the outcome of a script run. Success is false
// whenever Errors is non-empty.
type ScriptResponse struct {
	Success bool               `json:"success"`
	Meshes  []*tessellate.Mesh `json:"meshes"`
	Errors  []script.EvalError `json:"errors"`
}

// RunScript evaluates a scene script. Fatal failures (timeout, a newer
// run in the same session) are reported as a single error without a
// line number.
func (s *Server) RunScript(c *gin.Context) {
	var req scriptRequest
	if err := bindJSON(c, &req); err != nil && !errors.Is(err, errEmptyBody) {
		badRequest(c, err.Error())
		return
	}

	resp := ScriptResponse{Meshes: []*tessellate.Mesh{}, Errors: []script.EvalError{}}
	res, err := s.scripts.Evaluate(req.Session, req.Source)
	switch {
	case errors.Is(err, script.ErrSuperseded):
		resp.Errors = append(resp.Errors, script.EvalError{Message: err.Error()})
		c.JSON(http.StatusConflict, resp)
		return
	case err != nil:
		resp.Errors = append(resp.Errors, script.EvalError{Message: err.Error()})
	default:
		resp.Meshes = append(resp.Meshes, res.Meshes...)
		resp.Errors = append(resp.Errors, res.Errors...)
	}
	resp.Success = len(resp.Errors) == 0
	c.JSON(http.StatusOK, resp)
}
