package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dshills/research-team/workflow"
)

// StartRequest is the body of POST /api/start_workflow.
type StartRequest struct {
	Topic            string   `json:"topic"`
	Depth            string   `json:"depth,omitempty"`
	ContentType      string   `json:"content_type,omitempty"`
	Audience         string   `json:"audience,omitempty"`
	FocusAreas       []string `json:"focus_areas,omitempty"`
	QualityThreshold *float64 `json:"quality_threshold,omitempty"`
}

// StatusView is the status payload of GET /api/workflow_status/:id.
type StatusView struct {
	WorkflowID      string               `json:"workflow_id"`
	Topic           string               `json:"topic"`
	Status          workflow.Status      `json:"status"`
	CurrentStep     int                  `json:"current_step"`
	TotalSteps      int                  `json:"total_steps"`
	CompletedStages []workflow.Stage     `json:"completed_stages"`
	Error           *workflow.StageError `json:"error,omitempty"`
}

// StartWorkflow submits a run in the background.
// (POST /api/start_workflow)
func (s *Server) StartWorkflow(c echo.Context) error {
	var req StartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if strings.TrimSpace(req.Topic) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Topic is required")
	}

	id, err := s.Engine.Submit(c.Request().Context(), workflow.Request{
		Topic: req.Topic,
		Options: workflow.RunOptions{
			Depth:            workflow.Depth(req.Depth),
			ReportType:       workflow.ReportType(req.ContentType),
			Audience:         req.Audience,
			FocusAreas:       req.FocusAreas,
			QualityThreshold: req.QualityThreshold,
		},
	})
	if err != nil {
		return engineError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":     true,
		"workflow_id": id,
		"message":     "Workflow started successfully",
	})
}

// WorkflowStatus reports the progress of a run.
// (GET /api/workflow_status/:id)
func (s *Server) WorkflowStatus(c echo.Context) error {
	rec, err := s.Engine.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return engineError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"status": StatusView{
			WorkflowID:      rec.WorkflowID,
			Topic:           rec.Topic,
			Status:          rec.Status,
			CurrentStep:     rec.CurrentStep,
			TotalSteps:      len(workflow.Stages),
			CompletedStages: rec.CompletedStages(),
			Error:           rec.Error,
		},
	})
}

// WorkflowResults returns the report of a finished run.
// (GET /api/workflow_results/:id)
func (s *Server) WorkflowResults(c echo.Context) error {
	report, err := s.Engine.Result(c.Request().Context(), c.Param("id"))
	if err != nil {
		return engineError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"results": report,
	})
}

// ListWorkflows returns a summary of every registered run.
// (GET /api/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":   true,
		"workflows": s.Engine.List(),
	})
}

// CancelWorkflow stops a run before its next stage.
// (POST /api/workflows/:id/cancel)
func (s *Server) CancelWorkflow(c echo.Context) error {
	if err := s.Engine.Cancel(c.Param("id")); err != nil {
		return engineError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Cancellation requested",
	})
}

// AgentCapabilities describes the workers.
// (GET /api/agent_capabilities)
func (s *Server) AgentCapabilities(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":      true,
		"capabilities": s.Engine.Capabilities(),
	})
}

// SystemMetrics reports run counts and worker performance.
// (GET /api/system_metrics)
func (s *Server) SystemMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"metrics": s.Engine.SystemMetrics(),
	})
}

// Health is a liveness probe.
// (GET /healthz)
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// engineError maps engine errors to HTTP errors.
func engineError(err error) error {
	var engineErr *workflow.EngineError
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Workflow not found")
	case errors.Is(err, workflow.ErrNotReady):
		return echo.NewHTTPError(http.StatusConflict, "Results not ready yet")
	case errors.As(err, &engineErr):
		switch engineErr.Code {
		case workflow.CodeInvalidRequest:
			return echo.NewHTTPError(http.StatusBadRequest, engineErr.Message)
		case workflow.CodeDuplicateWorkflow:
			return echo.NewHTTPError(http.StatusConflict, engineErr.Message)
		}
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
