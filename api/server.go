// Package api contains the HTTP handlers for the research workflow service.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/research-team/workflow"
)

// Server holds the dependencies for the API server.
type Server struct {
	Engine   *workflow.Engine
	Gatherer prometheus.Gatherer
}

// NewServer creates a new Server. gatherer may be nil, in which case
// /metrics is not mounted.
func NewServer(engine *workflow.Engine, gatherer prometheus.Gatherer) *Server {
	return &Server{Engine: engine, Gatherer: gatherer}
}

// NewEcho builds an echo instance with every route registered. Extra
// middleware such as tracing runs after panic recovery.
func NewEcho(s *Server, mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.Recover())
	e.Use(mw...)
	s.Register(e)
	return e
}

// Register mounts the routes on e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.Health)

	g := e.Group("/api")
	g.POST("/start_workflow", s.StartWorkflow)
	g.GET("/workflow_status/:id", s.WorkflowStatus)
	g.GET("/workflow_results/:id", s.WorkflowResults)
	g.GET("/workflows", s.ListWorkflows)
	g.POST("/workflows/:id/cancel", s.CancelWorkflow)
	g.GET("/agent_capabilities", s.AgentCapabilities)
	g.GET("/system_metrics", s.SystemMetrics)

	if s.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})))
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// errorHandler renders every error in the {"success": false} envelope.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, errorResponse{Success: false, Error: msg})
}
