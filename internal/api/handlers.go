// Package api is the thin HTTP adapter over the Runtime's transport-agnostic
// operations: execute, resume, getExecution, listNodeExecutions,
// listExecutions, getServiceMetric.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/workflowengine/internal/graph"
	"github.com/lyzr/workflowengine/internal/logger"
	"github.com/lyzr/workflowengine/internal/runtime"
)

// Handler adapts Interpreter operations to echo request handlers.
type Handler struct {
	Runtime *runtime.Interpreter
	Log     *logger.Logger
}

// Register mounts every workflow engine route under e.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/workflows/execute", h.Execute)
	e.POST("/workflows/:id/resume", h.Resume)
	e.GET("/workflows/:id", h.GetExecution)
	e.GET("/workflows/:id/nodes", h.ListNodeExecutions)
	e.GET("/workflows", h.ListExecutions)
	e.GET("/metrics/service/:nodeID", h.GetServiceMetric)
	e.GET("/healthz", h.Health)
}

// executeRequest is the execute operation's input shape.
type executeRequest struct {
	Graph        json.RawMessage        `json:"graph"`
	Inputs       map[string]interface{} `json:"inputs"`
	WorkflowName string                 `json:"workflow_name"`
}

func (h *Handler) Execute(c echo.Context) error {
	var req executeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var doc graph.Document
	if err := json.Unmarshal(req.Graph, &doc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid workflow graph: "+err.Error())
	}

	result, err := h.Runtime.Execute(c.Request().Context(), &doc, req.Inputs, req.WorkflowName)
	if err != nil {
		h.Log.Error("execute failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to execute workflow")
	}

	return c.JSON(http.StatusOK, result)
}

type resumeRequest struct {
	FormData map[string]interface{} `json:"form_data"`
}

func (h *Handler) Resume(c echo.Context) error {
	id := c.Param("id")

	var req resumeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.Runtime.Resume(c.Request().Context(), id, req.FormData)
	if err != nil {
		switch {
		case errors.Is(err, runtime.ErrExecutionNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "execution not found")
		case errors.Is(err, runtime.ErrNotPaused):
			return echo.NewHTTPError(http.StatusBadRequest, "execution is not paused")
		default:
			h.Log.Error("resume failed", "execution_id", id, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to resume workflow")
		}
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) GetExecution(c echo.Context) error {
	id := c.Param("id")

	detail, err := h.Runtime.GetExecution(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, runtime.ErrExecutionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "execution not found")
		}
		h.Log.Error("get execution failed", "execution_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load execution")
	}

	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) ListNodeExecutions(c echo.Context) error {
	id := c.Param("id")

	list, err := h.Runtime.ListNodeExecutions(c.Request().Context(), id)
	if err != nil {
		h.Log.Error("list node executions failed", "execution_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list node executions")
	}

	return c.JSON(http.StatusOK, list)
}

func (h *Handler) ListExecutions(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	list, err := h.Runtime.ListExecutions(c.Request().Context(), limit)
	if err != nil {
		h.Log.Error("list executions failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list executions")
	}

	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetServiceMetric(c echo.Context) error {
	nodeID := c.Param("nodeID")

	metric, err := h.Runtime.GetServiceMetric(c.Request().Context(), nodeID)
	if err != nil {
		if errors.Is(err, runtime.ErrMetricNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "service metric not found")
		}
		h.Log.Error("get service metric failed", "node_id", nodeID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load service metric")
	}

	return c.JSON(http.StatusOK, metric)
}

func (h *Handler) Health(c echo.Context) error {
	if err := h.Runtime.Ledger.Health(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "ledger unreachable")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
