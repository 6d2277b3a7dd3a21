package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luislascano01/Stratvithor/core/promptgraph"
	"github.com/luislascano01/Stratvithor/core/report"
	"github.com/luislascano01/Stratvithor/core/task"
	"github.com/luislascano01/Stratvithor/providers/store"
)

// GenerateReportRequest is the body of POST /generate_report.
type GenerateReportRequest struct {
	CompanyName      string `json:"company_name" binding:"required,max=256"`
	PromptName       string `json:"prompt_name" binding:"required"`
	Mock             bool   `json:"mock"`
	WebSearch        bool   `json:"web_search"`
	FinancialContext bool   `json:"financial_context"`
}

// GenerateReportResponse is the reply to POST /generate_report.
type GenerateReportResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (server *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "running"})
}

func (server *Server) listDefinitions(c *gin.Context) {
	c.JSON(http.StatusOK, server.service.ListGraphDefinitions())
}

func (server *Server) generateReport(c *gin.Context) {
	var request GenerateReportRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	taskID, err := server.service.CreateTask(c.Request.Context(), request.CompanyName, request.PromptName, task.Options{
		Mock:             request.Mock,
		WebSearch:        request.WebSearch,
		FinancialContext: request.FinancialContext,
	})
	if err != nil {
		server.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, GenerateReportResponse{TaskID: taskID, Status: "Processing started"})
}

func (server *Server) listTasks(c *gin.Context) {
	c.JSON(http.StatusOK, server.service.ListTasks())
}

func (server *Server) taskStatus(c *gin.Context) {
	taskID := c.Param("task_id")

	if nodeID := c.Query("node"); nodeID != "" {
		state, err := server.service.NodeStatus(taskID, nodeID)
		if err != nil {
			server.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
		return
	}

	snapshot, err := server.service.Status(taskID)
	if err != nil {
		server.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (server *Server) cancelTask(c *gin.Context) {
	if err := server.service.Cancel(c.Param("task_id")); err != nil {
		server.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (server *Server) saveTask(c *gin.Context) {
	record, err := server.service.Save(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		server.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (server *Server) releaseTask(c *gin.Context) {
	if err := server.service.Release(c.Param("task_id")); err != nil {
		server.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (server *Server) listSaved(c *gin.Context) {
	taskIDs, err := server.service.ListSaved(c.Request.Context())
	if err != nil {
		server.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, taskIDs)
}

func (server *Server) getSaved(c *gin.Context) {
	record, err := server.service.GetSaved(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		server.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (server *Server) fail(c *gin.Context, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		server.logger.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, errorResponse{Error: err.Error()})
}

func errorStatus(err error) int {
	var definitionErr promptgraph.GraphDefinitionError
	switch {
	case errors.Is(err, task.ErrTaskNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, report.ErrInvalidRequest), errors.Is(err, promptgraph.ErrDefinitionNotFound):
		return http.StatusBadRequest
	case errors.As(err, &definitionErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, task.ErrRegistryClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
