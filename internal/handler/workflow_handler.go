package handler

import (
	"net/http"
	"strconv"

	"backend/internal/middleware"
	"backend/internal/workflow"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// WorkflowHandler exposes the status catalog and transition graph so clients
// can render stage boards without hardcoding the pipeline.
type WorkflowHandler struct{}

func NewWorkflowHandler() *WorkflowHandler {
	return &WorkflowHandler{}
}

func (h *WorkflowHandler) RegisterRoutes(router *gin.RouterGroup) {
	wf := router.Group("/api/workflow")
	wf.Use(middleware.RequireRole("admin", "partner", "university", "immigration"))
	{
		wf.GET("/statuses", h.ListStatuses)
		wf.GET("/transitions", h.ListTransitions)
	}
}

type statusEntry struct {
	Status      string   `json:"status"`
	Stage       int      `json:"stage"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	ActingRole  string   `json:"acting_role"`
	Terminal    bool     `json:"terminal"`
	Transitions []string `json:"transitions"`
}

// ListStatuses returns the full status catalog grouped by stage
// @Summary      List workflow statuses
// @Tags         workflow
// @Security     BearerAuth
// @Produce      json
// @Param        stage  query  int  false  "Limit to one stage (1-5)"
// @Success      200  {object}  response.Response
// @Router       /api/workflow/statuses [get]
func (h *WorkflowHandler) ListStatuses(c *gin.Context) {
	only, _ := strconv.Atoi(c.DefaultQuery("stage", "0"))

	catalog := make(map[string][]statusEntry)
	for stage := 1; stage <= 5; stage++ {
		if only != 0 && stage != only {
			continue
		}
		var entries []statusEntry
		for _, status := range workflow.StatusesForStage(stage) {
			info, err := workflow.Lookup(stage, status)
			if err != nil {
				continue
			}
			entries = append(entries, statusEntry{
				Status:      status,
				Stage:       stage,
				Label:       info.Label,
				Description: info.Description,
				ActingRole:  string(info.ActingRole),
				Terminal:    workflow.IsTerminal(status),
				Transitions: workflow.AvailableTransitions(stage, status),
			})
		}
		catalog["stage_"+strconv.Itoa(stage)] = entries
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, catalog))
}

// ListTransitions returns the reachable statuses from a given (stage, status)
// @Summary      List transitions for a status
// @Tags         workflow
// @Security     BearerAuth
// @Produce      json
// @Param        stage   query  int     true  "Pipeline stage (1-5)"
// @Param        status  query  string  true  "Current status"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/workflow/transitions [get]
func (h *WorkflowHandler) ListTransitions(c *gin.Context) {
	stage, err := strconv.Atoi(c.Query("stage"))
	if err != nil || stage < 1 || stage > 5 {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "stage must be an integer between 1 and 5"))
		return
	}
	status := c.Query("status")
	if !workflow.KnownStatus(status) {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "unknown status: "+status))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"status":      status,
		"transitions": workflow.AvailableTransitions(stage, status),
		"next_actor":  string(workflow.NextActor(stage, status)),
	}))
}
