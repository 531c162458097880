package handler

import (
	"net/http"
	"strconv"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApplicationHandler struct {
	appService service.ApplicationService
}

func NewApplicationHandler(appService service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{appService: appService}
}

func (h *ApplicationHandler) RegisterRoutes(router *gin.RouterGroup) {
	apps := router.Group("/api/applications")
	{
		apps.POST("", middleware.RequireRole("partner", "admin"), h.CreateApplication)
		apps.GET("", middleware.RequireRole("admin", "partner", "university", "immigration"), h.ListApplications)
		apps.GET("/:id", middleware.RequireRole("admin", "partner", "university", "immigration"), h.GetApplication)
		apps.GET("/:id/transitions", middleware.RequireRole("admin", "partner", "university", "immigration"), h.AvailableTransitions)
		apps.POST("/:id/submit", middleware.RequireRole("partner", "admin"), h.SubmitApplication)
		apps.PATCH("/:id/status", middleware.RequireRole("admin", "partner", "university", "immigration"), h.UpdateStatus)
		apps.POST("/:id/hold", middleware.RequireRole("admin"), h.HoldApplication)
		apps.POST("/:id/resume", middleware.RequireRole("admin"), h.ResumeApplication)
		apps.POST("/:id/cancel", middleware.RequireRole("admin"), h.CancelApplication)
		apps.POST("/:id/commission/settle", middleware.RequireRole("admin"), h.SettleCommission)
	}
}

// currentUser extracts the authenticated user id and role set by RequireRole
func currentUser(c *gin.Context) (userID, role string) {
	if v, ok := c.Get("userID"); ok {
		userID, _ = v.(string)
	}
	if v, ok := c.Get("userRole"); ok {
		role, _ = v.(string)
	}
	return userID, role
}

// CreateApplication creates a new draft application
// @Summary      Create application
// @Tags         applications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.CreateApplicationRequest  true  "Application payload"
// @Success      201  {object}  response.Response{data=service.ApplicationResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/applications [post]
func (h *ApplicationHandler) CreateApplication(c *gin.Context) {
	var req service.CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, _ := currentUser(c)
	app, err := h.appService.CreateApplication(c.Request.Context(), userID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, app))
}

// ListApplications returns paginated applications with optional filters
// @Summary      List applications
// @Tags         applications
// @Security     BearerAuth
// @Produce      json
// @Param        page      query  int     false  "Page number (default: 1)"
// @Param        limit     query  int     false  "Items per page (default: 20)"
// @Param        stage     query  int     false  "Filter by pipeline stage (1-5)"
// @Param        status    query  string  false  "Filter by current status"
// @Param        priority  query  string  false  "Filter by priority: low, medium, high"
// @Param        partner   query  string  false  "Filter by partner user ID"
// @Success      200  {object}  response.Response
// @Router       /api/applications [get]
func (h *ApplicationHandler) ListApplications(c *gin.Context) {
	params := pagination.Parse(c)
	stage, _ := strconv.Atoi(c.DefaultQuery("stage", "0"))

	filter := service.ApplicationListFilter{
		Stage:    stage,
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Partner:  c.Query("partner"),
		Page:     params.Page,
		Limit:    params.Limit,
	}

	// Partners only see their own applications
	userID, role := currentUser(c)
	if role == "partner" {
		filter.Partner = userID
	}

	apps, total, err := h.appService.ListApplications(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, apps, params.Page, params.Limit, total))
}

// GetApplication fetches one application with its stage history
// @Summary      Get application
// @Tags         applications
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Application ID"
// @Success      200  {object}  response.Response{data=service.ApplicationResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/applications/{id} [get]
func (h *ApplicationHandler) GetApplication(c *gin.Context) {
	app, err := h.appService.GetApplication(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}

// AvailableTransitions lists the statuses the caller may move the application to
// @Summary      List available transitions
// @Tags         applications
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Application ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/applications/{id}/transitions [get]
func (h *ApplicationHandler) AvailableTransitions(c *gin.Context) {
	_, role := currentUser(c)
	transitions, err := h.appService.AvailableTransitions(c.Request.Context(), c.Param("id"), role)
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"transitions": transitions}))
}

// SubmitApplication submits a draft into the review pipeline
// @Summary      Submit application
// @Tags         applications
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Application ID"
// @Success      200  {object}  response.Response{data=service.TriggerResult}
// @Failure      400  {object}  response.Response
// @Router       /api/applications/{id}/submit [post]
func (h *ApplicationHandler) SubmitApplication(c *gin.Context) {
	userID, _ := currentUser(c)
	result, err := h.appService.SubmitApplication(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// UpdateStatus performs a manual status transition
// @Summary      Update application status
// @Tags         applications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                       true  "Application ID"
// @Param        payload  body  service.UpdateStatusRequest  true  "Status payload"
// @Success      200  {object}  response.Response{data=service.ApplicationResponse}
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/applications/{id}/status [patch]
func (h *ApplicationHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, role := currentUser(c)
	app, err := h.appService.UpdateStatus(c.Request.Context(), c.Param("id"), userID, role, req)
	if err != nil {
		status := http.StatusBadRequest
		if service.IsConflict(err) {
			status = http.StatusConflict
		}
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}

// HoldApplication pauses an application
// @Summary      Hold application
// @Tags         applications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string               true  "Application ID"
// @Param        payload  body  service.HoldRequest  true  "Hold payload"
// @Success      200  {object}  response.Response{data=service.ApplicationResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/applications/{id}/hold [post]
func (h *ApplicationHandler) HoldApplication(c *gin.Context) {
	var req service.HoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, _ := currentUser(c)
	app, err := h.appService.HoldApplication(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}

// ResumeApplication resumes a held application to its previous status
// @Summary      Resume application
// @Tags         applications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                 true  "Application ID"
// @Param        payload  body  service.ResumeRequest  true  "Resume payload"
// @Success      200  {object}  response.Response{data=service.ApplicationResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/applications/{id}/resume [post]
func (h *ApplicationHandler) ResumeApplication(c *gin.Context) {
	var req service.ResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, _ := currentUser(c)
	app, err := h.appService.ResumeApplication(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}

// CancelApplication cancels an application permanently
// @Summary      Cancel application
// @Tags         applications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                 true  "Application ID"
// @Param        payload  body  service.CancelRequest  true  "Cancel payload"
// @Success      200  {object}  response.Response{data=service.ApplicationResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/applications/{id}/cancel [post]
func (h *ApplicationHandler) CancelApplication(c *gin.Context) {
	var req service.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, _ := currentUser(c)
	app, err := h.appService.CancelApplication(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}

// SettleCommission records the commission invoice and payment for stage 5
// @Summary      Settle commission
// @Tags         applications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                           true  "Application ID"
// @Param        payload  body  service.SettleCommissionRequest  true  "Commission payload"
// @Success      200  {object}  response.Response{data=service.ApplicationResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/applications/{id}/commission/settle [post]
func (h *ApplicationHandler) SettleCommission(c *gin.Context) {
	var req service.SettleCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, _ := currentUser(c)
	app, err := h.appService.SettleCommission(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}
