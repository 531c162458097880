package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type DocumentHandler struct {
	docService service.DocumentService
}

func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

func (h *DocumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	docs := router.Group("/api/documents")
	{
		docs.POST("", middleware.RequireRole("partner", "admin", "university"), h.UploadDocument)
		docs.GET("", middleware.RequireRole("admin", "partner", "university", "immigration"), h.ListDocuments)
		docs.POST("/:id/review", middleware.RequireRole("admin"), h.ReviewDocument)
	}

	router.POST("/api/document-requests", middleware.RequireRole("admin"), h.CreateDocumentRequest)
}

// UploadDocument records an uploaded document and runs the upload triggers
// @Summary      Upload document
// @Tags         documents
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.UploadDocumentRequest  true  "Document payload"
// @Success      201  {object}  response.Response{data=service.UploadResult}
// @Failure      400  {object}  response.Response
// @Router       /api/documents [post]
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	var req service.UploadDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, _ := currentUser(c)
	result, err := h.docService.UploadDocument(c.Request.Context(), userID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ListDocuments lists all document versions of an application
// @Summary      List documents
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        application_id  query  string  true  "Application ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/documents [get]
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	applicationID := c.Query("application_id")
	if applicationID == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "application_id query parameter is required"))
		return
	}

	docs, err := h.docService.ListDocuments(c.Request.Context(), applicationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, docs))
}

// ReviewDocument records an admin decision on a document
// @Summary      Review document
// @Tags         documents
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                         true  "Document ID"
// @Param        payload  body  service.ReviewDocumentRequest  true  "Review payload"
// @Success      200  {object}  response.Response{data=service.ReviewResult}
// @Failure      400  {object}  response.Response
// @Router       /api/documents/{id}/review [post]
func (h *DocumentHandler) ReviewDocument(c *gin.Context) {
	var req service.ReviewDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, _ := currentUser(c)
	result, err := h.docService.ReviewDocument(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// CreateDocumentRequest issues a document checklist for an application
// @Summary      Create document request
// @Tags         documents
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.CreateDocumentRequestDTO  true  "Checklist payload"
// @Success      201  {object}  response.Response{data=service.DocumentRequestResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/document-requests [post]
func (h *DocumentHandler) CreateDocumentRequest(c *gin.Context) {
	var req service.CreateDocumentRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID, _ := currentUser(c)
	result, err := h.docService.CreateDocumentRequest(c.Request.Context(), userID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}
