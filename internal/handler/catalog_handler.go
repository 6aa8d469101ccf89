package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sinovhub/sinov-backend/internal/middleware"
	"github.com/sinovhub/sinov-backend/internal/response"
	"github.com/sinovhub/sinov-backend/internal/service"
)

// CatalogHandler serves the student test catalog.
type CatalogHandler struct {
	catalogService *service.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalogService *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// ListTests godoc
// GET /api/v1/student/tests
// Lists active tests for the student's grade, with take state overlaid.
func (h *CatalogHandler) ListTests(c *gin.Context) {
	claims := middleware.GetClaims(c)

	catalog, err := h.catalogService.ListForStudent(c.Request.Context(), claims.UserID, claims.GradeLevel)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"tests": catalog})
}

// GetTest godoc
// GET /api/v1/student/tests/:test_id
// Returns test metadata.
func (h *CatalogHandler) GetTest(c *gin.Context) {
	claims := middleware.GetClaims(c)

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	test, err := h.catalogService.GetTest(c.Request.Context(), testID, claims.GradeLevel)
	if err != nil {
		if errors.Is(err, service.ErrTestNotAvailable) {
			response.Fail(c, http.StatusNotFound, response.ErrTestNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// GetQuestions godoc
// GET /api/v1/student/tests/:test_id/questions
// Returns the answer-stripped question list in display order.
func (h *CatalogHandler) GetQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// Visibility check first so hidden tests don't leak their questions.
	if _, err := h.catalogService.GetTest(c.Request.Context(), testID, claims.GradeLevel); err != nil {
		if errors.Is(err, service.ErrTestNotAvailable) {
			response.Fail(c, http.StatusNotFound, response.ErrTestNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	questions, err := h.catalogService.QuestionsForStudent(c.Request.Context(), testID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}
