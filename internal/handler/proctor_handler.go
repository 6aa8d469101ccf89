package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sinovhub/sinov-backend/internal/response"
	"github.com/sinovhub/sinov-backend/internal/service"
)

// ProctorHandler handles the teacher-facing proctoring endpoints.
type ProctorHandler struct {
	sessionService *service.SessionService
	authService    *service.AuthService
}

// NewProctorHandler creates a new ProctorHandler.
func NewProctorHandler(sessionService *service.SessionService, authService *service.AuthService) *ProctorHandler {
	return &ProctorHandler{
		sessionService: sessionService,
		authService:    authService,
	}
}

// IssueUnbanCode godoc
// POST /api/v1/teacher/sessions/:session_id/unban-code
// Generates a short-lived code the proctor reads out to a locked-out student.
func (h *ProctorHandler) IssueUnbanCode(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	code, err := h.sessionService.IssueUnbanCode(c.Request.Context(), sessionID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"code": code})
}

// ListResults godoc
// GET /api/v1/teacher/tests/:test_id/results?page=1&per_page=50
// Paginated per-student results of a test.
func (h *ProctorHandler) ListResults(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	results, total, err := h.sessionService.ListResults(c.Request.Context(), testID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	})
}

// ResetStudentLogin godoc
// POST /api/v1/teacher/students/:student_id/reset-login
// Clears a student's single-device login so they can sign in again.
func (h *ProctorHandler) ResetStudentLogin(c *gin.Context) {
	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.authService.ResetStudentLogin(c.Request.Context(), studentID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reset": true})
}
