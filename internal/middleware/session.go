package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sinovhub/sinov-backend/internal/response"
	"github.com/sinovhub/sinov-backend/internal/service"
)

// CheckSingleDeviceLogin enforces one active device per student. The
// token's JTI must match the login recorded in Redis; when a teacher
// resets a student's login, or the student logs in elsewhere, older
// tokens stop matching and are turned away here.
func CheckSingleDeviceLogin(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if claims.TokenType != service.TokenTypeStudent {
			c.Next()
			return
		}

		if err := authService.ValidateStudentLogin(c.Request.Context(), claims.UserID, claims.ID); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrLoginInvalidated)
			return
		}
		c.Next()
	}
}
