package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sinovhub/sinov-backend/internal/config"
	"github.com/sinovhub/sinov-backend/internal/service"
)

func testAuthService() *service.AuthService {
	return service.NewAuthService(&config.Config{
		JWTSecret: "test-secret",
		JWTExpiry: time.Hour,
	}, nil)
}

// signToken mints a token of the given type directly, bypassing the
// Redis login registration the auth service does for students.
func signToken(t *testing.T, tokenType service.TokenType, userID int) string {
	t.Helper()
	now := time.Now()
	claims := service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		TokenType: tokenType,
		UserID:    userID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func protectedRouter(authService *service.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/student", RequireStudentJWT(authService), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/teacher", RequireTeacherJWT(authService), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestTokenTypeGating(t *testing.T) {
	authService := testAuthService()
	r := protectedRouter(authService)

	studentToken := signToken(t, service.TokenTypeStudent, 7)
	teacherToken := signToken(t, service.TokenTypeTeacher, 3)

	cases := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"student token on student route", "/student", studentToken, http.StatusOK},
		{"teacher token on teacher route", "/teacher", teacherToken, http.StatusOK},
		{"teacher token on student route", "/student", teacherToken, http.StatusForbidden},
		{"student token on teacher route", "/teacher", studentToken, http.StatusForbidden},
		{"no token", "/student", "", http.StatusUnauthorized},
		{"garbage token", "/student", "not-a-jwt", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
		})
	}
}

func TestTokenFromQueryParam(t *testing.T) {
	authService := testAuthService()
	r := protectedRouter(authService)

	token := signToken(t, service.TokenTypeStudent, 7)
	req := httptest.NewRequest(http.MethodGet, "/student?token="+token, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestClaimsStoredInContext(t *testing.T) {
	authService := testAuthService()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/student", RequireStudentJWT(authService), func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		if claims.TokenType != service.TokenTypeStudent || claims.UserID != 7 {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/student", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, service.TokenTypeStudent, 7))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
