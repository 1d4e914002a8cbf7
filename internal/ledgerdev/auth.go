package ledgerdev

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/log"
	"fintrack/internal/storage"
)

const (
	ctxUserID      = "user_id"
	minPasswordLen = 6
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = normalizeEmail(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		abort(c, http.StatusBadRequest, "username, email and password are required")
		return
	}
	if len(req.Password) < minPasswordLen {
		abort(c, http.StatusBadRequest, "password too short (min 6)")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		abort(c, http.StatusInternalServerError, "failed to register user")
		return
	}
	u, err := s.repo.CreateUser(c.Request.Context(), storage.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	})
	if errors.Is(err, storage.ErrConflict) {
		abort(c, http.StatusConflict, "User already exists")
		return
	}
	if err != nil {
		s.logger.ErrorContext(c.Request.Context(), "Failed to create user",
			log.NewFields().WithOperation(log.OpRegister).WithError(err, log.ErrorTypeDatabase).ToSlice()...)
		abort(c, http.StatusInternalServerError, "failed to register user")
		return
	}

	s.logger.InfoContext(c.Request.Context(), "User registered", log.FieldUserID, u.ID)
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body")
		return
	}
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		abort(c, http.StatusBadRequest, "email and password are required")
		return
	}

	u, err := s.repo.UserByEmail(c.Request.Context(), email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		abort(c, http.StatusInternalServerError, "login failed")
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		abort(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		abort(c, http.StatusInternalServerError, "failed to generate token")
		return
	}
	s.logger.InfoContext(c.Request.Context(), "User logged in",
		log.FieldOperation, log.OpLogin, log.FieldUserID, u.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "token": token})
}

// requireAuth resolves the bearer credential to an existing user.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abort(c, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}
		userID, err := s.tokens.Verify(strings.TrimSpace(raw))
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		if _, err := s.repo.UserByID(c.Request.Context(), userID); err != nil {
			abort(c, http.StatusUnauthorized, "user not found")
			return
		}
		c.Set(ctxUserID, userID)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
