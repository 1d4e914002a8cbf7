package ledgerdev

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

func (s *Server) account(c *gin.Context) {
	u, err := s.repo.UserByID(c.Request.Context(), userID(c))
	if err != nil {
		abort(c, http.StatusUnauthorized, "user not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": u.Username, "email": u.Email})
}

// updateAccount changes username and email; the password only when one is
// supplied.
func (s *Server) updateAccount(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body")
		return
	}
	upd := core.AccountUpdate{
		Username: strings.TrimSpace(req.Username),
		Email:    normalizeEmail(req.Email),
		Password: req.Password,
	}
	if err := upd.Validate(); err != nil {
		abort(c, http.StatusBadRequest, core.Capitalize(err.Error()))
		return
	}

	ctx := c.Request.Context()
	u, err := s.repo.UserByID(ctx, userID(c))
	if err != nil {
		abort(c, http.StatusUnauthorized, "user not found")
		return
	}
	u.Username, u.Email = upd.Username, upd.Email
	if upd.ChangesPassword() {
		if len(upd.Password) < minPasswordLen {
			abort(c, http.StatusBadRequest, "password too short (min 6)")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(upd.Password), bcrypt.DefaultCost)
		if err != nil {
			abort(c, http.StatusInternalServerError, "failed to update profile")
			return
		}
		u.PasswordHash = string(hash)
	}

	switch err := s.repo.UpdateUser(ctx, u); {
	case errors.Is(err, storage.ErrConflict):
		abort(c, http.StatusConflict, "Username or email already in use")
		return
	case err != nil:
		s.logger.ErrorContext(ctx, "Failed to update account",
			log.NewFields().WithOperation(log.OpAccount).WithError(err, log.ErrorTypeDatabase).ToSlice()...)
		abort(c, http.StatusInternalServerError, "failed to update profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully"})
}
