package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/license-key-service/internal/config"
	"github.com/makkenzo/license-key-service/internal/handler/dto"
	"github.com/makkenzo/license-key-service/internal/handler/middleware"
	"github.com/makkenzo/license-key-service/internal/ierr"
	"github.com/makkenzo/license-key-service/internal/service"
	"go.uber.org/zap"
)

type AuthHandler struct {
	service *service.AuthService
	cfg     config.SessionConfig
	logger  *zap.Logger
}

func NewAuthHandler(service *service.AuthService, cfg config.SessionConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		cfg:     cfg,
		logger:  logger.Named("AuthHandler"),
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind login request", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: username and password are required", ierr.ErrValidation))
		return
	}

	token, sess, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.setCookie(c, token, int(h.cfg.MaxLifetime.Seconds()))
	c.JSON(http.StatusOK, dto.LoginResponse{
		Success: true,
		Message: "Login successful",
		Token:   token,
		User:    dto.SessionUser{Username: sess.Username},
	})
}

// Logout never fails from the client's point of view; the cookie is cleared
// regardless of what happened to the stored session.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.TokenFromRequest(c, h.cfg.CookieName)
	if err := h.service.Logout(c.Request.Context(), token); err != nil {
		h.logger.Warn("Failed to end session", zap.Error(err))
	}

	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true, Message: "Logged out"})
}

func (h *AuthHandler) Session(c *gin.Context) {
	sess := middleware.GetSession(c)
	if sess == nil {
		_ = c.Error(ierr.ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, dto.SessionResponse{
		Success: true,
		User:    dto.SessionUser{Username: sess.Username},
	})
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, value, maxAge, "/", "", h.cfg.Secure, true)
}
