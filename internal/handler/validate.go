package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/license-key-service/internal/handler/dto"
	"github.com/makkenzo/license-key-service/internal/service"
	"go.uber.org/zap"
)

type ValidateHandler struct {
	service *service.ValidationService
	logger  *zap.Logger
}

func NewValidateHandler(service *service.ValidationService, logger *zap.Logger) *ValidateHandler {
	return &ValidateHandler{
		service: service,
		logger:  logger.Named("ValidateHandler"),
	}
}

// Validate always answers 200 for a decided outcome; a rejected key is a
// normal response with valid=false.
func (h *ValidateHandler) Validate(c *gin.Context) {
	var req dto.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Failed to bind validate request", zap.Error(err))
		_ = c.Error(bindError(err))
		return
	}

	res, err := h.service.Validate(c.Request.Context(), req.Key, req.Device())
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.logger.Debug("Validation decided",
		zap.String("key", req.Key),
		zap.Bool("valid", res.Valid),
		zap.String("reason", string(res.Reason)),
	)
	c.JSON(http.StatusOK, dto.NewValidateResponse(res))
}
