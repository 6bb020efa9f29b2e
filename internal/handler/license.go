package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/license-key-service/internal/handler/dto"
	"github.com/makkenzo/license-key-service/internal/ierr"
	"github.com/makkenzo/license-key-service/internal/service"
	"go.uber.org/zap"
)

type LicenseHandler struct {
	service *service.LicenseService
	logger  *zap.Logger
	now     func() time.Time
}

func NewLicenseHandler(service *service.LicenseService, logger *zap.Logger) *LicenseHandler {
	return &LicenseHandler{
		service: service,
		logger:  logger.Named("LicenseHandler"),
		now:     time.Now,
	}
}

func (h *LicenseHandler) Generate(c *gin.Context) {
	var req dto.GenerateKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind generate request", zap.Error(err))
		_ = c.Error(bindError(err))
		return
	}
	req.Normalize()

	keys, err := h.service.Generate(c.Request.Context(), service.GenerateParams{
		Type:       req.Type,
		Quantity:   req.Quantity,
		CustomDays: req.CustomDays,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	now := h.now()
	resp := dto.GenerateKeysResponse{
		Success: true,
		Message: fmt.Sprintf("Generated %d %s key(s)", len(keys), keys[0].Type),
		Keys:    make([]*dto.LicenseKeyResponse, len(keys)),
	}
	for i, k := range keys {
		resp.Keys[i] = dto.NewLicenseKeyResponse(k, now)
	}

	h.logger.Info("License keys generated via handler", zap.Int("count", len(keys)))
	c.JSON(http.StatusCreated, resp)
}

func (h *LicenseHandler) List(c *gin.Context) {
	keys, stats, err := h.service.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	now := h.now()
	resp := dto.ListKeysResponse{
		Success: true,
		Keys:    make([]*dto.LicenseKeyResponse, len(keys)),
		Stats:   dto.NewStatsResponse(stats),
	}
	for i, k := range keys {
		resp.Keys[i] = dto.NewMaskedLicenseKeyResponse(k, now)
	}

	h.logger.Debug("License keys listed via handler", zap.Int("count", len(keys)))
	c.JSON(http.StatusOK, resp)
}

func (h *LicenseHandler) Revoke(c *gin.Context) {
	var req dto.KeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind revoke request", zap.Error(err))
		_ = c.Error(bindError(err))
		return
	}

	if err := h.service.Revoke(c.Request.Context(), strings.TrimSpace(req.Key)); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true, Message: "Key revoked successfully"})
}

// Delete accepts the key either as a path parameter or in a JSON body.
func (h *LicenseHandler) Delete(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		var req dto.KeyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("Failed to bind delete request", zap.Error(err))
			_ = c.Error(bindError(err))
			return
		}
		key = req.Key
	}

	key = strings.TrimSpace(key)
	if key == "" {
		_ = c.Error(fmt.Errorf("%w: key is required", ierr.ErrValidation))
		return
	}

	if err := h.service.Delete(c.Request.Context(), key); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true, Message: "Key deleted successfully"})
}

func (h *LicenseHandler) Stats(c *gin.Context) {
	d, err := h.service.Dashboard(c.Request.Context(), service.DefaultActivityLimit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewDashboardResponse(d.Stats, d.Breakdown, d.Activity))
}

func (h *LicenseHandler) Reconcile(c *gin.Context) {
	res, err := h.service.Reconcile(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewReconcileResponse(res))
}
