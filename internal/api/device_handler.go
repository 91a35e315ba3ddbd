package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"forgeai/fitness-agent/internal/domain"
)

// ThemeStore keeps the per-device theme flag.
type ThemeStore interface {
	Theme(ctx context.Context, deviceID string) (domain.Theme, error)
	SetTheme(ctx context.Context, deviceID string, theme domain.Theme) error
}

type DeviceHandler struct {
	themes ThemeStore
}

func NewDeviceHandler(themes ThemeStore) *DeviceHandler {
	return &DeviceHandler{themes: themes}
}

func (h *DeviceHandler) GetTheme(c *gin.Context) {
	deviceID, err := getDeviceIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	theme, err := h.themes.Theme(c.Request.Context(), deviceID)
	if err != nil {
		log.Errorf("load theme for device %s: %s", deviceID, err)
		theme = domain.DefaultTheme
	}
	c.JSON(http.StatusOK, gin.H{"theme": theme})
}

func (h *DeviceHandler) SetTheme(c *gin.Context) {
	deviceID, err := getDeviceIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	var req ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Theme.IsValid() {
		abortWithError(c, http.StatusBadRequest, "theme must be light or dark")
		return
	}

	if err := h.themes.SetTheme(c.Request.Context(), deviceID, req.Theme); err != nil {
		log.Errorf("save theme for device %s: %s", deviceID, err)
		abortWithError(c, http.StatusInternalServerError, "Could not save theme")
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": req.Theme})
}
