package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"spectra-bot-backend/internal/common/middleware"
	licensesvc "spectra-bot-backend/internal/features/license/service"
)

type LicenseHandler struct {
	svc *licensesvc.Service
}

func NewLicenseHandler(svc *licensesvc.Service) *LicenseHandler {
	return &LicenseHandler{svc: svc}
}

// Register mounts the license routes. Key generation and deletion are
// operator-only.
func (h *LicenseHandler) Register(group *gin.RouterGroup, operatorIDs []int64) {
	group.POST("/licenses/bind", h.bind)
	group.GET("/guilds/:id/premium", h.status)

	admin := group.Group("", middleware.RequireOperator(operatorIDs))
	admin.POST("/licenses", h.generate)
	admin.DELETE("/licenses/:key", h.delete)
}

type generateLicenseRequest struct {
	// TermDays of 0 produces a key that never expires.
	TermDays int `json:"term_days"`
}

func (h *LicenseHandler) generate(c *gin.Context) {
	req := generateLicenseRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key, err := h.svc.Generate(c.Request.Context(), time.Duration(req.TermDays)*24*time.Hour)
	if err != nil {
		middleware.SendError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "key": key})
}

type bindLicenseRequest struct {
	Key     string `json:"key" binding:"required"`
	GuildID string `json:"guild_id" binding:"required"`
}

func (h *LicenseHandler) bind(c *gin.Context) {
	req := bindLicenseRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.svc.Bind(c.Request.Context(), req.Key, req.GuildID)
	if err != nil {
		middleware.SendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "premium": cfg})
}

func (h *LicenseHandler) status(c *gin.Context) {
	cfg, err := h.svc.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.SendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"active":     cfg.EffectiveActive(time.Now()),
		"expires_at": cfg.ExpiresAt,
	})
}

func (h *LicenseHandler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("key")); err != nil {
		middleware.SendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
