package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"spectra-bot-backend/internal/common/middleware"
	"spectra-bot-backend/internal/features/leveling"
)

type LevelingHandler struct {
	svc *leveling.Service
}

func NewLevelingHandler(svc *leveling.Service) *LevelingHandler {
	return &LevelingHandler{svc: svc}
}

func (h *LevelingHandler) Register(group *gin.RouterGroup) {
	group.POST("/events/message", h.messageEvent)
	group.GET("/users/:id/rank", h.rank)
	group.GET("/leaderboard", h.leaderboard)
}

type messageEventRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	ChannelID string `json:"channel_id"`
}

func (h *LevelingHandler) messageEvent(c *gin.Context) {
	req := messageEventRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, leveledUp, err := h.svc.GrantMessageXP(c.Request.Context(), req.ChannelID, req.UserID)
	if err != nil {
		middleware.SendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "profile": profile, "leveled_up": leveledUp})
}

func (h *LevelingHandler) rank(c *gin.Context) {
	profile, err := h.svc.Rank(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.SendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "profile": profile})
}

func (h *LevelingHandler) leaderboard(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	profiles, err := h.svc.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		middleware.SendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "leaderboard": profiles})
}
