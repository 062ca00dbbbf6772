package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"spectra-bot-backend/internal/common/errors"
	"spectra-bot-backend/internal/common/middleware"
	giveawaysvc "spectra-bot-backend/internal/features/giveaway/service"
)

type GiveawayHandler struct {
	svc *giveawaysvc.Service
}

func NewGiveawayHandler(svc *giveawaysvc.Service) *GiveawayHandler {
	return &GiveawayHandler{svc: svc}
}

func (h *GiveawayHandler) Register(group *gin.RouterGroup) {
	group.POST("/giveaways", h.start)
	group.POST("/giveaways/:id/end", h.endNow)
	group.PUT("/guilds/:id/giveaway-channel", h.setChannel)
}

type startGiveawayRequest struct {
	GuildID         string `json:"guild_id"`
	ChannelID       string `json:"channel_id" binding:"required"`
	Prize           string `json:"prize" binding:"required"`
	HostID          string `json:"host_id" binding:"required"`
	WinnersCount    int    `json:"winners_count"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (h *GiveawayHandler) start(c *gin.Context) {
	req := startGiveawayRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.WinnersCount == 0 {
		req.WinnersCount = 1
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = 60
	}

	id, err := h.svc.Start(c.Request.Context(), giveawaysvc.StartRequest{
		GuildID:      req.GuildID,
		ChannelID:    req.ChannelID,
		Prize:        req.Prize,
		HostID:       req.HostID,
		WinnersCount: req.WinnersCount,
		Duration:     time.Duration(req.DurationMinutes) * time.Minute,
	})
	if err != nil {
		// A degraded write still started the giveaway; the caller gets the
		// id with 202 instead of a failure.
		if appErr, ok := errors.AsAppError(err); ok && appErr.IsDegradedWrite() && id != "" {
			c.JSON(http.StatusAccepted, gin.H{
				"success":     true,
				"giveaway_id": id,
				"warning":     appErr.Message,
			})
			return
		}
		middleware.SendError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "giveaway_id": id})
}

func (h *GiveawayHandler) endNow(c *gin.Context) {
	outcome, err := h.svc.EndNow(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.SendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "outcome": outcome})
}

type setChannelRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
}

func (h *GiveawayHandler) setChannel(c *gin.Context) {
	req := setChannelRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.SetGiveawayChannel(c.Request.Context(), c.Param("id"), req.ChannelID); err != nil {
		middleware.SendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
