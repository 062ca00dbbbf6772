package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectra-bot-backend/internal/features/giveaway/models"
	giveawaysvc "spectra-bot-backend/internal/features/giveaway/service"
	"spectra-bot-backend/internal/features/registry"
	"spectra-bot-backend/internal/platform/discord"
	"spectra-bot-backend/internal/platform/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// failPutAdapter rejects every write and reports every read as missing.
type failPutAdapter struct{}

func (failPutAdapter) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	return nil, storage.ErrNotFound
}

func (failPutAdapter) Put(ctx context.Context, collection, id string, data json.RawMessage) error {
	return errors.New("put failed")
}

func (failPutAdapter) Delete(ctx context.Context, collection, id string) error {
	return storage.ErrNotFound
}

func (failPutAdapter) List(ctx context.Context, collection string) ([]storage.Record, error) {
	return nil, nil
}

type stubChat struct{}

func (stubChat) FetchMessage(ctx context.Context, channelID, messageID string) (*discord.Message, error) {
	return &discord.Message{ID: messageID, ChannelID: channelID}, nil
}

func (stubChat) FetchReactionUsers(ctx context.Context, channelID, messageID, emoji string) ([]discord.User, error) {
	return nil, nil
}

func (stubChat) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	return nil
}

type stubNotifier struct{}

func (stubNotifier) GiveawayStarted(ctx context.Context, channelID, prize, hostID string, deadline time.Time) (*discord.Message, error) {
	return &discord.Message{ID: "msg-1", ChannelID: channelID}, nil
}

func (stubNotifier) GiveawayCompleted(ctx context.Context, channelID, prize string, winners []models.Winner) {
}

func (stubNotifier) GiveawayNoEntrants(ctx context.Context, channelID, prize string) {}

func TestStartRespondsAcceptedOnDegradedWrite(t *testing.T) {
	store := registry.NewStore(failPutAdapter{})
	svc := giveawaysvc.NewService(store, failPutAdapter{}, stubChat{}, stubNotifier{}, "🎉")

	router := gin.New()
	NewGiveawayHandler(svc).Register(router.Group("/api/v1"))

	body := `{"channel_id":"chan-1","prize":"Nitro","host_id":"h"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/giveaways", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	resp := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.NotEmpty(t, resp["giveaway_id"])
	assert.NotEmpty(t, resp["warning"])
}
