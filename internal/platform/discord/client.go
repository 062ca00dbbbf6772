// Package discord is a minimal REST client for the handful of Discord calls
// the engine needs. Every call is fallible and callers degrade gracefully;
// nothing here retries.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const apiBase = "https://discord.com/api/v10"

// reactionPageSize is the Discord maximum for one reactions page.
const reactionPageSize = 100

type Client struct {
	httpClient *http.Client
	token      string
}

// RateLimitError reports an HTTP 429 from Discord.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("discord: rate limited, retry after %s", e.RetryAfter)
}

// User is a Discord user as seen in reaction listings.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

// Message is a channel message.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Author    User   `json:"author"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		token: token,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiBase+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Second
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.ParseFloat(v, 64); err == nil {
				retryAfter = time.Duration(secs * float64(time.Second))
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("discord: %s %s: %s (code %d)", method, path, apiErr.Message, apiErr.Code)
		}
		return fmt.Errorf("discord: %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// FetchMessage resolves a message by channel and id.
func (c *Client) FetchMessage(ctx context.Context, channelID, messageID string) (*Message, error) {
	msg := &Message{}
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	if err := c.do(ctx, http.MethodGet, path, nil, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// FetchReactionUsers lists every user who reacted to the message with the
// marker emoji, following pagination.
func (c *Client) FetchReactionUsers(ctx context.Context, channelID, messageID, emoji string) ([]User, error) {
	var users []User
	after := ""
	for {
		path := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s?limit=%d",
			channelID, messageID, url.PathEscape(emoji), reactionPageSize)
		if after != "" {
			path += "&after=" + after
		}

		var page []User
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		users = append(users, page...)

		if len(page) < reactionPageSize {
			return users, nil
		}
		after = page[len(page)-1].ID
	}
}

// SendMessage posts a message to a channel.
func (c *Client) SendMessage(ctx context.Context, channelID, content string) (*Message, error) {
	msg := &Message{}
	path := fmt.Sprintf("/channels/%s/messages", channelID)
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, path, body, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// EditMessage replaces the content of an existing message.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	body := map[string]string{"content": content}
	return c.do(ctx, http.MethodPatch, path, body, nil)
}

// FetchGuildOwner resolves the owner user id of a guild.
func (c *Client) FetchGuildOwner(ctx context.Context, guildID string) (string, error) {
	var guild struct {
		OwnerID string `json:"owner_id"`
	}
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID, nil, &guild); err != nil {
		return "", err
	}
	return guild.OwnerID, nil
}

// DirectMessage opens (or reuses) the DM channel with the user and sends the
// text there.
func (c *Client) DirectMessage(ctx context.Context, userID, content string) error {
	var dm struct {
		ID string `json:"id"`
	}
	body := map[string]string{"recipient_id": userID}
	if err := c.do(ctx, http.MethodPost, "/users/@me/channels", body, &dm); err != nil {
		return err
	}
	_, err := c.SendMessage(ctx, dm.ID, content)
	return err
}
