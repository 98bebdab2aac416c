// Package platform is the thin client for the chat platform's REST API.
// Everything the rank mechanics need from the platform goes through the
// interfaces here so the engines never touch HTTP directly.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"rank-service/internal/config"
	"rank-service/internal/models"

	"github.com/redis/go-redis/v9"
)

// RoleManager is the role-mutation capability consumed by the reconciler
// and the promotion flow. Each call is independently fallible; the platform
// offers no multi-role transaction.
type RoleManager interface {
	AddRole(ctx context.Context, guildID, memberID, roleID string) error
	RemoveRole(ctx context.Context, guildID, memberID, roleID string) error
	RoleIDByName(ctx context.Context, guildID, name string) (string, error)
}

// Messenger sends plain text to a channel, used for the audit log.
type Messenger interface {
	SendChannelMessage(ctx context.Context, channelID, content string) error
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	cache      *redis.Client
	cacheTTL   time.Duration
}

func NewClient(cfg config.PlatformConfig, cache *redis.Client) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    cfg.APIBase,
		token:      cfg.Token,
		cache:      cache,
		cacheTTL:   cfg.RoleCacheTTL,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build platform request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("platform request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read platform response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("platform returned %d for %s %s: %s", resp.StatusCode, method, path, data)
	}
	return data, nil
}

func (c *Client) AddRole(ctx context.Context, guildID, memberID, roleID string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, memberID, roleID)
	_, err := c.do(ctx, http.MethodPut, path, nil)
	return err
}

func (c *Client) RemoveRole(ctx context.Context, guildID, memberID, roleID string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, memberID, roleID)
	_, err := c.do(ctx, http.MethodDelete, path, nil)
	return err
}

func roleCacheKey(guildID, name string) string {
	return fmt.Sprintf("rank:roles:%s:%s", guildID, name)
}

// RoleIDByName resolves a role name to its ID, consulting the redis cache
// first and refreshing the whole guild role list on a miss.
func (c *Client) RoleIDByName(ctx context.Context, guildID, name string) (string, error) {
	if c.cache != nil {
		id, err := c.cache.Get(ctx, roleCacheKey(guildID, name)).Result()
		if err == nil && id != "" {
			return id, nil
		}
	}

	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s/roles", guildID), nil)
	if err != nil {
		return "", err
	}

	var roles []models.RoleRef
	if err := json.Unmarshal(data, &roles); err != nil {
		return "", fmt.Errorf("failed to decode guild roles: %w", err)
	}

	var found string
	for _, role := range roles {
		if c.cache != nil {
			c.cache.Set(ctx, roleCacheKey(guildID, role.Name), role.ID, c.cacheTTL)
		}
		if role.Name == name {
			found = role.ID
		}
	}
	if found == "" {
		return "", fmt.Errorf("no role named %q in guild %s", name, guildID)
	}
	return found, nil
}

func (c *Client) SendChannelMessage(ctx context.Context, channelID, content string) error {
	path := fmt.Sprintf("/channels/%s/messages", channelID)
	_, err := c.do(ctx, http.MethodPost, path, map[string]string{"content": content})
	return err
}
