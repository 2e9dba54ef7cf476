// Package twitch fetches giveaway participants from the Twitch APIs.
package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/jmoiron/jsonq"

	"giveaway/internal/auth"
	"giveaway/internal/models"
)

const (
	DefaultHelixURL    = "https://api.twitch.tv/helix"
	DefaultChattersURL = "https://tmi.twitch.tv/group/user/%s/chatters"
	DefaultPageSize    = 100
)

// ErrChannelNotFound indicates that the channel login resolved to no user.
var ErrChannelNotFound = errors.New("channel not found")

// Authenticator supplies bearer tokens.
type Authenticator interface {
	Token(ctx context.Context) (string, error)
}

// Config holds the client's endpoints and credentials.
type Config struct {
	ClientID    string
	HelixURL    string
	ChattersURL string // format string taking the channel login
	PageSize    int
	// AppAuth authorizes user lookups and, without UserAuth, follower reads.
	AppAuth Authenticator
	// UserAuth is a broadcaster token, required for subscriber reads.
	UserAuth Authenticator
}

// Client implements the platform calls the giveaway pipeline needs.
type Client struct {
	doer Doer
	cfg  Config

	mu  sync.Mutex
	ids map[string]string
}

// NewClient creates a Client that sends requests through doer.
func NewClient(doer Doer, cfg Config) *Client {
	if cfg.HelixURL == "" {
		cfg.HelixURL = DefaultHelixURL
	}
	if cfg.ChattersURL == "" {
		cfg.ChattersURL = DefaultChattersURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	cfg.HelixURL = strings.TrimRight(cfg.HelixURL, "/")
	return &Client{doer: doer, cfg: cfg, ids: make(map[string]string)}
}

type pagination struct {
	Cursor string `json:"cursor"`
}

type followersResponse struct {
	Total int `json:"total"`
	Data  []struct {
		UserName string `json:"user_name"`
	} `json:"data"`
	Pagination pagination `json:"pagination"`
}

type subscriptionsResponse struct {
	Total int `json:"total"`
	Data  []struct {
		UserName string `json:"user_name"`
	} `json:"data"`
	Pagination pagination `json:"pagination"`
}

type chattersResponse struct {
	ChatterCount int             `json:"chatter_count"`
	Chatters     models.Chatters `json:"chatters"`
}

// GetChatters returns everyone currently in the channel's chat, split by role.
func (c *Client) GetChatters(ctx context.Context, channel string) (models.Chatters, error) {
	endpoint := fmt.Sprintf(c.cfg.ChattersURL, url.PathEscape(strings.ToLower(channel)))

	var body chattersResponse
	if err := c.getJSON(ctx, "chatters", endpoint, nil, &body); err != nil {
		return models.Chatters{}, err
	}
	body.Chatters.Count = body.ChatterCount
	return body.Chatters, nil
}

// GetFollowers returns one page of the channel's followers.
func (c *Client) GetFollowers(ctx context.Context, channel, cursor string) (models.Page, error) {
	id, err := c.broadcasterID(ctx, channel)
	if err != nil {
		return models.Page{}, err
	}

	bearer := c.cfg.UserAuth
	if bearer == nil {
		bearer = c.cfg.AppAuth
	}

	var body followersResponse
	if err := c.getJSON(ctx, "followers", c.pageURL("channels/followers", id, cursor), bearer, &body); err != nil {
		return models.Page{}, err
	}

	names := make([]string, 0, len(body.Data))
	for _, f := range body.Data {
		names = append(names, f.UserName)
	}
	return models.Page{Names: names, Cursor: body.Pagination.Cursor, Total: body.Total}, nil
}

// GetSubscribers returns one page of the channel's subscribers. It needs a
// broadcaster user token.
func (c *Client) GetSubscribers(ctx context.Context, channel, cursor string) (models.Page, error) {
	if c.cfg.UserAuth == nil {
		return models.Page{}, &models.AuthError{Op: "subscribers", Err: auth.ErrNoToken}
	}
	id, err := c.broadcasterID(ctx, channel)
	if err != nil {
		return models.Page{}, err
	}

	var body subscriptionsResponse
	if err := c.getJSON(ctx, "subscribers", c.pageURL("subscriptions", id, cursor), c.cfg.UserAuth, &body); err != nil {
		return models.Page{}, err
	}

	names := make([]string, 0, len(body.Data))
	for _, s := range body.Data {
		names = append(names, s.UserName)
	}
	return models.Page{Names: names, Cursor: body.Pagination.Cursor, Total: body.Total}, nil
}

func (c *Client) pageURL(path, broadcasterID, cursor string) string {
	q := url.Values{}
	q.Set("broadcaster_id", broadcasterID)
	q.Set("first", strconv.Itoa(c.cfg.PageSize))
	if cursor != "" {
		q.Set("after", cursor)
	}
	return c.cfg.HelixURL + "/" + path + "?" + q.Encode()
}

// broadcasterID resolves a channel login to its user id, once per channel.
func (c *Client) broadcasterID(ctx context.Context, channel string) (string, error) {
	login := strings.ToLower(strings.TrimSpace(channel))

	c.mu.Lock()
	id, ok := c.ids[login]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	var body map[string]interface{}
	endpoint := c.cfg.HelixURL + "/users?" + url.Values{"login": {login}}.Encode()
	if err := c.getJSON(ctx, "users", endpoint, c.cfg.AppAuth, &body); err != nil {
		return "", err
	}

	id, err := jsonq.NewQuery(body).String("data", "0", "id")
	if err != nil || id == "" {
		return "", fmt.Errorf("%w: %s", ErrChannelNotFound, login)
	}

	c.mu.Lock()
	c.ids[login] = id
	c.mu.Unlock()
	return id, nil
}

// getJSON performs a GET and decodes the JSON body into out. A nil bearer
// sends the request unauthenticated.
func (c *Client) getJSON(ctx context.Context, op, endpoint string, bearer Authenticator, out any) error {
	req, err := http.NewRequestWithContext(WithOperation(ctx, op), http.MethodGet, endpoint, nil)
	if err != nil {
		return &models.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.ClientID != "" {
		req.Header.Set("Client-Id", c.cfg.ClientID)
	}
	if bearer != nil {
		token, err := bearer.Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return &models.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &models.UpstreamError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &models.DecodeError{Op: op, Err: err}
	}
	return nil
}
