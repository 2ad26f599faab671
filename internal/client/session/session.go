// Package session implements the authenticated HTTP client for the chat API.
//
// The access token lives in memory; the refresh token lives in an HttpOnly
// cookie held by a cookie jar, and because the server scopes that cookie to
// the refresh endpoint path, ordinary API calls never transmit it.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/skorolev/duetchat/internal/client/models"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  []FieldError    `json:"errors"`
}

type authPayload struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"accessToken"`
}

// Client is a thread-safe API client bound to one user session.
type Client struct {
	baseURL string
	http    *http.Client
	refresh singleflight.Group

	mu          sync.Mutex
	accessToken string
	user        *models.User
}

// New builds a Client for the given base URL (e.g. "http://127.0.0.1:5001").
func New(baseURL string, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

// AccessToken returns the currently held access token, empty when logged out.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// CurrentUser returns the authenticated user, nil when logged out.
func (c *Client) CurrentUser() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Client) LoggedIn() bool {
	return c.AccessToken() != ""
}

// Logout discards local credentials. Client-only: the server keeps no
// access-token state, and the refresh token simply goes unused until expiry.
func (c *Client) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
	c.user = nil
}

// WebsocketURL derives the live-feed URL, carrying the access token as a
// query parameter because websocket dialers cannot always set headers.
func (c *Client) WebsocketURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {c.AccessToken()}}.Encode()
	return u.String(), nil
}

// --- auth operations ---

type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and starts a session.
func (c *Client) Register(ctx context.Context, fullName, email, password, bio string) (*models.User, error) {
	return c.authenticate(ctx, "/api/auth/signup",
		registerRequest{FullName: fullName, Email: email, Password: password, Bio: bio})
}

// Login authenticates and starts a session.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	return c.authenticate(ctx, "/api/auth/login", loginRequest{Email: email, Password: password})
}

// Refresh rotates the refresh token and replaces the access token. The
// cookie jar supplies the old refresh token and stores the new one.
func (c *Client) Refresh(ctx context.Context) (*models.User, error) {
	return c.authenticate(ctx, "/api/auth/refresh", nil)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*models.User, error) {
	status, env, err := c.roundTrip(ctx, http.MethodPost, path, mustMarshal(body), "")
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, &APIError{Status: status, Message: env.Message, Fields: env.Errors}
	}

	var payload authPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("decoding auth payload: %w", err)
	}

	c.mu.Lock()
	c.accessToken = payload.AccessToken
	c.user = payload.User
	c.mu.Unlock()
	return payload.User, nil
}

// Check validates the current session against the server.
func (c *Client) Check(ctx context.Context) (*models.User, error) {
	var out struct {
		User *models.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/check", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

type profileRequest struct {
	FullName   string `json:"fullName"`
	Bio        string `json:"bio"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// UpdateProfile changes the authenticated user's profile. avatarDataURL, when
// non-empty, must be a base64 data URL.
func (c *Client) UpdateProfile(ctx context.Context, fullName, bio, avatarDataURL string) (*models.User, error) {
	var out struct {
		User *models.User `json:"user"`
	}
	req := profileRequest{FullName: fullName, Bio: bio, ProfilePic: avatarDataURL}
	if err := c.do(ctx, http.MethodPut, "/api/auth/profile", req, &out); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.user = out.User
	c.mu.Unlock()
	return out.User, nil
}

// --- messaging operations ---

type rosterPayload struct {
	Users          []*models.User `json:"users"`
	UnseenMessages map[string]int `json:"unseenMessages"`
}

// Roster lists every other user with the viewer's per-peer unseen counts.
func (c *Client) Roster(ctx context.Context) ([]*models.User, map[string]int, error) {
	var out rosterPayload
	if err := c.do(ctx, http.MethodGet, "/api/messages/users", nil, &out); err != nil {
		return nil, nil, err
	}
	return out.Users, out.UnseenMessages, nil
}

// Thread fetches the full conversation with a peer; the server marks the
// peer's messages as seen as a side effect.
func (c *Client) Thread(ctx context.Context, peerID string) ([]*models.Message, error) {
	var out []*models.Message
	if err := c.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(peerID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type sendRequest struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// SendMessage sends a text and/or image message to a peer.
func (c *Client) SendMessage(ctx context.Context, receiverID, text, imageDataURL string) (*models.Message, error) {
	var out models.Message
	req := sendRequest{Text: text, Image: imageDataURL}
	if err := c.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(receiverID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkSeen marks a single message as seen.
func (c *Client) MarkSeen(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodPut, "/api/messages/seen/"+url.PathEscape(messageID), nil, nil)
}

// --- transport plumbing ---

// do executes one authorized request. On a 401 whose reason is "token
// expired" it performs exactly one shared refresh and replays the request
// once; any other 401, or a failed refresh, tears the session down and
// returns ErrSessionExpired.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	token := c.AccessToken()
	if token == "" {
		return ErrSessionExpired
	}

	data := mustMarshal(body)

	status, env, err := c.roundTrip(ctx, method, path, data, token)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		if env.Message != "token expired" {
			c.Logout()
			return ErrSessionExpired
		}
		if err := c.sharedRefresh(ctx); err != nil {
			c.Logout()
			return ErrSessionExpired
		}
		status, env, err = c.roundTrip(ctx, method, path, data, c.AccessToken())
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			c.Logout()
			return ErrSessionExpired
		}
	}

	if status >= 300 {
		return &APIError{Status: status, Message: env.Message, Fields: env.Errors}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding response payload: %w", err)
	}
	return nil
}

// sharedRefresh collapses concurrent expiries into a single rotation. The
// server spends the refresh token on first use, so a second in-flight
// rotation would be rejected as replay.
func (c *Client) sharedRefresh(ctx context.Context) error {
	_, err, _ := c.refresh.Do("refresh", func() (any, error) {
		_, err := c.Refresh(ctx)
		return nil, err
	})
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte, token string) (int, *envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		return resp.StatusCode, nil, fmt.Errorf("decoding envelope: %w", err)
	}
	return resp.StatusCode, &env, nil
}

func mustMarshal(body any) []byte {
	if body == nil {
		return nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		// request DTOs are plain structs, marshalling cannot fail
		panic(err)
	}
	return data
}
