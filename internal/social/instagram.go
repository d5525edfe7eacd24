package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/captionstudio/captionstudio/internal/config"
)

// Instagram wraps the Instagram Basic Display OAuth endpoints and the Graph
// media publishing endpoints. Base URLs are fields so tests can point the
// client at a local server.
type Instagram struct {
	app config.OAuthApp

	// OAuthBase hosts authorize + access_token (api.instagram.com).
	OAuthBase string
	// GraphBase hosts token exchange and media endpoints (graph.instagram.com).
	GraphBase string
}

func NewInstagram(app config.OAuthApp) *Instagram {
	return &Instagram{
		app:       app,
		OAuthBase: "https://api.instagram.com",
		GraphBase: "https://graph.instagram.com",
	}
}

// Configured reports whether the OAuth app credentials are present.
func (c *Instagram) Configured() bool {
	return c.app.ClientID != "" && c.app.ClientSecret != "" && c.app.RedirectURI != ""
}

// AuthorizeURL builds the user-facing authorization redirect target.
func (c *Instagram) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.app.ClientID)
	q.Set("redirect_uri", c.app.RedirectURI)
	q.Set("scope", "user_profile,user_media")
	q.Set("response_type", "code")
	q.Set("state", state)
	return c.OAuthBase + "/oauth/authorize?" + q.Encode()
}

// ShortLivedToken is the immediate result of the code exchange.
type ShortLivedToken struct {
	AccessToken string      `json:"access_token"`
	UserID      json.Number `json:"user_id"`
}

// ExchangeCode swaps an authorization code for a short-lived token.
func (c *Instagram) ExchangeCode(ctx context.Context, code string) (ShortLivedToken, error) {
	form := url.Values{}
	form.Set("client_id", c.app.ClientID)
	form.Set("client_secret", c.app.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", c.app.RedirectURI)
	form.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, "POST", c.OAuthBase+"/oauth/access_token",
		bytes.NewBufferString(form.Encode()))
	if err != nil {
		return ShortLivedToken{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return ShortLivedToken{}, fmt.Errorf("exchange code: %w", err)
	}

	var tok ShortLivedToken
	if err := readJSON(resp, &tok); err != nil {
		return ShortLivedToken{}, fmt.Errorf("exchange code: %w", err)
	}
	if tok.AccessToken == "" {
		return ShortLivedToken{}, fmt.Errorf("exchange code: empty access token in response")
	}
	return tok, nil
}

// LongLivedToken is the 60-day token swapped from a short-lived one.
type LongLivedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExchangeLongLived swaps a short-lived token for a long-lived one.
func (c *Instagram) ExchangeLongLived(ctx context.Context, shortToken string) (LongLivedToken, error) {
	q := url.Values{}
	q.Set("grant_type", "ig_exchange_token")
	q.Set("client_secret", c.app.ClientSecret)
	q.Set("access_token", shortToken)

	req, err := http.NewRequestWithContext(ctx, "GET", c.GraphBase+"/access_token?"+q.Encode(), nil)
	if err != nil {
		return LongLivedToken{}, fmt.Errorf("create exchange request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return LongLivedToken{}, fmt.Errorf("long-lived exchange: %w", err)
	}

	var tok LongLivedToken
	if err := readJSON(resp, &tok); err != nil {
		return LongLivedToken{}, fmt.Errorf("long-lived exchange: %w", err)
	}
	if tok.AccessToken == "" {
		return LongLivedToken{}, fmt.Errorf("long-lived exchange: empty access token in response")
	}
	return tok, nil
}

// CreateContainer creates a media container for the image + caption and
// returns its creation id. Publishing is a separate step.
func (c *Instagram) CreateContainer(ctx context.Context, userID, imageURL, caption, accessToken string) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"image_url":    imageURL,
		"caption":      caption,
		"access_token": accessToken,
	})

	endpoint := fmt.Sprintf("%s/%s/%s/media", c.GraphBase, graphVersion, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create container request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create media container: %w", err)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := readJSON(resp, &out); err != nil {
		return "", fmt.Errorf("create media container: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("create media container: no container id in response")
	}
	return out.ID, nil
}

// Publish publishes a previously created container and returns the post id.
func (c *Instagram) Publish(ctx context.Context, userID, creationID, accessToken string) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"creation_id":  creationID,
		"access_token": accessToken,
	})

	endpoint := fmt.Sprintf("%s/%s/%s/media_publish", c.GraphBase, graphVersion, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("publish media: %w", err)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := readJSON(resp, &out); err != nil {
		return "", fmt.Errorf("publish media: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("publish media: no post id in response")
	}
	return out.ID, nil
}

// PostPhoto runs the two-step container create + publish flow.
func (c *Instagram) PostPhoto(ctx context.Context, userID, imageURL, caption, accessToken string) (string, error) {
	creationID, err := c.CreateContainer(ctx, userID, imageURL, caption, accessToken)
	if err != nil {
		return "", err
	}
	return c.Publish(ctx, userID, creationID, accessToken)
}
