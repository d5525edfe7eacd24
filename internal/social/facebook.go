package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/captionstudio/captionstudio/internal/accounts"
	"github.com/captionstudio/captionstudio/internal/config"
)

// Facebook wraps the Facebook Login OAuth endpoints and the Graph photo
// publishing endpoint.
type Facebook struct {
	app config.OAuthApp

	// AuthBase hosts the user-facing OAuth dialog (www.facebook.com).
	AuthBase string
	// GraphBase hosts access_token, accounts and photos (graph.facebook.com).
	GraphBase string
}

func NewFacebook(app config.OAuthApp) *Facebook {
	return &Facebook{
		app:       app,
		AuthBase:  "https://www.facebook.com",
		GraphBase: "https://graph.facebook.com",
	}
}

// Configured reports whether the OAuth app credentials are present.
func (c *Facebook) Configured() bool {
	return c.app.ClientID != "" && c.app.ClientSecret != "" && c.app.RedirectURI != ""
}

// AuthorizeURL builds the user-facing OAuth dialog redirect target.
func (c *Facebook) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.app.ClientID)
	q.Set("redirect_uri", c.app.RedirectURI)
	q.Set("scope", "pages_manage_posts,pages_read_engagement,publish_to_groups")
	q.Set("response_type", "code")
	q.Set("state", state)
	return c.AuthBase + "/" + graphVersion + "/dialog/oauth?" + q.Encode()
}

// Token is the result of the Facebook code exchange.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExchangeCode swaps an authorization code for a user access token.
func (c *Facebook) ExchangeCode(ctx context.Context, code string) (Token, error) {
	q := url.Values{}
	q.Set("client_id", c.app.ClientID)
	q.Set("redirect_uri", c.app.RedirectURI)
	q.Set("client_secret", c.app.ClientSecret)
	q.Set("code", code)

	endpoint := fmt.Sprintf("%s/%s/oauth/access_token?%s", c.GraphBase, graphVersion, q.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return Token{}, fmt.Errorf("create token request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("exchange code: %w", err)
	}

	var tok Token
	if err := readJSON(resp, &tok); err != nil {
		return Token{}, fmt.Errorf("exchange code: %w", err)
	}
	if tok.AccessToken == "" {
		return Token{}, fmt.Errorf("exchange code: empty access token in response")
	}
	return tok, nil
}

// ListPages fetches the pages the user can manage.
func (c *Facebook) ListPages(ctx context.Context, accessToken string) ([]accounts.Page, error) {
	q := url.Values{}
	q.Set("access_token", accessToken)

	endpoint := fmt.Sprintf("%s/%s/me/accounts?%s", c.GraphBase, graphVersion, q.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create pages request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch pages: %w", err)
	}

	var out struct {
		Data []accounts.Page `json:"data"`
	}
	if err := readJSON(resp, &out); err != nil {
		return nil, fmt.Errorf("fetch pages: %w", err)
	}
	return out.Data, nil
}

// PostPhoto publishes a photo with a caption. Target is a page id for page
// posts or "me" for the personal profile. ImageURL may be empty, in which
// case Facebook posts a caption-only entry.
func (c *Facebook) PostPhoto(ctx context.Context, target, imageURL, caption, accessToken string) (string, error) {
	payload := map[string]string{
		"access_token": accessToken,
		"caption":      caption,
	}
	if imageURL != "" {
		payload["url"] = imageURL
	}
	body, _ := json.Marshal(payload)

	endpoint := fmt.Sprintf("%s/%s/%s/photos", c.GraphBase, graphVersion, url.PathEscape(target))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create photo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post photo: %w", err)
	}

	var out struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := readJSON(resp, &out); err != nil {
		return "", fmt.Errorf("post photo: %w", err)
	}
	if out.PostID != "" {
		return out.PostID, nil
	}
	if out.ID == "" {
		return "", fmt.Errorf("post photo: no post id in response")
	}
	return out.ID, nil
}
