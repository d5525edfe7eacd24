package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/captionstudio/captionstudio/internal/accounts"
	"github.com/captionstudio/captionstudio/internal/logger"
	"github.com/captionstudio/captionstudio/internal/social"
	"github.com/captionstudio/captionstudio/internal/statetoken"
	ws "github.com/captionstudio/captionstudio/internal/websocket"

	"github.com/go-chi/chi/v5"
)

const maxSocialBody = 1 << 20

type SocialHandler struct {
	instagram *social.Instagram
	facebook  *social.Facebook
	store     accounts.Store
	states    *statetoken.Issuer
	hub       *ws.Hub
}

func NewSocialHandler(ig *social.Instagram, fb *social.Facebook, store accounts.Store, states *statetoken.Issuer, hub *ws.Hub) *SocialHandler {
	return &SocialHandler{instagram: ig, facebook: fb, store: store, states: states, hub: hub}
}

// InstagramAuth handles GET /api/social/instagram/auth. Without a code it
// redirects to the Instagram authorization dialog; with one it completes the
// exchange and seals the long-lived token into the account store.
func (h *SocialHandler) InstagramAuth(w http.ResponseWriter, r *http.Request) {
	if !h.instagram.Configured() {
		writeError(w, http.StatusInternalServerError, "Instagram app credentials are not configured")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		state, err := h.states.Issue("instagram")
		if err != nil {
			logger.Error("Failed to issue state token: %v", err)
			writeError(w, http.StatusInternalServerError, "Authentication failed")
			return
		}
		http.Redirect(w, r, h.instagram.AuthorizeURL(state), http.StatusFound)
		return
	}

	if err := h.states.Verify(r.URL.Query().Get("state"), "instagram"); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired state")
		return
	}

	short, err := h.instagram.ExchangeCode(r.Context(), code)
	if err != nil {
		logger.Error("Instagram code exchange failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}
	long, err := h.instagram.ExchangeLongLived(r.Context(), short.AccessToken)
	if err != nil {
		logger.Error("Instagram long-lived exchange failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}

	now := time.Now()
	rec := accounts.Record{
		Platform:    "instagram",
		AccessToken: long.AccessToken,
		UserID:      short.UserID.String(),
		ExpiresAt:   now.Add(time.Duration(long.ExpiresIn) * time.Second),
		ConnectedAt: now,
	}
	if err := h.store.Put(rec); err != nil {
		logger.Error("Failed to store instagram account: %v", err)
		writeError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}
	h.broadcastConnected("instagram")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"access_token": long.AccessToken,
		"user_id":      short.UserID.String(),
		"expires_in":   long.ExpiresIn,
	})
}

// FacebookAuth handles GET /api/social/facebook/auth, mirroring InstagramAuth
// plus a manageable-pages fetch after the token exchange.
func (h *SocialHandler) FacebookAuth(w http.ResponseWriter, r *http.Request) {
	if !h.facebook.Configured() {
		writeError(w, http.StatusInternalServerError, "Facebook app credentials are not configured")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		state, err := h.states.Issue("facebook")
		if err != nil {
			logger.Error("Failed to issue state token: %v", err)
			writeError(w, http.StatusInternalServerError, "Authentication failed")
			return
		}
		http.Redirect(w, r, h.facebook.AuthorizeURL(state), http.StatusFound)
		return
	}

	if err := h.states.Verify(r.URL.Query().Get("state"), "facebook"); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired state")
		return
	}

	tok, err := h.facebook.ExchangeCode(r.Context(), code)
	if err != nil {
		logger.Error("Facebook code exchange failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}
	pages, err := h.facebook.ListPages(r.Context(), tok.AccessToken)
	if err != nil {
		// The token is still usable for profile posts.
		logger.Warn("Failed to fetch facebook pages: %v", err)
		pages = nil
	}

	now := time.Now()
	rec := accounts.Record{
		Platform:    "facebook",
		AccessToken: tok.AccessToken,
		Pages:       pages,
		ConnectedAt: now,
	}
	if tok.ExpiresIn > 0 {
		rec.ExpiresAt = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	if err := h.store.Put(rec); err != nil {
		logger.Error("Failed to store facebook account: %v", err)
		writeError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}
	h.broadcastConnected("facebook")

	pagesOut := make([]map[string]string, 0, len(pages))
	for _, p := range pages {
		pagesOut = append(pagesOut, map[string]string{"id": p.ID, "name": p.Name})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"access_token": tok.AccessToken,
		"expires_in":   tok.ExpiresIn,
		"pages":        pagesOut,
	})
}

type instagramPostRequest struct {
	AccessToken string `json:"accessToken"`
	UserID      string `json:"userId"`
	ImageURL    string `json:"imageUrl"`
	Caption     string `json:"caption"`
}

// InstagramPost handles POST /api/social/instagram/post. The access token and
// user id fall back to the stored account when the request omits them.
func (h *SocialHandler) InstagramPost(w http.ResponseWriter, r *http.Request) {
	var req instagramPostRequest
	if err := decodeJSON(r, &req, maxSocialBody); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.AccessToken == "" || req.UserID == "" {
		rec, ok, err := h.store.Get("instagram")
		if err != nil {
			logger.Error("Failed to load instagram account: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to post to Instagram")
			return
		}
		if ok {
			if req.AccessToken == "" {
				req.AccessToken = rec.AccessToken
			}
			if req.UserID == "" {
				req.UserID = rec.UserID
			}
		}
	}

	switch {
	case req.AccessToken == "":
		writeError(w, http.StatusBadRequest, "accessToken is required")
		return
	case req.UserID == "":
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	case strings.TrimSpace(req.ImageURL) == "":
		writeError(w, http.StatusBadRequest, "imageUrl is required")
		return
	case strings.TrimSpace(req.Caption) == "":
		writeError(w, http.StatusBadRequest, "caption is required")
		return
	}

	postID, err := h.instagram.PostPhoto(r.Context(), req.UserID, req.ImageURL, req.Caption, req.AccessToken)
	if err != nil {
		logger.Error("Instagram post failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to post to Instagram: "+platformMessage(err))
		return
	}
	h.broadcastPublished("instagram", postID)

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "post_id": postID})
}

type facebookPostRequest struct {
	AccessToken string `json:"accessToken"`
	ImageURL    string `json:"imageUrl"`
	Caption     string `json:"caption"`
	PostToPage  bool   `json:"postToPage"`
	PageID      string `json:"pageId"`
}

// FacebookPost handles POST /api/social/facebook/post. Page posts use the
// page's own token from the stored account when one is available.
func (h *SocialHandler) FacebookPost(w http.ResponseWriter, r *http.Request) {
	var req facebookPostRequest
	if err := decodeJSON(r, &req, maxSocialBody); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var stored accounts.Record
	var haveStored bool
	if rec, ok, err := h.store.Get("facebook"); err != nil {
		logger.Error("Failed to load facebook account: %v", err)
	} else if ok {
		stored, haveStored = rec, true
	}

	if req.AccessToken == "" && haveStored {
		req.AccessToken = stored.AccessToken
	}

	switch {
	case req.AccessToken == "":
		writeError(w, http.StatusBadRequest, "accessToken is required")
		return
	case strings.TrimSpace(req.Caption) == "":
		writeError(w, http.StatusBadRequest, "caption is required")
		return
	case req.PostToPage && req.PageID == "":
		writeError(w, http.StatusBadRequest, "pageId is required when posting to a page")
		return
	}

	target := "me"
	token := req.AccessToken
	if req.PostToPage {
		target = req.PageID
		if haveStored {
			for _, p := range stored.Pages {
				if p.ID == req.PageID && p.AccessToken != "" {
					token = p.AccessToken
					break
				}
			}
		}
	}

	postID, err := h.facebook.PostPhoto(r.Context(), target, req.ImageURL, req.Caption, token)
	if err != nil {
		logger.Error("Facebook post failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to post to Facebook: "+platformMessage(err))
		return
	}
	h.broadcastPublished("facebook", postID)

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "post_id": postID})
}

// Accounts handles GET /api/social/accounts. Tokens never leave the server.
func (h *SocialHandler) Accounts(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.List()
	if err != nil {
		logger.Error("Failed to list accounts: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	out := make([]map[string]interface{}, 0, len(recs))
	for _, rec := range recs {
		pages := make([]map[string]string, 0, len(rec.Pages))
		for _, p := range rec.Pages {
			pages = append(pages, map[string]string{"id": p.ID, "name": p.Name})
		}
		entry := map[string]interface{}{
			"platform":     rec.Platform,
			"user_id":      rec.UserID,
			"connected_at": rec.ConnectedAt,
			"pages":        pages,
		}
		if !rec.ExpiresAt.IsZero() {
			entry["expires_at"] = rec.ExpiresAt
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": out})
}

// Disconnect handles DELETE /api/social/{platform}.
func (h *SocialHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	if platform != "instagram" && platform != "facebook" {
		writeError(w, http.StatusBadRequest, "Unknown platform: "+platform)
		return
	}
	if err := h.store.Delete(platform); err != nil {
		logger.Error("Failed to disconnect %s: %v", platform, err)
		writeError(w, http.StatusInternalServerError, "Failed to disconnect account")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// platformMessage extracts the upstream platform's human-readable message
// from a wrapped client error. App credentials never appear in these.
func platformMessage(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 {
		msg = msg[idx+2:]
	}
	return msg
}

func (h *SocialHandler) broadcastConnected(platform string) {
	if h.hub != nil {
		h.hub.Broadcast(ws.EventAccountConnected, map[string]string{"platform": platform})
	}
}

func (h *SocialHandler) broadcastPublished(platform, postID string) {
	if h.hub != nil {
		h.hub.Broadcast(ws.EventPostPublished, map[string]string{"platform": platform, "post_id": postID})
	}
}
