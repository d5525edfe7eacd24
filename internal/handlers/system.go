package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/captionstudio/captionstudio/internal/config"
	"github.com/captionstudio/captionstudio/internal/history"
	"github.com/captionstudio/captionstudio/internal/logger"
)

var startTime = time.Now()

// AppVersion is set from main at startup.
var AppVersion = "dev"

type SystemHandler struct {
	cfg          *config.Config
	history      *history.Store
	geminiActive bool
}

func NewSystemHandler(cfg *config.Config, hist *history.Store, geminiActive bool) *SystemHandler {
	return &SystemHandler{cfg: cfg, history: hist, geminiActive: geminiActive}
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Config returns the public configuration subset the UI needs. Secrets and
// full OAuth app credentials stay server-side.
func (h *SystemHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":              AppVersion,
		"uptime_seconds":       int(time.Since(startTime).Seconds()),
		"max_upload_bytes":     h.cfg.MaxUploadBytes,
		"allowed_mime_types":   h.cfg.AllowedMIMETypes,
		"gemini_configured":    h.geminiActive,
		"instagram_client_id":  h.cfg.Instagram.ClientID,
		"instagram_configured": h.cfg.Instagram.ClientID != "" && h.cfg.Instagram.ClientSecret != "",
		"facebook_app_id":      h.cfg.Facebook.ClientID,
		"facebook_configured":  h.cfg.Facebook.ClientID != "" && h.cfg.Facebook.ClientSecret != "",
	})
}

// History returns recent caption generation records, newest first.
func (h *SystemHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := h.history.Recent(limit)
	if err != nil {
		logger.Error("Failed to load history: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}
