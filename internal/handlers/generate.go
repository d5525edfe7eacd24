package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/captionstudio/captionstudio/internal/caption"
	"github.com/captionstudio/captionstudio/internal/config"
	"github.com/captionstudio/captionstudio/internal/history"
	"github.com/captionstudio/captionstudio/internal/logger"
	"github.com/captionstudio/captionstudio/internal/platforms"
	ws "github.com/captionstudio/captionstudio/internal/websocket"
)

// Generator produces raw model output for a prompt and an image.
type Generator interface {
	Generate(ctx context.Context, prompt string, image []byte, mime string) (string, error)
}

type GenerateHandler struct {
	cfg     *config.Config
	gen     Generator
	history *history.Store
	hub     *ws.Hub
}

// NewGenerateHandler wires the caption generation endpoint. gen may be nil
// when no API key is configured; history and hub may be nil in tests.
func NewGenerateHandler(cfg *config.Config, gen Generator, hist *history.Store, hub *ws.Hub) *GenerateHandler {
	return &GenerateHandler{cfg: cfg, gen: gen, history: hist, hub: hub}
}

type generateRequest struct {
	Image     string   `json:"image"`
	Context   string   `json:"context"`
	Platforms []string `json:"platforms"`
}

type generateResponse struct {
	Captions []caption.Caption `json:"captions"`
}

// Generate handles POST /api/generate-captions.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if h.gen == nil {
		writeError(w, http.StatusInternalServerError, "Gemini API key is not configured")
		return
	}

	var req generateRequest
	// The JSON body carries the image as a base64 data URI, so the limit
	// leaves headroom over the raw upload cap.
	if err := decodeJSON(r, &req, h.cfg.MaxUploadBytes*2); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Image) == "" {
		writeError(w, http.StatusBadRequest, "Image is required")
		return
	}
	requested := platforms.NormalizeAll(req.Platforms)
	if len(requested) == 0 {
		writeError(w, http.StatusBadRequest, "At least one platform is required")
		return
	}

	image, mime, errMsg := h.decodeImage(req.Image)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	prompt := caption.BuildPrompt(req.Context, requested)

	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.GenerateTimeout)
	defer cancel()

	type genResult struct {
		text string
		err  error
	}
	// Buffered so a late result from a timed-out call is dropped, not leaked.
	done := make(chan genResult, 1)
	go func() {
		text, err := h.gen.Generate(ctx, prompt, image, mime)
		done <- genResult{text, err}
	}()

	var raw string
	select {
	case <-ctx.Done():
		logger.Warn("Caption generation timed out after %s", h.cfg.GenerateTimeout)
		writeError(w, http.StatusInternalServerError, "Caption generation timed out")
		return
	case res := <-done:
		if errors.Is(res.err, context.DeadlineExceeded) {
			logger.Warn("Caption generation timed out after %s", h.cfg.GenerateTimeout)
			writeError(w, http.StatusInternalServerError, "Caption generation timed out")
			return
		}
		if res.err != nil {
			logger.Error("Caption generation failed: %v", res.err)
			writeError(w, http.StatusInternalServerError, "Failed to generate captions")
			return
		}
		raw = res.text
	}

	degraded := false
	captions, err := caption.ParseResponse(caption.StripFences(raw), requested)
	if err != nil {
		// The model returned something unparseable. Hand back placeholders
		// so the client can let the user retry instead of hard-failing.
		logger.Warn("Model response was not valid JSON, serving placeholders: %v", err)
		captions = caption.Placeholders(requested)
		degraded = true
	}
	if len(captions) == 0 {
		writeError(w, http.StatusInternalServerError, "Failed to generate captions")
		return
	}

	h.record(requested, req.Context, len(captions), degraded, time.Since(start))

	w.Header().Set("Cache-Control", "no-store, max-age=0")
	writeJSON(w, http.StatusOK, generateResponse{Captions: captions})
}

// decodeImage unpacks a base64 data URI and enforces the MIME allow-list
// and the upload size cap. It returns a client-facing message on failure.
func (h *GenerateHandler) decodeImage(dataURI string) ([]byte, string, string) {
	if !strings.HasPrefix(dataURI, "data:image/") {
		return nil, "", "Image must be a data URI with an image MIME type"
	}
	rest := strings.TrimPrefix(dataURI, "data:")
	idx := strings.Index(rest, ";base64,")
	if idx < 0 {
		return nil, "", "Image data URI must be base64 encoded"
	}
	mime := rest[:idx]
	if !h.cfg.AllowsMIME(mime) {
		return nil, "", "Unsupported image type: " + mime
	}

	payload := rest[idx+len(";base64,"):]
	image, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", "Image data is not valid base64"
	}
	if int64(len(image)) > h.cfg.MaxUploadBytes {
		return nil, "", "Image exceeds the maximum upload size"
	}
	if len(image) == 0 {
		return nil, "", "Image data is empty"
	}
	return image, mime, ""
}

func (h *GenerateHandler) record(requested []platforms.Platform, context string, count int, degraded bool, dur time.Duration) {
	if h.history != nil {
		if _, err := h.history.Record(requested, context, count, degraded, dur); err != nil {
			logger.Error("Failed to record caption history: %v", err)
		}
	}
	if h.hub != nil {
		h.hub.Broadcast(ws.EventGenerationCompleted, map[string]interface{}{
			"platforms":   requested,
			"captions":    count,
			"degraded":    degraded,
			"duration_ms": dur.Milliseconds(),
		})
	}
}
