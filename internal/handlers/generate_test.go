package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/captionstudio/captionstudio/internal/config"
)

type fakeGenerator struct {
	reply string
	err   error
	delay time.Duration

	gotPrompt string
	gotImage  []byte
	gotMIME   string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, image []byte, mime string) (string, error) {
	f.gotPrompt = prompt
	f.gotImage = image
	f.gotMIME = mime
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		MaxUploadBytes:   5 << 20,
		AllowedMIMETypes: []string{"image/jpeg", "image/png", "image/webp", "image/gif"},
		GenerateTimeout:  2 * time.Second,
	}
}

func dataURI(mime string, payload []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(payload)
}

func postGenerate(t *testing.T, h *GenerateHandler, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest("POST", "/api/generate-captions", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	h.Generate(w, req)
	return w
}

func TestGenerateSuccess(t *testing.T) {
	gen := &fakeGenerator{reply: `{
		"instagram": {"caption": "Sunset vibes", "hashtags": ["sunset", "nofilter"]},
		"twitter": {"caption": "Chasing the light."}
	}`}
	h := NewGenerateHandler(testConfig(), gen, nil, nil)

	w := postGenerate(t, h, map[string]interface{}{
		"image":     dataURI("image/jpeg", []byte("jpeg-bytes")),
		"context":   "beach trip",
		"platforms": []string{"Instagram", "Twitter"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("Cache-Control = %q", cc)
	}

	var resp struct {
		Captions []struct {
			Platform string `json:"platform"`
			Text     string `json:"text"`
		} `json:"captions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Captions) != 2 {
		t.Fatalf("expected 2 captions, got %d", len(resp.Captions))
	}
	if resp.Captions[0].Platform != "instagram" {
		t.Errorf("first platform = %q", resp.Captions[0].Platform)
	}
	if !strings.Contains(resp.Captions[0].Text, "#sunset") {
		t.Errorf("instagram caption should carry hashtags, got %q", resp.Captions[0].Text)
	}

	if !strings.Contains(gen.gotPrompt, "beach trip") {
		t.Error("prompt should include the user context")
	}
	if gen.gotMIME != "image/jpeg" {
		t.Errorf("mime = %q", gen.gotMIME)
	}
	if string(gen.gotImage) != "jpeg-bytes" {
		t.Errorf("image bytes = %q", gen.gotImage)
	}
}

func TestGenerateStripsCodeFences(t *testing.T) {
	gen := &fakeGenerator{reply: "```json\n{\"twitter\": {\"caption\": \"Hello\"}}\n```"}
	h := NewGenerateHandler(testConfig(), gen, nil, nil)

	w := postGenerate(t, h, map[string]interface{}{
		"image":     dataURI("image/png", []byte("png")),
		"platforms": []string{"twitter"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Hello") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestGenerateUnparseableReplyServesPlaceholders(t *testing.T) {
	gen := &fakeGenerator{reply: "I cannot produce JSON today."}
	h := NewGenerateHandler(testConfig(), gen, nil, nil)

	w := postGenerate(t, h, map[string]interface{}{
		"image":     dataURI("image/png", []byte("png")),
		"platforms": []string{"instagram", "linkedin"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Captions []struct {
			Platform string `json:"platform"`
			Text     string `json:"text"`
		} `json:"captions"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Captions) != 2 {
		t.Fatalf("expected placeholder per platform, got %d", len(resp.Captions))
	}
	for _, c := range resp.Captions {
		if !strings.Contains(c.Text, "try again") {
			t.Errorf("caption for %s = %q", c.Platform, c.Text)
		}
	}
}

func TestGenerateUpstreamErrorIs500(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	h := NewGenerateHandler(testConfig(), gen, nil, nil)

	w := postGenerate(t, h, map[string]interface{}{
		"image":     dataURI("image/png", []byte("png")),
		"platforms": []string{"twitter"},
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "quota") {
		t.Error("upstream error details must not reach the client")
	}
}

func TestGenerateTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.GenerateTimeout = 30 * time.Millisecond
	gen := &fakeGenerator{reply: "{}", delay: time.Second}
	h := NewGenerateHandler(cfg, gen, nil, nil)

	w := postGenerate(t, h, map[string]interface{}{
		"image":     dataURI("image/png", []byte("png")),
		"platforms": []string{"twitter"},
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "timed out") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestGenerateMissingClient(t *testing.T) {
	h := NewGenerateHandler(testConfig(), nil, nil, nil)

	w := postGenerate(t, h, map[string]interface{}{
		"image":     dataURI("image/png", []byte("png")),
		"platforms": []string{"twitter"},
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "API key") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestGenerateValidation(t *testing.T) {
	h := NewGenerateHandler(testConfig(), &fakeGenerator{reply: "{}"}, nil, nil)

	cases := []struct {
		name string
		body map[string]interface{}
		want string
	}{
		{
			name: "missing image",
			body: map[string]interface{}{"platforms": []string{"twitter"}},
			want: "Image is required",
		},
		{
			name: "no platforms",
			body: map[string]interface{}{"image": dataURI("image/png", []byte("x"))},
			want: "platform",
		},
		{
			name: "unknown platforms only",
			body: map[string]interface{}{
				"image":     dataURI("image/png", []byte("x")),
				"platforms": []string{"myspace"},
			},
			want: "platform",
		},
		{
			name: "not a data URI",
			body: map[string]interface{}{
				"image":     "https://example.com/a.jpg",
				"platforms": []string{"twitter"},
			},
			want: "data URI",
		},
		{
			name: "disallowed mime",
			body: map[string]interface{}{
				"image":     dataURI("image/tiff", []byte("x")),
				"platforms": []string{"twitter"},
			},
			want: "Unsupported image type",
		},
		{
			name: "bad base64",
			body: map[string]interface{}{
				"image":     "data:image/png;base64,!!!not-base64!!!",
				"platforms": []string{"twitter"},
			},
			want: "base64",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postGenerate(t, h, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tc.want) {
				t.Errorf("body = %s, want substring %q", w.Body.String(), tc.want)
			}
		})
	}
}

func TestGenerateOversizedImage(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 16
	h := NewGenerateHandler(cfg, &fakeGenerator{reply: "{}"}, nil, nil)

	w := postGenerate(t, h, map[string]interface{}{
		"image":     dataURI("image/png", bytes.Repeat([]byte("a"), 32)),
		"platforms": []string{"twitter"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "maximum upload size") {
		t.Errorf("body = %s", w.Body.String())
	}
}
