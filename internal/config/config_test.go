package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	// Setting to empty string is sufficient: every override check uses != "".
	for _, key := range []string{
		"GEMINI_API_KEY",
		"CAPTIONSTUDIO_PORT",
		"CAPTIONSTUDIO_BIND",
		"CAPTIONSTUDIO_DATA_DIR",
		"CAPTIONSTUDIO_MODEL",
		"CAPTIONSTUDIO_TEMPERATURE",
		"CAPTIONSTUDIO_TOP_P",
		"CAPTIONSTUDIO_MAX_TOKENS",
		"CAPTIONSTUDIO_GENERATE_TIMEOUT_SEC",
		"CAPTIONSTUDIO_MAX_CONCURRENT",
		"CAPTIONSTUDIO_MAX_UPLOAD_BYTES",
		"CAPTIONSTUDIO_ALLOWED_MIME_TYPES",
		"CAPTIONSTUDIO_RATE_LIMIT_MAX",
		"CAPTIONSTUDIO_RATE_LIMIT_WINDOW_SEC",
		"CAPTIONSTUDIO_RETENTION_DAYS",
		"INSTAGRAM_CLIENT_ID",
		"INSTAGRAM_CLIENT_SECRET",
		"INSTAGRAM_REDIRECT_URI",
		"FACEBOOK_APP_ID",
		"FACEBOOK_APP_SECRET",
		"FACEBOOK_REDIRECT_URI",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Port != 8790 {
		t.Errorf("expected default port 8790, got %d", cfg.Port)
	}
	if cfg.BindAddress != "127.0.0.1" {
		t.Errorf("expected default bind address 127.0.0.1, got %s", cfg.BindAddress)
	}
	if cfg.Model != "gemini-2.5-flash" {
		t.Errorf("expected default model gemini-2.5-flash, got %s", cfg.Model)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("expected default temperature 0.7, got %g", cfg.Temperature)
	}
	if cfg.TopP != 0.9 {
		t.Errorf("expected default topP 0.9, got %g", cfg.TopP)
	}
	if cfg.GenerateTimeout != 55*time.Second {
		t.Errorf("expected default generate timeout 55s, got %s", cfg.GenerateTimeout)
	}
	if cfg.MaxUploadBytes != 5<<20 {
		t.Errorf("expected default upload cap 5MB, got %d", cfg.MaxUploadBytes)
	}
	if len(cfg.AllowedMIMETypes) != 4 {
		t.Errorf("expected 4 default MIME types, got %v", cfg.AllowedMIMETypes)
	}
	if cfg.DataDir == "" {
		t.Error("expected DataDir to be non-empty")
	}
}

func TestLoadDefaultsValidate(t *testing.T) {
	clearEnv(t)

	if err := Load().Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadPortOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("CAPTIONSTUDIO_PORT", "9090")

	if cfg := Load(); cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
}

func TestLoadInvalidPortFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("CAPTIONSTUDIO_PORT", "not-a-number")

	if cfg := Load(); cfg.Port != 8790 {
		t.Errorf("expected default port 8790 for invalid port, got %d", cfg.Port)
	}
}

func TestLoadSamplingOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CAPTIONSTUDIO_TEMPERATURE", "1.2")
	t.Setenv("CAPTIONSTUDIO_TOP_P", "0.5")
	t.Setenv("CAPTIONSTUDIO_MAX_TOKENS", "2048")

	cfg := Load()
	if cfg.Temperature != 1.2 {
		t.Errorf("expected temperature 1.2, got %g", cfg.Temperature)
	}
	if cfg.TopP != 0.5 {
		t.Errorf("expected topP 0.5, got %g", cfg.TopP)
	}
	if cfg.MaxOutputTokens != 2048 {
		t.Errorf("expected max tokens 2048, got %d", cfg.MaxOutputTokens)
	}
}

func TestLoadMIMETypeOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("CAPTIONSTUDIO_ALLOWED_MIME_TYPES", "image/png, image/jpeg")

	cfg := Load()
	if len(cfg.AllowedMIMETypes) != 2 {
		t.Fatalf("expected 2 MIME types, got %v", cfg.AllowedMIMETypes)
	}
	if !cfg.AllowsMIME("image/png") || !cfg.AllowsMIME("IMAGE/JPEG") {
		t.Error("expected png and jpeg (case-insensitive) to be allowed")
	}
	if cfg.AllowsMIME("image/webp") {
		t.Error("webp should not be allowed after override")
	}
}

func TestLoadOAuthApps(t *testing.T) {
	clearEnv(t)
	t.Setenv("INSTAGRAM_CLIENT_ID", "ig-id")
	t.Setenv("INSTAGRAM_CLIENT_SECRET", "ig-secret")
	t.Setenv("INSTAGRAM_REDIRECT_URI", "https://example.com/api/social/instagram/auth")
	t.Setenv("FACEBOOK_APP_ID", "fb-id")

	cfg := Load()
	if cfg.Instagram.ClientID != "ig-id" || cfg.Instagram.ClientSecret != "ig-secret" {
		t.Errorf("unexpected Instagram app config: %+v", cfg.Instagram)
	}
	if cfg.Facebook.ClientID != "fb-id" {
		t.Errorf("unexpected Facebook app config: %+v", cfg.Facebook)
	}
}

func TestValidateRejectsBadTemperature(t *testing.T) {
	clearEnv(t)
	t.Setenv("CAPTIONSTUDIO_TEMPERATURE", "3.5")

	if err := Load().Validate(); err == nil {
		t.Error("expected validation error for temperature 3.5")
	}
}

func TestValidateRejectsBadTopP(t *testing.T) {
	clearEnv(t)
	t.Setenv("CAPTIONSTUDIO_TOP_P", "1.5")

	if err := Load().Validate(); err == nil {
		t.Error("expected validation error for topP 1.5")
	}
}

func TestLoadRateLimitOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CAPTIONSTUDIO_RATE_LIMIT_MAX", "10")
	t.Setenv("CAPTIONSTUDIO_RATE_LIMIT_WINDOW_SEC", "60")

	cfg := Load()
	if cfg.RateLimitMax != 10 {
		t.Errorf("expected rate limit max 10, got %d", cfg.RateLimitMax)
	}
	if cfg.RateLimitWindow != time.Minute {
		t.Errorf("expected rate limit window 1m, got %s", cfg.RateLimitWindow)
	}
}
