package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	BindAddress string
	DataDir     string

	// Gemini
	GeminiAPIKey    string
	Model           string
	Temperature     float64
	TopP            float64
	MaxOutputTokens int
	// GenerateTimeout is the wall-clock budget for one model call. It is
	// deliberately shorter than the server's write deadline so a timeout
	// returns a clean error instead of a killed connection.
	GenerateTimeout time.Duration
	MaxConcurrent   int

	// Uploads
	MaxUploadBytes   int64
	AllowedMIMETypes []string

	// OAuth apps
	Instagram OAuthApp
	Facebook  OAuthApp

	// Rate limiting for the generation endpoint
	RateLimitMax    int
	RateLimitWindow time.Duration

	// History retention
	RetentionDays int

	// Secrets. Empty values are resolved from the settings table at startup,
	// generating and persisting fresh ones on first run.
	EncryptionKey string
	StateSecret   string
}

type OAuthApp struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present.
func Load() *Config {
	godotenv.Load()

	cfg := &Config{
		Port:        8790,
		BindAddress: "127.0.0.1",
		DataDir:     resolveDataDir(),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		Model:           getEnv("CAPTIONSTUDIO_MODEL", "gemini-2.5-flash"),
		Temperature:     0.7,
		TopP:            0.9,
		MaxOutputTokens: 1000,
		GenerateTimeout: 55 * time.Second,
		MaxConcurrent:   4,

		MaxUploadBytes: 5 << 20,
		AllowedMIMETypes: []string{
			"image/jpeg", "image/png", "image/gif", "image/webp",
		},

		Instagram: OAuthApp{
			ClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
			ClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("INSTAGRAM_REDIRECT_URI", ""),
		},
		Facebook: OAuthApp{
			ClientID:     getEnv("FACEBOOK_APP_ID", ""),
			ClientSecret: getEnv("FACEBOOK_APP_SECRET", ""),
			RedirectURI:  getEnv("FACEBOOK_REDIRECT_URI", ""),
		},

		RateLimitMax:    100,
		RateLimitWindow: 15 * time.Minute,
		RetentionDays:   30,

		EncryptionKey: getEnv("CAPTIONSTUDIO_ENCRYPTION_KEY", ""),
		StateSecret:   getEnv("CAPTIONSTUDIO_STATE_SECRET", ""),
	}

	if p := getEnv("CAPTIONSTUDIO_PORT", ""); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			cfg.Port = port
		}
	}
	if b := getEnv("CAPTIONSTUDIO_BIND", ""); b != "" {
		cfg.BindAddress = b
	}
	if d := getEnv("CAPTIONSTUDIO_DATA_DIR", ""); d != "" {
		cfg.DataDir = d
	}
	if v := getEnv("CAPTIONSTUDIO_TEMPERATURE", ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Temperature = f
		}
	}
	if v := getEnv("CAPTIONSTUDIO_TOP_P", ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.TopP = f
		}
	}
	if v := getEnv("CAPTIONSTUDIO_MAX_TOKENS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxOutputTokens = n
		}
	}
	if v := getEnv("CAPTIONSTUDIO_GENERATE_TIMEOUT_SEC", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.GenerateTimeout = time.Duration(n) * time.Second
		}
	}
	if v := getEnv("CAPTIONSTUDIO_MAX_CONCURRENT", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConcurrent = n
		}
	}
	if v := getEnv("CAPTIONSTUDIO_MAX_UPLOAD_BYTES", ""); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxUploadBytes = n
		}
	}
	if v := getEnv("CAPTIONSTUDIO_ALLOWED_MIME_TYPES", ""); v != "" {
		var types []string
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
		if len(types) > 0 {
			cfg.AllowedMIMETypes = types
		}
	}
	if v := getEnv("CAPTIONSTUDIO_RATE_LIMIT_MAX", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitMax = n
		}
	}
	if v := getEnv("CAPTIONSTUDIO_RATE_LIMIT_WINDOW_SEC", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitWindow = time.Duration(n) * time.Second
		}
	}
	if v := getEnv("CAPTIONSTUDIO_RETENTION_DAYS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetentionDays = n
		}
	}

	return cfg
}

// Validate rejects out-of-range sampling and upload settings. A missing
// Gemini key is not a validation failure here: it is reported per-request so
// the server can still serve the OAuth and posting endpoints without one.
func (c *Config) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", c.Temperature)
	}
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("topP must be between 0 and 1, got %g", c.TopP)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", c.MaxUploadBytes)
	}
	if len(c.AllowedMIMETypes) == 0 {
		return fmt.Errorf("at least one allowed MIME type is required")
	}
	return nil
}

// AllowsMIME reports whether mime is on the upload allow-list.
func (c *Config) AllowsMIME(mime string) bool {
	for _, t := range c.AllowedMIMETypes {
		if strings.EqualFold(t, mime) {
			return true
		}
	}
	return false
}

func resolveDataDir() string {
	// Resolve data dir relative to the executable, not the CWD
	exe, err := os.Executable()
	if err != nil {
		return "./data"
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "./data"
	}
	return filepath.Join(filepath.Dir(exe), "data")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
