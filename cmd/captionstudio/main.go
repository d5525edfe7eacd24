package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/captionstudio/captionstudio/internal/accounts"
	"github.com/captionstudio/captionstudio/internal/config"
	"github.com/captionstudio/captionstudio/internal/database"
	"github.com/captionstudio/captionstudio/internal/gemini"
	"github.com/captionstudio/captionstudio/internal/handlers"
	"github.com/captionstudio/captionstudio/internal/history"
	"github.com/captionstudio/captionstudio/internal/logger"
	"github.com/captionstudio/captionstudio/internal/scheduler"
	"github.com/captionstudio/captionstudio/internal/server"
	"github.com/captionstudio/captionstudio/internal/social"
	"github.com/captionstudio/captionstudio/internal/statetoken"
	"github.com/captionstudio/captionstudio/internal/tokenvault"
)

var version = "dev"

func main() {
	if len(os.Args) == 2 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Println("captionstudio " + version)
		os.Exit(0)
	}

	logger.Banner()
	handlers.AppVersion = version

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}

	db, err := database.New(cfg.DataDir)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}
	defer db.Close()

	encKey, err := resolveSecret(db, cfg.EncryptionKey, "encryption-key", "encryption_key")
	if err != nil {
		logger.Fatal("Failed to resolve encryption key: %v", err)
	}
	vault := tokenvault.New(encKey)

	stateSecret, err := resolveSecret(db, cfg.StateSecret, "state-secret", "state_secret")
	if err != nil {
		logger.Fatal("Failed to resolve state secret: %v", err)
	}
	states := statetoken.NewIssuer(stateSecret)

	accountStore := accounts.NewSQLiteStore(db, vault)
	historyStore := history.NewStore(db)

	var generator handlers.Generator
	if cfg.GeminiAPIKey != "" {
		client, err := gemini.New(context.Background(), gemini.Config{
			APIKey:          cfg.GeminiAPIKey,
			Model:           cfg.Model,
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			MaxOutputTokens: cfg.MaxOutputTokens,
			MaxConcurrent:   cfg.MaxConcurrent,
		})
		if err != nil {
			logger.Fatal("Failed to initialize Gemini client: %v", err)
		}
		generator = client
		logger.Success("Gemini client ready (model %s)", cfg.Model)
	} else {
		logger.Warn("GEMINI_API_KEY is not set. Caption generation will return errors until it is configured.")
	}

	sched := scheduler.New(historyStore, accountStore, cfg.RetentionDays)
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Cfg:       cfg,
		DB:        db,
		Generator: generator,
		History:   historyStore,
		Accounts:  accountStore,
		States:    states,
		Instagram: social.NewInstagram(cfg.Instagram),
		Facebook:  social.NewFacebook(cfg.Facebook),
	})

	go srv.WSHub.Run()
	defer srv.WSHub.Stop()

	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	if cfg.BindAddress != "127.0.0.1" && cfg.BindAddress != "localhost" {
		logger.Warn("Binding to %s — accessible from the network. Use CAPTIONSTUDIO_BIND=127.0.0.1 for localhost-only.", cfg.BindAddress)
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // generation can outlive any sane write deadline; WebSocket needs none
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		url := fmt.Sprintf("http://localhost:%d", cfg.Port)
		logger.Listen(addr, url, cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	<-done
	logger.Shutdown("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal("Server shutdown failed: %v", err)
	}

	logger.Bye()
}

// resolveSecret resolves a server secret: explicit value > settings table >
// generate and persist so it survives restarts.
func resolveSecret(db *database.DB, explicit, id, key string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if stored := db.GetSetting(key); stored != "" {
		return stored, nil
	}
	generated, err := tokenvault.GenerateKey()
	if err != nil {
		return "", err
	}
	if err := db.SetSetting(id, key, generated); err != nil {
		return "", err
	}
	logger.Success("Generated and persisted %s", key)
	return generated, nil
}
