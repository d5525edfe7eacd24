package server

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/captionstudio/captionstudio/internal/accounts"
	"github.com/captionstudio/captionstudio/internal/config"
	"github.com/captionstudio/captionstudio/internal/database"
	"github.com/captionstudio/captionstudio/internal/handlers"
	"github.com/captionstudio/captionstudio/internal/history"
	mw "github.com/captionstudio/captionstudio/internal/middleware"
	"github.com/captionstudio/captionstudio/internal/social"
	"github.com/captionstudio/captionstudio/internal/statetoken"
	ws "github.com/captionstudio/captionstudio/internal/websocket"
)

type Server struct {
	Router *chi.Mux
	DB     *database.DB
	WSHub  *ws.Hub
}

type Config struct {
	Cfg       *config.Config
	DB        *database.DB
	Generator handlers.Generator
	History   *history.Store
	Accounts  accounts.Store
	States    *statetoken.Issuer
	Instagram *social.Instagram
	Facebook  *social.Facebook
}

func New(cfg Config) *Server {
	s := &Server{
		Router: chi.NewRouter(),
		DB:     cfg.DB,
		WSHub:  ws.NewHub(cfg.Cfg.Port),
	}

	s.setupMiddleware()
	s.setupRoutes(cfg)

	return s
}

func (s *Server) setupMiddleware() {
	s.Router.Use(chiMiddleware.RealIP)
	s.Router.Use(mw.RequestID)
	s.Router.Use(mw.SecurityHeaders)
	s.Router.Use(mw.Logger)
	s.Router.Use(mw.CORS)
	s.Router.Use(chiMiddleware.Recoverer)
}

func (s *Server) setupRoutes(cfg Config) {
	generateHandler := handlers.NewGenerateHandler(cfg.Cfg, cfg.Generator, cfg.History, s.WSHub)
	socialHandler := handlers.NewSocialHandler(cfg.Instagram, cfg.Facebook, cfg.Accounts, cfg.States, s.WSHub)
	systemHandler := handlers.NewSystemHandler(cfg.Cfg, cfg.History, cfg.Generator != nil)

	s.Router.Route("/api", func(r chi.Router) {
		r.Get("/health", systemHandler.Health)
		r.Get("/config", systemHandler.Config)
		r.Get("/history", systemHandler.History)

		r.With(mw.RateLimit(cfg.Cfg.RateLimitMax, cfg.Cfg.RateLimitWindow)).
			Post("/generate-captions", generateHandler.Generate)

		r.Route("/social", func(r chi.Router) {
			r.Get("/accounts", socialHandler.Accounts)
			r.Delete("/{platform}", socialHandler.Disconnect)

			r.Get("/instagram/auth", socialHandler.InstagramAuth)
			r.Post("/instagram/post", socialHandler.InstagramPost)

			r.Get("/facebook/auth", socialHandler.FacebookAuth)
			r.Post("/facebook/post", socialHandler.FacebookPost)
		})

		r.Get("/ws", s.WSHub.HandleWS)
	})
}
