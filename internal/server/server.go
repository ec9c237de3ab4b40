// Package server is the composition root: it builds every dependency from a
// config.Config, mounts the routes and runs the HTTP server until a signal
// arrives.
//
// Dependency chain:
//
//	sqlite.DB ─┬─ AuthService ──── AuthHandler
//	           └─ UserService ──── UserHandler
//	github.Client ── RepositoryService ── RepositoryHandler
//	auth.Codec ── OptionalAuth (every request), Authenticate (protected), AuthService
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/sakif/coderover/internal/auth"
	"github.com/sakif/coderover/internal/config"
	"github.com/sakif/coderover/internal/github"
	"github.com/sakif/coderover/internal/handler"
	"github.com/sakif/coderover/internal/middleware"
	sqliteRepo "github.com/sakif/coderover/internal/repository/sqlite"
	"github.com/sakif/coderover/internal/service"
)

// ServiceName identifies the server in traces.
const ServiceName = "coderover"

// Server owns the router and the database connection.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB

	oauthEndpoint *oauth2.Endpoint
	httpClient    *http.Client
}

// Option adjusts how New builds the server.
type Option func(*Server)

// WithOAuthEndpoint replaces GitHub's authorize/token URLs, e.g. with a fake
// GitHub in tests.
func WithOAuthEndpoint(ep oauth2.Endpoint) Option {
	return func(s *Server) { s.oauthEndpoint = &ep }
}

// WithHTTPClient sets the client used for every outgoing GitHub call.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) { s.httpClient = c }
}

// New opens the database and wires every layer.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, ServiceName)
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes mounts:
//
//	GET  /health                                  public
//	GET  /auth/github/login                       public (OAuth configured)
//	GET  /auth/github/callback                    public (OAuth configured)
//	POST /auth/logout                             public
//	GET  /auth/token                              auth, DEBUG_ENDPOINTS only
//	GET  /api/v1/user                             auth
//	GET  /api/v1/repos/user/repos                 auth
//	GET  /api/v1/repos/{owner}/{repo}             auth
//	GET  /api/v1/repos/{owner}/{repo}/tree        auth
//	GET  /api/v1/repos/{owner}/{repo}/blob        auth
//	GET  /api/v1/repos/{owner}/{repo}/branches/*  auth
//
// OptionalAuth runs on every route and treats an unusable credential as
// anonymous, so a stale cookie never blocks login or logout. Protected routes
// add Authenticate, which rejects that cookie with 401 and clears it, and
// RequireAuth, which turns anonymous requests away.
func (s *Server) setupRoutes() error {
	codec, err := auth.NewCodec(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating credential codec: %w", err)
	}

	gh := github.NewWithHTTPClient(s.config.GitHubAPIURL, s.httpClient)

	authService := service.NewAuthService(s.db, s.db, codec, gh, s.config.JWTTTL, s.logger)
	userService := service.NewUserService(s.db, s.config.DefaultAvatarURL)
	repoService := service.NewRepositoryService(gh, s.config.RepoLanguage, s.logger)

	provider := auth.NewGitHubProvider(
		s.config.GitHubClientID,
		s.config.GitHubClientSecret,
		s.config.GitHubCallbackURL,
		s.config.GitHubScopes,
		s.config.GitHubAPIURL,
		s.httpClient,
	)
	if s.oauthEndpoint != nil {
		provider = provider.WithEndpoint(*s.oauthEndpoint)
	}

	authHandler := handler.NewAuthHandler(provider, authService, authService,
		s.config.CookieSecure, s.config.FrontendRedirectURL, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	repoHandler := handler.NewRepositoryHandler(repoService, authService, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(auth.OptionalAuth(codec, s.logger))
	s.router.Use(middleware.CaptureSubject)

	protected := chi.Chain(auth.Authenticate(codec, s.config.CookieSecure, s.logger), auth.RequireAuth)

	s.router.Get("/health", handler.HandleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		if s.config.OAuthEnabled() {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		} else {
			s.logger.Warn("GitHub OAuth not configured; login routes disabled")
		}
		r.Post("/logout", authHandler.HandleLogout)
		if s.config.DebugEndpoints {
			s.logger.Warn("debug endpoint /auth/token is enabled")
			r.With(protected...).Get("/token", authHandler.HandleToken)
		}
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(protected...)
		r.Get("/user", userHandler.HandleUserInfo)
		r.Route("/repos", func(r chi.Router) {
			r.Get("/user/repos", repoHandler.HandleListRepos)
			r.Get("/{owner}/{repo}", repoHandler.HandleBranches)
			r.Get("/{owner}/{repo}/tree", repoHandler.HandleTree)
			r.Get("/{owner}/{repo}/blob", repoHandler.HandleBlob)
			r.Get("/{owner}/{repo}/branches/*", repoHandler.HandleBranch)
		})
	})

	return nil
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.Bool("oauth", s.config.OAuthEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
