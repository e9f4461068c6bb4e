// Package api provides the HTTP API server and handlers for the Stowaway application.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/stowawayapp/stowaway-server/internal/cache"
	"github.com/stowawayapp/stowaway-server/internal/media/images"
	"github.com/stowawayapp/stowaway-server/internal/ratelimit"
	"github.com/stowawayapp/stowaway-server/internal/service"
	"github.com/stowawayapp/stowaway-server/internal/sse"
	"github.com/stowawayapp/stowaway-server/internal/store"
	"github.com/stowawayapp/stowaway-server/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store       *store.Store
	authService *service.AuthService
	sessions    *cache.Registry
	sseManager  *sse.Manager
	storage     *images.Storage
	processor   *images.Processor
	validator   *validation.Validator
	router      *chi.Mux
	api         huma.API
	authLimiter *ratelimit.KeyedRateLimiter
	logger      *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	st *store.Store,
	authService *service.AuthService,
	sessions *cache.Registry,
	sseManager *sse.Manager,
	storage *images.Storage,
	processor *images.Processor,
	logger *slog.Logger,
) *Server {
	s := &Server{
		store:       st,
		authService: authService,
		sessions:    sessions,
		sseManager:  sseManager,
		storage:     storage,
		processor:   processor,
		validator:   validation.New(),
		router:      chi.NewRouter(),
		authLimiter: ratelimit.New(20.0/60.0, 10),
		logger:      logger,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Stowaway API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerContainerRoutes()
	s.registerTagRoutes()
	s.registerImageRoutes()
	s.registerFavoriteRoutes()
	s.registerCodeRoutes()
	s.registerEventRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Filename"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// registerEventRoutes mounts the SSE stream. The stream uses chi
// directly because huma buffers response bodies.
func (s *Server) registerEventRoutes() {
	handler := sse.NewHandler(s.sseManager, func(r *http.Request) string {
		return s.userIDFromRequest(r)
	}, s.logger)

	s.router.Get("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		if s.userIDFromRequest(r) == "" {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

// userIDFromRequest resolves the authenticated user from either the
// Authorization header or a token query parameter. EventSource clients
// cannot set headers, so the SSE stream accepts ?token=.
func (s *Server) userIDFromRequest(r *http.Request) string {
	token := ""
	if authHeader := r.Header.Get("Authorization"); len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	} else if qt := r.URL.Query().Get("token"); qt != "" {
		token = qt
	}
	if token == "" {
		return ""
	}

	claims, err := s.authService.VerifyAccessToken(token)
	if err != nil {
		return ""
	}
	return claims.UserID
}
