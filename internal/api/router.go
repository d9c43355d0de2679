package api

import (
	"agentchat-backend/internal/config"
	"agentchat-backend/internal/handlers"
	"agentchat-backend/internal/metrics"
	"agentchat-backend/pkg/logger"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/unrolled/secure"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	AuthHandler   *handlers.AuthHandler
	AgentsHandler *handlers.AgentsHandler
	ChatHandler   *handlers.ChatHandlers
	Metrics       *metrics.Metrics
	Config        *config.Config
	Logger        logger.Logger
}

// requestTimeout must outlast a full relay retry sequence.
const requestTimeout = 90 * time.Second

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	if deps.AuthHandler == nil || deps.AgentsHandler == nil || deps.ChatHandler == nil {
		panic("api: handler dependency is nil in router setup")
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(deps.Metrics.Middleware)
	r.Use(middleware.Timeout(requestTimeout))

	r.Use(secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "same-origin",
		IsDevelopment:      !deps.Config.SessionCookieSecure,
	}).Handler)

	// --- CORS Configuration ---
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", deps.Metrics.Handler())

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/signup", deps.AuthHandler.HandleSignup)
		r.Post("/login", deps.AuthHandler.HandleLogin)
	})

	// --- Authenticated Routes (JWT Required) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JwtAuthMiddleware(deps.Config.JWTSecret, log))
		r.Use(SessionMiddleware(deps.Config.SessionCookieName, deps.Config.SessionCookieSecure, log))

		r.Post("/auth/logout", deps.AuthHandler.HandleLogout)
		r.Get("/agents", deps.AgentsHandler.HandleListAgents)

		r.Route("/chat", func(r chi.Router) {
			r.Get("/", deps.ChatHandler.HandleGetChat)
			r.Put("/agent", deps.ChatHandler.HandleSelectAgent)
			r.Post("/messages", deps.ChatHandler.HandleSendMessage)

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", deps.ChatHandler.HandleNewConversation)
				r.Post("/{conversationID}/select", deps.ChatHandler.HandleSelectConversation)
				r.Patch("/{conversationID}", deps.ChatHandler.HandleRenameConversation)
			})
		})
	})

	return r
}
