package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nikhilbhutani/eventdesk/internal/api/handlers"
	"github.com/nikhilbhutani/eventdesk/internal/api/middleware"
	"github.com/nikhilbhutani/eventdesk/internal/auth"
	"github.com/nikhilbhutani/eventdesk/internal/config"
)

// Deps are the services the HTTP layer is built from.
type Deps struct {
	Accounts handlers.Accounts
	Tickets  handlers.Tickets
	Tenants  handlers.TenantLister
	Audit    handlers.AuditLister

	DB     handlers.Pinger
	Redis  handlers.Pinger
	Marker handlers.MigrationSource
}

type Router struct {
	mux  *chi.Mux
	cfg  *config.Config
	deps Deps
	log  zerolog.Logger
	jwt  *auth.Authenticator
	edge *auth.EdgeGuard
}

func NewRouter(cfg *config.Config, deps Deps, log zerolog.Logger) *Router {
	return &Router{
		mux:  chi.NewRouter(),
		cfg:  cfg,
		deps: deps,
		log:  log,
		jwt:  auth.NewAuthenticator(auth.NewVerifier(cfg.Auth.JWTSecret), cfg.Auth.CookieName, log),
		edge: auth.NewEdgeGuard(auth.NewEdgeVerifier(cfg.Auth.JWTSecret), cfg.Auth.CookieName, cfg.Auth.SecureCookie, log),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(rt.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           3600,
	}))
	r.Use(middleware.ClientIP)

	rl := middleware.NewRateLimiter(rt.cfg.HTTP.RateLimitRPS, rt.cfg.HTTP.RateLimitBurst)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.deps.DB, rt.deps.Redis, rt.deps.Marker)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	authH := handlers.NewAuthHandler(rt.deps.Accounts, rt.cfg.Auth.CookieName, rt.cfg.Auth.SecureCookie)
	ticketH := handlers.NewTicketHandler(rt.deps.Tickets)
	adminH := handlers.NewAdminHandler(rt.deps.Tickets, rt.deps.Tenants, rt.deps.Audit)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authH.Signup)
			r.Post("/login", authH.Login)
			r.Post("/logout", authH.Logout)
			r.With(rt.jwt.Authenticate).Get("/me", authH.Me)
		})

		r.Route("/support/tickets", func(r chi.Router) {
			r.Use(rt.jwt.Authenticate)
			r.Get("/", ticketH.List)
			r.Post("/", ticketH.Create)
			r.Get("/{id}", ticketH.Get)
			r.Put("/{id}", ticketH.Reply)
		})

		r.Route("/admin", func(r chi.Router) {
			// Staff login has to stay reachable without a session.
			r.Post("/auth/login", authH.AdminLogin)

			r.Group(func(r chi.Router) {
				r.Use(rt.edge.RequireStaff)
				r.Use(rt.jwt.Authenticate)

				r.Route("/tickets", func(r chi.Router) {
					r.With(auth.RequireCapability(auth.CapTicketsReadAll)).Get("/", adminH.ListTickets)
					r.With(auth.RequireCapability(auth.CapTicketsStats)).Get("/stats", adminH.Stats)
					r.With(auth.RequireCapability(auth.CapTicketsReadAll)).Get("/{id}", adminH.GetTicket)
					r.With(auth.RequireCapability(auth.CapTicketsManageAll)).Put("/{id}", adminH.UpdateTicket)
				})
				r.With(auth.RequireCapability(auth.CapTenantsReadAll)).Get("/tenants", adminH.Tenants)
				r.With(auth.RequireCapability(auth.CapTenantsReadAll)).Get("/tenants/{id}", adminH.Tenant)
				r.With(auth.RequireCapability(auth.CapAuditRead)).Get("/audit", adminH.AuditLogs)
			})
		})
	})

	return otelhttp.NewHandler(r, rt.cfg.Telemetry.ServiceName)
}
