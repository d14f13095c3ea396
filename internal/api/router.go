// Package api exposes the HTTP surface: routing, middleware, handlers, and
// the JSON error envelope.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lukeharris/trackd/internal/auth"
	"github.com/lukeharris/trackd/internal/invite"
	"github.com/lukeharris/trackd/internal/metrics"
	"github.com/lukeharris/trackd/internal/project"
	"github.com/lukeharris/trackd/internal/ratelimit"
	"github.com/lukeharris/trackd/internal/user"
)

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Auth           *auth.Service
	Issuer         *auth.TokenIssuer
	Users          *user.Store
	Projects       *project.Store
	Invitations    *invite.Service
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	DBPool         *pgxpool.Pool
	SigninLimiter  *ratelimit.Limiter
	SecureCookies  bool
	AllowedOrigins []string
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	audit := &auditor{logger: logger}

	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))
	r.Use(requestLogger(logger))
	r.Use(metricsMiddleware(deps.Metrics))

	// Handlers. A typed nil store must not end up inside the interface.
	var memberships membershipLister
	if deps.Users != nil {
		memberships = deps.Users
	}
	authH := newAuthHandler(deps.Auth, memberships, deps.Metrics, audit, deps.SecureCookies)
	teams := newTeamsHandler(deps.Users, audit)
	users := newUsersHandler(deps.Users, audit)
	projects := newProjectsHandler(deps.Projects, audit)
	invitations := newInvitationsHandler(deps.Invitations, deps.Metrics, audit)

	// Health check, with a database ping when a pool is wired.
	r.Get("/health", healthHandler(deps.DBPool))

	// Live metrics summary.
	r.Get("/metrics", deps.Metrics.Handler())
	r.Get("/api/v1/metrics/summary", deps.Metrics.Handler())

	// Credential endpoints. Signin is throttled per client IP.
	r.Route("/api/v1/auth", func(ar chi.Router) {
		ar.Post("/signup", authH.Signup)

		if deps.SigninLimiter != nil {
			ar.With(ratelimit.Middleware(deps.SigninLimiter, ratelimit.ByClientIP, func() {
				deps.Metrics.IncRateLimitRejection("signin")
			})).Post("/signin", authH.Signin)
		} else {
			ar.Post("/signin", authH.Signin)
		}

		// Some clients refresh via GET on page load; both verbs are served.
		ar.Post("/refresh", authH.Refresh)
		ar.Get("/refresh", authH.Refresh)

		ar.Group(func(pr chi.Router) {
			pr.Use(auth.RequireAuth(deps.Issuer))
			pr.Post("/logout", authH.Logout)
			pr.Get("/me", authH.Me)
		})
	})

	// Authenticated API.
	r.Route("/api/v1", func(ar chi.Router) {
		ar.Use(auth.RequireAuth(deps.Issuer))

		// Teams.
		ar.Get("/teams", teams.List)
		ar.Get("/teams/{teamID}", teams.Get)
		ar.Get("/teams/{teamID}/members", teams.Members)
		ar.With(auth.RequireRole(user.RoleAdmin)).Post("/teams", teams.Create)

		// Invitations. Issuance and listing are privileged; the service
		// re-checks the inviter's role with the explicit principal.
		ar.Route("/teams/{teamID}/invitations", func(ir chi.Router) {
			ir.Use(auth.RequireRole(user.RoleAdmin, user.RoleManager))
			ir.Post("/", invitations.Create)
			ir.Get("/", invitations.List)
		})
		ar.Post("/invitations/{id}/accept", invitations.Accept)
		ar.Post("/invitations/{id}/revoke", invitations.Revoke)

		// Projects and bugs.
		ar.Get("/projects", projects.ListProjects)
		ar.Get("/projects/{id}", projects.GetProject)
		ar.Get("/projects/{id}/bugs", projects.ListBugs)
		ar.Get("/bugs/{id}", projects.GetBug)

		ar.Group(func(wr chi.Router) {
			wr.Use(auth.RequireRole(user.RoleAdmin, user.RoleManager, user.RoleMember))
			wr.Post("/projects", projects.CreateProject)
			wr.Put("/projects/{id}", projects.UpdateProject)
			wr.Post("/projects/{id}/bugs", projects.CreateBug)
			wr.Patch("/bugs/{id}", projects.UpdateBug)
		})

		ar.Group(func(mr chi.Router) {
			mr.Use(auth.RequireRole(user.RoleAdmin, user.RoleManager))
			mr.Delete("/projects/{id}", projects.DeleteProject)
			mr.Delete("/bugs/{id}", projects.DeleteBug)
		})

		// Admin user management.
		ar.Route("/admin", func(adr chi.Router) {
			adr.Use(auth.RequireRole(user.RoleAdmin))
			adr.Get("/users", users.List)
			adr.Get("/users/{id}", users.Get)
			adr.Put("/users/{id}/role", users.UpdateRole)
		})
	})

	return r
}

// healthHandler reports liveness plus database connectivity.
func healthHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok", "database": "connected"}
		status := http.StatusOK
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				body["status"] = "degraded"
				body["database"] = "unreachable"
				status = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, status, body)
	}
}

// requestLogger is a structured logging middleware using the injected logger.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes", ww.BytesWritten(),
				"request_id", RequestIDFromContext(r.Context()),
			)
		})
	}
}
