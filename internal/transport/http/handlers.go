// @title DealDesk Authorization API
// @version 1.0.0
// @description Multi-tenant role-based access control for the DealDesk platform

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dealdesk/dealdesk/internal/audit"
	"github.com/dealdesk/dealdesk/internal/authz"
	"github.com/dealdesk/dealdesk/internal/organization"
	"github.com/dealdesk/dealdesk/internal/permission"
	"github.com/dealdesk/dealdesk/internal/rbac"
	"github.com/dealdesk/dealdesk/internal/role"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	roleService  *role.Service
	authzService *authz.Service
	auditService *audit.Service
	orgRepo      organization.Repository
	permRepo     permission.Repository
	seeder       *rbac.Seeder
	tokenKey     []byte
	tokenIssuer  string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	roleService *role.Service,
	authzService *authz.Service,
	auditService *audit.Service,
	orgRepo organization.Repository,
	permRepo permission.Repository,
	seeder *rbac.Seeder,
	tokenKey []byte,
	tokenIssuer string,
) *Handler {
	return &Handler{
		roleService:  roleService,
		authzService: authzService,
		auditService: auditService,
		orgRepo:      orgRepo,
		permRepo:     permRepo,
		seeder:       seeder,
		tokenKey:     tokenKey,
		tokenIssuer:  tokenIssuer,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		// Platform provisioning. Organization creation happens before the
		// organization has any roles to check against.
		r.Post("/organizations", h.CreateOrganization)
		r.Get("/organizations", h.ListOrganizations)
		r.Get("/organizations/{organizationID}", h.GetOrganization)

		// Organization-scoped endpoints (FAIL-CLOSED)
		r.Group(func(r chi.Router) {
			r.Use(RequireOrganization)

			// Permission catalog (read-only for every authenticated user)
			r.Get("/permissions", h.ListPermissions)

			// Role registry
			r.Route("/roles", func(r chi.Router) {
				r.With(h.RequirePermission(permission.AreaRoles, permission.TypeView)).Get("/", h.ListRoles)
				r.With(h.RequirePermission(permission.AreaRoles, permission.TypeCreate)).Post("/", h.CreateRole)

				r.Route("/{roleID}", func(r chi.Router) {
					r.With(h.RequirePermission(permission.AreaRoles, permission.TypeView)).Get("/", h.GetRole)
					r.With(h.RequirePermission(permission.AreaRoles, permission.TypeEdit)).Put("/", h.UpdateRole)
					r.With(h.RequirePermission(permission.AreaRoles, permission.TypeDelete)).Delete("/", h.DeleteRole)
					r.With(h.RequirePermission(permission.AreaRoles, permission.TypeView)).Get("/permissions", h.GetRolePermissions)
					r.With(h.RequirePermission(permission.AreaRoles, permission.TypeEdit)).Put("/permissions", h.SetRolePermissions)
				})
			})

			// User role assignments
			r.Route("/users/{userID}", func(r chi.Router) {
				r.With(h.RequirePermission(permission.AreaTeam, permission.TypeView)).Get("/roles", h.ListUserRoles)
				r.With(h.RequirePermission(permission.AreaTeam, permission.TypeEdit)).Post("/roles", h.AssignRole)
				r.With(h.RequirePermission(permission.AreaTeam, permission.TypeEdit)).Delete("/roles/{roleID}", h.RemoveRole)
				r.With(h.RequirePermission(permission.AreaTeam, permission.TypeView)).Get("/permissions", h.ListUserPermissions)
			})

			// Authorization checks (actors may always inspect themselves)
			r.Post("/authz/check", h.CheckPermission)
			r.Get("/me/permissions", h.ListOwnPermissions)

			// Audit trail
			r.With(h.RequirePermission(permission.AreaSettings, permission.TypeView)).Get("/audit/events", h.ListAuditEvents)
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "dealdesk-authz",
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondDomainError maps domain sentinels to HTTP statuses. Unknown errors
// collapse to a generic 500 so internals never leak to clients.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, role.ErrRoleNotFound),
		errors.Is(err, organization.ErrNotFound),
		errors.Is(err, permission.ErrPermissionNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, role.ErrRoleNameTaken),
		errors.Is(err, role.ErrRoleInUse),
		errors.Is(err, authz.ErrRoleAlreadyAssigned),
		errors.Is(err, organization.ErrAlreadyExists):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, role.ErrRoleProtected):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, role.ErrInvalidInput),
		errors.Is(err, authz.ErrInvalidInput),
		errors.Is(err, audit.ErrInvalidEvent):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
