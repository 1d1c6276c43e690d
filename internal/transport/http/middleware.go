// Copyright 2026 The DealDesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dealdesk/dealdesk/internal/authz"
	"github.com/dealdesk/dealdesk/internal/observability/logger"
	"github.com/dealdesk/dealdesk/internal/permission"
)

// Authorization principles:
// 1. Organization context is derived exclusively from the access token.
// 2. Privileges are derived from role assignments, never from hardcoded
//    role-name checks.
// 3. A permission check that cannot complete denies.

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Log request start
			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// AccessClaims is the token payload the auth middleware accepts. The subject
// is the acting user; org scopes every downstream read and write.
type AccessClaims struct {
	OrganizationID string `json:"org"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the bearer token and injects actor and
// organization context. Organization context comes only from the token;
// an X-Organization-ID header on an authenticated request is rejected as a
// spoofing attempt.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		claims := &AccessClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return h.tokenKey, nil
		}, jwt.WithIssuer(h.tokenIssuer), jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if claims.Subject == "" || claims.OrganizationID == "" {
			respondError(w, http.StatusUnauthorized, "token missing subject or organization")
			return
		}

		if r.Header.Get("X-Organization-ID") != "" {
			slog.WarnContext(r.Context(), "organization header spoofing attempt detected on authenticated route",
				logger.UserID(claims.Subject),
			)
			respondError(w, http.StatusBadRequest, "X-Organization-ID header is not allowed; organization is derived from the token")
			return
		}

		ctx := context.WithValue(r.Context(), actorIDKey, claims.Subject)
		ctx = context.WithValue(ctx, organizationIDKey, claims.OrganizationID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireOrganization enforces that an organization context is present.
func RequireOrganization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetOrganizationID(r.Context()) == "" {
			respondError(w, http.StatusBadRequest, "organization context is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission gates a route on one catalog permission. Fail-closed:
// any resolution failure is a 403.
func (h *Handler) RequirePermission(featureArea string, permissionType permission.Type) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			orgID := GetOrganizationID(ctx)
			actorID := GetActorID(ctx)

			decision, err := h.authzService.Authorize(ctx, orgID, actorID, featureArea, permissionType)
			if err != nil {
				slog.ErrorContext(ctx, "authorization check failed",
					logger.Error(err),
					logger.OrgID(orgID),
					logger.UserID(actorID),
					logger.FeatureArea(featureArea),
				)
			}
			if decision != authz.Allow {
				respondError(w, http.StatusForbidden, "permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
