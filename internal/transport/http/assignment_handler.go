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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dealdesk/dealdesk/internal/authz"
	"github.com/dealdesk/dealdesk/internal/observability/logger"
	"github.com/dealdesk/dealdesk/internal/permission"
	"github.com/dealdesk/dealdesk/internal/role"
)

// AssignRoleRequest represents a role grant
type AssignRoleRequest struct {
	RoleID string `json:"role_id" binding:"required"`
}

// AssignRole grants a role to a user
// @Summary Assign Role
// @Description Grant a role to a user within the caller's organization
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Param request body AssignRoleRequest true "Role Grant"
// @Success 201 {object} authz.UserRole
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /users/{userID}/roles [post]
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	ur, err := h.authzService.AssignRole(ctx, GetOrganizationID(ctx), chi.URLParam(r, "userID"), req.RoleID, GetActorID(ctx))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, ur)
}

// RemoveRole revokes a role from a user
// @Summary Remove Role
// @Description Revoke a role from a user; revoking an absent grant is a no-op
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Param roleID path string true "Role ID"
// @Success 200 {object} map[string]any
// @Router /users/{userID}/roles/{roleID} [delete]
func (h *Handler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	removed, err := h.authzService.RemoveRole(ctx, GetOrganizationID(ctx), chi.URLParam(r, "userID"), chi.URLParam(r, "roleID"), GetActorID(ctx))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"removed": removed,
	})
}

// ListUserRoles lists a user's roles
// @Summary List User Roles
// @Description List the roles a user holds within the caller's organization
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Success 200 {array} role.Role
// @Router /users/{userID}/roles [get]
func (h *Handler) ListUserRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roles, err := h.authzService.GetUserRoles(ctx, GetOrganizationID(ctx), chi.URLParam(r, "userID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if roles == nil {
		roles = []*role.Role{}
	}
	respondJSON(w, http.StatusOK, roles)
}

// ListUserPermissions lists a user's effective permissions
// @Summary List User Permissions
// @Description Compute the user's effective permission set across all held roles
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Success 200 {array} permission.Permission
// @Router /users/{userID}/permissions [get]
func (h *Handler) ListUserPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	perms, err := h.authzService.GetUserPermissions(ctx, GetOrganizationID(ctx), chi.URLParam(r, "userID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if perms == nil {
		perms = []*permission.Permission{}
	}
	respondJSON(w, http.StatusOK, perms)
}

// ListOwnPermissions lists the caller's effective permissions
// @Summary List Own Permissions
// @Description Compute the calling user's effective permission set
// @Tags Authorization
// @Produce json
// @Security BearerAuth
// @Success 200 {array} permission.Permission
// @Router /me/permissions [get]
func (h *Handler) ListOwnPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	perms, err := h.authzService.GetUserPermissions(ctx, GetOrganizationID(ctx), GetActorID(ctx))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if perms == nil {
		perms = []*permission.Permission{}
	}
	respondJSON(w, http.StatusOK, perms)
}

// CheckPermissionRequest represents an authorization query
type CheckPermissionRequest struct {
	FeatureArea    string `json:"feature_area" binding:"required" example:"clients"`
	PermissionType string `json:"permission_type" binding:"required" example:"view"`
}

// CheckPermission answers an authorization query for the caller
// @Summary Check Permission
// @Description Decide whether the caller may perform an action on a feature area
// @Tags Authorization
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CheckPermissionRequest true "Authorization Query"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /authz/check [post]
func (h *Handler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	var req CheckPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	decision, err := h.authzService.Authorize(ctx, GetOrganizationID(ctx), GetActorID(ctx), req.FeatureArea, permission.Type(req.PermissionType))
	if err != nil {
		if errors.Is(err, authz.ErrInvalidInput) {
			respondDomainError(w, err)
			return
		}
		// The engine already resolved to Deny, but the answer is unreliable:
		// either resolution reads failed or the mandated rejection audit
		// write did not land. Surface it instead of masking the trail gap.
		slog.ErrorContext(ctx, "authorization check did not complete",
			logger.Error(err),
			logger.OrgID(GetOrganizationID(ctx)),
			logger.UserID(GetActorID(ctx)),
			logger.FeatureArea(req.FeatureArea),
			logger.PermissionType(req.PermissionType),
		)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"decision": string(decision),
	})
}

// ListPermissions returns the global permission catalog
// @Summary List Permissions
// @Description List the global permission catalog
// @Tags Permissions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} permission.Permission
// @Router /permissions [get]
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.permRepo.List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if perms == nil {
		perms = []*permission.Permission{}
	}
	respondJSON(w, http.StatusOK, perms)
}
