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
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dealdesk/dealdesk/internal/observability/logger"
	"github.com/dealdesk/dealdesk/internal/role"
)

// CreateRoleRequest represents role creation data
type CreateRoleRequest struct {
	Name        string `json:"name" binding:"required" example:"Sales Lead"`
	Description string `json:"description" example:"Leads the sales pod"`
}

// CreateRole creates a custom role in the caller's organization
// @Summary Create Role
// @Description Create a custom role; the name must be unique within the organization
// @Tags Roles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateRoleRequest true "Role Data"
// @Success 201 {object} role.Role
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /roles [post]
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	created, err := h.roleService.CreateRole(ctx, GetOrganizationID(ctx), GetActorID(ctx), req.Name, req.Description, false)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create role",
			logger.Error(err),
			logger.RoleName(req.Name),
		)
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// ListRoles lists the organization's roles
// @Summary List Roles
// @Description List all roles in the caller's organization, defaults first
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Success 200 {array} role.Role
// @Router /roles [get]
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roles, err := h.roleService.ListRoles(ctx, GetOrganizationID(ctx))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if roles == nil {
		roles = []*role.Role{}
	}
	respondJSON(w, http.StatusOK, roles)
}

// GetRole retrieves one role with its permission set
// @Summary Get Role
// @Description Retrieve a role and its resolved permissions
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Param roleID path string true "Role ID"
// @Success 200 {object} role.RoleWithPermissions
// @Failure 404 {object} map[string]string
// @Router /roles/{roleID} [get]
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	got, err := h.roleService.GetRoleWithPermissions(ctx, GetOrganizationID(ctx), chi.URLParam(r, "roleID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, got)
}

// UpdateRoleRequest represents role update data. Omitted fields are left
// unchanged.
type UpdateRoleRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// UpdateRole renames or re-describes a role
// @Summary Update Role
// @Description Update a role's name or description
// @Tags Roles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param roleID path string true "Role ID"
// @Param request body UpdateRoleRequest true "Role Update"
// @Success 200 {object} role.Role
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /roles/{roleID} [put]
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	updated, err := h.roleService.UpdateRole(ctx, GetOrganizationID(ctx), GetActorID(ctx), chi.URLParam(r, "roleID"), role.Update{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DeleteRole removes a custom role
// @Summary Delete Role
// @Description Delete a role; default roles and roles with active assignments refuse deletion
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Param roleID path string true "Role ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /roles/{roleID} [delete]
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.roleService.DeleteRole(ctx, GetOrganizationID(ctx), GetActorID(ctx), chi.URLParam(r, "roleID")); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "role deleted successfully",
	})
}

// GetRolePermissions lists the role's permission grants
// @Summary Get Role Permissions
// @Description List the permissions granted to a role
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Param roleID path string true "Role ID"
// @Success 200 {array} permission.Permission
// @Failure 404 {object} map[string]string
// @Router /roles/{roleID}/permissions [get]
func (h *Handler) GetRolePermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	got, err := h.roleService.GetRoleWithPermissions(ctx, GetOrganizationID(ctx), chi.URLParam(r, "roleID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, got.Permissions)
}

// SetRolePermissionsRequest carries the replacement permission id set
type SetRolePermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids"`
}

// SetRolePermissions replaces a role's permission set
// @Summary Set Role Permissions
// @Description Atomically replace the role's entire permission set
// @Tags Roles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param roleID path string true "Role ID"
// @Param request body SetRolePermissionsRequest true "Permission IDs"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /roles/{roleID}/permissions [put]
func (h *Handler) SetRolePermissions(w http.ResponseWriter, r *http.Request) {
	var req SetRolePermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	if err := h.roleService.SetPermissions(ctx, GetOrganizationID(ctx), GetActorID(ctx), chi.URLParam(r, "roleID"), req.PermissionIDs); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "role permissions updated successfully",
	})
}
