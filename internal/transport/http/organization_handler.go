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
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dealdesk/dealdesk/internal/audit"
	"github.com/dealdesk/dealdesk/internal/id"
	"github.com/dealdesk/dealdesk/internal/observability/logger"
	"github.com/dealdesk/dealdesk/internal/organization"
	"github.com/dealdesk/dealdesk/internal/rbac"
)

// CreateOrganizationRequest represents organization provisioning data
type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required" example:"Acme Corp"`
	// AdminUserID, when set, receives the seeded Admin role so the new
	// organization has an actor able to manage roles and assignments.
	AdminUserID string `json:"admin_user_id,omitempty" example:"usr-1"`
}

// CreateOrganization provisions a new organization with its default roles
// @Summary Create Organization
// @Description Provision an organization and seed its default role set
// @Tags Organizations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateOrganizationRequest true "Organization Data"
// @Success 201 {object} organization.Organization
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /organizations [post]
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "organization name is required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	org := &organization.Organization{
		ID:        id.NewUUIDv7(),
		Name:      req.Name,
		Status:    organization.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.orgRepo.Create(ctx, org); err != nil {
		respondDomainError(w, err)
		return
	}

	// Every organization starts with the default role set in place.
	if _, err := h.seeder.SeedOrganizationDefaults(ctx, org.ID); err != nil {
		slog.ErrorContext(ctx, "failed to seed organization defaults",
			logger.Error(err),
			logger.OrgID(org.ID),
		)
		respondError(w, http.StatusInternalServerError, "failed to seed default roles")
		return
	}

	if adminID := strings.TrimSpace(req.AdminUserID); adminID != "" {
		adminRole, err := h.roleService.GetRoleByName(ctx, org.ID, rbac.RoleAdmin)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		if _, err := h.authzService.AssignRole(ctx, org.ID, adminID, adminRole.ID, GetActorID(ctx)); err != nil {
			respondDomainError(w, err)
			return
		}
	}

	if err := h.auditService.Record(ctx, audit.Event{
		OrganizationID: org.ID,
		EntityType:     audit.EntityOrganization,
		EntityID:       org.ID,
		ActorID:        GetActorID(ctx),
		Type:           audit.TypeCreated,
		Description:    "organization created",
		Metadata:       map[string]any{"name": org.Name, "ip_address": getClientIP(r)},
	}); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, org)
}

// GetOrganization retrieves one organization
// @Summary Get Organization
// @Description Retrieve an organization by ID
// @Tags Organizations
// @Produce json
// @Security BearerAuth
// @Param organizationID path string true "Organization ID"
// @Success 200 {object} organization.Organization
// @Failure 404 {object} map[string]string
// @Router /organizations/{organizationID} [get]
func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := h.orgRepo.GetByID(r.Context(), chi.URLParam(r, "organizationID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, org)
}

// ListOrganizations lists provisioned organizations
// @Summary List Organizations
// @Description List provisioned organizations in creation order
// @Tags Organizations
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (max 500)"
// @Param offset query int false "Page offset"
// @Success 200 {array} organization.Organization
// @Failure 400 {object} map[string]string
// @Router /organizations [get]
func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := 0, 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = n
	}

	orgs, err := h.orgRepo.List(r.Context(), limit, offset)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if orgs == nil {
		orgs = []*organization.Organization{}
	}
	respondJSON(w, http.StatusOK, orgs)
}
