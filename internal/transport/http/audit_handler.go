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
	"net/http"
	"strconv"

	"github.com/dealdesk/dealdesk/internal/audit"
)

// ListAuditEvents returns the organization's audit trail, newest first
// @Summary List Audit Events
// @Description Query the organization's activity log with optional filters
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param entity_type query string false "Filter by entity type"
// @Param entity_id query string false "Filter by entity ID"
// @Param event_type query string false "Filter by event type"
// @Param limit query int false "Page size (max 500)"
// @Param offset query int false "Page offset"
// @Success 200 {array} audit.Event
// @Router /audit/events [get]
func (h *Handler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := audit.Filter{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Type:       q.Get("event_type"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	events, err := h.auditService.Query(r.Context(), GetOrganizationID(r.Context()), filter)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if events == nil {
		events = []*audit.Event{}
	}
	respondJSON(w, http.StatusOK, events)
}
