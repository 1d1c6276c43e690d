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

package rbac

import "github.com/dealdesk/dealdesk/internal/permission"

// -----------------------------------------------------------------------------
// Default Role Names
// Every organization is seeded with these four roles. They are marked
// is_default and can never be deleted.
// -----------------------------------------------------------------------------

const (
	// RoleAdmin holds every catalog permission.
	RoleAdmin = "Admin"

	// RoleManager can work every business area but deletes nothing.
	RoleManager = "Manager"

	// RoleTeamMember sees the operational areas and owns tasks.
	RoleTeamMember = "Team Member"

	// RoleClient is the external-collaborator view: own projects,
	// invoices and shared documents.
	RoleClient = "Client"
)

// DefaultRoleNames lists the seeded roles in creation order.
var DefaultRoleNames = []string{RoleAdmin, RoleManager, RoleTeamMember, RoleClient}

// defaultRoleDescriptions for seeding.
var defaultRoleDescriptions = map[string]string{
	RoleAdmin:      "Full access to every feature area",
	RoleManager:    "Manage business areas without destructive access",
	RoleTeamMember: "Day-to-day operational access",
	RoleClient:     "External client portal access",
}

// -----------------------------------------------------------------------------
// Canonical Permission Filters
// Each filter decides, per catalog seed, whether the role receives it.
// Admin takes the whole catalog; the rest are narrowing filters.
// -----------------------------------------------------------------------------

var teamMemberViewAreas = map[string]bool{
	permission.AreaDashboard: true,
	permission.AreaClients:   true,
	permission.AreaContacts:  true,
	permission.AreaLeads:     true,
	permission.AreaDeals:     true,
	permission.AreaProjects:  true,
	permission.AreaTasks:     true,
	permission.AreaDocuments: true,
}

var clientViewAreas = map[string]bool{
	permission.AreaDashboard: true,
	permission.AreaProjects:  true,
	permission.AreaInvoices:  true,
	permission.AreaDocuments: true,
}

// defaultRoleFilters maps each default role to its grant predicate over the
// permission catalog.
var defaultRoleFilters = map[string]func(permission.Seed) bool{
	RoleAdmin: func(permission.Seed) bool { return true },

	RoleManager: func(s permission.Seed) bool {
		// Everything except destructive and role-administration access.
		if s.PermissionType == permission.TypeDelete {
			return false
		}
		if s.FeatureArea == permission.AreaRoles || s.FeatureArea == permission.AreaTeam {
			return s.PermissionType == permission.TypeView
		}
		if s.FeatureArea == permission.AreaSettings {
			return s.PermissionType == permission.TypeView
		}
		return true
	},

	RoleTeamMember: func(s permission.Seed) bool {
		if s.FeatureArea == permission.AreaTasks {
			return s.PermissionType == permission.TypeView ||
				s.PermissionType == permission.TypeCreate ||
				s.PermissionType == permission.TypeEdit
		}
		return s.PermissionType == permission.TypeView && teamMemberViewAreas[s.FeatureArea]
	},

	RoleClient: func(s permission.Seed) bool {
		return s.PermissionType == permission.TypeView && clientViewAreas[s.FeatureArea]
	},
}

// DefaultRoleSeeds returns the catalog subset a default role is granted.
func DefaultRoleSeeds(roleName string) []permission.Seed {
	filter, ok := defaultRoleFilters[roleName]
	if !ok {
		return nil
	}
	var out []permission.Seed
	for _, s := range permission.Seeds() {
		if filter(s) {
			out = append(out, s)
		}
	}
	return out
}
