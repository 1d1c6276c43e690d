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

package permission

// Feature area names. Adding an area here and to featureAreaTypes extends
// the catalog; SeedMissing picks the new rows up on the next run without
// touching existing ones.
const (
	AreaDashboard = "dashboard"
	AreaClients   = "clients"
	AreaContacts  = "contacts"
	AreaLeads     = "leads"
	AreaDeals     = "deals"
	AreaPipelines = "pipelines"
	AreaProjects  = "projects"
	AreaTasks     = "tasks"
	AreaInvoices  = "invoices"
	AreaPayments  = "payments"
	AreaProducts  = "products"
	AreaDocuments = "documents"
	AreaReports   = "reports"
	AreaTeam      = "team"
	AreaRoles     = "roles"
	AreaSettings  = "settings"
)

var allTypes = []Type{TypeView, TypeCreate, TypeEdit, TypeDelete, TypeExport}

// featureAreaTypes is the closed vocabulary: which permission types exist per
// feature area. Not every area supports every type; the dashboard for
// instance is read-only.
var featureAreaTypes = []struct {
	area  string
	types []Type
}{
	{AreaDashboard, []Type{TypeView}},
	{AreaClients, allTypes},
	{AreaContacts, allTypes},
	{AreaLeads, allTypes},
	{AreaDeals, allTypes},
	{AreaPipelines, allTypes},
	{AreaProjects, allTypes},
	{AreaTasks, allTypes},
	{AreaInvoices, allTypes},
	{AreaPayments, allTypes},
	{AreaProducts, allTypes},
	{AreaDocuments, allTypes},
	{AreaReports, []Type{TypeView, TypeExport}},
	{AreaTeam, []Type{TypeView, TypeCreate, TypeEdit, TypeDelete}},
	{AreaRoles, []Type{TypeView, TypeCreate, TypeEdit, TypeDelete}},
	{AreaSettings, []Type{TypeView, TypeEdit}},
}

// Seed is one versioned catalog definition row.
type Seed struct {
	FeatureArea    string
	PermissionType Type
	Description    string
}

// Seeds returns the full intended catalog in a stable order. The list is the
// single source of truth for what the permissions table must contain.
func Seeds() []Seed {
	var seeds []Seed
	for _, fa := range featureAreaTypes {
		for _, t := range fa.types {
			seeds = append(seeds, Seed{
				FeatureArea:    fa.area,
				PermissionType: t,
				Description:    describe(fa.area, t),
			})
		}
	}
	return seeds
}

func describe(area string, t Type) string {
	verbs := map[Type]string{
		TypeView:   "View",
		TypeCreate: "Create",
		TypeEdit:   "Edit",
		TypeDelete: "Delete",
		TypeExport: "Export",
	}
	return verbs[t] + " " + area
}

// TypesForArea returns the permission types the catalog defines for an area,
// or nil for an unknown area.
func TypesForArea(area string) []Type {
	for _, fa := range featureAreaTypes {
		if fa.area == area {
			return fa.types
		}
	}
	return nil
}
