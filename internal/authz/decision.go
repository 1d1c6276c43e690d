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

package authz

import "github.com/dealdesk/dealdesk/internal/permission"

// EffectiveSet unions permission lists from any number of roles,
// deduplicating by the semantic (featureArea, permissionType) key rather
// than row identity. Pure function: the decision logic stays testable
// without a storage dependency.
func EffectiveSet(permissionSets ...[]*permission.Permission) []*permission.Permission {
	seen := make(map[string]bool)
	var out []*permission.Permission
	for _, set := range permissionSets {
		for _, p := range set {
			if p == nil || seen[p.Key()] {
				continue
			}
			seen[p.Key()] = true
			out = append(out, p)
		}
	}
	return out
}

// Decide answers whether the effective set contains the requested pair.
// An empty set always denies.
func Decide(effective []*permission.Permission, featureArea string, permissionType permission.Type) Decision {
	for _, p := range effective {
		if p.FeatureArea == featureArea && p.PermissionType == permissionType {
			return Allow
		}
	}
	return Deny
}
