package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dealdesk/dealdesk/internal/permission"
)

func perm(area string, pt permission.Type) *permission.Permission {
	return &permission.Permission{
		ID:             area + "/" + string(pt),
		FeatureArea:    area,
		PermissionType: pt,
	}
}

// TestPurpose: Validates that the effective set is the union of role sets
// deduplicated by semantic key, not by row identity.
// Scope: Unit Test
// Expected: A permission granted by several roles appears once; distinct
// pairs all survive; order of first appearance is preserved.
// Test Case ID: DEC-01
func TestEffectiveSet_DeduplicatesByKey(t *testing.T) {
	manager := []*permission.Permission{
		perm(permission.AreaClients, permission.TypeView),
		perm(permission.AreaClients, permission.TypeEdit),
		perm(permission.AreaDeals, permission.TypeView),
	}
	// Same clients:view pair under a different row id.
	member := []*permission.Permission{
		{ID: "other-row", FeatureArea: permission.AreaClients, PermissionType: permission.TypeView},
		perm(permission.AreaTasks, permission.TypeCreate),
	}

	effective := EffectiveSet(manager, member)
	assert.Len(t, effective, 4)

	keys := make(map[string]int)
	for _, p := range effective {
		keys[p.Key()]++
	}
	assert.Equal(t, 1, keys["clients:view"])
	assert.Equal(t, 1, keys["tasks:create"])
}

// TestPurpose: Validates EffectiveSet edge cases.
// Scope: Unit Test
// Expected: No sets, empty sets and nil entries all collapse to an empty result.
// Test Case ID: DEC-02
func TestEffectiveSet_EmptyAndNil(t *testing.T) {
	assert.Empty(t, EffectiveSet())
	assert.Empty(t, EffectiveSet(nil, []*permission.Permission{}))
	assert.Empty(t, EffectiveSet([]*permission.Permission{nil}))
}

// TestPurpose: Validates the deny-by-default decision rule.
// Scope: Unit Test
// Security: Fail-closed authorization.
// Expected: Allow only on an exact (featureArea, permissionType) match;
// everything else, including the empty set, denies.
// Test Case ID: DEC-03
func TestDecide_DenyByDefault(t *testing.T) {
	effective := []*permission.Permission{
		perm(permission.AreaClients, permission.TypeView),
		perm(permission.AreaInvoices, permission.TypeCreate),
	}

	assert.Equal(t, Allow, Decide(effective, permission.AreaClients, permission.TypeView))
	assert.Equal(t, Deny, Decide(effective, permission.AreaClients, permission.TypeDelete))
	assert.Equal(t, Deny, Decide(effective, permission.AreaInvoices, permission.TypeView))
	assert.Equal(t, Deny, Decide(effective, "unknown", permission.TypeView))
	assert.Equal(t, Deny, Decide(nil, permission.AreaClients, permission.TypeView))
}
