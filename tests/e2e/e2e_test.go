//go:build e2e

// Package e2e exercises a running DealDesk authorization server over HTTP.
//
// Run with:
//
//	E2E_TEST=true AUTH_TOKEN_SIGNING_KEY=<key> go test -tags e2e ./tests/e2e/
//
// DEALDESK_API_URL points at the server (default http://127.0.0.1:8080).
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	baseURL = getEnv("DEALDESK_API_URL", "http://127.0.0.1:8080")
	apiBase = baseURL + "/api/v1"

	signingKey = getEnv("AUTH_TOKEN_SIGNING_KEY", "")
	issuer     = getEnv("AUTH_TOKEN_ISSUER", "dealdesk-identity")
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// TestClient is an HTTP client acting as one user in one organization.
type TestClient struct {
	httpClient *http.Client
	token      string
}

func NewTestClient(t *testing.T, userID, orgID string) *TestClient {
	t.Helper()
	require.NotEmpty(t, signingKey, "AUTH_TOKEN_SIGNING_KEY must be set for e2e tests")

	claims := jwt.MapClaims{
		"sub": userID,
		"org": orgID,
		"iss": issuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	require.NoError(t, err)

	return &TestClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		token:      token,
	}
}

func (c *TestClient) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, apiBase+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func (c *TestClient) check(t *testing.T, featureArea, permissionType string) string {
	t.Helper()
	resp, raw := c.do(t, http.MethodPost, "/authz/check", map[string]string{
		"feature_area":    featureArea,
		"permission_type": permissionType,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var body map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body["decision"]
}

// TestPurpose: Validates the full provisioning and authorization flow against
// a running server: provision an organization with a bootstrap admin, create
// and assign roles over HTTP, and observe authorization decisions flip.
// Scope: End-to-End Test
// Security: Confirms deny-by-default for unassigned users and the permission
// gate on the role registry.
// Expected: Decisions move from deny to allow as grants are made, and the
// audit trail records the activity.
// Test Case ID: E2E-01
func TestE2E_ProvisionAndAuthorize(t *testing.T) {
	if os.Getenv("E2E_TEST") != "true" {
		t.Skip("set E2E_TEST=true to run")
	}

	platform := NewTestClient(t, "platform-provisioner", "org-platform")

	// Provision a fresh organization with a bootstrap admin.
	resp, raw := platform.do(t, http.MethodPost, "/organizations", map[string]string{
		"name":          fmt.Sprintf("e2e-org-%d", time.Now().UnixNano()),
		"admin_user_id": "e2e-admin",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var org struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &org))

	admin := NewTestClient(t, "e2e-admin", org.ID)
	member := NewTestClient(t, "e2e-member", org.ID)

	// An unassigned user is denied everywhere; the role registry is gated.
	assert.Equal(t, "deny", member.check(t, "clients", "view"))
	resp, _ = member.do(t, http.MethodGet, "/roles", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The bootstrap admin can list the seeded default roles.
	resp, raw = admin.do(t, http.MethodGet, "/roles", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var roles []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		IsDefault bool   `json:"is_default"`
	}
	require.NoError(t, json.Unmarshal(raw, &roles))
	require.Len(t, roles, 4)

	teamMemberID := ""
	for _, r := range roles {
		assert.True(t, r.IsDefault)
		if r.Name == "Team Member" {
			teamMemberID = r.ID
		}
	}
	require.NotEmpty(t, teamMemberID)

	// Grant the member the Team Member role and watch the decision flip.
	resp, raw = admin.do(t, http.MethodPost, "/users/e2e-member/roles", map[string]string{
		"role_id": teamMemberID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	assert.Equal(t, "allow", member.check(t, "clients", "view"))
	assert.Equal(t, "deny", member.check(t, "clients", "delete"))

	// Self-inspection reflects the effective set.
	resp, raw = member.do(t, http.MethodGet, "/me/permissions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var perms []struct {
		FeatureArea    string `json:"feature_area"`
		PermissionType string `json:"permission_type"`
	}
	require.NoError(t, json.Unmarshal(raw, &perms))
	assert.NotEmpty(t, perms)

	// Revoke and confirm access closes again.
	resp, raw = admin.do(t, http.MethodDelete, "/users/e2e-member/roles/"+teamMemberID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, "deny", member.check(t, "clients", "view"))

	// The activity trail recorded the provisioning and assignment work.
	resp, raw = admin.do(t, http.MethodGet, "/audit/events?limit=50", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var events []map[string]any
	require.NoError(t, json.Unmarshal(raw, &events))
	assert.NotEmpty(t, events)
}
