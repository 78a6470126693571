package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.ServerAddr)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "groups", cfg.Auth.GroupsClaimField)
	assert.False(t, cfg.Auth.AllowAnonymous)
	assert.Equal(t, "sharepoint-rag", cfg.Search.Index)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.InDelta(t, 0.2, cfg.OpenAI.Temperature, 0.001)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("RAG_SERVER_ADDR", "0.0.0.0:9090")
	t.Setenv("RAG_TENANT_ID", "contoso-tenant")
	t.Setenv("RAG_AUTH_AUDIENCE", "api-client-id")
	t.Setenv("RAG_AUTH_ALLOW_ANONYMOUS", "true")
	t.Setenv("RAG_GRAPH_CLIENT_ID", "graph-client")
	t.Setenv("RAG_SEARCH_ENDPOINT", "https://search.example.net")
	t.Setenv("RAG_SEARCH_API_KEY", "s3cret")
	t.Setenv("RAG_RAG_TOP_K", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.ServerAddr)
	assert.Equal(t, "contoso-tenant", cfg.TenantID)
	assert.Equal(t, "api-client-id", cfg.Auth.Audience)
	assert.True(t, cfg.Auth.AllowAnonymous)
	assert.Equal(t, "https://search.example.net", cfg.Search.Endpoint)
	assert.Equal(t, 7, cfg.RAG.TopK)
}

func TestLoad_DerivesAzureADEndpointsFromTenant(t *testing.T) {
	t.Setenv("RAG_TENANT_ID", "11111111-2222-3333-4444-555555555555")
	t.Setenv("RAG_GRAPH_CLIENT_ID", "shared-client")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t,
		"https://login.microsoftonline.com/11111111-2222-3333-4444-555555555555/v2.0",
		cfg.Auth.Issuer)
	assert.Equal(t,
		"https://login.microsoftonline.com/11111111-2222-3333-4444-555555555555/discovery/v2.0/keys",
		cfg.Auth.JWKSURL)
	// Audience falls back to the Graph client ID for single-app registrations.
	assert.Equal(t, "shared-client", cfg.Auth.Audience)
	assert.True(t, cfg.AuthConfigured())
	assert.Equal(t,
		"https://login.microsoftonline.com/11111111-2222-3333-4444-555555555555/oauth2/v2.0/token",
		cfg.TokenEndpoint())
}

func TestLoad_ExplicitIssuerNotOverridden(t *testing.T) {
	t.Setenv("RAG_TENANT_ID", "tenant")
	t.Setenv("RAG_AUTH_ISSUER", "https://idp.example.com")
	t.Setenv("RAG_AUTH_JWKS_URL", "https://idp.example.com/keys")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://idp.example.com", cfg.Auth.Issuer)
	assert.Equal(t, "https://idp.example.com/keys", cfg.Auth.JWKSURL)
}

func TestLoad_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
server_addr: "127.0.0.1:8888"
debug: true
tenant_id: "file-tenant"
search:
  index: "file-index"
  local_dsn: "file::memory:?cache=shared"
rag:
  top_k: 3
`
	err := os.WriteFile(filepath.Join(tmpDir, "ragapi.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(wd) }()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8888", cfg.ServerAddr)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "file-index", cfg.Search.Index)
	assert.Equal(t, "file::memory:?cache=shared", cfg.Search.LocalDSN)
	assert.Equal(t, 3, cfg.RAG.TopK)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "endpoint without api key",
			env:  map[string]string{"RAG_SEARCH_ENDPOINT": "https://search.example.net"},
		},
		{
			name: "non-positive top_k",
			env:  map[string]string{"RAG_RAG_TOP_K": "0"},
		},
		{
			name: "overlap not smaller than chunk size",
			env: map[string]string{
				"RAG_RAG_CHUNK_SIZE":    "100",
				"RAG_RAG_CHUNK_OVERLAP": "100",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
