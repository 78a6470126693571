package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
//
// It is constructed once by Load at process start and passed explicitly into
// each component's constructor. No component reads environment state on its
// own.
type Config struct {
	// Server bind address (host:port)
	ServerAddr string

	// Azure AD tenant hosting both the identity provider and the
	// SharePoint site. Shared by the auth and graph sections.
	TenantID string

	// Enable debug logging
	Debug bool

	Auth   AuthConfig
	Graph  GraphConfig
	Search SearchConfig
	OpenAI OpenAIConfig
	RAG    RAGConfig
}

// AuthConfig controls bearer-token validation for the secured endpoints.
type AuthConfig struct {
	// Audience expected in the aud claim. Defaults to the Graph client ID
	// when unset, matching registrations that reuse one application.
	Audience string

	// Issuer expected in the iss claim. Defaults to the Azure AD v2.0
	// issuer for TenantID. Override for other identity providers.
	Issuer string

	// JWKSURL is the signing-key discovery endpoint. Defaults to the
	// Azure AD discovery URL for TenantID.
	JWKSURL string

	// GroupsClaimField names the claim carrying group memberships.
	GroupsClaimField string

	// GroupsClaimPath extracts group ids from nested claim objects,
	// e.g. "id" for [{"id": "..."}]. Empty for flat string arrays.
	GroupsClaimPath string

	// AllowAnonymous switches the secured question endpoint from
	// mandatory authentication to anonymous degrade-to-no-results:
	// a request without a credential proceeds with no access instead
	// of being rejected.
	AllowAnonymous bool
}

// GraphConfig holds the Microsoft Graph connection for the source repository.
type GraphConfig struct {
	ClientID     string
	ClientSecret string

	// DriveID and FolderID locate the document library folder to ingest.
	DriveID  string
	FolderID string

	// Timeout bounds every Graph call, including the sharing-API call
	// whose timeout is treated as a failed permission fetch.
	Timeout time.Duration
}

// SearchConfig selects and configures the vector store.
//
// When Endpoint is set the Azure AI Search store is used; otherwise LocalDSN
// selects the embedded SQLite store (development and tests).
type SearchConfig struct {
	Endpoint string
	APIKey   string
	Index    string
	LocalDSN string
}

// OpenAIConfig holds the chat and embedding model connection.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Temperature    float64
}

// RAGConfig holds retrieval and chunking knobs.
type RAGConfig struct {
	// TopK is the number of nearest neighbors retrieved per question.
	TopK int

	ChunkSize    int
	ChunkOverlap int
}

// Load reads configuration from RAG_-prefixed environment variables and an
// optional ragapi.yaml config file, applies defaults, and validates the
// result.
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("RAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("ragapi")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/ragapi")

	v.SetDefault("server_addr", "localhost:8080")
	v.SetDefault("debug", false)
	v.SetDefault("auth.groups_claim", "groups")
	v.SetDefault("auth.groups_claim_path", "")
	v.SetDefault("auth.allow_anonymous", false)
	v.SetDefault("graph.timeout", "30s")
	v.SetDefault("search.index", "sharepoint-rag")
	v.SetDefault("search.local_dsn", "file:ragapi.db")
	v.SetDefault("openai.base_url", "https://api.openai.com")
	v.SetDefault("openai.chat_model", "gpt-4o-mini")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("rag.top_k", 5)
	v.SetDefault("rag.chunk_size", 1000)
	v.SetDefault("rag.chunk_overlap", 200)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		ServerAddr: v.GetString("server_addr"),
		TenantID:   v.GetString("tenant_id"),
		Debug:      v.GetBool("debug"),
		Auth: AuthConfig{
			Audience:         v.GetString("auth.audience"),
			Issuer:           v.GetString("auth.issuer"),
			JWKSURL:          v.GetString("auth.jwks_url"),
			GroupsClaimField: v.GetString("auth.groups_claim"),
			GroupsClaimPath:  v.GetString("auth.groups_claim_path"),
			AllowAnonymous:   v.GetBool("auth.allow_anonymous"),
		},
		Graph: GraphConfig{
			ClientID:     v.GetString("graph.client_id"),
			ClientSecret: v.GetString("graph.client_secret"),
			DriveID:      v.GetString("graph.drive_id"),
			FolderID:     v.GetString("graph.folder_id"),
			Timeout:      v.GetDuration("graph.timeout"),
		},
		Search: SearchConfig{
			Endpoint: v.GetString("search.endpoint"),
			APIKey:   v.GetString("search.api_key"),
			Index:    v.GetString("search.index"),
			LocalDSN: v.GetString("search.local_dsn"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         v.GetString("openai.api_key"),
			BaseURL:        v.GetString("openai.base_url"),
			ChatModel:      v.GetString("openai.chat_model"),
			EmbeddingModel: v.GetString("openai.embedding_model"),
			Temperature:    v.GetFloat64("openai.temperature"),
		},
		RAG: RAGConfig{
			TopK:         v.GetInt("rag.top_k"),
			ChunkSize:    v.GetInt("rag.chunk_size"),
			ChunkOverlap: v.GetInt("rag.chunk_overlap"),
		},
	}

	cfg.applyDerived()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDerived fills Azure AD defaults computed from the tenant and resolves
// the audience fallback.
func (c *Config) applyDerived() {
	if c.Auth.Audience == "" {
		c.Auth.Audience = c.Graph.ClientID
	}
	if c.TenantID == "" {
		return
	}
	authority := fmt.Sprintf("https://login.microsoftonline.com/%s", c.TenantID)
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = authority + "/v2.0"
	}
	if c.Auth.JWKSURL == "" {
		c.Auth.JWKSURL = authority + "/discovery/v2.0/keys"
	}
}

func (c *Config) validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server_addr is required")
	}
	if c.Search.Endpoint != "" && c.Search.APIKey == "" {
		return fmt.Errorf("search.api_key is required when search.endpoint is set")
	}
	if c.Search.Index == "" {
		return fmt.Errorf("search.index is required")
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be positive")
	}
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be positive")
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be non-negative and smaller than rag.chunk_size")
	}
	return nil
}

// AuthConfigured reports whether bearer-token validation can be enabled.
// Serving the secured endpoints requires issuer, JWKS URL, and audience.
func (c *Config) AuthConfigured() bool {
	return c.Auth.Issuer != "" && c.Auth.JWKSURL != "" && c.Auth.Audience != ""
}

// TokenEndpoint returns the Azure AD v2.0 client-credentials token endpoint
// for the configured tenant.
func (c *Config) TokenEndpoint() string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", c.TenantID)
}

// DeviceAuthEndpoint returns the Azure AD v2.0 device-code endpoint for
// the configured tenant.
func (c *Config) DeviceAuthEndpoint() string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/devicecode", c.TenantID)
}
