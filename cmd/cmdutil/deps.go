// Package cmdutil centralizes dependency construction for CLI commands.
package cmdutil

import (
	"fmt"

	"github.com/boovboyz/azurerag/internal/config"
	"github.com/boovboyz/azurerag/internal/graph"
	"github.com/boovboyz/azurerag/internal/llm"
	"github.com/boovboyz/azurerag/internal/search"
)

// Bundle bundles the external service clients the commands share.
type Bundle struct {
	Store search.Store
	LLM   *llm.Client

	local *search.LocalStore
}

// Close releases the local store's database connection when one is open.
func (b *Bundle) Close() {
	if b == nil || b.local == nil {
		return
	}
	_ = b.local.Close()
}

// NewBundle constructs the search store and model client from config.
// The store is the Azure AI Search index when an endpoint is configured,
// otherwise the local sqlite store.
func NewBundle(cfg *config.Config) (*Bundle, error) {
	b := &Bundle{LLM: llm.NewClient(cfg.OpenAI)}

	if cfg.Search.Endpoint != "" {
		b.Store = search.NewAzureStore(cfg.Search.Endpoint, cfg.Search.APIKey, cfg.Search.Index)
		return b, nil
	}

	local, err := search.NewLocalStore(cfg.Search.LocalDSN)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	b.local = local
	b.Store = local
	return b, nil
}

// NewGraphClient constructs the Microsoft Graph client for the
// configured tenant. Commands that never touch SharePoint skip this.
func NewGraphClient(cfg *config.Config) (*graph.Client, error) {
	if cfg.Graph.ClientID == "" || cfg.Graph.ClientSecret == "" {
		return nil, fmt.Errorf("graph.client_id and graph.client_secret are required")
	}
	return graph.NewClient(cfg.Graph, cfg.TokenEndpoint()), nil
}
