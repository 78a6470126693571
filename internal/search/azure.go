package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const azureAPIVersion = "2024-07-01"

// AzureStore implements Store against the Azure AI Search REST API.
type AzureStore struct {
	endpoint   string
	apiKey     string
	index      string
	httpClient *http.Client
}

// AzureOption customises AzureStore construction.
type AzureOption func(*AzureStore)

// WithAzureHTTPClient overrides the HTTP client (tests).
func WithAzureHTTPClient(client *http.Client) AzureOption {
	return func(s *AzureStore) {
		s.httpClient = client
	}
}

// NewAzureStore creates a store for the given search service and index.
func NewAzureStore(endpoint, apiKey, index string, opts ...AzureOption) *AzureStore {
	s := &AzureStore{
		endpoint:   endpoint,
		apiKey:     apiKey,
		index:      index,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// azureDoc is the wire shape of a stored unit.
type azureDoc struct {
	SearchAction      string    `json:"@search.action,omitempty"`
	ID                string    `json:"id"`
	Content           string    `json:"content,omitempty"`
	ContentVector     []float32 `json:"content_vector,omitempty"`
	Source            string    `json:"source,omitempty"`
	DocumentID        string    `json:"document_id,omitempty"`
	AllowedPrincipals []string  `json:"allowed_principals,omitempty"`
}

// EnsureIndex creates or updates the index schema.
func (s *AzureStore) EnsureIndex(ctx context.Context, dims int) error {
	schema := map[string]any{
		"name": s.index,
		"fields": []map[string]any{
			{"name": "id", "type": "Edm.String", "key": true, "filterable": true},
			{"name": "content", "type": "Edm.String", "searchable": true},
			{
				"name":                "content_vector",
				"type":                "Collection(Edm.Single)",
				"searchable":          true,
				"dimensions":          dims,
				"vectorSearchProfile": "hnsw-profile",
			},
			{"name": "source", "type": "Edm.String", "filterable": true},
			{"name": "document_id", "type": "Edm.String", "filterable": true},
			{
				"name":       fieldAllowedPrincipals,
				"type":       "Collection(Edm.String)",
				"filterable": true,
			},
		},
		"vectorSearch": map[string]any{
			"algorithms": []map[string]any{
				{"name": "hnsw-algo", "kind": "hnsw"},
			},
			"profiles": []map[string]any{
				{"name": "hnsw-profile", "algorithm": "hnsw-algo"},
			},
		},
	}

	url := fmt.Sprintf("%s/indexes/%s?api-version=%s", s.endpoint, s.index, azureAPIVersion)
	return s.send(ctx, http.MethodPut, url, schema, nil)
}

// Reset deletes the index and everything in it.
func (s *AzureStore) Reset(ctx context.Context) error {
	url := fmt.Sprintf("%s/indexes/%s?api-version=%s", s.endpoint, s.index, azureAPIVersion)
	return s.send(ctx, http.MethodDelete, url, nil, nil)
}

// ReplaceDocument deletes every unit previously stored for documentID and
// uploads the new batch. Replace, never merge: permission revocations must
// take effect on re-ingestion.
func (s *AzureStore) ReplaceDocument(ctx context.Context, documentID string, units []Unit) error {
	existing, err := s.unitIDs(ctx, documentID)
	if err != nil {
		return fmt.Errorf("look up existing units: %w", err)
	}

	var actions []azureDoc
	for _, id := range existing {
		actions = append(actions, azureDoc{SearchAction: "delete", ID: id})
	}
	for _, u := range units {
		actions = append(actions, azureDoc{
			SearchAction:      "mergeOrUpload",
			ID:                u.ID,
			Content:           u.Text,
			ContentVector:     u.Vector,
			Source:            u.Source,
			DocumentID:        u.DocumentID,
			AllowedPrincipals: u.AllowedPrincipals,
		})
	}
	if len(actions) == 0 {
		return nil
	}

	url := fmt.Sprintf("%s/indexes/%s/docs/index?api-version=%s", s.endpoint, s.index, azureAPIVersion)
	return s.send(ctx, http.MethodPost, url, map[string]any{"value": actions}, nil)
}

// unitIDPageSize is the service's maximum page size for document lookups.
const unitIDPageSize = 1000

// unitIDs returns the ids of all stored units belonging to documentID,
// paging until the last partial page. Stopping early would leave stale
// units carrying their old permission tags through a replace.
func (s *AzureStore) unitIDs(ctx context.Context, documentID string) ([]string, error) {
	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", s.endpoint, s.index, azureAPIVersion)

	var ids []string
	for {
		query := map[string]any{
			"filter": fmt.Sprintf("document_id eq '%s'", escapeODataString(documentID)),
			"select": "id",
			"top":    unitIDPageSize,
			"skip":   len(ids),
		}

		var result struct {
			Value []struct {
				ID string `json:"id"`
			} `json:"value"`
		}
		if err := s.send(ctx, http.MethodPost, url, query, &result); err != nil {
			return nil, err
		}

		for _, v := range result.Value {
			ids = append(ids, v.ID)
		}
		if len(result.Value) < unitIDPageSize {
			return ids, nil
		}
	}
}

// Search runs a filtered nearest-neighbor query. A nil filter sends no
// $filter at all; the unsecured path bypasses the security layer rather
// than passing through it permissively.
func (s *AzureStore) Search(ctx context.Context, vector []float32, k int, filter *Filter) ([]Unit, error) {
	query := map[string]any{
		"count": false,
		"top":   k,
		"vectorQueries": []map[string]any{
			{
				"kind":   "vector",
				"vector": vector,
				"fields": "content_vector",
				"k":      k,
			},
		},
		"select": "id,content,source,document_id," + fieldAllowedPrincipals,
	}

	if filter != nil {
		odata, err := filter.OData()
		if err != nil {
			return nil, fmt.Errorf("build secure filter: %w", err)
		}
		query["filter"] = odata
	}

	var result struct {
		Value []azureDoc `json:"value"`
	}

	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", s.endpoint, s.index, azureAPIVersion)
	if err := s.send(ctx, http.MethodPost, url, query, &result); err != nil {
		return nil, err
	}

	units := make([]Unit, 0, len(result.Value))
	for _, d := range result.Value {
		units = append(units, Unit{
			ID:                d.ID,
			Text:              d.Content,
			DocumentID:        d.DocumentID,
			Source:            d.Source,
			AllowedPrincipals: d.AllowedPrincipals,
		})
	}
	return units, nil
}

func (s *AzureStore) send(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call search service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("search service responded %d: %s", resp.StatusCode, detail)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// escapeODataString doubles single quotes per OData literal rules.
func escapeODataString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
