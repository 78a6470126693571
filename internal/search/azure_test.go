package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boovboyz/azurerag/internal/auth"
)

type azureCall struct {
	method string
	path   string
	body   map[string]any
}

// azureFixture records every request and replies with canned responses
// keyed by path suffix.
type azureFixture struct {
	t         *testing.T
	calls     []azureCall
	responses map[string]any
}

func newAzureFixture(t *testing.T) (*azureFixture, *AzureStore) {
	t.Helper()
	f := &azureFixture{t: t, responses: map[string]any{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := azureCall{method: r.Method, path: r.URL.Path}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&call.body)
		}
		f.calls = append(f.calls, call)

		if resp, ok := f.responses[r.URL.Path]; ok {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	store := NewAzureStore(srv.URL, "test-key", "test-index", WithAzureHTTPClient(srv.Client()))
	return f, store
}

func (f *azureFixture) lastCall() azureCall {
	require.NotEmpty(f.t, f.calls)
	return f.calls[len(f.calls)-1]
}

func TestAzureStore_EnsureIndexSchemaMarksPrincipalsFilterable(t *testing.T) {
	f, store := newAzureFixture(t)

	require.NoError(t, store.EnsureIndex(context.Background(), 1536))

	call := f.lastCall()
	assert.Equal(t, http.MethodPut, call.method)
	assert.Equal(t, "/indexes/test-index", call.path)

	fields, ok := call.body["fields"].([]any)
	require.True(t, ok)
	var principalField map[string]any
	for _, raw := range fields {
		field := raw.(map[string]any)
		if field["name"] == "allowed_principals" {
			principalField = field
		}
	}
	require.NotNil(t, principalField, "schema must declare the permission tag field")
	assert.Equal(t, "Collection(Edm.String)", principalField["type"])
	assert.Equal(t, true, principalField["filterable"])
}

func TestAzureStore_ReplaceDocumentDeletesThenUploads(t *testing.T) {
	f, store := newAzureFixture(t)
	f.responses["/indexes/test-index/docs/search"] = map[string]any{
		"value": []map[string]any{{"id": "old-1"}, {"id": "old-2"}},
	}

	err := store.ReplaceDocument(context.Background(), "doc-1", []Unit{
		{ID: "new-1", Text: "hello", DocumentID: "doc-1", AllowedPrincipals: []string{"g1"}, Vector: []float32{1}},
	})
	require.NoError(t, err)

	// First call looks up existing unit ids for the document.
	require.Len(t, f.calls, 2)
	lookup := f.calls[0]
	assert.Equal(t, "/indexes/test-index/docs/search", lookup.path)
	assert.Equal(t, "document_id eq 'doc-1'", lookup.body["filter"])

	upload := f.calls[1]
	assert.Equal(t, "/indexes/test-index/docs/index", upload.path)
	actions, ok := upload.body["value"].([]any)
	require.True(t, ok)
	require.Len(t, actions, 3)
	assert.Equal(t, "delete", actions[0].(map[string]any)["@search.action"])
	assert.Equal(t, "old-1", actions[0].(map[string]any)["id"])
	assert.Equal(t, "delete", actions[1].(map[string]any)["@search.action"])
	last := actions[2].(map[string]any)
	assert.Equal(t, "mergeOrUpload", last["@search.action"])
	assert.Equal(t, "new-1", last["id"])
	assert.Equal(t, []any{"g1"}, last["allowed_principals"])
}

// A document whose previous ingestion produced more units than one
// lookup page returns must still have every old unit deleted, or chunks
// keep their stale permission tags after re-ingestion.
func TestAzureStore_ReplaceDocumentPagesThroughAllExistingUnits(t *testing.T) {
	const existing = 1200

	var batches []azureCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if r.URL.Path == "/indexes/test-index/docs/index" {
			batches = append(batches, azureCall{method: r.Method, path: r.URL.Path, body: body})
			_, _ = w.Write([]byte(`{}`))
			return
		}

		require.Equal(t, "/indexes/test-index/docs/search", r.URL.Path)
		top := int(body["top"].(float64))
		skip := int(body["skip"].(float64))

		var page []map[string]any
		for i := skip; i < existing && i < skip+top; i++ {
			page = append(page, map[string]any{"id": fmt.Sprintf("old-%d", i)})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"value": page})
	}))
	t.Cleanup(srv.Close)

	store := NewAzureStore(srv.URL, "test-key", "test-index", WithAzureHTTPClient(srv.Client()))
	err := store.ReplaceDocument(context.Background(), "doc-1", []Unit{
		{ID: "new-1", Text: "hello", DocumentID: "doc-1", Vector: []float32{1}},
	})
	require.NoError(t, err)

	require.Len(t, batches, 1)
	actions := batches[0].body["value"].([]any)

	deletes := map[string]bool{}
	for _, raw := range actions {
		action := raw.(map[string]any)
		if action["@search.action"] == "delete" {
			deletes[action["id"].(string)] = true
		}
	}
	assert.Len(t, deletes, existing, "every previously stored unit gets a delete action")
	assert.Equal(t, "mergeOrUpload", actions[len(actions)-1].(map[string]any)["@search.action"])
}

func TestAzureStore_ReplaceDocumentNoopWhenNothingToDo(t *testing.T) {
	f, store := newAzureFixture(t)

	require.NoError(t, store.ReplaceDocument(context.Background(), "doc-1", nil))
	assert.Len(t, f.calls, 1, "only the id lookup should hit the service")
}

func TestAzureStore_SearchSendsSecureFilter(t *testing.T) {
	f, store := newAzureFixture(t)
	f.responses["/indexes/test-index/docs/search"] = map[string]any{
		"value": []map[string]any{
			{"id": "u1", "content": "hello", "document_id": "d1", "source": "d1.pdf", "allowed_principals": []string{"g1"}},
		},
	}

	filter := BuildFilter(auth.NewPrincipalSet("u1", "g1"))
	units, err := store.Search(context.Background(), []float32{1, 0}, 5, &filter)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "u1", units[0].ID)
	assert.Equal(t, "hello", units[0].Text)

	call := f.lastCall()
	assert.Equal(t, "allowed_principals/any(g: search.in(g, 'g1,u1', ','))", call.body["filter"])

	queries, ok := call.body["vectorQueries"].([]any)
	require.True(t, ok)
	require.Len(t, queries, 1)
	query := queries[0].(map[string]any)
	assert.Equal(t, "vector", query["kind"])
	assert.Equal(t, "content_vector", query["fields"])
	assert.Equal(t, float64(5), query["k"])
}

func TestAzureStore_SearchWithoutFilterOmitsFilter(t *testing.T) {
	f, store := newAzureFixture(t)

	_, err := store.Search(context.Background(), []float32{1, 0}, 5, nil)
	require.NoError(t, err)

	call := f.lastCall()
	_, present := call.body["filter"]
	assert.False(t, present, "unsecured search must not send a filter")
}

func TestAzureStore_SearchNoAccessSendsAlwaysFalse(t *testing.T) {
	f, store := newAzureFixture(t)

	filter := BuildFilter(auth.NoAccess())
	_, err := store.Search(context.Background(), []float32{1, 0}, 5, &filter)
	require.NoError(t, err)

	assert.Equal(t, "1 eq 0", f.lastCall().body["filter"])
}

func TestAzureStore_ErrorsOnServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	store := NewAzureStore(srv.URL, "bad-key", "test-index", WithAzureHTTPClient(srv.Client()))
	_, err := store.Search(context.Background(), []float32{1}, 5, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
