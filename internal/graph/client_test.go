package graph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boovboyz/azurerag/internal/config"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(
		config.GraphConfig{DriveID: "drive-1", FolderID: "folder-1", Timeout: 5 * time.Second},
		"unused-token-url",
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
	)
}

func TestListFiles_SkipsFolders(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drives/drive-1/items/folder-1/children", r.URL.Path)
		w.Write([]byte(`{"value": [
			{"id": "f1", "name": "handbook.pdf", "file": {"mimeType": "application/pdf"}},
			{"id": "d1", "name": "archive", "folder": {"childCount": 3}},
			{"id": "f2", "name": "budget.xlsx", "file": {}}
		]}`))
	}))

	items, err := c.ListFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, DriveItem{ID: "f1", Name: "handbook.pdf"}, items[0])
	assert.Equal(t, DriveItem{ID: "f2", Name: "budget.xlsx"}, items[1])
}

func TestDownload_WritesTempFile(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drives/drive-1/items/f1/content", r.URL.Path)
		w.Write([]byte("file body"))
	}))

	path, err := c.Download(context.Background(), "f1", "handbook.pdf")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(path) })

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file body", string(body))
	assert.Equal(t, ".pdf", filepath.Ext(path), "extension preserved for extraction dispatch")
}

// Two downloads of the same file name must not clobber each other.
func TestDownload_UniquePaths(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("file body"))
	}))

	first, err := c.Download(context.Background(), "f1", "handbook.pdf")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(first) })

	second, err := c.Download(context.Background(), "f1", "handbook.pdf")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(second) })

	assert.NotEqual(t, first, second)
}

func TestListPermissions_ClassifiesGrants(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drives/drive-1/items/f1/permissions", r.URL.Path)
		w.Write([]byte(`{"value": [
			{"grantedToV2": {"group": {"id": "g1"}}},
			{"link": {"scope": "anonymous"}}
		]}`))
	}))

	grants, err := c.ListPermissions(context.Background(), "f1")
	require.NoError(t, err)
	require.Len(t, grants, 2)
	assert.Equal(t, IdentityGrant{PrincipalID: "g1"}, grants[0])
	assert.IsType(t, UnrecognizedGrant{}, grants[1])
}

func TestListPermissions_NonSuccessIsError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))

	_, err := c.ListPermissions(context.Background(), "f1")
	assert.Error(t, err)
}

func TestPermissionFetcher_ResolvesGrants(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value": [
			{"grantedToV2": {"group": {"id": "g1"}}},
			{"grantedTo": {"user": {"id": "u1"}}}
		]}`))
	}))

	ids := NewPermissionFetcher(c).Fetch(context.Background(), "f1")
	assert.ElementsMatch(t, []string{"g1", "u1"}, ids)
}

// Fail-closed: a failing sharing-API call yields the empty set, never an
// error and never "unrestricted".
func TestPermissionFetcher_FailClosedOnAPIError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	ids := NewPermissionFetcher(c).Fetch(context.Background(), "f1")
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

// Timeout on the sharing call is treated identically to a failed fetch.
func TestPermissionFetcher_FailClosedOnTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	c := NewClient(
		config.GraphConfig{DriveID: "drive-1", FolderID: "folder-1", Timeout: 50 * time.Millisecond},
		"unused-token-url",
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
	)

	ids := NewPermissionFetcher(c).Fetch(context.Background(), "f1")
	assert.Empty(t, ids)
}

func TestDiscoverIDs(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sites/contoso.sharepoint.com:/sites/HR":
			w.Write([]byte(`{"id": "site-1"}`))
		case "/sites/site-1/drives":
			w.Write([]byte(`{"value": [
				{"id": "drive-x", "name": "Site Assets"},
				{"id": "drive-docs", "name": "Documents"}
			]}`))
		case "/drives/drive-docs/root:/Shared Documents/Policies":
			w.Write([]byte(`{"id": "folder-9"}`))
		default:
			http.NotFound(w, r)
		}
	}))

	ids, err := c.DiscoverIDs(context.Background(),
		"https://contoso.sharepoint.com/sites/HR/Shared Documents/Policies")
	require.NoError(t, err)
	assert.Equal(t, &SiteIDs{SiteID: "site-1", DriveID: "drive-docs", FolderID: "folder-9"}, ids)
}

func TestDiscoverIDs_RejectsNonSiteURLs(t *testing.T) {
	c := testClient(t, http.NotFoundHandler())

	_, err := c.DiscoverIDs(context.Background(), "https://contoso.sharepoint.com/personal/alice")
	assert.Error(t, err)
}
