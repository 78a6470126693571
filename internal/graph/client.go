package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/boovboyz/azurerag/internal/config"
)

const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// graphScope is the app-only scope covering Files.Read.All and
// Sites.Read.All as granted to the client application.
var graphScope = []string{"https://graph.microsoft.com/.default"}

// Client talks to the Microsoft Graph drive and permissions APIs using an
// app-only client-credentials token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	driveID    string
	folderID   string
	timeout    time.Duration
}

// ClientOption customises Client construction.
type ClientOption func(*Client)

// WithBaseURL points the client at an alternate Graph endpoint (tests).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient replaces the token-injecting HTTP client (tests).
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient builds a Graph client for the configured drive folder. Tokens
// are acquired lazily from tokenURL via the client-credentials flow and
// refreshed automatically.
func NewClient(cfg config.GraphConfig, tokenURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  defaultBaseURL,
		driveID:  cfg.DriveID,
		folderID: cfg.FolderID,
		timeout:  cfg.Timeout,
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       graphScope,
		}
		c.httpClient = cc.Client(context.Background())
	}

	return c
}

// DriveItem is a file or folder in the configured document library.
type DriveItem struct {
	ID       string
	Name     string
	IsFolder bool
}

type wireDriveItem struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	File   json.RawMessage `json:"file"`
	Folder json.RawMessage `json:"folder"`
}

type wireDriveItemList struct {
	Value []wireDriveItem `json:"value"`
}

// ListFiles returns the files in the configured folder. Folders and other
// non-file items are skipped.
func (c *Client) ListFiles(ctx context.Context) ([]DriveItem, error) {
	url := fmt.Sprintf("%s/drives/%s/items/%s/children", c.baseURL, c.driveID, c.folderID)

	var list wireDriveItemList
	if err := c.getJSON(ctx, url, &list); err != nil {
		return nil, fmt.Errorf("list drive children: %w", err)
	}

	items := make([]DriveItem, 0, len(list.Value))
	for _, item := range list.Value {
		if item.File == nil {
			continue
		}
		items = append(items, DriveItem{ID: item.ID, Name: item.Name})
	}
	return items, nil
}

// Download fetches a file's content into a uniquely named temp file and
// returns the local path. The file's extension is preserved so text
// extraction can dispatch on it; the unique name keeps concurrent
// downloads and other processes from clobbering each other.
func (c *Client) Download(ctx context.Context, itemID, name string) (string, error) {
	url := fmt.Sprintf("%s/drives/%s/items/%s/content", c.baseURL, c.driveID, itemID)

	resp, err := c.get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("download item %s: %w", itemID, err)
	}
	defer resp.Body.Close()

	out, err := os.CreateTemp("", "ragapi-*"+filepath.Ext(name))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	return out.Name(), nil
}

// ListPermissions returns the raw sharing grants for a drive item,
// classified into the Grant union. Callers wanting fail-closed semantics
// go through PermissionFetcher instead.
func (c *Client) ListPermissions(ctx context.Context, itemID string) ([]Grant, error) {
	url := fmt.Sprintf("%s/drives/%s/items/%s/permissions", c.baseURL, c.driveID, itemID)

	var list wirePermissionList
	if err := c.getJSON(ctx, url, &list); err != nil {
		return nil, fmt.Errorf("list permissions for item %s: %w", itemID, err)
	}

	grants := make([]Grant, 0, len(list.Value))
	for _, raw := range list.Value {
		grants = append(grants, classifyGrant(raw))
	}
	return grants, nil
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	resp, err := c.do(ctx, url)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("graph responded %d: %s", resp.StatusCode, body)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// cancelReadCloser releases the per-call timeout when the body is closed.
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	c.cancel()
	return c.ReadCloser.Close()
}
