package graph

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// SiteIDs locates a SharePoint folder in Graph terms.
type SiteIDs struct {
	SiteID   string
	DriveID  string
	FolderID string
}

// DiscoverIDs resolves a SharePoint folder URL like
// https://contoso.sharepoint.com/sites/HR/Shared Documents/Policies
// into the site, drive, and folder ids needed for ingestion config.
// Only /sites/<name> URLs are supported.
func (c *Client) DiscoverIDs(ctx context.Context, folderURL string) (*SiteIDs, error) {
	parsed, err := url.Parse(folderURL)
	if err != nil {
		return nil, fmt.Errorf("parse folder url: %w", err)
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "sites" {
		return nil, fmt.Errorf("only /sites/<site-name> URLs are supported")
	}
	siteName := parts[1]
	folderPath := strings.Join(parts[2:], "/")

	var site struct {
		ID string `json:"id"`
	}
	siteURL := fmt.Sprintf("%s/sites/%s:/sites/%s", c.baseURL, parsed.Hostname(), siteName)
	if err := c.getJSON(ctx, siteURL, &site); err != nil {
		return nil, fmt.Errorf("resolve site %s: %w", siteName, err)
	}

	var drives struct {
		Value []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"value"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/sites/%s/drives", c.baseURL, site.ID), &drives); err != nil {
		return nil, fmt.Errorf("list drives: %w", err)
	}

	var driveID string
	for _, d := range drives.Value {
		if d.Name == "Documents" {
			driveID = d.ID
			break
		}
	}
	if driveID == "" {
		return nil, fmt.Errorf("site %s has no Documents library", siteName)
	}

	var folder struct {
		ID string `json:"id"`
	}
	folderRef := fmt.Sprintf("%s/drives/%s/root:/%s", c.baseURL, driveID, folderPath)
	if err := c.getJSON(ctx, folderRef, &folder); err != nil {
		return nil, fmt.Errorf("resolve folder %q: %w", folderPath, err)
	}

	return &SiteIDs{SiteID: site.ID, DriveID: driveID, FolderID: folder.ID}, nil
}
