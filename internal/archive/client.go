// Package archive queries a media archive for noise-corpus items and
// samples downloads across weighted subject categories.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/openvox/voxharvest/internal/transport"
	"github.com/openvox/voxharvest/pkg/logging"
)

// File is one candidate file inside an archive item.
type File struct {
	Name string
	Size int64
}

// Item is one archive entry with its candidate files.
type Item struct {
	Identifier string
	Files      []File
}

// Client talks to the archive's search and metadata endpoints.
type Client struct {
	client  *transport.Client
	baseURL string
	logger  zerolog.Logger
}

// NewClient builds a Client over the shared transport.
func NewClient(client *transport.Client, baseURL string) *Client {
	return &Client{
		client:  client,
		baseURL: baseURL,
		logger:  logging.GetLogger("archive"),
	}
}

type searchResponse struct {
	Response struct {
		Docs []struct {
			Identifier string `json:"identifier"`
		} `json:"docs"`
	} `json:"response"`
}

type metadataResponse struct {
	Files []struct {
		Name string `json:"name"`
		Size string `json:"size"`
	} `json:"files"`
}

// SearchCategory returns item identifiers for audio items tagged with the
// subject, one result page at a time. An empty slice means the category
// is exhausted.
func (c *Client) SearchCategory(ctx context.Context, subject string, rows, page int) ([]string, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("mediatype:(audio) AND subject:(%q)", subject))
	query.Set("fl[]", "identifier")
	query.Set("rows", strconv.Itoa(rows))
	query.Set("page", strconv.Itoa(page))
	query.Set("output", "json")

	searchURL := c.baseURL + "/advancedsearch.php?" + query.Encode()
	resp, err := c.client.Get(ctx, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", subject, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search %q: unexpected status %d", subject, resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("search %q: malformed response: %w", subject, err)
	}

	identifiers := make([]string, 0, len(parsed.Response.Docs))
	for _, doc := range parsed.Response.Docs {
		if doc.Identifier != "" {
			identifiers = append(identifiers, doc.Identifier)
		}
	}
	return identifiers, nil
}

// GetItem fetches an item's file listing.
func (c *Client) GetItem(ctx context.Context, identifier string) (*Item, error) {
	resp, err := c.client.Get(ctx, c.baseURL+"/metadata/"+identifier, nil)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", identifier, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("item %s: unexpected status %d", identifier, resp.StatusCode)
	}

	var parsed metadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("item %s: malformed metadata: %w", identifier, err)
	}

	item := &Item{Identifier: identifier}
	for _, f := range parsed.Files {
		// The archive reports sizes as strings; tolerate absent ones.
		size, _ := strconv.ParseInt(f.Size, 10, 64)
		item.Files = append(item.Files, File{Name: f.Name, Size: size})
	}
	return item, nil
}

// DownloadURL returns the direct URL for a file inside an item.
func (c *Client) DownloadURL(identifier, filename string) string {
	return c.baseURL + "/download/" + identifier + "/" + url.PathEscape(filename)
}
