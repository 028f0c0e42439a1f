// Package repometa provides best-effort repository metadata lookups.
//
// Metadata enriches newly created project records with the repository's
// display name, description and URL. Lookups are strictly best-effort:
// callers substitute degraded defaults when a fetch fails and never block
// on this package's availability.
package repometa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/yourusername/devlog/pkg/logger"
)

const defaultBaseURL = "https://api.github.com"

// Details holds repository metadata.
type Details struct {
	// Name is the repository's display name.
	Name string `json:"name"`

	// Description is the repository description, possibly empty.
	Description string `json:"description"`

	// HTMLURL is the repository's web URL.
	HTMLURL string `json:"html_url"`

	// CreatedAt is when the repository was created.
	CreatedAt time.Time `json:"created_at"`
}

// Fetcher looks up repository metadata.
type Fetcher interface {
	// Fetch returns metadata for owner/name.
	//
	// Returns:
	//   - Details on success
	//   - Error for network failures or non-OK API responses
	Fetch(ctx context.Context, owner, name string) (*Details, error)
}

// Config contains fetcher configuration.
type Config struct {
	// BaseURL overrides the API endpoint (tests); empty means production.
	BaseURL string

	// RequestTimeout bounds a single lookup (default: 10 seconds).
	RequestTimeout time.Duration
}

// fetcher implements the Fetcher interface against the GitHub API.
type fetcher struct {
	client  *http.Client
	logger  logger.Logger
	baseURL string
}

// New creates a repository metadata fetcher.
//
// Parameters:
//   - cfg: Fetcher configuration (zero values get defaults)
//   - log: Logger instance
//
// Returns a configured Fetcher.
func New(cfg Config, log logger.Logger) Fetcher {
	// Set defaults.
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &fetcher{
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		logger:  log,
		baseURL: baseURL,
	}
}

// Fetch implements Fetcher.Fetch.
func (f *fetcher) Fetch(ctx context.Context, owner, name string) (*Details, error) {
	url := fmt.Sprintf("%s/repos/%s/%s", f.baseURL, owner, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch repo metadata: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("metadata API returned non-OK response",
			"status", resp.StatusCode,
			"owner", owner,
			"name", name)
		return nil, fmt.Errorf("metadata API returned status %d for %s/%s", resp.StatusCode, owner, name)
	}

	var details Details
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("failed to decode repo metadata: %w", err)
	}

	return &details, nil
}
