package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yourusername/devlog/pkg/logger"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	apiVersion     = "2022-06-28"
)

// notionStore implements the Store interface against the Notion API.
type notionStore struct {
	client  *http.Client
	logger  logger.Logger
	config  Config
	baseURL string
}

// New creates a workspace store backed by the Notion API.
//
// Parameters:
//   - cfg: Store configuration
//   - log: Logger instance
//
// Returns:
//   - Configured Store
//   - ErrMissingToken if no API token is set
func New(cfg Config, log logger.Logger) (Store, error) {
	if cfg.APIToken == "" {
		return nil, ErrMissingToken
	}

	// Set defaults.
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	log.Info("workspace store initialized", "base_url", baseURL)

	return &notionStore{
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		logger:  log,
		config:  cfg,
		baseURL: baseURL,
	}, nil
}

// pageResponse is the subset of a page API response the store needs.
type pageResponse struct {
	ID string `json:"id"`
}

// queryResponse is the subset of a database query response the store needs.
type queryResponse struct {
	Results []pageResponse `json:"results"`
	HasMore bool           `json:"has_more"`
	Cursor  string         `json:"next_cursor"`
}

// CreateSession implements Store.CreateSession.
func (s *notionStore) CreateSession(ctx context.Context, input SessionInput) (string, error) {
	properties := map[string]interface{}{
		"Name": titleProperty(input.Name),
		"Date": dateProperty(input.Start, time.Time{}),
	}

	return s.createPage(ctx, "creating session", s.config.SessionsDatabaseID, properties)
}

// UpdateSession implements Store.UpdateSession.
func (s *notionStore) UpdateSession(ctx context.Context, id string, update SessionUpdate) error {
	properties := map[string]interface{}{
		"Date":          dateProperty(update.Start, update.End),
		"IDE Time":      numberProperty(update.EditorMinutes),
		"Browser Time":  numberProperty(update.BrowserMinutes),
		"Files Changed": numberProperty(update.FilesChanged),
		"Lines Added":   numberProperty(update.LinesAdded),
		"Lines Removed": numberProperty(update.LinesRemoved),
	}

	return s.updatePage(ctx, "updating session", id, properties)
}

// CountSessionsInMonth implements Store.CountSessionsInMonth.
func (s *notionStore) CountSessionsInMonth(ctx context.Context, year int, month time.Month) (int, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Millisecond)

	filter := map[string]interface{}{
		"and": []interface{}{
			map[string]interface{}{
				"property": "Date",
				"date":     map[string]interface{}{"after": start.Format(time.RFC3339)},
			},
			map[string]interface{}{
				"property": "Date",
				"date":     map[string]interface{}{"before": end.Format(time.RFC3339)},
			},
		},
	}

	count := 0
	cursor := ""

	// Collect all pages of results; only the count matters.
	for {
		body := map[string]interface{}{"filter": filter}
		if cursor != "" {
			body["start_cursor"] = cursor
		}

		var resp queryResponse
		if err := s.do(ctx, "counting sessions", http.MethodPost,
			fmt.Sprintf("/databases/%s/query", s.config.SessionsDatabaseID), body, &resp); err != nil {
			return 0, err
		}

		count += len(resp.Results)

		if !resp.HasMore {
			return count, nil
		}
		cursor = resp.Cursor
	}
}

// FindProjectBySlug implements Store.FindProjectBySlug.
func (s *notionStore) FindProjectBySlug(ctx context.Context, slug string) (string, error) {
	body := map[string]interface{}{
		"filter": map[string]interface{}{
			"property":  "Slug",
			"rich_text": map[string]interface{}{"equals": slug},
		},
	}

	var resp queryResponse
	if err := s.do(ctx, "finding project by slug", http.MethodPost,
		fmt.Sprintf("/databases/%s/query", s.config.ProjectsDatabaseID), body, &resp); err != nil {
		return "", err
	}

	if len(resp.Results) == 0 {
		return "", fmt.Errorf("%w: project with slug %q", ErrPageNotFound, slug)
	}

	return resp.Results[0].ID, nil
}

// CreateProject implements Store.CreateProject.
func (s *notionStore) CreateProject(ctx context.Context, input ProjectInput) (string, error) {
	properties := map[string]interface{}{
		"Name":       titleProperty(input.Name),
		"Slug":       richTextProperty(input.Slug),
		"Repository": urlProperty(input.RepositoryURL),
		"Status":     selectProperty(input.Status),
	}

	if input.Description != "" {
		properties["Description"] = richTextProperty(input.Description)
	}
	if !input.Start.IsZero() {
		properties["Start Date"] = dateProperty(input.Start, time.Time{})
	}

	return s.createPage(ctx, "creating project", s.config.ProjectsDatabaseID, properties)
}

// CreateTask implements Store.CreateTask.
func (s *notionStore) CreateTask(ctx context.Context, input TaskInput) (string, error) {
	properties := map[string]interface{}{
		"Name":       titleProperty(input.Name),
		"Project":    relationProperty([]string{input.ProjectID}),
		"Status":     selectProperty(input.Status),
		"Commit URL": urlProperty(input.CommitURL),
		"Due Date":   dateProperty(input.Due, time.Time{}),
	}

	if input.Details != "" {
		properties["Details"] = richTextProperty(input.Details)
	}

	return s.createPage(ctx, "creating task", s.config.TasksDatabaseID, properties)
}

// LinkTaskSessions implements Store.LinkTaskSessions.
func (s *notionStore) LinkTaskSessions(ctx context.Context, taskID string, sessionIDs []string) error {
	properties := map[string]interface{}{
		"Sessions": relationProperty(sessionIDs),
	}

	return s.updatePage(ctx, "linking task sessions", taskID, properties)
}

// createPage creates a page in the given database and returns its ID.
func (s *notionStore) createPage(ctx context.Context, op, databaseID string, properties map[string]interface{}) (string, error) {
	body := map[string]interface{}{
		"parent":     map[string]interface{}{"database_id": databaseID},
		"properties": properties,
	}

	var resp pageResponse
	if err := s.do(ctx, op, http.MethodPost, "/pages", body, &resp); err != nil {
		return "", err
	}

	return resp.ID, nil
}

// updatePage overwrites properties on an existing page.
func (s *notionStore) updatePage(ctx context.Context, op, pageID string, properties map[string]interface{}) error {
	body := map[string]interface{}{
		"properties": properties,
	}

	return s.do(ctx, op, http.MethodPatch, "/pages/"+pageID, body, nil)
}

// do executes a single API call, decoding the response into out if
// non-nil. Non-2xx responses are wrapped in ErrRequestFailed.
func (s *notionStore) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a bounded amount of the error body for context.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		s.logger.Error("workspace API call failed",
			"operation", op,
			"status", resp.StatusCode)

		return fmt.Errorf("%w: %s: status %d: %s", ErrRequestFailed, op, resp.StatusCode, string(detail))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}

	return nil
}

// Property constructors. Payloads are plain value maps built from
// validated inputs.

func titleProperty(text string) map[string]interface{} {
	return map[string]interface{}{
		"title": []interface{}{
			map[string]interface{}{
				"text": map[string]interface{}{"content": text},
			},
		},
	}
}

func richTextProperty(text string) map[string]interface{} {
	return map[string]interface{}{
		"rich_text": []interface{}{
			map[string]interface{}{
				"text": map[string]interface{}{"content": text},
			},
		},
	}
}

func numberProperty(n int) map[string]interface{} {
	return map[string]interface{}{"number": n}
}

func urlProperty(url string) map[string]interface{} {
	return map[string]interface{}{"url": url}
}

func selectProperty(name string) map[string]interface{} {
	return map[string]interface{}{
		"select": map[string]interface{}{"name": name},
	}
}

func dateProperty(start, end time.Time) map[string]interface{} {
	date := map[string]interface{}{
		"start": start.Format(time.RFC3339),
	}
	if !end.IsZero() {
		date["end"] = end.Format(time.RFC3339)
	}

	return map[string]interface{}{"date": date}
}

func relationProperty(ids []string) map[string]interface{} {
	relations := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		relations = append(relations, map[string]interface{}{"id": id})
	}

	return map[string]interface{}{"relation": relations}
}
