package postlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Postline HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Draft represents the API draft model (partial).
type Draft struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Title          string `json:"title"`
	Country        string `json:"country"`
	IsPartial      bool   `json:"is_partial"`
	Published      bool   `json:"published"`
	CurrentStep    int    `json:"current_step"`
	CompletedCount int    `json:"completed_count"`
	ReadyToPublish bool   `json:"ready_to_publish"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// Progress is the recomputed completion summary of a draft.
type Progress struct {
	CurrentStep    int    `json:"current_step"`
	CurrentName    string `json:"current_step_name"`
	CompletedCount int    `json:"completed_count"`
	TotalSteps     int    `json:"total_steps"`
	ReadyToPublish bool   `json:"ready_to_publish"`
}

// Validation is the field-keyed error report of a draft.
type Validation struct {
	OK    bool                         `json:"ok"`
	Steps map[string]map[string]string `json:"steps"`
}

// Posting is the published record for a draft.
type Posting struct {
	PostingID   string         `json:"posting_id"`
	DraftID     string         `json:"draft_id"`
	Title       string         `json:"title"`
	Kind        string         `json:"kind"`
	PublishedAt string         `json:"published_at"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	AgencyID   string `json:"agency_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// LocalID is returned when adding a repeatable entry.
type LocalID struct {
	LocalID int `json:"local_id"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateDraft starts a new draft of the given kind ("single" or "bulk").
func (c *Client) CreateDraft(ctx context.Context, kind string) (Draft, error) {
	var resp Draft
	err := c.do(ctx, http.MethodPost, "v0/drafts", map[string]any{"kind": kind}, &resp)
	return resp, err
}

// ListDrafts returns drafts, optionally filtered by kind.
func (c *Client) ListDrafts(ctx context.Context, kind string) ([]Draft, error) {
	endpoint := "v0/drafts"
	if kind != "" {
		endpoint += "?kind=" + url.QueryEscape(kind)
	}
	var resp []Draft
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetDraft fetches a draft summary by id.
func (c *Client) GetDraft(ctx context.Context, id string) (Draft, error) {
	var resp Draft
	err := c.do(ctx, http.MethodGet, c.draftPath(id, ""), nil, &resp)
	return resp, err
}

// DeleteDraft removes a draft.
func (c *Client) DeleteDraft(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.draftPath(id, ""), nil, nil)
}

// SetStep writes one step's payload. Step is the route segment, e.g.
// "posting", "contract", "tags", "interview", "review".
func (c *Client) SetStep(ctx context.Context, id, step string, body any) (Draft, error) {
	var resp Draft
	err := c.do(ctx, http.MethodPut, c.draftPath(id, step), body, &resp)
	return resp, err
}

// AddEntry appends to a repeatable collection ("positions", "expenses",
// "bulk/entries") and returns the minted local id.
func (c *Client) AddEntry(ctx context.Context, id, collection string, body any) (int, error) {
	var resp LocalID
	err := c.do(ctx, http.MethodPost, c.draftPath(id, collection), body, &resp)
	return resp.LocalID, err
}

// UpdateEntry rewrites one collection entry by local id.
func (c *Client) UpdateEntry(ctx context.Context, id, collection string, localID int, body any) (Draft, error) {
	var resp Draft
	err := c.do(ctx, http.MethodPatch, c.draftPath(id, fmt.Sprintf("%s/%d", collection, localID)), body, &resp)
	return resp, err
}

// RemoveEntry deletes one collection entry by local id.
func (c *Client) RemoveEntry(ctx context.Context, id, collection string, localID int) (Draft, error) {
	var resp Draft
	err := c.do(ctx, http.MethodDelete, c.draftPath(id, fmt.Sprintf("%s/%d", collection, localID)), nil, &resp)
	return resp, err
}

// Progress fetches the recomputed completion summary.
func (c *Client) Progress(ctx context.Context, id string) (Progress, error) {
	var resp Progress
	err := c.do(ctx, http.MethodGet, c.draftPath(id, "progress"), nil, &resp)
	return resp, err
}

// Validate runs the full validation pass without publishing.
func (c *Client) Validate(ctx context.Context, id string) (Validation, error) {
	var resp Validation
	err := c.do(ctx, http.MethodGet, c.draftPath(id, "validate"), nil, &resp)
	return resp, err
}

// Publish submits the draft. Validation failures come back as *APIError
// with status 422 and the per-step errors in the body.
func (c *Client) Publish(ctx context.Context, id string) (Posting, error) {
	var resp Posting
	err := c.do(ctx, http.MethodPost, c.draftPath(id, "publish"), nil, &resp)
	return resp, err
}

// GetPosting fetches the published record for a draft.
func (c *Client) GetPosting(ctx context.Context, id string) (Posting, error) {
	var resp Posting
	err := c.do(ctx, http.MethodGet, c.draftPath(id, "posting"), nil, &resp)
	return resp, err
}

// ExpandBulk creates a new single draft seeded from a bulk draft.
func (c *Client) ExpandBulk(ctx context.Context, id string) (Draft, error) {
	var resp Draft
	err := c.do(ctx, http.MethodPost, c.draftPath(id, "expand"), nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) draftPath(id, p string) string {
	base := fmt.Sprintf("v0/drafts/%s", url.PathEscape(id))
	if p == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
