// Package client is a Go client for the Mycelium HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"evalgo.org/mycelium/models"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	apiKey     string
}

type Option func(*Client)

// WithToken sends a bearer token on every request.
func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// WithAPIKey sends an X-API-Key header on every request.
func WithAPIKey(key string) Option { return func(c *Client) { c.apiKey = key } }

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// New creates a client for the API served at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Error is a non-2xx API response.
type Error struct {
	Status  int                    `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("mycelium: %d %s: %s", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("mycelium: %d %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsConflict reports whether err is a 409, such as a concurrent modification.
func IsConflict(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

// PatchRequest creates a draft patch. An empty BaseVersion takes the
// target's current version.
type PatchRequest struct {
	ID          string             `json:"id,omitempty"`
	Kind        models.PatchType   `json:"patchType"`
	Target      string             `json:"target"`
	Label       string             `json:"label,omitempty"`
	Description string             `json:"description,omitempty"`
	Version     string             `json:"version,omitempty"`
	Operations  []models.Operation `json:"operations"`
	BaseVersion string             `json:"baseVersion,omitempty"`
	DependsOn   []string           `json:"dependsOn,omitempty"`
	Spore       string             `json:"spore,omitempty"`
}

type SporeRequest struct {
	ID           string                  `json:"id,omitempty"`
	Label        string                  `json:"label,omitempty"`
	Description  string                  `json:"description,omitempty"`
	Version      string                  `json:"version,omitempty"`
	Level        models.ConformanceLevel `json:"conformanceLevel,omitempty"`
	Patches      []string                `json:"patches"`
	Targets      []string                `json:"targets"`
	BaseVersions map[string]string       `json:"baseVersions,omitempty"`
}

// PatchOutcome is one patch's entry in an IntegrationResult.
type PatchOutcome struct {
	ID      string `json:"id"`
	Target  string `json:"target"`
	State   string `json:"state"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

type IntegrationResult struct {
	ID           string            `json:"id"`
	Outcome      string            `json:"outcome"`
	Order        []string          `json:"order"`
	Applied      []string          `json:"applied"`
	Failed       []string          `json:"failed"`
	NotAttempted []string          `json:"notAttempted"`
	Skipped      []string          `json:"skipped,omitempty"`
	Patches      []PatchOutcome    `json:"patches"`
	Versions     map[string]string `json:"versions,omitempty"`
	Error        string            `json:"error,omitempty"`
	StartedAt    time.Time         `json:"startedAt"`
	FinishedAt   time.Time         `json:"finishedAt"`
}

type PatchQuery struct {
	Target string
	Status models.PatchStatus
	Spore  string
	Limit  int
	Offset int
}

type ViolationQuery struct {
	Target   string
	Status   models.ViolationStatus
	Severity models.Severity
	Ref      string
	Limit    int
	Offset   int
}

type patchesPage struct {
	Total   int             `json:"total"`
	Patches []*models.Patch `json:"patches"`
}

type sporesPage struct {
	Total  int             `json:"total"`
	Spores []*models.Spore `json:"spores"`
}

type violationsPage struct {
	Total      int                 `json:"total"`
	Violations []*models.Violation `json:"violations"`
}

type applyResponse struct {
	Patch   *models.Patch `json:"patch"`
	Version string        `json:"version"`
}

// CreatePatch stores a new draft patch.
func (c *Client) CreatePatch(ctx context.Context, req PatchRequest) (*models.Patch, error) {
	var p models.Patch
	if err := c.do(ctx, http.MethodPost, "/api/v1/patches", nil, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPatch fetches one patch.
func (c *Client) GetPatch(ctx context.Context, id string) (*models.Patch, error) {
	var p models.Patch
	if err := c.do(ctx, http.MethodGet, "/api/v1/patches/"+url.PathEscape(id), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPatches returns one page of patches and the total match count.
func (c *Client) ListPatches(ctx context.Context, q PatchQuery) ([]*models.Patch, int, error) {
	params := url.Values{}
	setParam(params, "target", q.Target)
	setParam(params, "status", string(q.Status))
	setParam(params, "spore", q.Spore)
	setPage(params, q.Limit, q.Offset)

	var page patchesPage
	if err := c.do(ctx, http.MethodGet, "/api/v1/patches", params, nil, &page); err != nil {
		return nil, 0, err
	}
	return page.Patches, page.Total, nil
}

// SubmitPatch moves a draft patch to pending.
func (c *Client) SubmitPatch(ctx context.Context, id string) (*models.Patch, error) {
	var p models.Patch
	if err := c.do(ctx, http.MethodPost, "/api/v1/patches/"+url.PathEscape(id)+"/submit", nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ApplyPatch applies one pending patch and returns it with the target's new version.
func (c *Client) ApplyPatch(ctx context.Context, id string) (*models.Patch, string, error) {
	return c.patchChange(ctx, id, "apply")
}

// RollbackPatch reverts an applied patch and returns the restored version.
func (c *Client) RollbackPatch(ctx context.Context, id string) (*models.Patch, string, error) {
	return c.patchChange(ctx, id, "rollback")
}

func (c *Client) patchChange(ctx context.Context, id, action string) (*models.Patch, string, error) {
	var resp applyResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/patches/"+url.PathEscape(id)+"/"+action, nil, nil, &resp); err != nil {
		return nil, "", err
	}
	return resp.Patch, resp.Version, nil
}

// RebasePatch moves a patch onto baseVersion, or onto the target's current
// version when baseVersion is empty.
func (c *Client) RebasePatch(ctx context.Context, id, baseVersion string) (*models.Patch, error) {
	var p models.Patch
	body := map[string]string{"baseVersion": baseVersion}
	if err := c.do(ctx, http.MethodPost, "/api/v1/patches/"+url.PathEscape(id)+"/rebase", nil, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateSpore stores a new spore.
func (c *Client) CreateSpore(ctx context.Context, req SporeRequest) (*models.Spore, error) {
	var s models.Spore
	if err := c.do(ctx, http.MethodPost, "/api/v1/spores", nil, req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSpore fetches one spore.
func (c *Client) GetSpore(ctx context.Context, id string) (*models.Spore, error) {
	var s models.Spore
	if err := c.do(ctx, http.MethodGet, "/api/v1/spores/"+url.PathEscape(id), nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSpores fetches every spore.
func (c *Client) ListSpores(ctx context.Context) ([]*models.Spore, error) {
	var page sporesPage
	if err := c.do(ctx, http.MethodGet, "/api/v1/spores", nil, nil, &page); err != nil {
		return nil, err
	}
	return page.Spores, nil
}

// Integrate runs one integration over the named spores. A rejected batch
// returns both the result and an *Error with status 422.
func (c *Client) Integrate(ctx context.Context, spores ...string) (*IntegrationResult, error) {
	var res IntegrationResult
	err := c.do(ctx, http.MethodPost, "/api/v1/integrate", nil, map[string][]string{"spores": spores}, &res)
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity && res.ID != "" {
		return &res, err
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Plan returns the dependency waves of the spores' pending patches.
func (c *Client) Plan(ctx context.Context, spores ...string) ([][]string, error) {
	var resp struct {
		Waves [][]string `json:"waves"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/plan", nil, map[string][]string{"spores": spores}, &resp); err != nil {
		return nil, err
	}
	return resp.Waves, nil
}

// GraphVersion returns the current version token of target.
func (c *Client) GraphVersion(ctx context.Context, target string) (string, error) {
	var resp struct {
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/graphs/"+url.PathEscape(target)+"/version", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

// VersionHistory returns the version chain of target, oldest first.
func (c *Client) VersionHistory(ctx context.Context, target string) ([]models.VersionRecord, error) {
	var resp struct {
		Records []models.VersionRecord `json:"records"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/graphs/"+url.PathEscape(target)+"/history", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// ExportGraph returns the serialized graph in format ("nquads" or "jsonld").
func (c *Client) ExportGraph(ctx context.Context, target, format string) ([]byte, error) {
	params := url.Values{}
	setParam(params, "format", format)
	var raw rawBody
	if err := c.do(ctx, http.MethodGet, "/api/v1/graphs/"+url.PathEscape(target)+"/export", params, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// QueryViolations returns one page of matching violations and the total count.
func (c *Client) QueryViolations(ctx context.Context, q ViolationQuery) ([]*models.Violation, int, error) {
	params := url.Values{}
	setParam(params, "target", q.Target)
	setParam(params, "status", string(q.Status))
	setParam(params, "severity", string(q.Severity))
	setParam(params, "ref", q.Ref)
	setPage(params, q.Limit, q.Offset)

	var page violationsPage
	if err := c.do(ctx, http.MethodGet, "/api/v1/violations", params, nil, &page); err != nil {
		return nil, 0, err
	}
	return page.Violations, page.Total, nil
}

// ResolveViolation closes a violation. changed is false when it was already resolved.
func (c *Client) ResolveViolation(ctx context.Context, id, resolution string) (bool, error) {
	var resp struct {
		Changed bool `json:"changed"`
	}
	body := map[string]string{"resolution": resolution}
	if err := c.do(ctx, http.MethodPost, "/api/v1/violations/"+url.PathEscape(id)+"/resolve", nil, body, &resp); err != nil {
		return false, err
	}
	return resp.Changed, nil
}

// rawBody makes do hand back the response bytes undecoded.
type rawBody []byte

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &Error{Status: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		apiErr.Status = resp.StatusCode
		// A rejected integration carries its result in the error body.
		if out != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			_ = json.Unmarshal(data, out)
		}
		return apiErr
	}

	switch v := out.(type) {
	case nil:
		return nil
	case *rawBody:
		*v = data
		return nil
	default:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}

func setParam(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}

func setPage(params url.Values, limit, offset int) {
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
}
