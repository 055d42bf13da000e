package judgesim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/ecell/internal/domain/model"
	"github.com/okian/ecell/internal/domain/types"
)

// ErrUnexpectedStatus is returned for any non-2xx response.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// HTTPClient wraps http.Client with the base URL and bearer token.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	token   string
}

func newHTTPClient(config *Config) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: config.Timeout},
		baseURL: config.BaseURL,
		token:   config.Token,
	}
}

// do sends a JSON request and decodes a JSON response into out when set.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %s %s: %d %s", ErrUnexpectedStatus, method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

func (c *HTTPClient) health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

type criteriaResponse struct {
	Criteria []model.Criterion `json:"criteria"`
	Default  bool              `json:"default"`
}

func (c *HTTPClient) criteria(ctx context.Context, eventID string) (criteriaResponse, error) {
	var out criteriaResponse
	err := c.do(ctx, http.MethodGet, "/events/"+eventID+"/criteria", nil, &out)
	return out, err
}

func (c *HTTPClient) openSession(ctx context.Context, eventID string) (types.SessionView, error) {
	var out types.SessionView
	err := c.do(ctx, http.MethodPost, "/events/"+eventID+"/sessions", nil, &out)
	return out, err
}

type scoreRequest struct {
	Value  string `json:"value"`
	Commit bool   `json:"commit"`
}

func (c *HTTPClient) commitScore(ctx context.Context, sessionID string, cell Cell) (types.ScoreUpdate, error) {
	var out types.ScoreUpdate
	path := "/sessions/" + sessionID + "/scores/" + cell.TeamID + "/" + cell.CriterionID
	err := c.do(ctx, http.MethodPut, path, scoreRequest{Value: formatScore(cell.Value), Commit: true}, &out)
	return out, err
}

func (c *HTTPClient) save(ctx context.Context, sessionID string) (types.Results, error) {
	var out types.Results
	err := c.do(ctx, http.MethodPost, "/sessions/"+sessionID+"/save", nil, &out)
	return out, err
}

func (c *HTTPClient) discard(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+sessionID, nil, nil)
}

func (c *HTTPClient) results(ctx context.Context, eventID string) (types.Results, error) {
	var out types.Results
	err := c.do(ctx, http.MethodGet, "/events/"+eventID+"/results", nil, &out)
	return out, err
}
