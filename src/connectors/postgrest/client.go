// Package postgrest implements store.Store against a hosted backend that exposes
// its Postgres tables through a PostgREST-style HTTP API (/rest/v1/<table>).
package postgrest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"copyinvest/src/model"
	"copyinvest/src/store"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

const (
	restPrefix = "/rest/v1/"

	tableOpenPositions   = "open_positions"
	tableClosedPositions = "closed_positions"
	tableUserMetrics     = "user_metrics"

	preferMinimal        = "return=minimal"
	preferRepresentation = "return=representation"
	preferMergeUpsert    = "resolution=merge-duplicates,return=minimal"

	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

// APIError is the error body returned by the backend.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
}

// Client talks to the hosted backend. Authentication is the service key pair
// configured at construction; no session handling happens here.
type Client struct {
	http *resty.Client
}

var _ store.Store = (*Client)(nil)

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}

	code := r.StatusCode()
	if code >= 500 && code <= 599 {
		return true
	}
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

func NewClient(baseURL, apiKey, serviceToken string, timeout time.Duration, retryCount int) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	if apiKey != "" {
		httpClient.SetHeader("apikey", apiKey)
	}
	if serviceToken != "" {
		httpClient.SetAuthToken(serviceToken)
	}

	return &Client{http: httpClient}
}

func NewClientFromConfig() *Client {
	config := GetConfig()
	if config.APIKey == "" {
		logger.Warn("BACKEND_API_KEY is empty, requests will be anonymous")
	}
	return NewClient(config.BaseURL, config.APIKey, config.ServiceToken, config.Timeout, config.RetryCount)
}

func eq(v fmt.Stringer) string {
	return "eq." + v.String()
}

func (c *Client) do(
	ctx context.Context,
	method string,
	table string,
	query url.Values,
	prefer string,
	body interface{},
	out interface{},
) error {

	apiErr := &APIError{}
	req := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		SetError(apiErr)
	if prefer != "" {
		req.SetHeader("Prefer", prefer)
	}
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, restPrefix+table)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"connector": "postgrest",
			"method":    method,
			"table":     table,
		}).WithError(err).Error("Backend request failed")
		return fmt.Errorf("%s %s: %w", method, table, err)
	}

	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = resp.Status()
		}
		logger.WithFields(map[string]interface{}{
			"connector": "postgrest",
			"method":    method,
			"table":     table,
			"status":    apiErr.Status,
			"code":      apiErr.Code,
		}).Error("Backend returned an error")
		return apiErr
	}

	return nil
}

func (c *Client) OpenPositions(ctx context.Context, userID uuid.UUID) ([]model.OpenPosition, error) {
	var rows []model.OpenPosition
	err := c.do(ctx, http.MethodGet, tableOpenPositions, url.Values{
		"select":  {"*"},
		"user_id": {eq(userID)},
		"order":   {"open_time.desc"},
	}, "", nil, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) ClosedPositions(ctx context.Context, userID uuid.UUID) ([]model.ClosedPosition, error) {
	var rows []model.ClosedPosition
	err := c.do(ctx, http.MethodGet, tableClosedPositions, url.Values{
		"select":  {"*"},
		"user_id": {eq(userID)},
		"order":   {"close_time.desc"},
	}, "", nil, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) OpenPosition(ctx context.Context, id uuid.UUID) (*model.OpenPosition, error) {
	var rows []model.OpenPosition
	err := c.do(ctx, http.MethodGet, tableOpenPositions, url.Values{
		"select": {"*"},
		"id":     {eq(id)},
		"limit":  {"1"},
	}, "", nil, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return &rows[0], nil
}

func (c *Client) InsertOpenPosition(ctx context.Context, p *model.OpenPosition) error {
	return c.do(ctx, http.MethodPost, tableOpenPositions, nil, preferMinimal, []*model.OpenPosition{p}, nil)
}

func (c *Client) UpdateOpenPosition(ctx context.Context, p *model.OpenPosition) error {
	var rows []model.OpenPosition
	err := c.do(ctx, http.MethodPatch, tableOpenPositions, url.Values{
		"id": {eq(p.ID)},
	}, preferRepresentation, p, &rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *Client) DeleteOpenPosition(ctx context.Context, id uuid.UUID) error {
	var rows []model.OpenPosition
	err := c.do(ctx, http.MethodDelete, tableOpenPositions, url.Values{
		"id": {eq(id)},
	}, preferRepresentation, nil, &rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *Client) InsertClosedPosition(ctx context.Context, p *model.ClosedPosition) error {
	return c.do(ctx, http.MethodPost, tableClosedPositions, nil, preferMinimal, []*model.ClosedPosition{p}, nil)
}

func (c *Client) DeleteClosedPosition(ctx context.Context, userID, id uuid.UUID) error {
	var rows []model.ClosedPosition
	err := c.do(ctx, http.MethodDelete, tableClosedPositions, url.Values{
		"id":      {eq(id)},
		"user_id": {eq(userID)},
	}, preferRepresentation, nil, &rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *Client) UserMetrics(ctx context.Context, userID uuid.UUID) (*model.UserMetrics, error) {
	var rows []model.UserMetrics
	err := c.do(ctx, http.MethodGet, tableUserMetrics, url.Values{
		"select":  {"*"},
		"user_id": {eq(userID)},
		"limit":   {"1"},
	}, "", nil, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Client) UpsertUserMetrics(ctx context.Context, m *model.UserMetrics) error {
	return c.do(ctx, http.MethodPost, tableUserMetrics, url.Values{
		"on_conflict": {"user_id"},
	}, preferMergeUpsert, []*model.UserMetrics{m}, nil)
}
