// Package client is a typed HTTP client for the livegrid API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"livegrid/internal/core/domain"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int                    `json:"-"`
	Code       string                 `json:"error"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*APIClient)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *APIClient) { c.httpClient = hc }
}

// NewAPIClient targets baseURL, which may include a mount prefix such as
// https://api.example.com/livekit.
func NewAPIClient(baseURL string, opts ...Option) *APIClient {
	c := &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *APIClient) BaseURL() string {
	return c.baseURL
}

func (c *APIClient) RegisterProctor(ctx context.Context, name, room string) (domain.Credential, error) {
	return c.register(ctx, "/proctor/register", name, room)
}

func (c *APIClient) RegisterParticipant(ctx context.Context, name, room string) (domain.Credential, error) {
	return c.register(ctx, "/participant/register", name, room)
}

func (c *APIClient) register(ctx context.Context, path, name, room string) (domain.Credential, error) {
	body := map[string]string{"name": name, "room": room}
	var raw []byte
	if err := c.do(ctx, http.MethodPost, path, body, &raw); err != nil {
		return "", err
	}
	return domain.Credential(strings.TrimSpace(string(raw))), nil
}

func (c *APIClient) RegisterSelfTest(ctx context.Context, name string) (domain.SelfTestCredentials, error) {
	var pair domain.SelfTestCredentials
	err := c.do(ctx, http.MethodPost, "/e2e_test/register", map[string]string{"name": name}, &pair)
	return pair, err
}

func (c *APIClient) SubmitResult(ctx context.Context, record domain.TestResultRecord) (*domain.TestResultRecord, error) {
	var resp struct {
		ID     domain.RecordID         `json:"id"`
		Record domain.TestResultRecord `json:"record"`
	}
	if err := c.do(ctx, http.MethodPost, "/e2e_test/results", record, &resp); err != nil {
		return nil, err
	}
	if resp.Record.ID == "" {
		resp.Record.ID = resp.ID
	}
	return &resp.Record, nil
}

func (c *APIClient) GetResult(ctx context.Context, id domain.RecordID) (*domain.TestResultRecord, error) {
	var record domain.TestResultRecord
	if err := c.do(ctx, http.MethodGet, "/e2e_test/results/"+url.PathEscape(string(id)), nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *APIClient) ListResults(ctx context.Context, limit int) ([]*domain.TestResultRecord, error) {
	path := "/e2e_test/results"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var records []*domain.TestResultRecord
	err := c.do(ctx, http.MethodGet, path, nil, &records)
	return records, err
}

func (c *APIClient) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	err := c.do(ctx, http.MethodGet, "/rooms", nil, &rooms)
	return rooms, err
}

func (c *APIClient) CreateRoom(ctx context.Context, opts domain.RoomOptions) (domain.Room, error) {
	var room domain.Room
	if err := c.do(ctx, http.MethodPost, "/rooms/create", opts, &room); err != nil {
		return nil, err
	}
	return room, nil
}

// LoginURL is the page a browser opens to start the SSO handshake.
func (c *APIClient) LoginURL() string {
	return c.baseURL + "/sso/login"
}

// do sends body as JSON and decodes the answer into out. A *[]byte out
// receives the raw body.
func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return parseResponse(resp, out)
}

func parseResponse(resp *http.Response, out interface{}) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = ""
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	switch v := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*v = data
		return nil
	default:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}
