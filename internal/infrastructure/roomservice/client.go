// Package roomservice calls the media server's room administration API
// (Twirp JSON over HTTP).
package roomservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"livegrid/internal/core/domain"
	"livegrid/internal/core/ports"
	"livegrid/internal/core/services"
	"livegrid/pkg/circuitbreaker"
	"livegrid/pkg/tracing"
	"livegrid/pkg/utils"

	"go.uber.org/zap"
)

const (
	twirpPrefix        = "/twirp/livekit.RoomService/"
	maxUpstreamMessage = 512
)

const (
	OperationListRooms  = "ListRooms"
	OperationCreateRoom = "CreateRoom"
)

// TokenSource signs the short-lived admin token sent with each request.
type TokenSource interface {
	IssueServiceToken(grant services.VideoGrant) (string, error)
}

type Metrics interface {
	RecordRoomServiceRequest(operation, outcome string, duration time.Duration)
}

// UpstreamError is a non-2xx answer from the room service. Code and Message
// come from the Twirp error body when there is one.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Code       string
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("room service %s: %d %s: %s", e.Operation, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("room service %s: %d: %s", e.Operation, e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	metrics    Metrics
	logger     *zap.SugaredLogger
}

var _ ports.RoomService = (*Client)(nil)

// NewClient builds a client for host, which may use a ws/wss scheme.
// Client-side upstream errors (4xx) do not count against the breaker.
func NewClient(
	host string,
	tokens TokenSource,
	breakerCfg circuitbreaker.Config,
	timeout time.Duration,
	metrics Metrics,
	logger *zap.SugaredLogger,
) (*Client, error) {
	baseURL, err := HTTPBaseURL(host)
	if err != nil {
		return nil, err
	}

	breakerCfg.IsFailure = func(err error) bool {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			return upstream.StatusCode >= http.StatusInternalServerError
		}
		return !errors.Is(err, context.Canceled)
	}
	breaker := circuitbreaker.New(breakerCfg)
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("room service circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return &Client{
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// HTTPBaseURL maps a media server host to the base URL of its HTTP API.
func HTTPBaseURL(host string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(host))
	if err != nil {
		return "", fmt.Errorf("invalid room service host %q: %w", host, err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("invalid room service host %q: unsupported scheme", host)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid room service host %q: missing host", host)
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}

func (c *Client) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var resp struct {
		Rooms []domain.Room `json:"rooms"`
	}
	err := c.call(ctx, OperationListRooms, services.VideoGrant{RoomList: true}, []byte("{}"), &resp)
	if err != nil {
		return nil, err
	}
	if resp.Rooms == nil {
		resp.Rooms = []domain.Room{}
	}
	return resp.Rooms, nil
}

// CreateRoom forwards opts unchanged and returns the created room as the
// service encoded it.
func (c *Client) CreateRoom(ctx context.Context, opts domain.RoomOptions) (domain.Room, error) {
	if err := domain.ValidateRoomOptions(opts); err != nil {
		return nil, err
	}

	var room domain.Room
	err := c.call(ctx, OperationCreateRoom, services.VideoGrant{RoomCreate: true}, opts, &room)
	if err != nil {
		return nil, err
	}
	return room, nil
}

// Healthy fails while the breaker is open.
func (c *Client) Healthy(ctx context.Context) error {
	if c.breaker.State() == circuitbreaker.StateOpen {
		return circuitbreaker.ErrOpen
	}
	return nil
}

func (c *Client) call(ctx context.Context, operation string, grant services.VideoGrant, payload []byte, out interface{}) error {
	ctx, span := tracing.TraceRoomService(ctx, operation)
	defer span.End()

	start := time.Now()
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.do(ctx, operation, grant, payload, out)
	})
	c.metrics.RecordRoomServiceRequest(operation, outcome(err), time.Since(start))

	if err != nil {
		tracing.RecordError(ctx, err)
		c.logger.Warnw("room service request failed",
			"operation", operation,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Client) do(ctx context.Context, operation string, grant services.VideoGrant, payload []byte, out interface{}) error {
	token, err := c.tokens.IssueServiceToken(grant)
	if err != nil {
		return fmt.Errorf("room service %s: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+twirpPrefix+operation, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("room service %s: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("room service %s: %w", operation, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("room service %s: read response: %w", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upstream := &UpstreamError{Operation: operation, StatusCode: resp.StatusCode}
		var twirpErr struct {
			Code string `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(data, &twirpErr) == nil && twirpErr.Msg != "" {
			upstream.Code = twirpErr.Code
			upstream.Message = twirpErr.Msg
		} else {
			upstream.Message = utils.TruncateString(strings.TrimSpace(string(data)), maxUpstreamMessage)
		}
		return upstream
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("room service %s: decode response: %w", operation, err)
	}
	return nil
}

func outcome(err error) string {
	var upstream *UpstreamError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, circuitbreaker.ErrOpen):
		return "circuit_open"
	case errors.As(err, &upstream):
		return "upstream_error"
	default:
		return "transport_error"
	}
}
