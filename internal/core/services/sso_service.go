package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"livegrid/internal/core/domain"
	"livegrid/internal/core/ports"
	"livegrid/pkg/validation"

	"go.uber.org/zap"
)

// SSOOptions describes the identity provider and how this deployment is
// reachable from it.
type SSOOptions struct {
	ProviderURL  string // login form target
	ProfileURL   string // server-to-server session verification endpoint
	CallbackURL  string // where the provider posts the callback form
	LoginPageURL string // request_url sent with the login form
	AppBaseURL   string // redirects after a callback must stay on this origin
	APIKey       string
	FormHash     string
	SharedSecret string
	LegalEntity  string
	Timeout      time.Duration
}

type SSOService struct {
	opts   SSOOptions
	client *http.Client
	logger *zap.SugaredLogger
}

var _ ports.SSOService = (*SSOService)(nil)

func NewSSOService(opts SSOOptions, logger *zap.SugaredLogger) *SSOService {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SSOService{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Sign returns hex(HMAC-SHA256(secret, sessionID)), the proof sent with a
// profile request.
func Sign(secret, sessionID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// LoginForm returns the hidden form that starts a provider login.
func (s *SSOService) LoginForm() domain.SSOLoginForm {
	return domain.SSOLoginForm{
		Action: s.opts.ProviderURL,
		Fields: []domain.FormField{
			{Name: "request_url", Value: s.opts.LoginPageURL},
			{Name: "callback_url", Value: s.opts.CallbackURL},
			{Name: "api_key", Value: s.opts.APIKey},
			{Name: "hash_value", Value: s.opts.FormHash},
			{Name: "legal_entity", Value: s.opts.LegalEntity},
			{Name: "force_consent", Value: "1"},
			{Name: "action", Value: "0"},
		},
	}
}

// HandleCallback verifies a provider callback and returns the URL the
// browser is sent to, carrying uid and token as query parameters.
func (s *SSOService) HandleCallback(ctx context.Context, cb domain.SSOCallback) (string, error) {
	if cb.Unauth {
		return "", domain.ErrSSOUnauthenticated
	}
	if strings.TrimSpace(cb.SessionID) == "" {
		return "", fmt.Errorf("%w: session_id is required", domain.ErrSSOVerification)
	}
	target, err := s.redirectTarget(cb.RequestURL)
	if err != nil {
		return "", err
	}

	session, err := s.fetchProfile(ctx, cb.SessionID)
	if err != nil {
		s.logger.Warnw("SSO verification failed", "error", err)
		return "", err
	}

	q := target.Query()
	q.Set("uid", session.UID)
	q.Set("token", session.Token)
	target.RawQuery = q.Encode()

	s.logger.Infow("SSO session verified", "uid", session.UID)
	return target.String(), nil
}

func (s *SSOService) redirectTarget(requestURL string) (*url.URL, error) {
	if !validation.SameOrigin(s.opts.AppBaseURL, requestURL) {
		return nil, fmt.Errorf("%w: %q", domain.ErrRedirectNotAllowed, requestURL)
	}
	target, err := url.Parse(requestURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRedirectNotAllowed, err)
	}
	return target, nil
}

func (s *SSOService) fetchProfile(ctx context.Context, sessionID string) (*domain.SSOSession, error) {
	form := url.Values{}
	form.Set("api_key", s.opts.APIKey)
	form.Set("session_id", sessionID)
	form.Set("hash_value", Sign(s.opts.SharedSecret, sessionID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.ProfileURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSSOVerification, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: profile request: %v", domain.ErrSSOVerification, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read profile: %v", domain.ErrSSOVerification, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: provider returned %d", domain.ErrSSOVerification, resp.StatusCode)
	}

	var session domain.SSOSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("%w: decode profile: %v", domain.ErrSSOVerification, err)
	}
	if session.UID == "" || session.Token == "" {
		return nil, fmt.Errorf("%w: profile is missing uid or token", domain.ErrSSOVerification)
	}
	return &session, nil
}
