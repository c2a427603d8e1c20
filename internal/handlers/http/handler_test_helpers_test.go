package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"livegrid/internal/core/domain"
	"livegrid/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type MockCredentialIssuer struct {
	mock.Mock
}

func (m *MockCredentialIssuer) Issue(identity, room string, role domain.Role) (domain.Credential, error) {
	args := m.Called(identity, room, role)
	return args.Get(0).(domain.Credential), args.Error(1)
}

func (m *MockCredentialIssuer) IssueSelfTestPair(name string) (domain.SelfTestCredentials, error) {
	args := m.Called(name)
	return args.Get(0).(domain.SelfTestCredentials), args.Error(1)
}

type MockRoomService struct {
	mock.Mock
}

func (m *MockRoomService) ListRooms(ctx context.Context) ([]domain.Room, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Room), args.Error(1)
}

func (m *MockRoomService) CreateRoom(ctx context.Context, opts domain.RoomOptions) (domain.Room, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Room), args.Error(1)
}

type MockSSOService struct {
	mock.Mock
}

func (m *MockSSOService) LoginForm() domain.SSOLoginForm {
	return m.Called().Get(0).(domain.SSOLoginForm)
}

func (m *MockSSOService) HandleCallback(ctx context.Context, cb domain.SSOCallback) (string, error) {
	args := m.Called(ctx, cb)
	return args.String(0), args.Error(1)
}

type MockResultService struct {
	mock.Mock
}

func (m *MockResultService) Record(ctx context.Context, record domain.TestResultRecord) (*domain.TestResultRecord, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TestResultRecord), args.Error(1)
}

func (m *MockResultService) Get(ctx context.Context, id domain.RecordID) (*domain.TestResultRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TestResultRecord), args.Error(1)
}

func (m *MockResultService) List(ctx context.Context, limit int) ([]*domain.TestResultRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TestResultRecord), args.Error(1)
}

// fakeMetrics counts what the handlers report.
type fakeMetrics struct {
	issued      map[domain.Role]int
	issueErrors int
	ssoOutcomes []string
	selfTests   int
	lastBitrate int64
	lastSuccess bool
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{issued: make(map[domain.Role]int)}
}

func (f *fakeMetrics) RecordCredentialIssued(role domain.Role) {
	f.issued[role]++
}

func (f *fakeMetrics) RecordCredentialError() {
	f.issueErrors++
}

func (f *fakeMetrics) RecordSSOCallback(outcome string) {
	f.ssoOutcomes = append(f.ssoOutcomes, outcome)
}

func (f *fakeMetrics) RecordSelfTestResult(success bool, kbps int64) {
	f.selfTests++
	f.lastSuccess = success
	f.lastBitrate = kbps
}

func newTestRouter(t *testing.T, legacy bool, basePath string, handlers ...RouteRegistrar) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t).Sugar()

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.ErrorHandlerMiddleware(logger, legacy))
	Mount(router, basePath, handlers...)
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
