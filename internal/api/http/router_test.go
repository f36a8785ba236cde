package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	httptransport "github.com/spec-kit/event-service/internal/api/http"
	"github.com/spec-kit/event-service/internal/api/http/handlers"
	"github.com/spec-kit/event-service/internal/auth"
	"github.com/spec-kit/event-service/internal/config"
	"github.com/spec-kit/event-service/internal/events"
	"github.com/spec-kit/event-service/internal/observability"
	"github.com/spec-kit/event-service/internal/persistence"
	"github.com/spec-kit/event-service/internal/repository/memory"
	"github.com/spec-kit/event-service/internal/service"
)

type testServer struct {
	app     *fiber.App
	auth    *service.AuthService
	events  *service.EventService
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: []byte(strings.Repeat("s", 48))})
	require.NoError(t, err)

	store := memory.NewStore()
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics("test")

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:   store.Users(),
		EventRepo:  store.Events(),
		Hasher:     hasher,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Metrics:    metrics,
	})
	subscriptions := service.NewSubscriptionService(service.SubscriptionDependencies{
		EventRepo:  store.Events(),
		Dispatcher: dispatcher,
		Metrics:    metrics,
	})
	eventService := service.NewEventService(service.EventDependencies{EventRepo: store.Events(), Dispatcher: dispatcher})

	app := fiber.New(fiber.Config{Immutable: true})
	httptransport.RegisterMiddlewares(app, nil, metrics, 5*time.Second)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:            handlers.NewHealthHandler("event-service", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Users:             handlers.NewUsersHandler(authService),
		Events:            handlers.NewEventsHandler(eventService, subscriptions),
		AuthMiddleware:    auth.NewAuthMiddleware(authService),
		CredentialLimiter: httptransport.NewCredentialLimiter(config.RateLimitConfig{}),
		Metrics:           metrics,
	})
	return &testServer{app: app, auth: authService, events: eventService, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T, username, password string) (access, refresh string) {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/auth/token", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, status, body)
	data := body["data"].(map[string]any)
	return data["access_token"].(string), data["refresh_token"].(string)
}

func (s *testServer) signup(t *testing.T, username string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/auth/users", "", map[string]any{"username": username, "password": "password-" + username})
	require.Equal(t, http.StatusCreated, status, body)
	access, _ := s.login(t, username, "password-"+username)
	return access
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/auth/users", "", map[string]any{
		"username": "alice", "email": "a@x.com", "password": "password-alice",
	})
	require.Equal(t, http.StatusCreated, status)
	user := body["data"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.NotContains(t, user, "password_hash")

	status, body = s.do(t, http.MethodPost, "/auth/users", "", map[string]any{
		"username": "bob", "email": "a@x.com", "password": "password-bob",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "DUPLICATE_IDENTITY", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/auth/users", "", map[string]any{"username": "x", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	access, refresh := s.login(t, "alice", "password-alice")
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)

	status, body = s.do(t, http.MethodGet, "/auth/users/me", access, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body["data"].(map[string]any)["username"])
}

func TestLoginUniformDenial(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice")

	status1, body1 := s.do(t, http.MethodPost, "/auth/token", "", map[string]string{"username": "alice", "password": "wrong"})
	status2, body2 := s.do(t, http.MethodPost, "/auth/token", "", map[string]string{"username": "nouser", "password": "wrong"})

	assert.Equal(t, http.StatusUnauthorized, status1)
	assert.Equal(t, status1, status2)
	assert.Equal(t, body1, body2)
}

func TestTokenFailuresAreUndifferentiated(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice")
	_, refresh := s.login(t, "alice", "password-alice")

	_, missing := s.do(t, http.MethodGet, "/auth/users/me", "", nil)
	status, wrongType := s.do(t, http.MethodGet, "/auth/users/me", refresh, nil)
	_, garbage := s.do(t, http.MethodGet, "/auth/users/me", "not-a-token", nil)

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, missing, wrongType)
	assert.Equal(t, wrongType, garbage)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(garbage))
}

func TestRefreshEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice")
	access, refresh := s.login(t, "alice", "password-alice")

	status, body := s.do(t, http.MethodPost, "/auth/token/refresh", "", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, status)
	newAccess := body["data"].(map[string]any)["access_token"].(string)

	status, _ = s.do(t, http.MethodGet, "/auth/users/me", newAccess, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodPost, "/auth/token/refresh", "", map[string]string{"refresh_token": access})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSubscriptionEndpoints(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	token := s.signup(t, "alice")

	event, err := s.events.Create(ctx, service.Operator, service.EventCreateInput{Title: "meetup", MeetingTime: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	_, err = s.events.Create(ctx, service.Operator, service.EventCreateInput{Title: "gone", MeetingTime: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	path := "/api/events/" + event.ID

	status, body := s.do(t, http.MethodPost, path+"/subscription", token, map[string]string{"action": "add"})
	require.Equal(t, http.StatusOK, status, body)
	members := body["data"].(map[string]any)["members"].([]any)
	require.Len(t, members, 1)
	assert.Equal(t, "alice", members[0].(map[string]any)["username"])

	status, body = s.do(t, http.MethodPost, path+"/subscribe", token, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_SUBSCRIBED", errorCode(body))

	status, body = s.do(t, http.MethodGet, "/api/events/my", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].([]any), 1)

	status, body = s.do(t, http.MethodGet, "/api/events", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].([]any), 1)

	status, _ = s.do(t, http.MethodDelete, path+"/subscribe", token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, path+"/subscription", token, map[string]string{"action": "remove"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "NOT_SUBSCRIBED", errorCode(body))

	status, body = s.do(t, http.MethodPost, path+"/subscription", token, map[string]string{"action": "toggle"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, _ = s.do(t, http.MethodPost, "/api/events/missing/subscribe", token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodGet, "/api/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminRoutes(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	userToken := s.signup(t, "alice")
	s.signup(t, "root")
	_, err := s.auth.SetAdmin(ctx, "root", true)
	require.NoError(t, err)
	adminToken, _ := s.login(t, "root", "password-root")

	create := map[string]any{"title": "meetup", "meeting_time": time.Now().Add(time.Hour).UTC().Format(time.RFC3339)}

	status, _ := s.do(t, http.MethodPost, "/api/events", userToken, create)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = s.do(t, http.MethodGet, "/auth/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := s.do(t, http.MethodPost, "/api/events", adminToken, create)
	require.Equal(t, http.StatusCreated, status, body)
	id := body["data"].(map[string]any)["id"].(string)

	status, body = s.do(t, http.MethodGet, "/auth/users", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].([]any), 2)

	status, _ = s.do(t, http.MethodDelete, "/api/events/"+id, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = s.do(t, http.MethodGet, "/api/events/"+id, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAccountEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "alice")

	status, body := s.do(t, http.MethodPatch, "/auth/users/me", token, map[string]string{"email": "new@x.com"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "new@x.com", body["data"].(map[string]any)["email"])

	status, _ = s.do(t, http.MethodPut, "/auth/users/me/password", token, map[string]string{
		"current_password": "wrong", "new_password": "another-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodPut, "/auth/users/me/password", token, map[string]string{
		"current_password": "password-alice", "new_password": "another-password",
	})
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = s.do(t, http.MethodDelete, "/auth/users/me", token, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = s.do(t, http.MethodGet, "/auth/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "disabled", deps["postgres"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status, _ = s.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestMembershipVisibleToLaterRequests(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	token := s.signup(t, "alice")

	first, err := s.events.Create(ctx, service.Operator, service.EventCreateInput{Title: "first", MeetingTime: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	second, err := s.events.Create(ctx, service.Operator, service.EventCreateInput{Title: "second", MeetingTime: time.Now().Add(2 * time.Hour)})
	require.NoError(t, err)

	status, body := s.do(t, http.MethodPost, "/api/events/"+first.ID+"/subscribe", token, nil)
	require.Equal(t, http.StatusOK, status, body)

	// Requests for other ids reuse the server's request buffers.
	status, _ = s.do(t, http.MethodGet, "/api/events/"+second.ID, token, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, "/api/events/00000000-0000-0000-0000-000000000000", token, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, body = s.do(t, http.MethodGet, "/api/events/my", token, nil)
	require.Equal(t, http.StatusOK, status)
	mine := body["data"].([]any)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].(map[string]any)["id"])

	status, body = s.do(t, http.MethodGet, "/api/events/"+first.ID, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].(map[string]any)["members"].([]any), 1)

	loaded, err := s.events.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Members, 1)
	assert.Equal(t, "alice", loaded.Members[0].Username)
}

func TestErrorMetricsUseRoutePattern(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "alice")

	for _, id := range []string{"11111111-1111-1111-1111-111111111111", "22222222-2222-2222-2222-222222222222"} {
		status, _ := s.do(t, http.MethodGet, "/api/events/"+id, token, nil)
		require.Equal(t, http.StatusNotFound, status)
	}

	count, err := testutil.GatherAndCount(s.metrics.Registry(), "test_http_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	families, err := s.metrics.Registry().Gather()
	require.NoError(t, err)
	var routes []string
	for _, family := range families {
		if family.GetName() != "test_http_errors_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "route" {
					routes = append(routes, label.GetValue())
				}
			}
		}
	}
	assert.Equal(t, []string{"/api/events/:id"}, routes)
}

func TestRegisterRejectsPasswordOverBcryptLimit(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/auth/users", "", map[string]any{
		"username": "alice", "password": strings.Repeat("é", 60),
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}
