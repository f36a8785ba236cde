package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/event-service/internal/auth"
	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/events"
	"github.com/spec-kit/event-service/internal/repository/memory"
)

var testNow = time.Date(2030, 3, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	store         *memory.Store
	auth          *AuthService
	subscriptions *SubscriptionService
	events        *EventService
	tokens        *auth.TokenService
	recorder      *messageRecorder
	clock         *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// messageRecorder captures dispatched messages.
type messageRecorder struct {
	mu       sync.Mutex
	messages []events.Message
}

func (r *messageRecorder) handle(_ context.Context, msg events.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *messageRecorder) types() []events.MessageType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.MessageType, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, m.Type)
	}
	return out
}

type mockThrottle struct {
	mock.Mock
}

func (m *mockThrottle) Blocked(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *mockThrottle) RecordFailure(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func (m *mockThrottle) Reset(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func newTestEnv(t *testing.T, throttle LoginThrottle) *testEnv {
	t.Helper()
	clock := &testClock{now: testNow}

	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: []byte(strings.Repeat("s", 48)),
		Clock:  clock.Now,
	})
	require.NoError(t, err)

	store := memory.NewStore()
	dispatcher := events.NewInMemoryDispatcher()
	recorder := &messageRecorder{}
	for _, typ := range events.AllMessageTypes {
		dispatcher.Subscribe(typ, recorder.handle)
	}

	return &testEnv{
		store: store,
		auth: NewAuthService(AuthDependencies{
			UserRepo:   store.Users(),
			EventRepo:  store.Events(),
			Hasher:     hasher,
			Tokens:     tokens,
			Throttle:   throttle,
			Dispatcher: dispatcher,
		}),
		subscriptions: NewSubscriptionService(SubscriptionDependencies{
			EventRepo:  store.Events(),
			Dispatcher: dispatcher,
			Clock:      clock.Now,
		}),
		events: NewEventService(EventDependencies{
			EventRepo:  store.Events(),
			Dispatcher: dispatcher,
		}),
		tokens:   tokens,
		recorder: recorder,
		clock:    clock,
	}
}

func (e *testEnv) register(t *testing.T, username, password string) *domain.User {
	t.Helper()
	user, err := e.auth.Register(context.Background(), username, nil, password)
	require.NoError(t, err)
	return user
}

func (e *testEnv) createEvent(t *testing.T, title string, at time.Time) *domain.Event {
	t.Helper()
	event, err := e.events.Create(context.Background(), Operator, EventCreateInput{Title: title, MeetingTime: at})
	require.NoError(t, err)
	return event
}

func strPtr(s string) *string { return &s }
