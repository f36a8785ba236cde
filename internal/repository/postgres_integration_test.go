//go:build integration

package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/persistence"
	"github.com/spec-kit/event-service/internal/repository"
	"github.com/spec-kit/event-service/internal/service"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("events"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, persistence.RunMigrations(dsn, zap.NewNop()))
	// A second run must be a no-op.
	require.NoError(t, persistence.RunMigrations(dsn, zap.NewNop()))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func insertUser(t *testing.T, users repository.UserRepository, username string, email *string) *domain.User {
	t.Helper()
	user := &domain.User{Username: username, Email: email, PasswordHash: "hash"}
	require.NoError(t, users.Insert(context.Background(), user))
	return user
}

func insertEvent(t *testing.T, events repository.EventRepository, title string, at time.Time) *domain.Event {
	t.Helper()
	event := &domain.Event{Title: title, MeetingTime: at}
	require.NoError(t, events.Insert(context.Background(), event))
	return event
}

func TestPostgresRepositories(t *testing.T) {
	pool := newTestPool(t)
	users := repository.NewUserRepository(pool)
	events := repository.NewEventRepository(pool)
	ctx := context.Background()
	email := "a@x.com"

	t.Run("users", func(t *testing.T) {
		alice := insertUser(t, users, "alice", &email)
		assert.NotEmpty(t, alice.ID)
		assert.False(t, alice.CreatedAt.IsZero())

		err := users.Insert(ctx, &domain.User{Username: "alice", PasswordHash: "h"})
		require.ErrorIs(t, err, domain.ErrDuplicateIdentity)
		err = users.Insert(ctx, &domain.User{Username: "alicia", Email: &email, PasswordHash: "h"})
		require.ErrorIs(t, err, domain.ErrDuplicateIdentity)

		exists, err := users.ExistsByUsernameOrEmail(ctx, "nobody", &email)
		require.NoError(t, err)
		assert.True(t, exists)
		exists, err = users.ExistsByUsernameOrEmail(ctx, "nobody", nil)
		require.NoError(t, err)
		assert.False(t, exists)

		found, err := users.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, found.ID)

		_, err = users.FindByID(ctx, "not-a-uuid")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("upcoming listings", func(t *testing.T) {
		now := time.Now().UTC()
		bob := insertUser(t, users, "bob", nil)
		past := insertEvent(t, events, "past", now.Add(-time.Hour))
		soon := insertEvent(t, events, "soon", now.Add(time.Hour))

		for _, e := range []*domain.Event{past, soon} {
			err := events.InMembershipTx(ctx, func(tx repository.MembershipTx) error {
				return tx.AddMember(ctx, e.ID, bob.ID)
			})
			require.NoError(t, err)
		}

		mine, err := events.FindUpcomingForUser(ctx, bob.ID, now)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, soon.ID, mine[0].ID)
		assert.Equal(t, []domain.Member{{UserID: bob.ID, Username: "bob"}}, mine[0].Members)

		all, err := events.FindUpcoming(ctx, now)
		require.NoError(t, err)
		for _, e := range all {
			assert.True(t, e.MeetingTime.After(now))
		}
	})
}

func TestPostgresConcurrentSubscribe(t *testing.T) {
	pool := newTestPool(t)
	users := repository.NewUserRepository(pool)
	events := repository.NewEventRepository(pool)
	subscriptions := service.NewSubscriptionService(service.SubscriptionDependencies{EventRepo: events})
	ctx := context.Background()

	alice := insertUser(t, users, "alice", nil)
	event := insertEvent(t, events, "meetup", time.Now().Add(time.Hour))

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		start     = make(chan struct{})
		successes int
		already   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := subscriptions.Subscribe(ctx, event.ID, alice.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrAlreadySubscribed):
				already++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, already)

	var rows int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM event_members WHERE event_id=$1 AND user_id=$2`, event.ID, alice.ID).Scan(&rows))
	assert.Equal(t, 1, rows)

	_, err := subscriptions.Unsubscribe(ctx, event.ID, alice.ID)
	require.NoError(t, err)
	_, err = subscriptions.Unsubscribe(ctx, event.ID, alice.ID)
	require.ErrorIs(t, err, domain.ErrNotSubscribed)
	_, err = subscriptions.Subscribe(ctx, "00000000-0000-0000-0000-000000000000", alice.ID)
	require.ErrorIs(t, err, domain.ErrEventNotFound)
}
