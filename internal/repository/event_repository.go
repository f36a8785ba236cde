package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/event-service/internal/domain"
)

const eventWithMembersQuery = `
        SELECT e.id, e.title, e.description, e.meeting_time, u.id, u.username
        FROM events e
        LEFT JOIN event_members m ON m.event_id = e.id
        LEFT JOIN users u ON u.id = m.user_id`

type eventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository returns a Postgres-backed implementation.
func NewEventRepository(pool *pgxpool.Pool) EventRepository {
	return &eventRepository{pool: pool}
}

func (r *eventRepository) Insert(ctx context.Context, event *domain.Event) error {
	const query = `
        INSERT INTO events (title, description, meeting_time)
        VALUES ($1, $2, $3)
        RETURNING id`

	if err := r.pool.QueryRow(ctx, query,
		event.Title,
		event.Description,
		event.MeetingTime.UTC(),
	).Scan(&event.ID); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *eventRepository) Update(ctx context.Context, event *domain.Event) error {
	const query = `
        UPDATE events SET title=$1, description=$2, meeting_time=$3
        WHERE id=$4`

	cmd, err := r.pool.Exec(ctx, query,
		event.Title,
		event.Description,
		event.MeetingTime.UTC(),
		event.ID,
	)
	if err != nil {
		return notFound(err, domain.ErrEventNotFound)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id=$1`, id)
	if err != nil {
		return notFound(err, domain.ErrEventNotFound)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func (r *eventRepository) FindByID(ctx context.Context, id string) (*domain.Event, error) {
	const query = `
        SELECT id, title, description, meeting_time
        FROM events WHERE id=$1`

	var event domain.Event
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.MeetingTime,
	); err != nil {
		return nil, notFound(err, domain.ErrEventNotFound)
	}
	event.MeetingTime = event.MeetingTime.UTC()
	return &event, nil
}

func (r *eventRepository) FindByIDWithMembers(ctx context.Context, id string) (*domain.Event, error) {
	return loadEventWithMembers(ctx, r.pool, id)
}

func (r *eventRepository) FindUpcoming(ctx context.Context, now time.Time) ([]domain.Event, error) {
	query := eventWithMembersQuery + `
        WHERE e.meeting_time > $1
        ORDER BY e.meeting_time, e.id, u.username`

	rows, err := r.pool.Query(ctx, query, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	defer rows.Close()
	return scanEventsWithMembers(rows)
}

func (r *eventRepository) FindUpcomingForUser(ctx context.Context, userID string, now time.Time) ([]domain.Event, error) {
	query := eventWithMembersQuery + `
        WHERE e.meeting_time > $2
          AND EXISTS (SELECT 1 FROM event_members x WHERE x.event_id = e.id AND x.user_id = $1)
        ORDER BY e.meeting_time, e.id, u.username`

	rows, err := r.pool.Query(ctx, query, userID, now.UTC())
	if err != nil {
		if pgCode(err) == pgInvalidTextRepresent {
			return nil, nil
		}
		return nil, fmt.Errorf("list upcoming events for user: %w", err)
	}
	defer rows.Close()

	events, err := scanEventsWithMembers(rows)
	if pgCode(err) == pgInvalidTextRepresent {
		return nil, nil
	}
	return events, err
}

func (r *eventRepository) DeleteMembershipsForUser(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM event_members WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("delete memberships: %w", notFound(err, domain.ErrUserNotFound))
	}
	return nil
}

// InMembershipTx runs fn at SERIALIZABLE isolation and retries the whole
// transaction on serialization failures.
func (r *eventRepository) InMembershipTx(ctx context.Context, fn func(tx MembershipTx) error) error {
	var err error
	for attempt := 1; attempt <= maxSerializableAttempts; attempt++ {
		err = pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			return fn(&membershipTx{q: tx})
		})
		if !isSerializationFailure(err) {
			break
		}
	}
	if isUniqueViolation(err) {
		return domain.ErrAlreadySubscribed
	}
	return err
}

type membershipTx struct {
	q querier
}

func (t *membershipTx) LockEvent(ctx context.Context, eventID string) error {
	var id string
	err := t.q.QueryRow(ctx, `SELECT id FROM events WHERE id=$1 FOR UPDATE`, eventID).Scan(&id)
	if err != nil {
		return notFound(err, domain.ErrEventNotFound)
	}
	return nil
}

func (t *membershipTx) IsMember(ctx context.Context, eventID, userID string) (bool, error) {
	const query = `
        SELECT EXISTS (SELECT 1 FROM event_members WHERE event_id=$1 AND user_id=$2)`

	var exists bool
	if err := t.q.QueryRow(ctx, query, eventID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

func (t *membershipTx) AddMember(ctx context.Context, eventID, userID string) error {
	_, err := t.q.Exec(ctx, `INSERT INTO event_members (event_id, user_id) VALUES ($1, $2)`, eventID, userID)
	switch pgCode(err) {
	case "":
	case pgUniqueViolation:
		return domain.ErrAlreadySubscribed
	case pgForeignKeyViolation, pgInvalidTextRepresent:
		return domain.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (t *membershipTx) RemoveMember(ctx context.Context, eventID, userID string) error {
	cmd, err := t.q.Exec(ctx, `DELETE FROM event_members WHERE event_id=$1 AND user_id=$2`, eventID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotSubscribed
	}
	return nil
}

func (t *membershipTx) LoadEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	return loadEventWithMembers(ctx, t.q, eventID)
}

func loadEventWithMembers(ctx context.Context, q querier, id string) (*domain.Event, error) {
	query := eventWithMembersQuery + `
        WHERE e.id = $1
        ORDER BY u.username`

	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return nil, notFound(err, domain.ErrEventNotFound)
	}
	defer rows.Close()

	events, err := scanEventsWithMembers(rows)
	if err != nil {
		return nil, notFound(err, domain.ErrEventNotFound)
	}
	if len(events) == 0 {
		return nil, domain.ErrEventNotFound
	}
	return &events[0], nil
}

// scanEventsWithMembers folds joined rows into events, keeping row order.
func scanEventsWithMembers(rows pgx.Rows) ([]domain.Event, error) {
	var result []domain.Event
	index := make(map[string]int)
	for rows.Next() {
		var (
			event    domain.Event
			userID   *string
			username *string
		)
		if err := rows.Scan(
			&event.ID,
			&event.Title,
			&event.Description,
			&event.MeetingTime,
			&userID,
			&username,
		); err != nil {
			return nil, err
		}

		pos, seen := index[event.ID]
		if !seen {
			event.MeetingTime = event.MeetingTime.UTC()
			event.Members = []domain.Member{}
			result = append(result, event)
			pos = len(result) - 1
			index[event.ID] = pos
		}
		if userID != nil && username != nil {
			result[pos].Members = append(result[pos].Members, domain.Member{UserID: *userID, Username: *username})
		}
	}
	return result, rows.Err()
}
