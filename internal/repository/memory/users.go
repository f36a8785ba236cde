package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/spec-kit/event-service/internal/domain"
)

type userRepository struct {
	store *Store
}

func (r *userRepository) Insert(_ context.Context, user *domain.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identityTakenLocked("", user.Username, user.Email) {
		return domain.ErrDuplicateIdentity
	}
	user.ID = uuid.NewString()
	user.CreatedAt = s.now().UTC()
	s.users[user.ID] = cloneUser(*user)
	return nil
}

func (r *userRepository) Update(_ context.Context, user *domain.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if s.identityTakenLocked(user.ID, user.Username, user.Email) {
		return domain.ErrDuplicateIdentity
	}
	updated := cloneUser(*user)
	updated.CreatedAt = existing.CreatedAt
	s.users[user.ID] = updated
	return nil
}

func (r *userRepository) Delete(_ context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(s.users, id)
	for key := range s.memberships {
		if key.userID == id {
			delete(s.memberships, key)
		}
	}
	return nil
}

func (r *userRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	found := cloneUser(user)
	return &found, nil
}

func (r *userRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Username == username {
			found := cloneUser(user)
			return &found, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *userRepository) ExistsByUsernameOrEmail(_ context.Context, username string, email *string) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.identityTakenLocked("", username, email), nil
}

func (r *userRepository) List(_ context.Context) ([]domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		result = append(result, cloneUser(user))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Username < result[j].Username
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// identityTakenLocked reports whether another user than exceptID already owns
// username or email.
func (s *Store) identityTakenLocked(exceptID, username string, email *string) bool {
	for id, user := range s.users {
		if id == exceptID {
			continue
		}
		if user.Username == username {
			return true
		}
		if email != nil && user.Email != nil && *user.Email == *email {
			return true
		}
	}
	return false
}

func cloneUser(user domain.User) domain.User {
	if user.Email != nil {
		email := *user.Email
		user.Email = &email
	}
	return user
}
