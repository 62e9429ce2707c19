package inmemory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/UkralStul/blogsphere/internal/domain"
)

// === User Methods ===

func (s *Store) CreateUser(_ context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUnique("", user.Username, user.Email); err != nil {
		return nil, err
	}
	u := *user
	u.ID = uuid.NewString()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = &u
	out := u
	return &out, nil
}

// checkUnique must be called with s.mu held.
func (s *Store) checkUnique(selfID, username, email string) error {
	for id, u := range s.users {
		if id == selfID {
			continue
		}
		if strings.EqualFold(u.Email, email) {
			return fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
		if strings.EqualFold(u.Username, username) {
			return fmt.Errorf("%w: username already taken", domain.ErrConflict)
		}
	}
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, userNotFound(id)
	}
	out := *u
	return &out, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: user with email %s", domain.ErrNotFound, email)
}

func (s *Store) GetUsersByIDs(_ context.Context, ids []string) (map[string]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*domain.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			uc := *u
			out[id] = &uc
		}
	}
	return out, nil
}

func (s *Store) FindUserIDsByUsername(_ context.Context, query string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for id, u := range s.users {
		if containsFold(u.Username, query) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) UpdateUser(_ context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return nil, userNotFound(user.ID)
	}
	if err := s.checkUnique(user.ID, user.Username, existing.Email); err != nil {
		return nil, err
	}
	existing.Username = user.Username
	existing.PasswordHash = user.PasswordHash
	existing.Avatar = user.Avatar
	out := *existing
	return &out, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return userNotFound(id)
	}
	for _, followee := range s.following[id] {
		s.followers[followee] = lo.Without(s.followers[followee], id)
	}
	for _, follower := range s.followers[id] {
		s.following[follower] = lo.Without(s.following[follower], id)
	}
	delete(s.following, id)
	delete(s.followers, id)
	delete(s.bookmarks, id)
	delete(s.users, id)
	return nil
}

// === Relationship Methods ===

func (s *Store) Follow(_ context.Context, followerID, followeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[followerID]; !ok {
		return userNotFound(followerID)
	}
	if _, ok := s.users[followeeID]; !ok {
		return userNotFound(followeeID)
	}
	if slices.Contains(s.following[followerID], followeeID) {
		return fmt.Errorf("%w: already following", domain.ErrConflict)
	}
	s.following[followerID] = append(s.following[followerID], followeeID)
	s.followers[followeeID] = append(s.followers[followeeID], followerID)
	return nil
}

func (s *Store) Unfollow(_ context.Context, followerID, followeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.following[followerID] = lo.Without(s.following[followerID], followeeID)
	s.followers[followeeID] = lo.Without(s.followers[followeeID], followerID)
	return nil
}

func (s *Store) FollowingIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.following[userID]...), nil
}

func (s *Store) FollowerIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.followers[userID]...), nil
}

func (s *Store) AddBookmark(_ context.Context, userID, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return userNotFound(userID)
	}
	if _, ok := s.posts[postID]; !ok {
		return postNotFound(postID)
	}
	if !slices.Contains(s.bookmarks[userID], postID) {
		s.bookmarks[userID] = append(s.bookmarks[userID], postID)
	}
	return nil
}

func (s *Store) RemoveBookmark(_ context.Context, userID, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bookmarks[userID] = lo.Without(s.bookmarks[userID], postID)
	return nil
}

func (s *Store) BookmarkIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.bookmarks[userID]...), nil
}

func userNotFound(id string) error {
	return fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
}
