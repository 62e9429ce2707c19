// Package social owns the follow graph and bookmark sets.
package social

import (
	"context"
	"fmt"

	"github.com/UkralStul/blogsphere/internal/dataloader"
	"github.com/UkralStul/blogsphere/internal/domain"
	"github.com/UkralStul/blogsphere/internal/logger"
	"github.com/UkralStul/blogsphere/internal/storage"
)

// PostResolver fills display refs on posts read outside the blog service.
type PostResolver interface {
	Resolve(ctx context.Context, posts ...*domain.Post) error
}

type Service struct {
	store storage.Storage
	posts PostResolver
	log   *logger.Logger
}

func NewService(store storage.Storage, posts PostResolver, log *logger.Logger) *Service {
	return &Service{store: store, posts: posts, log: log.With("service", "SocialService")}
}

// === Follow graph ===

// Follow adds the callerID -> targetID edge on both sides at once.
func (s *Service) Follow(ctx context.Context, callerID, targetID string) error {
	if callerID == targetID {
		return fmt.Errorf("%w: cannot follow yourself", domain.ErrConflict)
	}
	if err := s.store.Follow(ctx, callerID, targetID); err != nil {
		return err
	}
	s.log.Debug("follow", "follower_id", callerID, "followee_id", targetID)
	return nil
}

// Unfollow is a no-op when the edge does not exist.
func (s *Service) Unfollow(ctx context.Context, callerID, targetID string) error {
	return s.store.Unfollow(ctx, callerID, targetID)
}

func (s *Service) ListFollowing(ctx context.Context, callerID string) ([]*domain.UserRef, error) {
	ids, err := s.store.FollowingIDs(ctx, callerID)
	if err != nil {
		return nil, err
	}
	return s.refs(ctx, ids)
}

func (s *Service) ListFollowers(ctx context.Context, callerID string) ([]*domain.UserRef, error) {
	ids, err := s.store.FollowerIDs(ctx, callerID)
	if err != nil {
		return nil, err
	}
	return s.refs(ctx, ids)
}

// refs keeps the order of ids and skips identities that no longer exist.
func (s *Service) refs(ctx context.Context, ids []string) ([]*domain.UserRef, error) {
	users, err := dataloader.Users(ctx, s.store, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.UserRef, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			out = append(out, u.Ref())
		}
	}
	return out, nil
}

// Profile is the public view of userID as seen by callerID, who may be
// anonymous.
func (s *Service) Profile(ctx context.Context, userID, callerID string) (*domain.Profile, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	followers, err := s.store.FollowerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	following, err := s.store.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	isFollowing := false
	for _, id := range followers {
		if callerID != "" && id == callerID {
			isFollowing = true
			break
		}
	}
	return &domain.Profile{
		ID:             u.ID,
		Username:       u.Username,
		Avatar:         u.Avatar,
		FollowersCount: len(followers),
		FollowingCount: len(following),
		IsFollowing:    isFollowing,
		CreatedAt:      u.CreatedAt,
	}, nil
}

// === Bookmarks ===

// Bookmark is idempotent. The post must exist.
func (s *Service) Bookmark(ctx context.Context, callerID, postID string) error {
	return s.store.AddBookmark(ctx, callerID, postID)
}

// Unbookmark is idempotent.
func (s *Service) Unbookmark(ctx context.Context, callerID, postID string) error {
	return s.store.RemoveBookmark(ctx, callerID, postID)
}

// ListBookmarks returns the bookmarked posts that still exist, in bookmark
// order.
func (s *Service) ListBookmarks(ctx context.Context, callerID string) ([]*domain.Post, error) {
	ids, err := s.store.BookmarkIDs(ctx, callerID)
	if err != nil {
		return nil, err
	}
	posts, err := s.store.GetPostsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if dropped := len(ids) - len(posts); dropped > 0 {
		s.log.Debug("dropped dangling bookmarks", "user_id", callerID, "count", dropped)
	}
	if err := s.posts.Resolve(ctx, posts...); err != nil {
		return nil, err
	}
	return posts, nil
}
