package social

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/blogsphere/internal/blog"
	"github.com/UkralStul/blogsphere/internal/domain"
	"github.com/UkralStul/blogsphere/internal/logger"
	"github.com/UkralStul/blogsphere/internal/storage/inmemory"
)

// danglingStore reports a bookmark whose post is gone.
type danglingStore struct {
	*inmemory.Store
}

func (d danglingStore) BookmarkIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := d.Store.BookmarkIDs(ctx, userID)
	return append([]string{"deleted-post"}, ids...), err
}

func newUsers(t *testing.T, store *inmemory.Store, names ...string) []*domain.User {
	t.Helper()
	out := make([]*domain.User, 0, len(names))
	for _, name := range names {
		u, err := store.CreateUser(context.Background(), &domain.User{
			Username: name, Email: name + "@example.com", PasswordHash: "x", Role: "user",
		})
		require.NoError(t, err)
		out = append(out, u)
	}
	return out
}

func newService(store *inmemory.Store) (*Service, *blog.Service) {
	posts := blog.NewService(store, logger.Nop())
	return NewService(store, posts, logger.Nop()), posts
}

func TestFollow(t *testing.T) {
	store := inmemory.New()
	users := newUsers(t, store, "alice", "bob")
	a, b := users[0], users[1]
	svc, _ := newService(store)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Follow(ctx, a.ID, a.ID), domain.ErrConflict)
	require.NoError(t, svc.Follow(ctx, a.ID, b.ID))
	assert.ErrorIs(t, svc.Follow(ctx, a.ID, b.ID), domain.ErrConflict)
	assert.ErrorIs(t, svc.Follow(ctx, a.ID, "ghost"), domain.ErrNotFound)

	following, err := svc.ListFollowing(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, b.ID, following[0].ID)
	assert.Equal(t, "bob", following[0].Username)

	followers, err := svc.ListFollowers(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, a.ID, followers[0].ID)

	profile, err := svc.Profile(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.FollowersCount)
	assert.Equal(t, 0, profile.FollowingCount)
	assert.True(t, profile.IsFollowing)

	anon, err := svc.Profile(ctx, b.ID, "")
	require.NoError(t, err)
	assert.False(t, anon.IsFollowing)

	require.NoError(t, svc.Unfollow(ctx, a.ID, b.ID))
	require.NoError(t, svc.Unfollow(ctx, a.ID, b.ID))
	following, err = svc.ListFollowing(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, following)
	followers, err = svc.ListFollowers(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, followers)

	_, err = svc.Profile(ctx, "ghost", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBookmarks(t *testing.T) {
	store := inmemory.New()
	users := newUsers(t, store, "alice", "bob")
	a, b := users[0], users[1]
	svc, posts := newService(store)
	ctx := context.Background()

	first, err := posts.CreatePost(ctx, b.ID, blog.PostInput{Title: "one", Content: "1"})
	require.NoError(t, err)
	second, err := posts.CreatePost(ctx, b.ID, blog.PostInput{Title: "two", Content: "2"})
	require.NoError(t, err)

	require.NoError(t, svc.Bookmark(ctx, a.ID, first.ID))
	require.NoError(t, svc.Bookmark(ctx, a.ID, first.ID))
	require.NoError(t, svc.Bookmark(ctx, a.ID, second.ID))
	assert.ErrorIs(t, svc.Bookmark(ctx, a.ID, "missing"), domain.ErrNotFound)

	list, err := svc.ListBookmarks(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, "bob", list[0].Author.Username)

	require.NoError(t, svc.Unbookmark(ctx, a.ID, first.ID))
	require.NoError(t, svc.Unbookmark(ctx, a.ID, first.ID))

	require.NoError(t, posts.DeletePost(ctx, second.ID, b.ID))
	list, err = svc.ListBookmarks(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListBookmarks_DropsDangling(t *testing.T) {
	store := inmemory.New()
	users := newUsers(t, store, "alice")
	a := users[0]
	posts := blog.NewService(store, logger.Nop(), blog.WithClock(func() time.Time {
		return time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	}))
	svc := NewService(danglingStore{store}, posts, logger.Nop())
	ctx := context.Background()

	p, err := posts.CreatePost(ctx, a.ID, blog.PostInput{Title: "kept", Content: "c"})
	require.NoError(t, err)
	require.NoError(t, svc.Bookmark(ctx, a.ID, p.ID))

	list, err := svc.ListBookmarks(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)
}
