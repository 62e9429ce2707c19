package postgres

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/UkralStul/blogsphere/internal/domain"
	"github.com/UkralStul/blogsphere/internal/storage"
)

var base = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

// newTestStore opens a SQLite-backed store with one user and one post.
func newTestStore(t *testing.T) (*Store, *domain.User, *domain.Post) {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "blog.db"), logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	ctx := context.Background()
	user, err := store.CreateUser(ctx, &domain.User{
		Username: "alice", Email: "alice@example.com", PasswordHash: "x", Role: "user",
	})
	require.NoError(t, err)
	post, err := store.CreatePost(ctx, &domain.Post{
		Title:     "Test Post",
		Content:   "Content",
		Tags:      []string{"Go", "Backend"},
		AuthorID:  user.ID,
		CreatedAt: base,
		UpdatedAt: base,
	})
	require.NoError(t, err)
	return store, user, post
}

func TestStore_CreateAndGetPost(t *testing.T) {
	store, user, post := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Post", got.Title)
	assert.Equal(t, user.ID, got.AuthorID)
	assert.Equal(t, []string{"Go", "Backend"}, got.Tags)
	assert.True(t, got.CreatedAt.Equal(got.UpdatedAt))
	assert.Empty(t, got.Comments)
	assert.Empty(t, got.Likes)

	_, err = store.GetPostByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_UpdatePostReplacesTags(t *testing.T) {
	store, _, post := newTestStore(t)
	ctx := context.Background()

	updated, err := store.UpdatePost(ctx, post.ID, domain.PostUpdate{
		Title:     "New title",
		Content:   "New content",
		Tags:      []string{"Rust"},
		UpdatedAt: base.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, []string{"Rust"}, updated.Tags)
	assert.True(t, updated.CreatedAt.Equal(base))
	assert.True(t, updated.UpdatedAt.Equal(base.Add(time.Hour)))

	_, err = store.UpdatePost(ctx, "missing", domain.PostUpdate{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_NestedMutations(t *testing.T) {
	store, user, post := newTestStore(t)
	ctx := context.Background()

	a, err := store.AddComment(ctx, post.ID, &domain.Comment{UserID: user.ID, Text: "a", CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	b, err := store.AddComment(ctx, post.ID, &domain.Comment{UserID: user.ID, Text: "b", CreatedAt: base.Add(2 * time.Minute)})
	require.NoError(t, err)

	_, err = store.AddReply(ctx, post.ID, a.ID, &domain.Reply{UserID: "u3", Text: "thanks"})
	require.NoError(t, err)

	// Editing one comment and deleting another touch disjoint rows.
	_, err = store.UpdateCommentText(ctx, post.ID, a.ID, "a edited")
	require.NoError(t, err)
	require.NoError(t, store.DeleteComment(ctx, post.ID, b.ID))

	got, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "a edited", got.Comments[0].Text)
	require.Len(t, got.Comments[0].Replies, 1)
	assert.Equal(t, "thanks", got.Comments[0].Replies[0].Text)

	_, err = store.UpdateCommentText(ctx, post.ID, b.ID, "gone")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.AddReply(ctx, "missing", a.ID, &domain.Reply{UserID: "u3", Text: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.AddComment(ctx, "missing", &domain.Comment{UserID: user.ID, Text: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_CommentOrderWithEqualTimestamps(t *testing.T) {
	store, user, post := newTestStore(t)
	ctx := context.Background()

	var texts []string
	var first *domain.Comment
	for i := 0; i < 10; i++ {
		text := fmt.Sprintf("comment %d", i)
		c, err := store.AddComment(ctx, post.ID, &domain.Comment{UserID: user.ID, Text: text, CreatedAt: base})
		require.NoError(t, err)
		if first == nil {
			first = c
		}
		texts = append(texts, text)
	}
	var replies []string
	for i := 0; i < 10; i++ {
		text := fmt.Sprintf("reply %d", i)
		_, err := store.AddReply(ctx, post.ID, first.ID, &domain.Reply{UserID: user.ID, Text: text, CreatedAt: base})
		require.NoError(t, err)
		replies = append(replies, text)
	}

	got, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, texts, lo.Map(got.Comments, func(c *domain.Comment, _ int) string { return c.Text }))
	assert.Equal(t, replies, lo.Map(got.Comments[0].Replies, func(r *domain.Reply, _ int) string { return r.Text }))

	// Deleting from the middle keeps the rest in place.
	require.NoError(t, store.DeleteComment(ctx, post.ID, got.Comments[4].ID))
	c, err := store.AddComment(ctx, post.ID, &domain.Comment{UserID: user.ID, Text: "last", CreatedAt: base})
	require.NoError(t, err)
	got, err = store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, got.Comments, 10)
	assert.Equal(t, "comment 5", got.Comments[4].Text)
	assert.Equal(t, c.ID, got.Comments[9].ID)
}

func TestStore_Likes(t *testing.T) {
	store, user, post := newTestStore(t)
	ctx := context.Background()

	n, err := store.AddLike(ctx, post.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.AddLike(ctx, post.ID, user.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	n, err = store.RemoveLike(ctx, post.ID, "stranger")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{user.ID}, got.Likes)

	_, err = store.AddLike(ctx, "missing", user.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_FindPosts(t *testing.T) {
	store, user, first := newTestStore(t)
	ctx := context.Background()

	second, err := store.CreatePost(ctx, &domain.Post{
		Title:     "Introduction to MERN Stack",
		Content:   "100% of the stack",
		Tags:      []string{"MERN", "Fullstack"},
		AuthorID:  "other-author",
		CreatedAt: base.Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = store.AddLike(ctx, second.ID, user.ID)
	require.NoError(t, err)

	all, err := store.FindPosts(ctx, storage.PostFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)

	byTag, err := store.FindPosts(ctx, storage.PostFilter{Query: "mern", Field: storage.FieldTags})
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, second.ID, byTag[0].ID)
	assert.Equal(t, []string{"MERN", "Fullstack"}, byTag[0].Tags)

	literal, err := store.FindPosts(ctx, storage.PostFilter{Query: "100%", Field: storage.FieldBody})
	require.NoError(t, err)
	assert.Len(t, literal, 1)

	wildcard, err := store.FindPosts(ctx, storage.PostFilter{Query: "_", Field: storage.FieldTitle})
	require.NoError(t, err)
	assert.Empty(t, wildcard)

	liked, err := store.FindPosts(ctx, storage.PostFilter{LikedBy: user.ID})
	require.NoError(t, err)
	require.Len(t, liked, 1)
	assert.Equal(t, second.ID, liked[0].ID)

	anyTag, err := store.FindPosts(ctx, storage.PostFilter{AnyTag: []string{"Go"}})
	require.NoError(t, err)
	require.Len(t, anyTag, 1)
	assert.Equal(t, first.ID, anyTag[0].ID)

	none, err := store.FindPosts(ctx, storage.PostFilter{AuthorIDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, none)

	notMine, err := store.FindPosts(ctx, storage.PostFilter{ExcludeAuthorIDs: []string{user.ID}})
	require.NoError(t, err)
	require.Len(t, notMine, 1)
	assert.Equal(t, second.ID, notMine[0].ID)
}

func TestStore_Relationships(t *testing.T) {
	store, alice, post := newTestStore(t)
	ctx := context.Background()

	bob, err := store.CreateUser(ctx, &domain.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x", Role: "user"})
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, &domain.User{Username: "Bob", Email: "bob2@example.com", PasswordHash: "x", Role: "user"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	require.NoError(t, store.Follow(ctx, alice.ID, bob.ID))
	assert.ErrorIs(t, store.Follow(ctx, alice.ID, bob.ID), domain.ErrConflict)
	assert.ErrorIs(t, store.Follow(ctx, alice.ID, "ghost"), domain.ErrNotFound)

	following, err := store.FollowingIDs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, following)
	followers, err := store.FollowerIDs(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID}, followers)

	require.NoError(t, store.AddBookmark(ctx, bob.ID, post.ID))
	require.NoError(t, store.AddBookmark(ctx, bob.ID, post.ID))
	assert.ErrorIs(t, store.AddBookmark(ctx, "ghost", post.ID), domain.ErrNotFound)
	ids, err := store.BookmarkIDs(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{post.ID}, ids)

	require.NoError(t, store.DeletePost(ctx, post.ID))
	ids, err = store.BookmarkIDs(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.DeleteUser(ctx, bob.ID))
	following, err = store.FollowingIDs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, following)

	users, err := store.GetUsersByIDs(ctx, []string{alice.ID, bob.ID})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Contains(t, users, alice.ID)
}
