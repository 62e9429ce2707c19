package blog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/blogsphere/internal/domain"
	"github.com/UkralStul/blogsphere/internal/logger"
	"github.com/UkralStul/blogsphere/internal/realtime"
	"github.com/UkralStul/blogsphere/internal/storage/inmemory"
)

// stepClock advances one second per reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) Publish(_ context.Context, e realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []realtime.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]realtime.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc    *Service
	store  *inmemory.Store
	events *recorder
	u1     *domain.User
	u2     *domain.User
	u3     *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := inmemory.New()
	events := &recorder{}
	clock := &stepClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
	f := &fixture{
		svc:    NewService(store, logger.Nop(), WithClock(clock.Now), WithPublisher(events)),
		store:  store,
		events: events,
	}
	ctx := context.Background()
	for i, name := range []string{"alice", "bob", "carol"} {
		u, err := store.CreateUser(ctx, &domain.User{Username: name, Email: name + "@example.com", PasswordHash: "x", Role: "user"})
		require.NoError(t, err)
		switch i {
		case 0:
			f.u1 = u
		case 1:
			f.u2 = u
		case 2:
			f.u3 = u
		}
	}
	return f
}

func (f *fixture) post(t *testing.T, author *domain.User, title string, tags ...string) *domain.Post {
	t.Helper()
	p, err := f.svc.CreatePost(context.Background(), author.ID, PostInput{Title: title, Content: "body of " + title, Tags: tags})
	require.NoError(t, err)
	return p
}

func TestCreatePost_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreatePost(ctx, f.u1.ID, PostInput{
		Title:   "  Hello  ",
		Content: "World",
		Tags:    []string{"go", " go ", "", "web"},
	})
	require.NoError(t, err)

	got, err := f.svc.GetPost(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Title)
	assert.Equal(t, "World", got.Content)
	assert.Equal(t, []string{"go", "web"}, got.Tags)
	assert.True(t, got.CreatedAt.Equal(got.UpdatedAt))
	assert.Empty(t, got.Comments)
	assert.Empty(t, got.Likes)
	require.NotNil(t, got.Author)
	assert.Equal(t, "alice", got.Author.Username)
	assert.False(t, got.Author.Deleted)
}

func TestCreatePost_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePost(ctx, f.u1.ID, PostInput{Title: " ", Content: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.svc.CreatePost(ctx, f.u1.ID, PostInput{Title: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.svc.CreatePost(ctx, "ghost", PostInput{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.GetPost(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdatePost_AuthorOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.u1, "Original", "go")

	_, err := f.svc.UpdatePost(ctx, p.ID, f.u2.ID, PostInput{Title: "Hijacked", Content: "x"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.UpdatePost(ctx, p.ID, f.u2.ID, PostInput{})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	unchanged, err := f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", unchanged.Title)
	assert.True(t, unchanged.UpdatedAt.Equal(p.UpdatedAt))

	updated, err := f.svc.UpdatePost(ctx, p.ID, f.u1.ID, PostInput{Title: "Edited", Content: "new", Tags: []string{"rust"}})
	require.NoError(t, err)
	assert.Equal(t, "Edited", updated.Title)
	assert.Equal(t, []string{"rust"}, updated.Tags)
	assert.True(t, updated.CreatedAt.Equal(p.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(p.UpdatedAt))

	_, err = f.svc.UpdatePost(ctx, "missing", f.u1.ID, PostInput{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeletePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.u1, "Doomed")

	assert.ErrorIs(t, f.svc.DeletePost(ctx, p.ID, f.u2.ID), domain.ErrForbidden)
	require.NoError(t, f.svc.DeletePost(ctx, p.ID, f.u1.ID))
	_, err := f.svc.GetPost(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeletePost(ctx, p.ID, f.u1.ID), domain.ErrNotFound)
}

func TestListPosts_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	older := f.post(t, f.u1, "older")
	newer := f.post(t, f.u2, "newer")

	all, err := f.svc.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)
	assert.Equal(t, older.ID, all[1].ID)
	assert.Equal(t, "bob", all[0].Author.Username)

	mine, err := f.svc.ListPostsByAuthor(ctx, f.u1.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, older.ID, mine[0].ID)
}

func TestToggleLike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.u1, "likeable")

	n, err := f.svc.ToggleLike(ctx, p.ID, f.u2.ID, Like)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.svc.ToggleLike(ctx, p.ID, f.u2.ID, Like)
	assert.ErrorIs(t, err, domain.ErrConflict)

	state, err := f.svc.GetLikeState(ctx, p.ID, f.u2.ID)
	require.NoError(t, err)
	assert.Equal(t, &LikeState{Likes: 1, Liked: true}, state)

	n, err = f.svc.ToggleLike(ctx, p.ID, f.u3.ID, Unlike)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.ToggleLike(ctx, p.ID, f.u2.ID, Unlike)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	state, err = f.svc.GetLikeState(ctx, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, &LikeState{Likes: 0, Liked: false}, state)

	// Likes do not touch updatedAt.
	got, err := f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(p.UpdatedAt))
}

func TestConcurrentLikesAreNotLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.u1, "popular")

	var wg sync.WaitGroup
	for _, u := range []*domain.User{f.u1, f.u2, f.u3} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = f.svc.ToggleLike(ctx, p.ID, id, Like)
			_, _ = f.svc.AddComment(ctx, p.ID, id, "hi")
		}(u.ID)
	}
	wg.Wait()

	got, err := f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Likes, 3)
	assert.Len(t, got.Comments, 3)
}

func TestCommentThreadScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.u1, "thread")

	c, err := f.svc.AddComment(ctx, p.ID, f.u2.ID, "nice")
	require.NoError(t, err)
	assert.Equal(t, f.u2.ID, c.UserID)
	assert.Equal(t, "bob", c.User.Username)

	r, err := f.svc.AddReply(ctx, p.ID, c.ID, f.u3.ID, "thanks")
	require.NoError(t, err)
	assert.Equal(t, f.u3.ID, r.UserID)
	assert.Equal(t, "carol", r.User.Username)

	got, err := f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)
	require.Len(t, got.Comments[0].Replies, 1)
	assert.Equal(t, "carol", got.Comments[0].Replies[0].User.Username)

	require.NoError(t, f.svc.DeleteComment(ctx, p.ID, c.ID, f.u1.ID))
	got, err = f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Comments)

	assert.Equal(t, []realtime.EventType{
		realtime.CommentCreated, realtime.ReplyCreated, realtime.CommentDeleted,
	}, f.events.types())
}

func TestCommentPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.u1, "perm")
	c, err := f.svc.AddComment(ctx, p.ID, f.u2.ID, "mine")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteComment(ctx, p.ID, c.ID, f.u3.ID), domain.ErrForbidden)
	comments, err := f.svc.ListComments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	_, err = f.svc.EditComment(ctx, p.ID, c.ID, f.u1.ID, "post author cannot edit")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.EditComment(ctx, p.ID, c.ID, f.u2.ID, " ")
	assert.ErrorIs(t, err, domain.ErrValidation)

	edited, err := f.svc.EditComment(ctx, p.ID, c.ID, f.u2.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", edited.Text)
	assert.True(t, edited.CreatedAt.Equal(c.CreatedAt))

	_, err = f.svc.EditComment(ctx, p.ID, "nope", f.u2.ID, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.AddComment(ctx, "missing", f.u2.ID, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.AddComment(ctx, p.ID, f.u2.ID, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.svc.AddReply(ctx, p.ID, "nope", f.u3.ID, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.svc.DeleteComment(ctx, p.ID, c.ID, f.u2.ID))
}

func TestDeletedUsersRenderAsTombstones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.u2, "orphan")
	_, err := f.svc.AddComment(ctx, p.ID, f.u2.ID, "last words")
	require.NoError(t, err)

	require.NoError(t, f.store.DeleteUser(ctx, f.u2.ID))

	got, err := f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Tombstone(), got.Author)
	assert.Equal(t, domain.DeletedUsername, got.Comments[0].User.Username)
	assert.True(t, got.Comments[0].User.Deleted)
	assert.Equal(t, f.u2.ID, got.AuthorID)
}

func TestSearchPosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mern := f.post(t, f.u1, "Introduction to MERN Stack", "MERN", "Fullstack")
	goPost := f.post(t, f.u2, "Go (1.24) notes", "Go")
	_ = f.post(t, f.u3, "Cooking", "food")

	byTag, err := f.svc.SearchPosts(ctx, SearchQuery{Query: "mern", Field: "tags"})
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, mern.ID, byTag[0].ID)

	literal, err := f.svc.SearchPosts(ctx, SearchQuery{Query: "(1.24)", Field: "title"})
	require.NoError(t, err)
	require.Len(t, literal, 1)
	assert.Equal(t, goPost.ID, literal[0].ID)

	byUser, err := f.svc.SearchPosts(ctx, SearchQuery{Query: "BO", Field: "user"})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, goPost.ID, byUser[0].ID)

	noUser, err := f.svc.SearchPosts(ctx, SearchQuery{Query: "zed", Field: "user"})
	require.NoError(t, err)
	assert.Empty(t, noUser)

	unknownField, err := f.svc.SearchPosts(ctx, SearchQuery{Query: "cook", Field: "nonsense"})
	require.NoError(t, err)
	assert.Len(t, unknownField, 1)

	everything, err := f.svc.SearchPosts(ctx, SearchQuery{})
	require.NoError(t, err)
	assert.Len(t, everything, 3)
}

func TestSearchPosts_Following(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.post(t, f.u1, "mine")
	bobs := f.post(t, f.u2, "bobs")
	carols := f.post(t, f.u3, "carols")

	_, err := f.svc.SearchPosts(ctx, SearchQuery{Following: FollowingOnly})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	none, err := f.svc.SearchPosts(ctx, SearchQuery{Following: FollowingOnly, CallerID: f.u1.ID})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	require.NoError(t, f.store.Follow(ctx, f.u1.ID, f.u2.ID))

	followed, err := f.svc.SearchPosts(ctx, SearchQuery{Following: FollowingOnly, CallerID: f.u1.ID})
	require.NoError(t, err)
	require.Len(t, followed, 1)
	assert.Equal(t, bobs.ID, followed[0].ID)

	intersect, err := f.svc.SearchPosts(ctx, SearchQuery{Query: "carol", Field: "user", Following: FollowingOnly, CallerID: f.u1.ID})
	require.NoError(t, err)
	assert.Empty(t, intersect)

	discover, err := f.svc.SearchPosts(ctx, SearchQuery{Following: FollowingExclude, CallerID: f.u1.ID})
	require.NoError(t, err)
	require.Len(t, discover, 1)
	assert.Equal(t, carols.ID, discover[0].ID)
}

func TestPersonalizedFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	goPost := f.post(t, f.u1, "go basics", "go")
	goMore := f.post(t, f.u2, "go advanced", "go", "perf")
	_ = f.post(t, f.u2, "cooking", "food")

	fallback, err := f.svc.PersonalizedFeed(ctx, f.u3.ID)
	require.NoError(t, err)
	assert.Len(t, fallback, 3)

	_, err = f.svc.ToggleLike(ctx, goPost.ID, f.u3.ID, Like)
	require.NoError(t, err)

	feed, err := f.svc.PersonalizedFeed(ctx, f.u3.ID)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, goMore.ID, feed[0].ID)
	assert.Equal(t, goPost.ID, feed[1].ID)
}
