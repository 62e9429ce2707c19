package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/UkralStul/blogsphere/internal/domain"
	"github.com/UkralStul/blogsphere/internal/storage"
)

// Store implements storage.Storage in memory. Every method runs inside one
// critical section, so nested mutations and follow pairs are atomic.
type Store struct {
	mu sync.RWMutex

	posts     map[string]*domain.Post
	postOrder []string // insertion order, breaks CreatedAt ties

	users     map[string]*domain.User
	following map[string][]string // map[userID][]followeeID
	followers map[string][]string // map[userID][]followerID
	bookmarks map[string][]string // map[userID][]postID
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		posts:     make(map[string]*domain.Post),
		users:     make(map[string]*domain.User),
		following: make(map[string][]string),
		followers: make(map[string][]string),
		bookmarks: make(map[string][]string),
	}
}

func (s *Store) Close(context.Context) error { return nil }

// === Post Methods ===

func (s *Store) CreatePost(_ context.Context, post *domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := clonePost(post)
	p.ID = uuid.NewString()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	p.Comments = []*domain.Comment{}
	p.Likes = []string{}

	s.posts[p.ID] = p
	s.postOrder = append(s.postOrder, p.ID)
	return clonePost(p), nil
}

func (s *Store) GetPostByID(_ context.Context, id string) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, postNotFound(id)
	}
	return clonePost(post), nil
}

func (s *Store) GetPostsByIDs(_ context.Context, ids []string) ([]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.posts[id]; ok {
			out = append(out, clonePost(p))
		}
	}
	return out, nil
}

func (s *Store) FindPosts(_ context.Context, f storage.PostFilter) ([]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f.AuthorIDs != nil && len(f.AuthorIDs) == 0 {
		return []*domain.Post{}, nil
	}

	out := make([]*domain.Post, 0)
	for i := len(s.postOrder) - 1; i >= 0; i-- {
		p := s.posts[s.postOrder[i]]
		if matches(p, f) {
			out = append(out, clonePost(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func matches(p *domain.Post, f storage.PostFilter) bool {
	if f.AuthorIDs != nil && !slices.Contains(f.AuthorIDs, p.AuthorID) {
		return false
	}
	if slices.Contains(f.ExcludeAuthorIDs, p.AuthorID) {
		return false
	}
	if len(f.AnyTag) > 0 && !lo.Some(p.Tags, f.AnyTag) {
		return false
	}
	if f.LikedBy != "" && !p.LikedBy(f.LikedBy) {
		return false
	}
	if f.CommentedBy != "" && !lo.ContainsBy(p.Comments, func(c *domain.Comment) bool { return c.UserID == f.CommentedBy }) {
		return false
	}
	if f.Query == "" {
		return true
	}
	switch f.Field {
	case storage.FieldBody:
		return containsFold(p.Content, f.Query)
	case storage.FieldTags:
		return lo.ContainsBy(p.Tags, func(t string) bool { return containsFold(t, f.Query) })
	default:
		return containsFold(p.Title, f.Query)
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func (s *Store) UpdatePost(_ context.Context, id string, upd domain.PostUpdate) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, postNotFound(id)
	}
	post.Title = upd.Title
	post.Content = upd.Content
	post.CoverImage = upd.CoverImage
	post.Tags = slices.Clone(upd.Tags)
	post.UpdatedAt = upd.UpdatedAt
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = time.Now().UTC()
	}
	return clonePost(post), nil
}

func (s *Store) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return postNotFound(id)
	}
	delete(s.posts, id)
	s.postOrder = lo.Without(s.postOrder, id)
	for userID, ids := range s.bookmarks {
		s.bookmarks[userID] = lo.Without(ids, id)
	}
	return nil
}

// === Comment Methods ===

func (s *Store) AddComment(_ context.Context, postID string, comment *domain.Comment) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return nil, postNotFound(postID)
	}
	c := cloneComment(comment)
	c.ID = uuid.NewString()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.Replies = []*domain.Reply{}
	post.Comments = append(post.Comments, c)
	return cloneComment(c), nil
}

func (s *Store) UpdateCommentText(_ context.Context, postID, commentID, text string) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.comment(postID, commentID)
	if err != nil {
		return nil, err
	}
	c.Text = text
	return cloneComment(c), nil
}

func (s *Store) DeleteComment(_ context.Context, postID, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return postNotFound(postID)
	}
	idx := slices.IndexFunc(post.Comments, func(c *domain.Comment) bool { return c.ID == commentID })
	if idx < 0 {
		return commentNotFound(commentID)
	}
	post.Comments = slices.Delete(post.Comments, idx, idx+1)
	return nil
}

func (s *Store) AddReply(_ context.Context, postID, commentID string, reply *domain.Reply) (*domain.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.comment(postID, commentID)
	if err != nil {
		return nil, err
	}
	r := *reply
	r.ID = uuid.NewString()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.User = nil
	c.Replies = append(c.Replies, &r)
	out := r
	return &out, nil
}

// comment must be called with s.mu held.
func (s *Store) comment(postID, commentID string) (*domain.Comment, error) {
	post, ok := s.posts[postID]
	if !ok {
		return nil, postNotFound(postID)
	}
	c := post.Comment(commentID)
	if c == nil {
		return nil, commentNotFound(commentID)
	}
	return c, nil
}

// === Like Methods ===

func (s *Store) AddLike(_ context.Context, postID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return 0, postNotFound(postID)
	}
	if post.LikedBy(userID) {
		return len(post.Likes), fmt.Errorf("%w: already liked", domain.ErrConflict)
	}
	post.Likes = append(post.Likes, userID)
	return len(post.Likes), nil
}

func (s *Store) RemoveLike(_ context.Context, postID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return 0, postNotFound(postID)
	}
	post.Likes = lo.Without(post.Likes, userID)
	return len(post.Likes), nil
}

func postNotFound(id string) error {
	return fmt.Errorf("%w: blog %s", domain.ErrNotFound, id)
}

func commentNotFound(id string) error {
	return fmt.Errorf("%w: comment %s", domain.ErrNotFound, id)
}

func clonePost(p *domain.Post) *domain.Post {
	out := *p
	out.Author = nil
	out.Tags = slices.Clone(p.Tags)
	out.Likes = slices.Clone(p.Likes)
	out.Comments = make([]*domain.Comment, len(p.Comments))
	for i, c := range p.Comments {
		out.Comments[i] = cloneComment(c)
	}
	return &out
}

func cloneComment(c *domain.Comment) *domain.Comment {
	out := *c
	out.User = nil
	out.Replies = make([]*domain.Reply, len(c.Replies))
	for i, r := range c.Replies {
		rc := *r
		rc.User = nil
		out.Replies[i] = &rc
	}
	return &out
}
