// Package blog owns every read and write of post aggregates: posts, their
// embedded comments and replies, likes, search and the personalized feed.
package blog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/UkralStul/blogsphere/internal/dataloader"
	"github.com/UkralStul/blogsphere/internal/domain"
	"github.com/UkralStul/blogsphere/internal/logger"
	"github.com/UkralStul/blogsphere/internal/realtime"
	"github.com/UkralStul/blogsphere/internal/storage"
)

type Service struct {
	store  storage.Storage
	events realtime.Publisher
	log    *logger.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for server-set timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher sends comment thread changes to p.
func WithPublisher(p realtime.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func NewService(store storage.Storage, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   log.With("service", "BlogService"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp is millisecond precision UTC so every backend round-trips it.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Service) publish(ctx context.Context, e realtime.Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, e)
}

// Resolve fills the display refs of posts, their comments and replies. An id
// that no longer resolves renders as the tombstone.
func (s *Service) Resolve(ctx context.Context, posts ...*domain.Post) error {
	var ids []string
	for _, p := range posts {
		ids = append(ids, p.AuthorID)
		ids = append(ids, commentUserIDs(p.Comments)...)
	}
	users, err := dataloader.Users(ctx, s.store, ids)
	if err != nil {
		return fmt.Errorf("resolve users: %w", err)
	}
	for _, p := range posts {
		p.Author = ref(users, p.AuthorID)
		fillComments(users, p.Comments)
	}
	return nil
}

func (s *Service) resolveComments(ctx context.Context, comments ...*domain.Comment) error {
	users, err := dataloader.Users(ctx, s.store, commentUserIDs(comments))
	if err != nil {
		return fmt.Errorf("resolve users: %w", err)
	}
	fillComments(users, comments)
	return nil
}

func commentUserIDs(comments []*domain.Comment) []string {
	var ids []string
	for _, c := range comments {
		ids = append(ids, c.UserID)
		for _, r := range c.Replies {
			ids = append(ids, r.UserID)
		}
	}
	return ids
}

func fillComments(users map[string]*domain.User, comments []*domain.Comment) {
	for _, c := range comments {
		c.User = ref(users, c.UserID)
		for _, r := range c.Replies {
			r.User = ref(users, r.UserID)
		}
	}
}

func ref(users map[string]*domain.User, id string) *domain.UserRef {
	if u, ok := users[id]; ok {
		return u.Ref()
	}
	return domain.Tombstone()
}

// normalizeTags trims, drops blanks and collapses duplicates.
func normalizeTags(tags []string) []string {
	out := lo.Uniq(lo.Compact(lo.Map(tags, func(t string, _ int) string {
		return strings.TrimSpace(t)
	})))
	if out == nil {
		return []string{}
	}
	return out
}

func requireText(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", domain.ErrValidation, field)
	}
	return v, nil
}
