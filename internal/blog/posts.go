package blog

import (
	"context"
	"fmt"
	"strings"

	"github.com/UkralStul/blogsphere/internal/domain"
	"github.com/UkralStul/blogsphere/internal/storage"
)

// PostInput carries the author-editable fields of a post.
type PostInput struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	CoverImage string   `json:"coverImage"`
	Tags       []string `json:"tags"`
}

func (in PostInput) validate() (PostInput, error) {
	var err error
	if in.Title, err = requireText("title", in.Title); err != nil {
		return in, err
	}
	if in.Content, err = requireText("content", in.Content); err != nil {
		return in, err
	}
	in.CoverImage = strings.TrimSpace(in.CoverImage)
	in.Tags = normalizeTags(in.Tags)
	return in, nil
}

func (s *Service) CreatePost(ctx context.Context, authorID string, in PostInput) (*domain.Post, error) {
	in, err := in.validate()
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetUserByID(ctx, authorID); err != nil {
		return nil, err
	}

	now := s.timestamp()
	post, err := s.store.CreatePost(ctx, &domain.Post{
		Title:      in.Title,
		Content:    in.Content,
		CoverImage: in.CoverImage,
		Tags:       in.Tags,
		AuthorID:   authorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	if err := s.Resolve(ctx, post); err != nil {
		return nil, err
	}
	s.log.Debug("post created", "post_id", post.ID, "author_id", authorID)
	return post, nil
}

func (s *Service) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	post, err := s.store.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Resolve(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// ListPosts runs a fresh query on every call, newest first.
func (s *Service) ListPosts(ctx context.Context) ([]*domain.Post, error) {
	return s.find(ctx, storage.PostFilter{})
}

func (s *Service) ListPostsByAuthor(ctx context.Context, authorID string) ([]*domain.Post, error) {
	return s.find(ctx, storage.PostFilter{AuthorIDs: []string{authorID}})
}

func (s *Service) find(ctx context.Context, f storage.PostFilter) ([]*domain.Post, error) {
	posts, err := s.store.FindPosts(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := s.Resolve(ctx, posts...); err != nil {
		return nil, err
	}
	return posts, nil
}

// authored loads a post and checks that callerID wrote it.
func (s *Service) authored(ctx context.Context, id, callerID string) (*domain.Post, error) {
	post, err := s.store.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != callerID {
		return nil, fmt.Errorf("%w: only the author can modify blog %s", domain.ErrForbidden, id)
	}
	return post, nil
}

// UpdatePost replaces the editable fields. CreatedAt never changes.
func (s *Service) UpdatePost(ctx context.Context, id, callerID string, in PostInput) (*domain.Post, error) {
	if _, err := s.authored(ctx, id, callerID); err != nil {
		return nil, err
	}
	in, err := in.validate()
	if err != nil {
		return nil, err
	}
	post, err := s.store.UpdatePost(ctx, id, domain.PostUpdate{
		Title:      in.Title,
		Content:    in.Content,
		CoverImage: in.CoverImage,
		Tags:       in.Tags,
		UpdatedAt:  s.timestamp(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Resolve(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes the aggregate. Bookmarks pointing at it are removed by
// the store in the same operation.
func (s *Service) DeletePost(ctx context.Context, id, callerID string) error {
	if _, err := s.authored(ctx, id, callerID); err != nil {
		return err
	}
	if err := s.store.DeletePost(ctx, id); err != nil {
		return err
	}
	s.log.Info("post deleted", "post_id", id)
	return nil
}
