package blog

import (
	"context"
	"fmt"

	"github.com/UkralStul/blogsphere/internal/dataloader"
	"github.com/UkralStul/blogsphere/internal/domain"
	"github.com/UkralStul/blogsphere/internal/realtime"
)

// === Comment Methods ===

func (s *Service) AddComment(ctx context.Context, postID, userID, text string) (*domain.Comment, error) {
	text, err := requireText("text", text)
	if err != nil {
		return nil, err
	}
	comment, err := s.store.AddComment(ctx, postID, &domain.Comment{
		UserID:    userID,
		Text:      text,
		CreatedAt: s.timestamp(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.resolveComments(ctx, comment); err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.Event{Type: realtime.CommentCreated, PostID: postID, CommentID: comment.ID, Comment: comment})
	return comment, nil
}

func (s *Service) ListComments(ctx context.Context, postID string) ([]*domain.Comment, error) {
	post, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.resolveComments(ctx, post.Comments...); err != nil {
		return nil, err
	}
	return post.Comments, nil
}

// EditComment is allowed only to the commenter.
func (s *Service) EditComment(ctx context.Context, postID, commentID, callerID, text string) (*domain.Comment, error) {
	post, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	c := post.Comment(commentID)
	if c == nil {
		return nil, fmt.Errorf("%w: comment %s", domain.ErrNotFound, commentID)
	}
	if c.UserID != callerID {
		return nil, fmt.Errorf("%w: only the commenter can edit comment %s", domain.ErrForbidden, commentID)
	}
	text, err = requireText("text", text)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateCommentText(ctx, postID, commentID, text)
	if err != nil {
		return nil, err
	}
	if err := s.resolveComments(ctx, updated); err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.Event{Type: realtime.CommentUpdated, PostID: postID, CommentID: commentID, Comment: updated})
	return updated, nil
}

// DeleteComment is allowed to the commenter and to the post's author. The
// comment's replies go with it.
func (s *Service) DeleteComment(ctx context.Context, postID, commentID, callerID string) error {
	post, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		return err
	}
	c := post.Comment(commentID)
	if c == nil {
		return fmt.Errorf("%w: comment %s", domain.ErrNotFound, commentID)
	}
	if c.UserID != callerID && post.AuthorID != callerID {
		return fmt.Errorf("%w: cannot delete comment %s", domain.ErrForbidden, commentID)
	}
	if err := s.store.DeleteComment(ctx, postID, commentID); err != nil {
		return err
	}
	s.publish(ctx, realtime.Event{Type: realtime.CommentDeleted, PostID: postID, CommentID: commentID})
	return nil
}

// AddReply is open to any authenticated user. Replies are immutable once
// written.
func (s *Service) AddReply(ctx context.Context, postID, commentID, userID, text string) (*domain.Reply, error) {
	text, err := requireText("text", text)
	if err != nil {
		return nil, err
	}
	reply, err := s.store.AddReply(ctx, postID, commentID, &domain.Reply{
		UserID:    userID,
		Text:      text,
		CreatedAt: s.timestamp(),
	})
	if err != nil {
		return nil, err
	}
	users, err := dataloader.Users(ctx, s.store, []string{reply.UserID})
	if err != nil {
		return nil, err
	}
	reply.User = ref(users, reply.UserID)
	s.publish(ctx, realtime.Event{Type: realtime.ReplyCreated, PostID: postID, CommentID: commentID, Reply: reply})
	return reply, nil
}
