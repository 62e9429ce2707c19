package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/UkralStul/blogsphere/internal/domain"
)

// === Comment Methods ===

func (s *Store) AddComment(ctx context.Context, postID string, comment *domain.Comment) (*domain.Comment, error) {
	row := commentRow{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    comment.UserID,
		Text:      comment.Text,
		CreatedAt: comment.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, postID); err != nil {
			return err
		}
		pos, err := nextPosition(tx, &commentRow{}, "post_id = ?", postID)
		if err != nil {
			return err
		}
		row.Position = pos
		return tx.Omit("Replies").Create(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *Store) UpdateCommentText(ctx context.Context, postID, commentID, text string) (*domain.Comment, error) {
	var row commentRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&commentRow{}).
			Where("id = ? AND post_id = ?", commentID, postID).
			Update("text", text)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := requirePost(tx, postID); err != nil {
				return err
			}
			return commentNotFound(commentID)
		}
		return tx.Preload("Replies", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
			First(&row, "id = ?", commentID).Error
	})
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *Store) DeleteComment(ctx context.Context, postID, commentID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND post_id = ?", commentID, postID).Delete(&commentRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := requirePost(tx, postID); err != nil {
				return err
			}
			return commentNotFound(commentID)
		}
		return tx.Where("comment_id = ?", commentID).Delete(&replyRow{}).Error
	})
}

func (s *Store) AddReply(ctx context.Context, postID, commentID string, reply *domain.Reply) (*domain.Reply, error) {
	row := replyRow{
		ID:        uuid.NewString(),
		CommentID: commentID,
		PostID:    postID,
		UserID:    reply.UserID,
		Text:      reply.Text,
		CreatedAt: reply.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, postID); err != nil {
			return err
		}
		var parent commentRow
		if err := tx.Select("id").First(&parent, "id = ? AND post_id = ?", commentID, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return commentNotFound(commentID)
			}
			return err
		}
		pos, err := nextPosition(tx, &replyRow{}, "comment_id = ?", commentID)
		if err != nil {
			return err
		}
		row.Position = pos
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}
