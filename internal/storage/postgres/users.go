package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/UkralStul/blogsphere/internal/domain"
)

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	row := userRow{
		ID:           uuid.NewString(),
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Avatar:       user.Avatar,
		Role:         user.Role,
		CreatedAt:    user.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, "", row.Username, row.Email); err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("%w: user already exists", domain.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func checkUnique(tx *gorm.DB, selfID, username, email string) error {
	var n int64
	if email != "" {
		q := tx.Model(&userRow{}).Where("LOWER(email) = LOWER(?)", email)
		if selfID != "" {
			q = q.Where("id <> ?", selfID)
		}
		if err := q.Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
	}
	q := tx.Model(&userRow{}).Where("LOWER(username) = LOWER(?)", username)
	if selfID != "" {
		q = q.Where("id <> ?", selfID)
	}
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: username already taken", domain.ErrConflict)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, userNotFound(id)
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "LOWER(email) = LOWER(?)", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user with email %s", domain.ErrNotFound, email)
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	out := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []userRow
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ID] = rows[i].toDomain()
	}
	return out, nil
}

func (s *Store) FindUserIDsByUsername(ctx context.Context, query string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&userRow{}).
		Where(`LOWER(username) LIKE ? ESCAPE '\'`, likePattern(query)).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (s *Store) UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, user.ID, user.Username, ""); err != nil {
			return err
		}
		res := tx.Model(&userRow{}).Where("id = ?", user.ID).Updates(map[string]any{
			"username":      user.Username,
			"password_hash": user.PasswordHash,
			"avatar":        user.Avatar,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return userNotFound(user.ID)
		}
		return tx.First(&row, "id = ?", user.ID).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("%w: username already taken", domain.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&userRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return userNotFound(id)
		}
		if err := tx.Where("follower_id = ? OR followee_id = ?", id, id).Delete(&followRow{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", id).Delete(&bookmarkRow{}).Error
	})
}

// === Relationship Methods ===

func (s *Store) Follow(ctx context.Context, followerID, followeeID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users int64
		if err := tx.Model(&userRow{}).Where("id IN ?", []string{followerID, followeeID}).Count(&users).Error; err != nil {
			return err
		}
		if users < 2 {
			return userNotFound(followeeID)
		}
		var edges int64
		if err := tx.Model(&followRow{}).
			Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
			Count(&edges).Error; err != nil {
			return err
		}
		if edges > 0 {
			return fmt.Errorf("%w: already following", domain.ErrConflict)
		}
		return tx.Create(&followRow{FollowerID: followerID, FolloweeID: followeeID, CreatedAt: time.Now().UTC()}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: already following", domain.ErrConflict)
	}
	return err
}

func (s *Store) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return s.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&followRow{}).Error
}

func (s *Store) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).Model(&followRow{}).
		Where("follower_id = ?", userID).
		Order("created_at ASC").
		Pluck("followee_id", &ids).Error
	return ids, err
}

func (s *Store) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).Model(&followRow{}).
		Where("followee_id = ?", userID).
		Order("created_at ASC").
		Pluck("follower_id", &ids).Error
	return ids, err
}

func (s *Store) AddBookmark(ctx context.Context, userID, postID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users int64
		if err := tx.Model(&userRow{}).Where("id = ?", userID).Count(&users).Error; err != nil {
			return err
		}
		if users == 0 {
			return userNotFound(userID)
		}
		if err := requirePost(tx, postID); err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&bookmarkRow{UserID: userID, PostID: postID, CreatedAt: time.Now().UTC()}).Error
	})
}

func (s *Store) RemoveBookmark(ctx context.Context, userID, postID string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&bookmarkRow{}).Error
}

func (s *Store) BookmarkIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).Model(&bookmarkRow{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("post_id", &ids).Error
	return ids, err
}
