package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/UkralStul/blogsphere/internal/domain"
	"github.com/UkralStul/blogsphere/internal/storage"
)

// Store implements storage.Storage on top of gorm.
type Store struct {
	db *gorm.DB
}

// New connects to PostgreSQL and migrates the schema.
func New(dsn string, logLevel logger.LogLevel) (*Store, error) {
	return Open(postgres.Open(dsn), logLevel)
}

// NewSQLite opens (or creates) a SQLite database file. Used for local runs
// and tests.
func NewSQLite(path string, logLevel logger.LogLevel) (*Store, error) {
	return Open(sqlite.Open(path), logLevel)
}

// Open builds a store on any gorm dialector.
func Open(dialector gorm.Dialector, logLevel logger.LogLevel) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logLevel),
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	row := postRow{
		ID:         uuid.NewString(),
		Title:      post.Title,
		Content:    post.Content,
		CoverImage: post.CoverImage,
		AuthorID:   post.AuthorID,
		CreatedAt:  post.CreatedAt,
		UpdatedAt:  post.UpdatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
			return err
		}
		if tags := tagRows(row.ID, post.Tags); len(tags) > 0 {
			return tx.Create(&tags).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetPostByID(ctx, row.ID)
}

// preloaded loads the whole aggregate in stable order.
func preloaded(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Comments.Replies", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Likes", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") })
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	var row postRow
	if err := preloaded(s.db.WithContext(ctx)).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, postNotFound(id)
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *Store) GetPostsByIDs(ctx context.Context, ids []string) ([]*domain.Post, error) {
	if len(ids) == 0 {
		return []*domain.Post{}, nil
	}
	var rows []postRow
	if err := preloaded(s.db.WithContext(ctx)).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Post, len(rows))
	for i := range rows {
		byID[rows[i].ID] = rows[i].toDomain()
	}
	out := make([]*domain.Post, 0, len(rows))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) FindPosts(ctx context.Context, f storage.PostFilter) ([]*domain.Post, error) {
	if f.AuthorIDs != nil && len(f.AuthorIDs) == 0 {
		return []*domain.Post{}, nil
	}

	query := s.db.WithContext(ctx).Model(&postRow{})
	if f.AuthorIDs != nil {
		query = query.Where("author_id IN ?", f.AuthorIDs)
	}
	if len(f.ExcludeAuthorIDs) > 0 {
		query = query.Where("author_id NOT IN ?", f.ExcludeAuthorIDs)
	}
	if len(f.AnyTag) > 0 {
		query = query.Where("EXISTS (SELECT 1 FROM post_tags t WHERE t.post_id = posts.id AND t.tag IN ?)", f.AnyTag)
	}
	if f.LikedBy != "" {
		query = query.Where("EXISTS (SELECT 1 FROM post_likes l WHERE l.post_id = posts.id AND l.user_id = ?)", f.LikedBy)
	}
	if f.CommentedBy != "" {
		query = query.Where("EXISTS (SELECT 1 FROM comments c WHERE c.post_id = posts.id AND c.user_id = ?)", f.CommentedBy)
	}
	if f.Query != "" {
		pattern := likePattern(f.Query)
		switch f.Field {
		case storage.FieldBody:
			query = query.Where(`LOWER(content) LIKE ? ESCAPE '\'`, pattern)
		case storage.FieldTags:
			query = query.Where(`EXISTS (SELECT 1 FROM post_tags t WHERE t.post_id = posts.id AND LOWER(t.tag) LIKE ? ESCAPE '\')`, pattern)
		default:
			query = query.Where(`LOWER(title) LIKE ? ESCAPE '\'`, pattern)
		}
	}

	var rows []postRow
	if err := preloaded(query).Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Post, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// likePattern turns a literal query into a lower-cased LIKE pattern.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}

func (s *Store) UpdatePost(ctx context.Context, id string, upd domain.PostUpdate) (*domain.Post, error) {
	if upd.UpdatedAt.IsZero() {
		upd.UpdatedAt = time.Now().UTC()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&postRow{}).Where("id = ?", id).Updates(map[string]any{
			"title":       upd.Title,
			"content":     upd.Content,
			"cover_image": upd.CoverImage,
			"updated_at":  upd.UpdatedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return postNotFound(id)
		}
		if err := tx.Where("post_id = ?", id).Delete(&tagRow{}).Error; err != nil {
			return err
		}
		if tags := tagRows(id, upd.Tags); len(tags) > 0 {
			return tx.Create(&tags).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetPostByID(ctx, id)
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&postRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return postNotFound(id)
		}
		for _, model := range []any{&replyRow{}, &commentRow{}, &tagRow{}, &likeRow{}, &bookmarkRow{}} {
			if err := tx.Where("post_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// === Like Methods ===

func (s *Store) AddLike(ctx context.Context, postID, userID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePost(tx, postID); err != nil {
			return err
		}
		var liked int64
		if err := tx.Model(&likeRow{}).Where("post_id = ? AND user_id = ?", postID, userID).Count(&liked).Error; err != nil {
			return err
		}
		if liked > 0 {
			return fmt.Errorf("%w: already liked", domain.ErrConflict)
		}
		err := tx.Create(&likeRow{PostID: postID, UserID: userID, CreatedAt: time.Now().UTC()}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: already liked", domain.ErrConflict)
		}
		if err != nil {
			return err
		}
		return tx.Model(&likeRow{}).Where("post_id = ?", postID).Count(&count).Error
	})
	return int(count), err
}

func (s *Store) RemoveLike(ctx context.Context, postID, userID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePost(tx, postID); err != nil {
			return err
		}
		if err := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&likeRow{}).Error; err != nil {
			return err
		}
		return tx.Model(&likeRow{}).Where("post_id = ?", postID).Count(&count).Error
	})
	return int(count), err
}

func requirePost(tx *gorm.DB, postID string) error {
	var n int64
	if err := tx.Model(&postRow{}).Where("id = ?", postID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return postNotFound(postID)
	}
	return nil
}

// lockPost takes a row lock on the post so appends to its comment and reply
// sequences are serialized. SQLite ignores the locking clause and serializes
// writers on its own.
func lockPost(tx *gorm.DB, postID string) error {
	var row postRow
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&row, "id = ?", postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return postNotFound(postID)
	}
	return err
}

// nextPosition returns the position after the last row matching query.
// Callers hold the post lock.
func nextPosition(tx *gorm.DB, model any, query string, args ...any) (int64, error) {
	var last int64
	err := tx.Model(model).Where(query, args...).Select("COALESCE(MAX(position), 0)").Scan(&last).Error
	return last + 1, err
}

func postNotFound(id string) error {
	return fmt.Errorf("%w: blog %s", domain.ErrNotFound, id)
}

func commentNotFound(id string) error {
	return fmt.Errorf("%w: comment %s", domain.ErrNotFound, id)
}

func userNotFound(id string) error {
	return fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
}
