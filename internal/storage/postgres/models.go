package postgres

import (
	"time"

	"github.com/samber/lo"

	"github.com/UkralStul/blogsphere/internal/domain"
)

// Relational layout of the aggregate: comments, replies, tags and likes are
// keyed rows, so every nested mutation is a single-row statement.

type userRow struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"`
	Username     string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	Avatar       string    `gorm:"type:text"`
	Role         string    `gorm:"type:varchar(32);not null;default:user"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

type postRow struct {
	ID         string       `gorm:"type:varchar(36);primaryKey"`
	Title      string       `gorm:"type:varchar(255);not null"`
	Content    string       `gorm:"type:text;not null"`
	CoverImage string       `gorm:"type:text"`
	AuthorID   string       `gorm:"type:varchar(36);not null;index"`
	CreatedAt  time.Time    `gorm:"not null;index"`
	UpdatedAt  time.Time    `gorm:"not null"`
	Tags       []tagRow     `gorm:"foreignKey:PostID"`
	Comments   []commentRow `gorm:"foreignKey:PostID"`
	Likes      []likeRow    `gorm:"foreignKey:PostID"`
}

func (postRow) TableName() string { return "posts" }

type tagRow struct {
	PostID   string `gorm:"type:varchar(36);primaryKey"`
	Position int    `gorm:"primaryKey"`
	Tag      string `gorm:"type:varchar(255);not null;index"`
}

func (tagRow) TableName() string { return "post_tags" }

type commentRow struct {
	ID        string     `gorm:"type:varchar(36);primaryKey"`
	PostID    string     `gorm:"type:varchar(36);not null;index"`
	UserID    string     `gorm:"type:varchar(36);not null;index"`
	Text      string     `gorm:"type:text;not null"`
	Position  int64      `gorm:"not null;default:0"`
	CreatedAt time.Time  `gorm:"not null"`
	Replies   []replyRow `gorm:"foreignKey:CommentID"`
}

func (commentRow) TableName() string { return "comments" }

type replyRow struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	CommentID string    `gorm:"type:varchar(36);not null;index"`
	PostID    string    `gorm:"type:varchar(36);not null;index"`
	UserID    string    `gorm:"type:varchar(36);not null"`
	Text      string    `gorm:"type:text;not null"`
	Position  int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
}

func (replyRow) TableName() string { return "replies" }

type likeRow struct {
	PostID    string    `gorm:"type:varchar(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(36);primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
}

func (likeRow) TableName() string { return "post_likes" }

// followRow is one edge; both the following and the followers side are read
// from it, so the pair can never diverge.
type followRow struct {
	FollowerID string    `gorm:"type:varchar(36);primaryKey"`
	FolloweeID string    `gorm:"type:varchar(36);primaryKey;index"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (followRow) TableName() string { return "follows" }

type bookmarkRow struct {
	UserID    string    `gorm:"type:varchar(36);primaryKey"`
	PostID    string    `gorm:"type:varchar(36);primaryKey;index"`
	CreatedAt time.Time `gorm:"not null"`
}

func (bookmarkRow) TableName() string { return "bookmarks" }

func allModels() []any {
	return []any{
		&userRow{}, &postRow{}, &tagRow{}, &commentRow{}, &replyRow{},
		&likeRow{}, &followRow{}, &bookmarkRow{},
	}
}

func (r *postRow) toDomain() *domain.Post {
	p := &domain.Post{
		ID:         r.ID,
		Title:      r.Title,
		Content:    r.Content,
		CoverImage: r.CoverImage,
		AuthorID:   r.AuthorID,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
		Tags:       make([]string, 0, len(r.Tags)),
		Comments:   make([]*domain.Comment, 0, len(r.Comments)),
		Likes:      lo.Map(r.Likes, func(l likeRow, _ int) string { return l.UserID }),
	}
	for _, t := range r.Tags {
		p.Tags = append(p.Tags, t.Tag)
	}
	for i := range r.Comments {
		p.Comments = append(p.Comments, r.Comments[i].toDomain())
	}
	return p
}

func (r *commentRow) toDomain() *domain.Comment {
	c := &domain.Comment{
		ID:        r.ID,
		UserID:    r.UserID,
		Text:      r.Text,
		CreatedAt: r.CreatedAt.UTC(),
		Replies:   make([]*domain.Reply, 0, len(r.Replies)),
	}
	for _, rr := range r.Replies {
		c.Replies = append(c.Replies, rr.toDomain())
	}
	return c
}

func (r replyRow) toDomain() *domain.Reply {
	return &domain.Reply{
		ID:        r.ID,
		UserID:    r.UserID,
		Text:      r.Text,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (r *userRow) toDomain() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Avatar:       r.Avatar,
		Role:         r.Role,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func tagRows(postID string, tags []string) []tagRow {
	return lo.Map(tags, func(t string, i int) tagRow {
		return tagRow{PostID: postID, Position: i, Tag: t}
	})
}
