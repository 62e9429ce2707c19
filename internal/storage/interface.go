package storage

import (
	"context"

	"github.com/UkralStul/blogsphere/internal/domain"
)

// SearchField selects the post attribute a text query is matched against.
type SearchField string

const (
	FieldTitle SearchField = "title"
	FieldBody  SearchField = "body"
	FieldTags  SearchField = "tags"
)

// PostFilter composes a post query. Zero-valued fields do not filter.
// A non-nil, empty AuthorIDs matches nothing.
type PostFilter struct {
	// Query is matched as a case-insensitive literal substring against Field.
	Query string
	Field SearchField

	AuthorIDs        []string
	ExcludeAuthorIDs []string

	// AnyTag matches posts carrying at least one of the tags exactly.
	AnyTag []string

	LikedBy     string
	CommentedBy string
}

// PostStorage holds post aggregates. Embedded mutations are applied as
// targeted operations, never by rewriting the whole aggregate.
type PostStorage interface {
	CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	GetPostByID(ctx context.Context, id string) (*domain.Post, error)
	GetPostsByIDs(ctx context.Context, ids []string) ([]*domain.Post, error)
	// FindPosts returns matching posts newest-first.
	FindPosts(ctx context.Context, filter PostFilter) ([]*domain.Post, error)
	UpdatePost(ctx context.Context, id string, upd domain.PostUpdate) (*domain.Post, error)
	// DeletePost removes the aggregate and strips it from every bookmark set.
	DeletePost(ctx context.Context, id string) error

	AddComment(ctx context.Context, postID string, comment *domain.Comment) (*domain.Comment, error)
	UpdateCommentText(ctx context.Context, postID, commentID, text string) (*domain.Comment, error)
	DeleteComment(ctx context.Context, postID, commentID string) error
	AddReply(ctx context.Context, postID, commentID string, reply *domain.Reply) (*domain.Reply, error)

	// AddLike fails with domain.ErrConflict when userID already likes the post.
	AddLike(ctx context.Context, postID, userID string) (int, error)
	// RemoveLike is a no-op when userID does not like the post.
	RemoveLike(ctx context.Context, postID, userID string) (int, error)
}

// UserStorage holds credential records.
type UserStorage interface {
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetUsersByIDs returns the users that exist, keyed by id.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
	FindUserIDsByUsername(ctx context.Context, query string) ([]string, error)
	UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	// DeleteUser removes the record, its follow edges and its bookmarks.
	DeleteUser(ctx context.Context, id string) error
}

// RelationStorage holds follow edges and bookmark sets.
type RelationStorage interface {
	// Follow writes both sides of the edge atomically. Fails with
	// domain.ErrConflict when the edge exists.
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	FollowingIDs(ctx context.Context, userID string) ([]string, error)
	FollowerIDs(ctx context.Context, userID string) ([]string, error)

	AddBookmark(ctx context.Context, userID, postID string) error
	RemoveBookmark(ctx context.Context, userID, postID string) error
	BookmarkIDs(ctx context.Context, userID string) ([]string, error)
}

// Storage is the contract every backend implements.
type Storage interface {
	PostStorage
	UserStorage
	RelationStorage

	Close(ctx context.Context) error
}
