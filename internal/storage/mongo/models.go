package mongo

import (
	"strings"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/UkralStul/blogsphere/internal/domain"
)

// Documents mirror the original collections: one document per post with
// comments, replies and likes embedded; follow and bookmark sets live on the
// user document.

type replyDoc struct {
	ID        bson.ObjectID `bson:"_id"`
	User      bson.ObjectID `bson:"user"`
	Text      string        `bson:"text"`
	CreatedAt time.Time     `bson:"createdAt"`
}

type commentDoc struct {
	ID        bson.ObjectID `bson:"_id"`
	User      bson.ObjectID `bson:"user"`
	Text      string        `bson:"text"`
	CreatedAt time.Time     `bson:"createdAt"`
	Replies   []replyDoc    `bson:"replies"`
}

type postDoc struct {
	ID         bson.ObjectID   `bson:"_id"`
	Title      string          `bson:"title"`
	Content    string          `bson:"content"`
	CoverImage string          `bson:"coverImage,omitempty"`
	Tags       []string        `bson:"tags"`
	Author     bson.ObjectID   `bson:"author"`
	Comments   []commentDoc    `bson:"comments"`
	Likes      []bson.ObjectID `bson:"likes"`
	CreatedAt  time.Time       `bson:"createdAt"`
	UpdatedAt  time.Time       `bson:"updatedAt"`
}

type userDoc struct {
	ID          bson.ObjectID   `bson:"_id"`
	Username    string          `bson:"username"`
	UsernameKey string          `bson:"usernameKey"`
	Email       string          `bson:"email"`
	EmailKey    string          `bson:"emailKey"`
	Password    string          `bson:"password"`
	Avatar      string          `bson:"avatar,omitempty"`
	Role        string          `bson:"role"`
	Following   []bson.ObjectID `bson:"following"`
	Followers   []bson.ObjectID `bson:"followers"`
	Bookmarks   []bson.ObjectID `bson:"bookmarks"`
	CreatedAt   time.Time       `bson:"createdAt"`
}

func key(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// oid parses a hex id. Ids that are not ObjectIDs cannot exist in this store.
func oid(id string) (bson.ObjectID, bool) {
	v, err := bson.ObjectIDFromHex(id)
	return v, err == nil
}

func oids(ids []string) []bson.ObjectID {
	out := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		if v, ok := oid(id); ok {
			out = append(out, v)
		}
	}
	return out
}

func hexes(ids []bson.ObjectID) []string {
	return lo.Map(ids, func(id bson.ObjectID, _ int) string { return id.Hex() })
}

func (d *postDoc) toDomain() *domain.Post {
	p := &domain.Post{
		ID:         d.ID.Hex(),
		Title:      d.Title,
		Content:    d.Content,
		CoverImage: d.CoverImage,
		Tags:       append([]string{}, d.Tags...),
		AuthorID:   d.Author.Hex(),
		Likes:      hexes(d.Likes),
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
		Comments:   make([]*domain.Comment, 0, len(d.Comments)),
	}
	for i := range d.Comments {
		p.Comments = append(p.Comments, d.Comments[i].toDomain())
	}
	return p
}

func (d *commentDoc) toDomain() *domain.Comment {
	c := &domain.Comment{
		ID:        d.ID.Hex(),
		UserID:    d.User.Hex(),
		Text:      d.Text,
		CreatedAt: d.CreatedAt.UTC(),
		Replies:   make([]*domain.Reply, 0, len(d.Replies)),
	}
	for _, r := range d.Replies {
		c.Replies = append(c.Replies, r.toDomain())
	}
	return c
}

func (d replyDoc) toDomain() *domain.Reply {
	return &domain.Reply{
		ID:        d.ID.Hex(),
		UserID:    d.User.Hex(),
		Text:      d.Text,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

func (d *userDoc) toDomain() *domain.User {
	return &domain.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.Password,
		Avatar:       d.Avatar,
		Role:         d.Role,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}
