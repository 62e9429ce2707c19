package domain

import "time"

// DeletedUsername is shown in place of an identity that no longer resolves.
const DeletedUsername = "deleted user"

// UserRef is the display-safe projection of an identity referenced by a post,
// comment or reply. A ref whose identity is gone is a tombstone.
type UserRef struct {
	ID       string `json:"_id,omitempty"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Deleted  bool   `json:"deleted,omitempty"`
}

// Tombstone returns the placeholder ref for a deleted identity.
func Tombstone() *UserRef {
	return &UserRef{Username: DeletedUsername, Deleted: true}
}

// Post is a blog post together with its embedded comments and likes.
type Post struct {
	ID         string     `json:"_id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	CoverImage string     `json:"coverImage,omitempty"`
	Tags       []string   `json:"tags"`
	AuthorID   string     `json:"authorId"`
	Author     *UserRef   `json:"author,omitempty"`
	Comments   []*Comment `json:"comments"`
	Likes      []string   `json:"likes"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// LikedBy reports whether userID is in the post's liker set.
func (p *Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// Comment finds an embedded comment by id.
func (p *Post) Comment(id string) *Comment {
	for _, c := range p.Comments {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// PostUpdate carries the replaceable fields of a post.
type PostUpdate struct {
	Title      string
	Content    string
	CoverImage string
	Tags       []string
	UpdatedAt  time.Time
}

// Comment is embedded in its post and has no identity outside it.
type Comment struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"userId"`
	User      *UserRef  `json:"user,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Replies   []*Reply  `json:"replies"`
}

// Reply is embedded in its comment.
type Reply struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"userId"`
	User      *UserRef  `json:"user,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is the credential record. Relationship sets are owned by the social
// layer and are only filled by the stores that keep them on the record.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Avatar       string    `json:"avatar,omitempty"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Ref projects the user for display.
func (u *User) Ref() *UserRef {
	return &UserRef{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

// Profile is the public view of a user.
type Profile struct {
	ID             string    `json:"_id"`
	Username       string    `json:"username"`
	Avatar         string    `json:"avatar,omitempty"`
	FollowersCount int       `json:"followersCount"`
	FollowingCount int       `json:"followingCount"`
	IsFollowing    bool      `json:"isFollowing"`
	CreatedAt      time.Time `json:"createdAt"`
}
