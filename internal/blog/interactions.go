package blog

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/UkralStul/blogsphere/internal/domain"
	"github.com/UkralStul/blogsphere/internal/storage"
)

// === Likes ===

type LikeDirection int

const (
	Like LikeDirection = iota
	Unlike
)

type LikeState struct {
	Likes int  `json:"likes"`
	Liked bool `json:"liked"`
}

// ToggleLike adds or removes callerID from the liker set and returns the
// resulting count. A second like is a conflict; unliking a post the caller
// never liked changes nothing.
func (s *Service) ToggleLike(ctx context.Context, postID, callerID string, dir LikeDirection) (int, error) {
	switch dir {
	case Like:
		return s.store.AddLike(ctx, postID, callerID)
	case Unlike:
		return s.store.RemoveLike(ctx, postID, callerID)
	default:
		return 0, fmt.Errorf("%w: unknown like direction %d", domain.ErrValidation, dir)
	}
}

// GetLikeState reports the count and, for a signed-in caller, whether they
// are a liker. callerID may be empty.
func (s *Service) GetLikeState(ctx context.Context, postID, callerID string) (*LikeState, error) {
	post, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	return &LikeState{
		Likes: len(post.Likes),
		Liked: callerID != "" && post.LikedBy(callerID),
	}, nil
}

// === Search ===

// Following narrows a search by the caller's follow graph.
type Following string

const (
	FollowingAny     Following = ""
	FollowingOnly    Following = "true"
	FollowingExclude Following = "false"
)

// SearchQuery is a composed post search. Field is one of title, body, tags
// or user; anything else searches titles.
type SearchQuery struct {
	Query     string
	Field     string
	Following Following
	CallerID  string
}

// SearchPosts matches Query as a literal, case-insensitive substring.
// Following requires a caller; FollowingOnly over an empty follow set yields
// no posts.
func (s *Service) SearchPosts(ctx context.Context, q SearchQuery) ([]*domain.Post, error) {
	if q.Following != FollowingAny && q.CallerID == "" {
		return nil, fmt.Errorf("%w: following filter requires sign-in", domain.ErrUnauthenticated)
	}

	var f storage.PostFilter
	text := strings.TrimSpace(q.Query)
	if text != "" {
		switch strings.ToLower(q.Field) {
		case "user":
			ids, err := s.store.FindUserIDsByUsername(ctx, text)
			if err != nil {
				return nil, err
			}
			if len(ids) == 0 {
				return []*domain.Post{}, nil
			}
			f.AuthorIDs = ids
		case "body":
			f.Query, f.Field = text, storage.FieldBody
		case "tags":
			f.Query, f.Field = text, storage.FieldTags
		default:
			f.Query, f.Field = text, storage.FieldTitle
		}
	}

	switch q.Following {
	case FollowingOnly:
		followed, err := s.store.FollowingIDs(ctx, q.CallerID)
		if err != nil {
			return nil, err
		}
		if f.AuthorIDs != nil {
			followed = lo.Intersect(f.AuthorIDs, followed)
		}
		if len(followed) == 0 {
			return []*domain.Post{}, nil
		}
		f.AuthorIDs = followed
	case FollowingExclude:
		followed, err := s.store.FollowingIDs(ctx, q.CallerID)
		if err != nil {
			return nil, err
		}
		f.ExcludeAuthorIDs = append(followed, q.CallerID)
	}

	return s.find(ctx, f)
}

// === Feed ===

// PersonalizedFeed returns posts sharing a tag with anything the caller liked
// or commented on, newest first. Without such history it is the full list.
func (s *Service) PersonalizedFeed(ctx context.Context, callerID string) ([]*domain.Post, error) {
	liked, err := s.store.FindPosts(ctx, storage.PostFilter{LikedBy: callerID})
	if err != nil {
		return nil, err
	}
	commented, err := s.store.FindPosts(ctx, storage.PostFilter{CommentedBy: callerID})
	if err != nil {
		return nil, err
	}

	var tags []string
	for _, p := range append(liked, commented...) {
		tags = append(tags, p.Tags...)
	}
	tags = lo.Uniq(tags)

	if len(tags) > 0 {
		posts, err := s.find(ctx, storage.PostFilter{AnyTag: tags})
		if err != nil {
			return nil, err
		}
		if len(posts) > 0 {
			return posts, nil
		}
	}
	return s.ListPosts(ctx)
}
