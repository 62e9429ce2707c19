package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/UkralStul/blogsphere/internal/domain"
)

// === Comment Methods ===

func (s *Store) AddComment(ctx context.Context, postID string, comment *domain.Comment) (*domain.Comment, error) {
	pid, ok := oid(postID)
	if !ok {
		return nil, postNotFound(postID)
	}
	uid, ok := oid(comment.UserID)
	if !ok {
		return nil, userNotFound(comment.UserID)
	}
	doc := commentDoc{
		ID:        bson.NewObjectID(),
		User:      uid,
		Text:      comment.Text,
		CreatedAt: comment.CreatedAt,
		Replies:   []replyDoc{},
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	res, err := s.posts.UpdateOne(ctx, bson.M{"_id": pid}, bson.M{"$push": bson.M{"comments": doc}})
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, postNotFound(postID)
	}
	return doc.toDomain(), nil
}

func (s *Store) UpdateCommentText(ctx context.Context, postID, commentID, text string) (*domain.Comment, error) {
	pid, ok := oid(postID)
	if !ok {
		return nil, postNotFound(postID)
	}
	cid, ok := oid(commentID)
	if !ok {
		return nil, s.missingComment(ctx, pid, postID, commentID)
	}

	var doc postDoc
	err := s.posts.FindOneAndUpdate(ctx,
		bson.M{"_id": pid, "comments._id": cid},
		bson.M{"$set": bson.M{"comments.$.text": text}},
		afterUpdate(),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.missingComment(ctx, pid, postID, commentID)
	}
	if err != nil {
		return nil, err
	}
	for i := range doc.Comments {
		if doc.Comments[i].ID == cid {
			return doc.Comments[i].toDomain(), nil
		}
	}
	return nil, commentNotFound(commentID)
}

func (s *Store) DeleteComment(ctx context.Context, postID, commentID string) error {
	pid, ok := oid(postID)
	if !ok {
		return postNotFound(postID)
	}
	cid, ok := oid(commentID)
	if !ok {
		return s.missingComment(ctx, pid, postID, commentID)
	}

	res, err := s.posts.UpdateOne(ctx,
		bson.M{"_id": pid, "comments._id": cid},
		bson.M{"$pull": bson.M{"comments": bson.M{"_id": cid}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.missingComment(ctx, pid, postID, commentID)
	}
	return nil
}

func (s *Store) AddReply(ctx context.Context, postID, commentID string, reply *domain.Reply) (*domain.Reply, error) {
	pid, ok := oid(postID)
	if !ok {
		return nil, postNotFound(postID)
	}
	cid, ok := oid(commentID)
	if !ok {
		return nil, s.missingComment(ctx, pid, postID, commentID)
	}
	uid, ok := oid(reply.UserID)
	if !ok {
		return nil, userNotFound(reply.UserID)
	}
	doc := replyDoc{
		ID:        bson.NewObjectID(),
		User:      uid,
		Text:      reply.Text,
		CreatedAt: reply.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	res, err := s.posts.UpdateOne(ctx,
		bson.M{"_id": pid, "comments._id": cid},
		bson.M{"$push": bson.M{"comments.$.replies": doc}},
	)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, s.missingComment(ctx, pid, postID, commentID)
	}
	return doc.toDomain(), nil
}

// missingComment reports which half of the (post, comment) pair is absent.
func (s *Store) missingComment(ctx context.Context, pid bson.ObjectID, postID, commentID string) error {
	exists, err := s.postExists(ctx, pid)
	if err != nil {
		return err
	}
	if !exists {
		return postNotFound(postID)
	}
	return commentNotFound(commentID)
}
