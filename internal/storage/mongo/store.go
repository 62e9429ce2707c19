package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/UkralStul/blogsphere/internal/domain"
	"github.com/UkralStul/blogsphere/internal/storage"
)

// Options configures the MongoDB store.
type Options struct {
	URI      string
	Database string
	// Transactions wraps multi-document writes (follow pairs, post delete
	// with bookmark cleanup) in a transaction. Requires a replica set.
	Transactions bool
}

// Store implements storage.Storage on MongoDB.
type Store struct {
	client *mongo.Client
	posts  *mongo.Collection
	users  *mongo.Collection
	useTx  bool
}

// New connects, pings and ensures indexes.
func New(ctx context.Context, opts Options) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(opts.Database)
	s := &Store{
		client: client,
		posts:  db.Collection("blogs"),
		users:  db.Collection("users"),
		useTx:  opts.Transactions,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "emailKey", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "usernameKey", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	_, err = s.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "author", Value: 1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create blog indexes: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// atomically runs fn in a transaction when enabled. Without transactions the
// steps run in order and a crash between them leaves the documented
// half-applied window.
func (s *Store) atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.useTx {
		return fn(ctx)
	}
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func afterUpdate() *options.FindOneAndUpdateOptionsBuilder {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	author, ok := oid(post.AuthorID)
	if !ok {
		return nil, userNotFound(post.AuthorID)
	}
	doc := postDoc{
		ID:         bson.NewObjectID(),
		Title:      post.Title,
		Content:    post.Content,
		CoverImage: post.CoverImage,
		Tags:       append([]string{}, post.Tags...),
		Author:     author,
		Comments:   []commentDoc{},
		Likes:      []bson.ObjectID{},
		CreatedAt:  post.CreatedAt,
		UpdatedAt:  post.UpdatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	if _, err := s.posts.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	pid, ok := oid(id)
	if !ok {
		return nil, postNotFound(id)
	}
	var doc postDoc
	if err := s.posts.FindOne(ctx, bson.M{"_id": pid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, postNotFound(id)
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (s *Store) GetPostsByIDs(ctx context.Context, ids []string) ([]*domain.Post, error) {
	docs, err := s.findPosts(ctx, bson.M{"_id": bson.M{"$in": oids(ids)}})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Post, len(docs))
	for _, p := range docs {
		byID[p.ID] = p
	}
	out := make([]*domain.Post, 0, len(docs))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) FindPosts(ctx context.Context, f storage.PostFilter) ([]*domain.Post, error) {
	filter, ok := postFilter(f)
	if !ok {
		return []*domain.Post{}, nil
	}
	return s.findPosts(ctx, filter)
}

func (s *Store) findPosts(ctx context.Context, filter bson.M) ([]*domain.Post, error) {
	cur, err := s.posts.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, err
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domain.Post, len(docs))
	for i := range docs {
		out[i] = docs[i].toDomain()
	}
	return out, nil
}

// postFilter translates the filter; ok is false when nothing can match.
func postFilter(f storage.PostFilter) (bson.M, bool) {
	if f.AuthorIDs != nil && len(f.AuthorIDs) == 0 {
		return nil, false
	}

	var conds []bson.M
	author := bson.M{}
	if f.AuthorIDs != nil {
		author["$in"] = oids(f.AuthorIDs)
	}
	if len(f.ExcludeAuthorIDs) > 0 {
		author["$nin"] = oids(f.ExcludeAuthorIDs)
	}
	if len(author) > 0 {
		conds = append(conds, bson.M{"author": author})
	}
	if len(f.AnyTag) > 0 {
		conds = append(conds, bson.M{"tags": bson.M{"$in": f.AnyTag}})
	}
	if f.LikedBy != "" {
		uid, ok := oid(f.LikedBy)
		if !ok {
			return nil, false
		}
		conds = append(conds, bson.M{"likes": uid})
	}
	if f.CommentedBy != "" {
		uid, ok := oid(f.CommentedBy)
		if !ok {
			return nil, false
		}
		conds = append(conds, bson.M{"comments.user": uid})
	}
	if f.Query != "" {
		re := bson.M{"$regex": regexp.QuoteMeta(f.Query), "$options": "i"}
		switch f.Field {
		case storage.FieldBody:
			conds = append(conds, bson.M{"content": re})
		case storage.FieldTags:
			conds = append(conds, bson.M{"tags": re})
		default:
			conds = append(conds, bson.M{"title": re})
		}
	}

	if len(conds) == 0 {
		return bson.M{}, true
	}
	return bson.M{"$and": conds}, true
}

func (s *Store) UpdatePost(ctx context.Context, id string, upd domain.PostUpdate) (*domain.Post, error) {
	pid, ok := oid(id)
	if !ok {
		return nil, postNotFound(id)
	}
	if upd.UpdatedAt.IsZero() {
		upd.UpdatedAt = time.Now().UTC()
	}
	set := bson.M{
		"title":      upd.Title,
		"content":    upd.Content,
		"coverImage": upd.CoverImage,
		"tags":       append([]string{}, upd.Tags...),
		"updatedAt":  upd.UpdatedAt,
	}
	var doc postDoc
	err := s.posts.FindOneAndUpdate(ctx, bson.M{"_id": pid}, bson.M{"$set": set}, afterUpdate()).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, postNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	pid, ok := oid(id)
	if !ok {
		return postNotFound(id)
	}
	return s.atomically(ctx, func(ctx context.Context) error {
		res, err := s.posts.DeleteOne(ctx, bson.M{"_id": pid})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return postNotFound(id)
		}
		_, err = s.users.UpdateMany(ctx, bson.M{"bookmarks": pid}, bson.M{"$pull": bson.M{"bookmarks": pid}})
		return err
	})
}

// === Like Methods ===

func (s *Store) AddLike(ctx context.Context, postID, userID string) (int, error) {
	pid, ok := oid(postID)
	if !ok {
		return 0, postNotFound(postID)
	}
	uid, ok := oid(userID)
	if !ok {
		return 0, userNotFound(userID)
	}
	var doc postDoc
	err := s.posts.FindOneAndUpdate(ctx,
		bson.M{"_id": pid, "likes": bson.M{"$ne": uid}},
		bson.M{"$push": bson.M{"likes": uid}},
		afterUpdate(),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if exists, err := s.postExists(ctx, pid); err != nil {
			return 0, err
		} else if !exists {
			return 0, postNotFound(postID)
		}
		return 0, fmt.Errorf("%w: already liked", domain.ErrConflict)
	}
	if err != nil {
		return 0, err
	}
	return len(doc.Likes), nil
}

func (s *Store) RemoveLike(ctx context.Context, postID, userID string) (int, error) {
	pid, ok := oid(postID)
	if !ok {
		return 0, postNotFound(postID)
	}
	uid, _ := oid(userID)
	var doc postDoc
	err := s.posts.FindOneAndUpdate(ctx,
		bson.M{"_id": pid},
		bson.M{"$pull": bson.M{"likes": uid}},
		afterUpdate(),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, postNotFound(postID)
	}
	if err != nil {
		return 0, err
	}
	return len(doc.Likes), nil
}

func (s *Store) postExists(ctx context.Context, pid bson.ObjectID) (bool, error) {
	n, err := s.posts.CountDocuments(ctx, bson.M{"_id": pid})
	return n > 0, err
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
