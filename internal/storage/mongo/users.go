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
)

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	doc := userDoc{
		ID:          bson.NewObjectID(),
		Username:    user.Username,
		UsernameKey: key(user.Username),
		Email:       user.Email,
		EmailKey:    key(user.Email),
		Password:    user.PasswordHash,
		Avatar:      user.Avatar,
		Role:        user.Role,
		Following:   []bson.ObjectID{},
		Followers:   []bson.ObjectID{},
		Bookmarks:   []bson.ObjectID{},
		CreatedAt:   user.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if err := s.checkUnique(ctx, bson.NilObjectID, doc.UsernameKey, doc.EmailKey); err != nil {
		return nil, err
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: user already exists", domain.ErrConflict)
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

// checkUnique gives a precise conflict message; the unique indexes still
// decide races.
func (s *Store) checkUnique(ctx context.Context, self bson.ObjectID, usernameKey, emailKey string) error {
	notSelf := bson.M{"$ne": self}
	if emailKey != "" {
		n, err := s.users.CountDocuments(ctx, bson.M{"emailKey": emailKey, "_id": notSelf})
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
	}
	n, err := s.users.CountDocuments(ctx, bson.M{"usernameKey": usernameKey, "_id": notSelf})
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: username already taken", domain.ErrConflict)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	uid, ok := oid(id)
	if !ok {
		return nil, userNotFound(id)
	}
	return s.findUser(ctx, bson.M{"_id": uid}, userNotFound(id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, bson.M{"emailKey": key(email)},
		fmt.Errorf("%w: user with email %s", domain.ErrNotFound, email))
}

func (s *Store) findUser(ctx context.Context, filter bson.M, notFound error) (*domain.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	out := make(map[string]*domain.User, len(ids))
	keys := oids(ids)
	if len(keys) == 0 {
		return out, nil
	}
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for i := range docs {
		u := docs[i].toDomain()
		out[u.ID] = u
	}
	return out, nil
}

func (s *Store) FindUserIDsByUsername(ctx context.Context, query string) ([]string, error) {
	cur, err := s.users.Find(ctx,
		bson.M{"username": bson.M{"$regex": regexp.QuoteMeta(query), "$options": "i"}},
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID bson.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID.Hex()
	}
	return ids, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	uid, ok := oid(user.ID)
	if !ok {
		return nil, userNotFound(user.ID)
	}
	if err := s.checkUnique(ctx, uid, key(user.Username), ""); err != nil {
		return nil, err
	}
	var doc userDoc
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"_id": uid},
		bson.M{"$set": bson.M{
			"username":    user.Username,
			"usernameKey": key(user.Username),
			"password":    user.PasswordHash,
			"avatar":      user.Avatar,
		}},
		afterUpdate(),
	).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, userNotFound(user.ID)
	case mongo.IsDuplicateKeyError(err):
		return nil, fmt.Errorf("%w: username already taken", domain.ErrConflict)
	case err != nil:
		return nil, err
	}
	return doc.toDomain(), nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	uid, ok := oid(id)
	if !ok {
		return userNotFound(id)
	}
	return s.atomically(ctx, func(ctx context.Context) error {
		res, err := s.users.DeleteOne(ctx, bson.M{"_id": uid})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return userNotFound(id)
		}
		_, err = s.users.UpdateMany(ctx,
			bson.M{"$or": bson.A{bson.M{"following": uid}, bson.M{"followers": uid}}},
			bson.M{"$pull": bson.M{"following": uid, "followers": uid}},
		)
		return err
	})
}

// === Relationship Methods ===

// Follow writes both sides of the edge. With transactions enabled the pair
// commits together.
func (s *Store) Follow(ctx context.Context, followerID, followeeID string) error {
	a, okA := oid(followerID)
	b, okB := oid(followeeID)
	if !okA {
		return userNotFound(followerID)
	}
	if !okB {
		return userNotFound(followeeID)
	}
	return s.atomically(ctx, func(ctx context.Context) error {
		n, err := s.users.CountDocuments(ctx, bson.M{"_id": b})
		if err != nil {
			return err
		}
		if n == 0 {
			return userNotFound(followeeID)
		}
		res, err := s.users.UpdateOne(ctx,
			bson.M{"_id": a, "following": bson.M{"$ne": b}},
			bson.M{"$push": bson.M{"following": b}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			n, err := s.users.CountDocuments(ctx, bson.M{"_id": a})
			if err != nil {
				return err
			}
			if n == 0 {
				return userNotFound(followerID)
			}
			return fmt.Errorf("%w: already following", domain.ErrConflict)
		}
		_, err = s.users.UpdateOne(ctx, bson.M{"_id": b}, bson.M{"$addToSet": bson.M{"followers": a}})
		return err
	})
}

func (s *Store) Unfollow(ctx context.Context, followerID, followeeID string) error {
	a, okA := oid(followerID)
	b, okB := oid(followeeID)
	if !okA || !okB {
		return nil
	}
	return s.atomically(ctx, func(ctx context.Context) error {
		if _, err := s.users.UpdateOne(ctx, bson.M{"_id": a}, bson.M{"$pull": bson.M{"following": b}}); err != nil {
			return err
		}
		_, err := s.users.UpdateOne(ctx, bson.M{"_id": b}, bson.M{"$pull": bson.M{"followers": a}})
		return err
	})
}

func (s *Store) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	return s.idSet(ctx, userID, "following")
}

func (s *Store) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	return s.idSet(ctx, userID, "followers")
}

func (s *Store) BookmarkIDs(ctx context.Context, userID string) ([]string, error) {
	return s.idSet(ctx, userID, "bookmarks")
}

// idSet loads one id array from a user document. Unknown users have none.
func (s *Store) idSet(ctx context.Context, userID, field string) ([]string, error) {
	uid, ok := oid(userID)
	if !ok {
		return []string{}, nil
	}
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"_id": uid},
		options.FindOne().SetProjection(bson.M{field: 1})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	switch field {
	case "following":
		return hexes(doc.Following), nil
	case "followers":
		return hexes(doc.Followers), nil
	default:
		return hexes(doc.Bookmarks), nil
	}
}

func (s *Store) AddBookmark(ctx context.Context, userID, postID string) error {
	uid, ok := oid(userID)
	if !ok {
		return userNotFound(userID)
	}
	pid, ok := oid(postID)
	if !ok {
		return postNotFound(postID)
	}
	exists, err := s.postExists(ctx, pid)
	if err != nil {
		return err
	}
	if !exists {
		return postNotFound(postID)
	}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$addToSet": bson.M{"bookmarks": pid}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return userNotFound(userID)
	}
	return nil
}

func (s *Store) RemoveBookmark(ctx context.Context, userID, postID string) error {
	uid, okU := oid(userID)
	pid, okP := oid(postID)
	if !okU || !okP {
		return nil
	}
	_, err := s.users.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$pull": bson.M{"bookmarks": pid}})
	return err
}
