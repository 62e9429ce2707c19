package dataloader

import (
	"context"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader"
	"github.com/samber/lo"

	"github.com/UkralStul/blogsphere/internal/domain"
	"github.com/UkralStul/blogsphere/internal/storage"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders holds the per-request batched loaders.
type Loaders struct {
	UserByID *dataloader.Loader
}

// NewLoaders builds loaders over store. Lookups for the same ids within one
// request are batched into a single GetUsersByIDs call and cached.
func NewLoaders(store storage.UserStorage) *Loaders {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := keys.Keys()
		results := make([]*dataloader.Result, len(keys))

		users, err := store.GetUsersByIDs(ctx, ids)
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}
		// A missing user is a nil result, not an error.
		for i, id := range ids {
			results[i] = &dataloader.Result{Data: users[id]}
		}
		return results
	}
	return &Loaders{
		UserByID: dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(time.Millisecond)),
	}
}

// Middleware attaches fresh loaders to every request.
func Middleware(store storage.UserStorage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLoaders(r.Context(), NewLoaders(store))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, key, l)
}

// For returns the loaders attached to ctx, or nil.
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(key).(*Loaders)
	return l
}

// Users resolves ids to the users that exist. It goes through the request's
// loader when one is attached and straight to the store otherwise.
func Users(ctx context.Context, store storage.UserStorage, ids []string) (map[string]*domain.User, error) {
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 {
		return map[string]*domain.User{}, nil
	}
	l := For(ctx)
	if l == nil {
		return store.GetUsersByIDs(ctx, ids)
	}

	data, errs := l.UserByID.LoadMany(ctx, dataloader.NewKeysFromStrings(ids))()
	out := make(map[string]*domain.User, len(ids))
	for i, id := range ids {
		if i < len(errs) && errs[i] != nil {
			return nil, errs[i]
		}
		if u, ok := data[i].(*domain.User); ok && u != nil {
			out[id] = u
		}
	}
	return out, nil
}
