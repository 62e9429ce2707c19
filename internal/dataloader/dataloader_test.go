package dataloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/blogsphere/internal/domain"
	"github.com/UkralStul/blogsphere/internal/storage"
)

// countingStore records GetUsersByIDs calls.
type countingStore struct {
	storage.UserStorage

	mu    sync.Mutex
	calls int
	users map[string]*domain.User
}

func (c *countingStore) GetUsersByIDs(_ context.Context, ids []string) (map[string]*domain.User, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	out := make(map[string]*domain.User)
	for _, id := range ids {
		if u, ok := c.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func newCountingStore() *countingStore {
	return &countingStore{users: map[string]*domain.User{
		"u1": {ID: "u1", Username: "alice"},
		"u2": {ID: "u2", Username: "bob"},
	}}
}

func TestUsers_WithoutLoaderHitsStore(t *testing.T) {
	store := newCountingStore()
	got, err := Users(context.Background(), store, []string{"u1", "u1", "", "ghost"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "alice", got["u1"].Username)
	assert.Equal(t, 1, store.calls)
}

func TestUsers_LoaderCachesWithinRequest(t *testing.T) {
	store := newCountingStore()
	ctx := WithLoaders(context.Background(), NewLoaders(store))

	first, err := Users(ctx, store, []string{"u1", "u2", "ghost"})
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := Users(ctx, store, []string{"u2", "u1"})
	require.NoError(t, err)
	assert.Equal(t, "bob", second["u2"].Username)
	assert.Equal(t, 1, store.calls)
}

func TestMiddleware_AttachesLoaders(t *testing.T) {
	var seen *Loaders
	h := Middleware(newCountingStore())(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = For(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotNil(t, seen)
	assert.Nil(t, For(context.Background()))
}

func TestUsers_Empty(t *testing.T) {
	store := newCountingStore()
	got, err := Users(context.Background(), store, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, store.calls)
}
