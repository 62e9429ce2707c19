package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/UkralStul/blogsphere/internal/domain"
	"github.com/UkralStul/blogsphere/internal/logger"
	"github.com/UkralStul/blogsphere/internal/storage/inmemory"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *inmemory.Store) {
	t.Helper()
	store := inmemory.New()
	opts = append([]Option{WithHashCost(bcrypt.MinCost)}, opts...)
	return NewService(store, "test-secret", time.Hour, logger.Nop(), opts...), store
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "Alice@Example.com", Password: "secret"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.Equal(t, "user", sess.User.Role)
	assert.NotEqual(t, "secret", sess.User.PasswordHash)

	id, err := svc.ParseToken(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, id.UserID)

	_, err = svc.Register(ctx, RegisterInput{Username: "other", Email: "alice@example.com", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = svc.Register(ctx, RegisterInput{Username: "ALICE", Email: "new@example.com", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	logged, err := svc.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, logged.User.ID)

	_, err = svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = svc.Login(ctx, "nobody@example.com", "secret")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "old"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "x"})
	require.NoError(t, err)

	_, err = svc.UpdateProfile(ctx, alice.User.ID, ProfileUpdate{Username: "bob"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = svc.UpdateProfile(ctx, alice.User.ID, ProfileUpdate{Password: "bad", NewPassword: "new"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	u, err := svc.UpdateProfile(ctx, alice.User.ID, ProfileUpdate{Username: "alicia", Password: "old", NewPassword: "new"})
	require.NoError(t, err)
	assert.Equal(t, "alicia", u.Username)

	_, err = svc.Login(ctx, "alice@example.com", "new")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "alice@example.com", "old")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestDeleteAccount(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	a, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "x"})
	require.NoError(t, err)
	b, err := svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "x"})
	require.NoError(t, err)
	require.NoError(t, store.Follow(ctx, b.User.ID, a.User.ID))

	require.NoError(t, svc.DeleteAccount(ctx, a.User.ID))
	assert.ErrorIs(t, svc.DeleteAccount(ctx, a.User.ID), domain.ErrNotFound)

	following, err := store.FollowingIDs(ctx, b.User.ID)
	require.NoError(t, err)
	assert.Empty(t, following)
}

func TestParseToken_Rejects(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc, _ := newTestService(t, WithClock(clock))

	token, err := svc.IssueToken(&domain.User{ID: "u1", Role: "user"})
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = svc.ParseToken(token)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = svc.ParseToken("not-a-token")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	other := NewService(inmemory.New(), "other-secret", time.Hour, logger.Nop())
	forged, err := other.IssueToken(&domain.User{ID: "u1"})
	require.NoError(t, err)
	_, err = svc.ParseToken(forged)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestMiddleware(t *testing.T) {
	svc, _ := newTestService(t)
	token, err := svc.IssueToken(&domain.User{ID: "u1", Role: "user"})
	require.NoError(t, err)

	var seen string
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	serve := func(h http.Handler, header string) *httptest.ResponseRecorder {
		seen = ""
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := serve(svc.RequireAuth(echo), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"msg":"No token, authorization denied"}`, rec.Body.String())

	rec = serve(svc.RequireAuth(echo), "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(svc.RequireAuth(echo), "bearer "+token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u1", seen)

	rec = serve(svc.OptionalAuth(echo), "Bearer garbage")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, seen)

	rec = serve(svc.OptionalAuth(echo), "Bearer "+token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u1", seen)
}
