package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/UkralStul/blogsphere/internal/auth"
)

// === Account Handlers ===

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.auth.Register(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var upd auth.ProfileUpdate
	if err := decode(r, &upd); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.auth.UpdateProfile(r.Context(), auth.UserID(r.Context()), upd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": user.Username})
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.DeleteAccount(r.Context(), auth.UserID(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, "Account deleted")
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	p, err := s.social.Profile(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// === Relationship Handlers ===

func (s *Server) follow(w http.ResponseWriter, r *http.Request) {
	if err := s.social.Follow(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, "Followed")
}

func (s *Server) unfollow(w http.ResponseWriter, r *http.Request) {
	if err := s.social.Unfollow(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, "Unfollowed")
}

func (s *Server) listFollowing(w http.ResponseWriter, r *http.Request) {
	refs, err := s.social.ListFollowing(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refs)
}

func (s *Server) listFollowers(w http.ResponseWriter, r *http.Request) {
	refs, err := s.social.ListFollowers(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refs)
}

func (s *Server) bookmark(w http.ResponseWriter, r *http.Request) {
	if err := s.social.Bookmark(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "blogId")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, "Bookmarked")
}

func (s *Server) unbookmark(w http.ResponseWriter, r *http.Request) {
	if err := s.social.Unbookmark(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "blogId")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, "Bookmark removed")
}

func (s *Server) listBookmarks(w http.ResponseWriter, r *http.Request) {
	posts, err := s.social.ListBookmarks(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}
