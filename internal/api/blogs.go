package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/UkralStul/blogsphere/internal/auth"
	"github.com/UkralStul/blogsphere/internal/blog"
)

// === Post Handlers ===

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var in blog.PostInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	post, err := s.blogs.CreatePost(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.blogs.ListPosts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.blogs.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) updatePost(w http.ResponseWriter, r *http.Request) {
	var in blog.PostInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	post, err := s.blogs.UpdatePost(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.blogs.DeletePost(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, "Blog deleted")
}

func (s *Server) listPostsByAuthor(w http.ResponseWriter, r *http.Request) {
	posts, err := s.blogs.ListPostsByAuthor(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// searchPosts reads q, type and following. following must be "true" or
// "false" and needs a signed-in caller.
func (s *Server) searchPosts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := blog.SearchQuery{
		Query:    query.Get("q"),
		Field:    query.Get("type"),
		CallerID: auth.UserID(r.Context()),
	}
	if query.Has("following") {
		switch query.Get("following") {
		case "true":
			q.Following = blog.FollowingOnly
		case "false":
			q.Following = blog.FollowingExclude
		default:
			writeMsg(w, http.StatusBadRequest, "following must be true or false")
			return
		}
		if q.CallerID == "" {
			writeMsg(w, http.StatusUnauthorized, "Sign in to filter by following")
			return
		}
	}
	posts, err := s.blogs.SearchPosts(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) feed(w http.ResponseWriter, r *http.Request) {
	posts, err := s.blogs.PersonalizedFeed(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// === Comment Handlers ===

type textBody struct {
	Text string `json:"text"`
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	var body textBody
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.blogs.AddComment(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()), body.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.blogs.ListComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *Server) editComment(w http.ResponseWriter, r *http.Request) {
	var body textBody
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.blogs.EditComment(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "commentId"), auth.UserID(r.Context()), body.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	err := s.blogs.DeleteComment(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "commentId"), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, "Comment deleted")
}

func (s *Server) addReply(w http.ResponseWriter, r *http.Request) {
	var body textBody
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	reply, err := s.blogs.AddReply(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "commentId"), auth.UserID(r.Context()), body.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

// === Like Handlers ===

func (s *Server) like(w http.ResponseWriter, r *http.Request)   { s.toggleLike(w, r, blog.Like) }
func (s *Server) unlike(w http.ResponseWriter, r *http.Request) { s.toggleLike(w, r, blog.Unlike) }

func (s *Server) toggleLike(w http.ResponseWriter, r *http.Request, dir blog.LikeDirection) {
	n, err := s.blogs.ToggleLike(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()), dir)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"likes": n})
}

func (s *Server) likeState(w http.ResponseWriter, r *http.Request) {
	state, err := s.blogs.GetLikeState(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
