package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/UkralStul/blogsphere/internal/auth"
	"github.com/UkralStul/blogsphere/internal/blog"
	"github.com/UkralStul/blogsphere/internal/domain"
	"github.com/UkralStul/blogsphere/internal/logger"
)

const seedPassword = "password123"

var samplePosts = []blog.PostInput{
	{
		Title:   "Introduction to MERN Stack",
		Content: "MongoDB stores the data, Express serves the API, React renders the UI and Node.js runs it all. A tour of how the four pieces fit together.",
		Tags:    []string{"MERN", "Introduction", "Fullstack"},
	},
	{
		Title:   "Setting Up MongoDB for MERN",
		Content: "Installing MongoDB locally, connecting from the application and moving to a hosted cluster when the project grows.",
		Tags:    []string{"MongoDB", "Database", "Setup"},
	},
	{
		Title:   "Express.js Routing Deep Dive",
		Content: "Defining routes, grouping them behind middleware and keeping a growing backend readable.",
		Tags:    []string{"Express", "Backend", "Routing"},
	},
	{
		Title:   "React State Management",
		Content: "When useState is enough, when the Context API helps and when Redux earns its place.",
		Tags:    []string{"React", "State", "Frontend"},
	},
	{
		Title:   "Node.js Asynchronous Programming",
		Content: "Callbacks, promises and async/await compared on the same file and network tasks.",
		Tags:    []string{"Node.js", "Async", "JavaScript"},
	},
	{
		Title:   "Building REST APIs with Express",
		Content: "Designing endpoints around resources, choosing status codes and wiring the handlers to a database.",
		Tags:    []string{"Express", "API", "REST"},
	},
	{
		Title:   "Authentication in MERN Apps",
		Content: "Hashing passwords with bcrypt, issuing JWTs and protecting routes with middleware.",
		Tags:    []string{"Authentication", "JWT", "Security"},
	},
	{
		Title:   "React Hooks Overview",
		Content: "useEffect, useMemo, useRef and custom hooks, with the pitfalls each one tends to hide.",
		Tags:    []string{"React", "Hooks", "Frontend"},
	},
	{
		Title:   "Pagination in MongoDB",
		Content: "Skip and limit versus range queries on an indexed field, and what each costs on large collections.",
		Tags:    []string{"MongoDB", "Pagination", "Database"},
	},
	{
		Title:   "Building a Blog with MERN",
		Content: "Posts, comments, likes and bookmarks end to end, from the schema to the React components.",
		Tags:    []string{"MERN", "Blog", "Project"},
	},
}

// seedData creates the sample author and posts unless that author already
// has posts.
func seedData(ctx context.Context, authSvc *auth.Service, blogs *blog.Service, log *logger.Logger) error {
	author, err := seedUser(ctx, authSvc, "seeduser")
	if err != nil {
		return err
	}
	existing, err := blogs.ListPostsByAuthor(ctx, author.ID)
	if err != nil {
		return fmt.Errorf("list seed posts: %w", err)
	}
	if len(existing) > 0 {
		log.Info("seed data already present", "posts", len(existing))
		return nil
	}

	reader, err := seedUser(ctx, authSvc, "seedreader")
	if err != nil {
		return err
	}

	for i, in := range samplePosts {
		post, err := blogs.CreatePost(ctx, author.ID, in)
		if err != nil {
			return fmt.Errorf("create post %q: %w", in.Title, err)
		}
		if i%3 != 0 {
			continue
		}
		if _, err := blogs.AddComment(ctx, post.ID, reader.ID, "Thanks, this cleared things up."); err != nil {
			return fmt.Errorf("comment on %q: %w", in.Title, err)
		}
		if _, err := blogs.ToggleLike(ctx, post.ID, reader.ID, blog.Like); err != nil {
			return fmt.Errorf("like %q: %w", in.Title, err)
		}
	}

	log.Info("seed data inserted", "author_id", author.ID, "posts", len(samplePosts))
	return nil
}

func seedUser(ctx context.Context, authSvc *auth.Service, name string) (*domain.User, error) {
	email := name + "@example.com"
	sess, err := authSvc.Register(ctx, auth.RegisterInput{Username: name, Email: email, Password: seedPassword})
	if errors.Is(err, domain.ErrConflict) {
		sess, err = authSvc.Login(ctx, email, seedPassword)
	}
	if err != nil {
		return nil, fmt.Errorf("seed user %s: %w", name, err)
	}
	return sess.User, nil
}
