// Package apitest runs a fake REST API on gin for client tests: posts and
// comments resources, status code endpoints, and bearer-protected routes
// whose valid token can be rotated while the server runs.
package apitest

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/bryce/component"
	"github.com/kbukum/bryce/testutil"
)

// Post is the resource served under /posts.
type Post struct {
	ID     int    `json:"id"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Comment is the resource served under /comments.
type Comment struct {
	ID     int    `json:"id"`
	PostID int    `json:"postId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Body   string `json:"body"`
}

// Echo is returned by /echo and the protected routes.
type Echo struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers"`
	Query   map[string]string `json:"query"`
	Body    string            `json:"body,omitempty"`
}

// ErrorBody is the error shape the server responds with.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Server is a TestComponent serving the fake API over httptest.
type Server struct {
	engine *gin.Engine
	tls    *tls.Config

	mu       sync.Mutex
	srv      *httptest.Server
	token    string
	hits     map[string]int
	requests []*http.Request
}

var _ testutil.TestComponent = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithTLS serves over TLS with cfg.
func WithTLS(cfg *tls.Config) Option {
	return func(s *Server) { s.tls = cfg }
}

// WithToken sets the initial bearer token the protected routes accept.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// NewServer creates an unstarted Server.
func NewServer(opts ...Option) *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{hits: make(map[string]int)}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = gin.New()
	s.engine.Use(s.track)
	s.routes()
	return s
}

// New starts a Server for the duration of t.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := NewServer(opts...)
	testutil.T(t).Setup(s)
	return s
}

// Name returns the component name.
func (s *Server) Name() string { return "apitest" }

// Start begins serving on a loopback port.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return fmt.Errorf("apitest: already started")
	}
	srv := httptest.NewUnstartedServer(s.engine)
	if s.tls != nil {
		srv.TLS = s.tls
		srv.StartTLS()
	} else {
		srv.Start()
	}
	s.srv = srv
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop(_ context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv != nil {
		srv.Close()
	}
	return nil
}

// Health reports whether the server is running.
func (s *Server) Health(_ context.Context) component.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy}
}

// Reset clears hit counters and recorded requests.
func (s *Server) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = make(map[string]int)
	s.requests = nil
	return nil
}

// URL returns the base URL, "" before Start.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return ""
	}
	return s.srv.URL
}

// SetToken rotates the bearer token the protected routes accept.
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Token returns the accepted bearer token.
func (s *Server) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Hits returns how many requests reached path, query excluded.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// Requests returns clones of the received requests in arrival order.
func (s *Server) Requests() []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*http.Request(nil), s.requests...)
}

// LastRequest returns the most recent request, nil when none arrived.
func (s *Server) LastRequest() *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

func (s *Server) track(c *gin.Context) {
	s.mu.Lock()
	s.hits[c.Request.URL.Path]++
	s.requests = append(s.requests, c.Request.Clone(context.Background()))
	s.mu.Unlock()
	c.Next()
}

func (s *Server) routes() {
	s.engine.GET("/posts", s.listPosts)
	s.engine.POST("/posts", s.createPost)
	s.engine.GET("/posts/:id", s.getPost)
	s.engine.PUT("/posts/:id", s.updatePost)
	s.engine.PATCH("/posts/:id", s.updatePost)
	s.engine.DELETE("/posts/:id", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
	s.engine.GET("/comments", s.listComments)
	s.engine.Any("/status/:code", s.status)
	s.engine.Any("/echo", func(c *gin.Context) { c.JSON(http.StatusOK, echo(c)) })
	s.engine.GET("/malformed", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(`{"id": "not-a-number"`))
	})
	s.engine.GET("/empty", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	s.engine.GET("/slow", s.slow)

	protected := s.engine.Group("/protected", s.requireBearer)
	protected.Any("/*path", func(c *gin.Context) { c.JSON(http.StatusOK, echo(c)) })
}

func (s *Server) requireBearer(c *gin.Context) {
	token := s.Token()
	got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || token == "" || got != token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody{Error: "unauthorized", Message: "invalid or missing bearer token"})
		return
	}
	c.Next()
}

func (s *Server) listPosts(c *gin.Context) {
	c.JSON(http.StatusOK, Posts())
}

func (s *Server) getPost(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "bad_request", Message: "id must be numeric"})
		return
	}
	for _, p := range Posts() {
		if p.ID == id {
			c.JSON(http.StatusOK, p)
			return
		}
	}
	c.JSON(http.StatusNotFound, ErrorBody{Error: "not_found", Message: fmt.Sprintf("post %d not found", id)})
}

func (s *Server) createPost(c *gin.Context) {
	var p Post
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "bad_request", Message: err.Error()})
		return
	}
	p.ID = len(Posts()) + 1
	c.JSON(http.StatusCreated, p)
}

func (s *Server) updatePost(c *gin.Context) {
	var p Post
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "bad_request", Message: err.Error()})
		return
	}
	p.ID, _ = strconv.Atoi(c.Param("id"))
	c.JSON(http.StatusOK, p)
}

func (s *Server) listComments(c *gin.Context) {
	postID := c.Query("postId")
	out := []Comment{}
	for _, cm := range Comments() {
		if postID == "" || strconv.Itoa(cm.PostID) == postID {
			out = append(out, cm)
		}
	}
	c.JSON(http.StatusOK, out)
}

// status responds with the requested code. For error codes the body is the
// JSON error shape, or plain text with ?raw=1, or empty with ?empty=1.
func (s *Server) status(c *gin.Context) {
	code, err := strconv.Atoi(c.Param("code"))
	if err != nil || code < 100 || code > 599 {
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "bad_request", Message: "invalid status code"})
		return
	}
	switch {
	case c.Query("empty") != "":
		c.Status(code)
	case c.Query("raw") != "":
		c.String(code, "plain failure text")
	case code >= 400:
		c.JSON(code, ErrorBody{Error: fmt.Sprintf("status_%d", code), Message: http.StatusText(code)})
	default:
		c.JSON(code, gin.H{"status": code})
	}
}

func (s *Server) slow(c *gin.Context) {
	d, _ := time.ParseDuration(c.DefaultQuery("d", "1s"))
	select {
	case <-time.After(d):
		c.JSON(http.StatusOK, gin.H{"slept": d.String()})
	case <-c.Request.Context().Done():
	}
}

func echo(c *gin.Context) Echo {
	e := Echo{
		Method:  c.Request.Method,
		Path:    c.Request.URL.Path,
		Headers: make(map[string]string, len(c.Request.Header)),
		Query:   make(map[string]string),
	}
	for k, v := range c.Request.Header {
		e.Headers[k] = strings.Join(v, ",")
	}
	for k, v := range c.Request.URL.Query() {
		e.Query[k] = strings.Join(v, ",")
	}
	if body, err := c.GetRawData(); err == nil {
		e.Body = string(body)
	}
	return e
}
