package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nstogner/listingwriter/pkg/session"
)

// ErrNoSession is returned by API calls made before an API key was accepted.
var ErrNoSession = errors.New("no active session: submit an API key first")

// ErrBusy is returned when a post is already being written.
var ErrBusy = errors.New("a post is already being written, please wait")

// Opener creates a session for an API key.
type Opener func(ctx context.Context, apiKey string) (*session.Session, error)

// Server serves the web form and its JSON/websocket API. It holds at most one
// session and writes at most one post at a time.
type Server struct {
	open   Opener
	distFS embed.FS
	srv    *http.Server

	mu   sync.Mutex // guards srv and sess
	sess *session.Session

	// busy is held for the duration of a post job.
	busy sync.Mutex
}

// New creates a new Server.
func New(open Opener, distFS embed.FS) *Server {
	return &Server{
		open:   open,
		distFS: distFS,
	}
}

// SetSession installs sess as the active session, closing any previous one.
func (s *Server) SetSession(sess *session.Session) {
	s.mu.Lock()
	old := s.sess
	s.sess = sess
	s.mu.Unlock()

	if old != nil && old != sess {
		if err := old.Close(); err != nil {
			slog.Warn("Failed to close previous session", "sessionID", old.ID, "error", err)
		}
	}
}

func (s *Server) session() (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil, ErrNoSession
	}
	return s.sess, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Session
	mux.HandleFunc("GET /api/session", s.handleGetSession)
	mux.HandleFunc("POST /api/session", s.handleOpenSession)

	// Models
	mux.HandleFunc("GET /api/models", s.handleListModels)

	// Posts
	mux.HandleFunc("POST /api/posts", s.handleCreatePost)
	mux.HandleFunc("GET /api/posts/ws", s.handlePostWebSocket)

	// Static assets
	mux.HandleFunc("/", s.handleStatic)

	return s.corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	slog.Info("Starting web server", "addr", addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully stops the server and closes the session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.SetSession(nil)
	return err
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if len(r.URL.Path) >= 4 && r.URL.Path[:4] == "/api" {
		http.NotFound(w, r)
		return
	}

	path := r.URL.Path
	if path == "/" {
		path = "index.html"
	} else if path[0] == '/' {
		path = path[1:]
	}

	distFS, err := fs.Sub(s.distFS, "dist")
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	f, err := distFS.Open(path)
	if err == nil {
		defer f.Close()
		stat, _ := f.Stat()
		if !stat.IsDir() {
			http.FileServer(http.FS(distFS)).ServeHTTP(w, r)
			return
		}
	}

	index, err := distFS.Open("index.html")
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer index.Close()
	http.ServeContent(w, r, "index.html", time.Time{}, index.(io.ReadSeeker))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, err error) {
	slog.Error("API Error", "error", err)
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}
