package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/docdir/docdir/pkg/api"
	"github.com/docdir/docdir/pkg/db"
)

// Server wires the database facade to its HTTP surface.
type Server struct {
	router *mux.Router
	db     *db.DB
}

// NewServer creates a new instance of Server over an opened database.
func NewServer(database *db.DB) *Server {
	s := &Server{
		router: mux.NewRouter(),
		db:     database,
	}

	api.NewHandler(database).RegisterRoutes(s.router)

	// Use the logging middleware for all routes
	s.router.Use(requestLoggerMiddleware)

	// Customize NotFoundHandler to log 404s
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("WARN: No route found for %s %s", r.Method, r.URL.Path)
		http.NotFound(w, r)
	})

	return s
}

// requestLoggerMiddleware logs the method, URL path, and duration for each request.
func requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		elapsed := time.Since(start)
		log.Printf("INFO: Request %s %s took %s", r.Method, r.URL.Path, elapsed)
	})
}

// Connect brings the database to the connected state, opening every
// previously-known collection.
func (s *Server) Connect(ctx context.Context) error {
	return s.db.Connect(ctx)
}

// Close releases the database's collection handles and registry store.
func (s *Server) Close() error {
	return s.db.Close()
}

// Router exposes the internal mux.Router.
func (s *Server) Router() http.Handler {
	return s.router
}
