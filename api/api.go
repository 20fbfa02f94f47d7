// Package api provides the HTTP layer of the service: the home, login and
// register pages, and the login and register form submissions, all backed by
// a db.Storage.
package api

import (
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	root "github.com/vocdoni/flatauth"
	"github.com/vocdoni/flatauth/db"
	"go.vocdoni.io/dvote/log"
)

// Config holds what the API needs to be created.
type Config struct {
	Host string
	Port int
	// DB is the user storage the handlers read from and write to
	DB db.Storage
	// Assets is the file system holding the pages, the embedded assets are
	// used if it is nil
	Assets fs.FS
}

// API type represents the API HTTP server.
type API struct {
	db     db.Storage
	assets fs.FS
	host   string
	port   int
}

// New creates a new API HTTP server. It does not start the server. Use Start()
// for that.
func New(conf *Config) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API config")
	}
	if conf.DB == nil {
		return nil, fmt.Errorf("missing user storage")
	}
	assets := conf.Assets
	if assets == nil {
		var err error
		if assets, err = fs.Sub(root.Assets, root.AssetsDir); err != nil {
			return nil, fmt.Errorf("could not load embedded assets: %w", err)
		}
	}
	return &API{
		db:     conf.DB,
		assets: assets,
		host:   conf.Host,
		port:   conf.Port,
	}, nil
}

// Start starts the API HTTP server (non blocking).
func (a *API) Start() {
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", a.host, a.port), a.initRouter()); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() http.Handler {
	// Create the router with a basic middleware stack
	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Throttle(100))
	r.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	r.Use(middleware.Timeout(45 * time.Second))

	r.Get(pingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte(".")); err != nil {
			log.Warnw("failed to write ping response", "error", err)
		}
	})
	// pages
	log.Infow("new route", "method", "GET", "path", homeEndpoint)
	r.Get(homeEndpoint, a.pageHandler(homePage))
	log.Infow("new route", "method", "GET", "path", loginEndpoint)
	r.Get(loginEndpoint, a.pageHandler(loginPage))
	log.Infow("new route", "method", "GET", "path", registerEndpoint)
	r.Get(registerEndpoint, a.pageHandler(registerPage))
	// login
	log.Infow("new route", "method", "POST", "path", loginEndpoint)
	r.Post(loginEndpoint, a.loginHandler)
	// register user
	log.Infow("new route", "method", "POST", "path", registerEndpoint)
	r.Post(registerEndpoint, a.registerHandler)
	// static files next to the pages
	log.Infow("new route", "method", "GET", "path", staticEndpoint)
	r.Get(staticEndpoint, a.staticHandler().ServeHTTP)

	return r
}
