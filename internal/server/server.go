package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gihan9a/braidtrack/internal/config"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"
)

// Hub is the authoritative side of the replication: it owns the tracked
// resources, publishes their diffs to subscribers and accepts writes.
type Hub struct {
	config        *config.Config
	logger        *slog.Logger
	resources     map[string]*Resource
	subscriptions map[string]map[string]*Subscription
	mu            sync.RWMutex
	watcher       *fsnotify.Watcher
}

// Option configures a Hub
type Option func(*Hub)

// WithLogger sets the hub logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// NewHub creates a new Hub
func NewHub(config *config.Config, opts ...Option) (*Hub, error) {
	// Create file watcher
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	hub := &Hub{
		config:        config,
		logger:        slog.Default(),
		resources:     make(map[string]*Resource),
		subscriptions: make(map[string]map[string]*Subscription),
		watcher:       watcher,
	}
	for _, opt := range opts {
		opt(hub)
	}

	// Start watching for seed file changes
	go hub.watchFiles()

	return hub, nil
}

// Close cleans up resources used by the hub
func (h *Hub) Close() {
	if h.watcher != nil {
		h.watcher.Close()
	}
}

// SetupWatchers recursively adds seed directories to the watcher
func (h *Hub) SetupWatchers() error {
	return filepath.Walk(h.config.SeedDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return h.watcher.Add(path)
		}
		return nil
	})
}

// watchFiles monitors seed file changes and writes them into the resources
func (h *Hub) watchFiles() {
	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}

			// New directories are watched too
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := h.watcher.Add(event.Name); err != nil {
						h.logger.Error("Failed to watch directory", "dir", event.Name, "err", err)
					}
					continue
				}
			}

			if !isSeedFile(event.Name) || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			h.logger.Debug("Seed file changed", "file", event.Name, "op", event.Op.String())
			if err := h.LoadSeedFile(event.Name); err != nil {
				h.logger.Error("Error loading seed file", "file", event.Name, "err", err)
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error("Watcher error", "err", err)
		}
	}
}

// Run publishes pending changes of every resource at the configured
// interval until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	interval := h.config.PublishInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.PublishAll()
		}
	}
}

// SetupRoutes configures the HTTP routes for the hub
func (h *Hub) SetupRoutes() http.Handler {
	router := mux.NewRouter()
	router.PathPrefix("/").Methods(http.MethodPatch).HandlerFunc(h.handlePatch)
	router.PathPrefix("/").Methods(http.MethodGet, http.MethodHead, http.MethodOptions).HandlerFunc(h.handleBraidRequest)
	return router
}
