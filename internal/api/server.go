package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-fuego/fuego"
	"github.com/go-fuego/fuego/option"
)

// Server represents the Fuego inspection API server. It is read-only:
// triggering runs goes through the sync service's own HTTP surface.
type Server struct {
	fuego *fuego.Server
	deps  *Dependencies
	port  int
}

// Dependencies contains all service dependencies.
type Dependencies struct {
	ChatsRepo      ChatsRepository
	MessagesRepo   MessagesRepository
	RunsRepo       RunsRepository
	TelegramClient TelegramClient
	SyncManager    SyncManager
}

// Config holds API server configuration.
type Config struct {
	Port        int
	Title       string
	Description string
	Version     string
}

// NewServer creates a new Fuego API server.
func NewServer(cfg *Config, deps *Dependencies) *Server {
	s := fuego.NewServer(
		fuego.WithAddr(fmt.Sprintf(":%d", cfg.Port)),
		fuego.WithEngineOptions(
			fuego.WithOpenAPIConfig(fuego.OpenAPIConfig{
				PrettyFormatJSON: true,
				JSONFilePath:     "openapi.json",
				SwaggerURL:       "/docs",
				SpecURL:          "/openapi.json",
				UIHandler: func(specURL string) http.Handler {
					return ScalarHandler(specURL, cfg.Title, cfg.Description)
				},
			}),
		),
	)

	s.OpenAPI.Description().Info.Title = cfg.Title
	s.OpenAPI.Description().Info.Description = cfg.Description
	s.OpenAPI.Description().Info.Version = cfg.Version

	// Chi middleware, Fuego is net/http compatible
	fuego.Use(s, middleware.RequestID)
	fuego.Use(s, middleware.RealIP)
	fuego.Use(s, middleware.Logger)
	fuego.Use(s, middleware.Recoverer)

	srv := &Server{
		fuego: s,
		deps:  deps,
		port:  cfg.Port,
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) registerRoutes() {
	// Health check
	fuego.Get(s.fuego, "/health", s.healthCheck,
		option.Summary("Health Check"),
		option.Description("Returns the health status of the API"),
		option.Tags("System"),
	)

	// Chats API
	chatsGroup := fuego.Group(s.fuego, "/api/v1/chats",
		option.Tags("Chats"),
	)

	fuego.Get(chatsGroup, "/", s.listChats,
		option.Summary("List Chats"),
		option.Description("Returns all mirrored chats with their sync watermarks"),
	)

	fuego.Get(chatsGroup, "/{id}", s.getChat,
		option.Summary("Get Chat"),
		option.Description("Returns a single chat by its source identifier"),
	)

	fuego.Get(chatsGroup, "/{id}/messages", s.listMessages,
		option.Summary("List Chat Messages"),
		option.Description("Returns one page of a chat's messages, newest first"),
		option.Query("before", "Return messages with id strictly below this (0 = from the newest)"),
		option.Query("limit", "Page size (default: 50, max: 200)"),
	)

	// Runs API
	fuego.Get(s.fuego, "/api/v1/runs", s.listRuns,
		option.Summary("List Sync Runs"),
		option.Description("Returns recent sync run audit records, newest first"),
		option.Query("limit", "Number of runs (default: 20, max: 100)"),
		option.Tags("Runs"),
	)

	// Status API
	fuego.Get(s.fuego, "/api/v1/status", s.getSyncStatus,
		option.Summary("Get Sync Status"),
		option.Description("Returns the run slot and source connection state"),
		option.Tags("System"),
	)
}

// Start starts the API server.
func (s *Server) Start() error {
	return s.fuego.Run()
}

// Stop gracefully stops the server, draining in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	// fuego.Server embeds *http.Server
	return s.fuego.Shutdown(ctx)
}
