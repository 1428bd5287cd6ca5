package api

import (
	"net/http/pprof"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/unistreamhq/unistream/pkg/storage"
)

// Server is the API server for inspecting relayed stream transcripts.
type Server struct {
	config Config
	storer storage.Driver
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The storer is injected to allow sharing with other components
// (e.g., the relay when not run as a singleton).
func NewServer(config Config, storer storage.Driver, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		storer: storer,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/streams", s.handleListStreams)
	app.Get("/streams/:id", s.handleGetStream)
	app.Delete("/streams/:id", s.handleDeleteStream)

	if config.EnablePprof {
		app.Get("/debug/pprof", adaptor.HTTPHandlerFunc(pprof.Index))
		app.Get("/debug/pprof/cmdline", adaptor.HTTPHandlerFunc(pprof.Cmdline))
		app.Get("/debug/pprof/profile", adaptor.HTTPHandlerFunc(pprof.Profile))
		app.Get("/debug/pprof/symbol", adaptor.HTTPHandlerFunc(pprof.Symbol))
		app.Get("/debug/pprof/trace", adaptor.HTTPHandlerFunc(pprof.Trace))
		app.Get("/debug/pprof/:name", adaptor.HTTPHandlerFunc(pprof.Index))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
