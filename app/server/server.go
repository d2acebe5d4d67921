package server

import (
	"log/slog"
	"path/filepath"

	"caagent/app/agent"
	"caagent/app/api"
	"caagent/app/middleware"

	"github.com/gofiber/fiber/v2"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
}

type Server struct {
	listenAddr string
	staticDir  string
	agent      *agent.Agent
	app        *fiber.App
	logger     *slog.Logger
}

func New(addr, staticDir string, a *agent.Agent) *Server {
	return &Server{
		listenAddr: addr,
		staticDir:  staticDir,
		agent:      a,
		logger:     slog.Default(),
	}
}

func (s *Server) Stop() {
	if s.app != nil {
		if err := s.app.Shutdown(); err != nil {
			s.logger.Error("error during shutdown", "error", err)
		}
	}
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	var (
		app          = fiber.New(config)
		askHandler   = api.NewAskHandler(s.agent)
		checkHandler = api.NewCheckHandler()
	)
	s.app = app

	app.Use(middleware.PlugStatic("/static"))
	app.Static("/static", s.staticDir)
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendFile(filepath.Join(s.staticDir, "index.html"))
	})
	app.Get("/check/healthy", checkHandler.HandleHealthy)
	app.Post("/ask", askHandler.HandleAsk)

	if err := app.Listen(s.listenAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
	}
}
