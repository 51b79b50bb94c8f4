// Package adminhttp serves the internal control-plane HTTP surface: pause
// and resume the tick loop, force-close a held position, and trigger a CSV
// trade export.
package adminhttp

import (
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handler bundles the engine operations the control plane can trigger,
// kept as a struct of functions the way internal/engine.Collaborators does.
type Handler struct {
	Pause         func()
	Resume        func()
	Paused        func() bool
	ForceClose    func(mint, reason string) error
	ExportTrades  func(w io.Writer, limit int) (int, error)
	HeldPositions func() []PositionView
}

// PositionView is the JSON shape returned by GET /positions.
type PositionView struct {
	Mint       string  `json:"mint"`
	SlotType   string  `json:"slot_type"`
	EntryPrice float64 `json:"entry_price"`
	LastPrice  float64 `json:"last_price"`
	PeakPrice  float64 `json:"peak_price"`
	PnLPct     float64 `json:"pnl_pct"`
}

// Server runs the admin HTTP server.
type Server struct {
	app     *fiber.App
	handler *Handler
	host    string
	port    int
}

// NewServer creates the admin server bound to host:port.
func NewServer(host string, port int, handler *Handler) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          5 * time.Second,
	})

	s := &Server{app: app, handler: handler, host: host, port: port}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "time": time.Now().Unix(), "paused": s.handler.Paused()})
	})

	s.app.Post("/pause", func(c *fiber.Ctx) error {
		s.handler.Pause()
		log.Info().Msg("adminhttp: tick loop paused")
		return c.JSON(fiber.Map{"status": "paused"})
	})

	s.app.Post("/resume", func(c *fiber.Ctx) error {
		s.handler.Resume()
		log.Info().Msg("adminhttp: tick loop resumed")
		return c.JSON(fiber.Map{"status": "resumed"})
	})

	s.app.Get("/positions", func(c *fiber.Ctx) error {
		return c.JSON(s.handler.HeldPositions())
	})

	s.app.Post("/close/:mint", s.handleForceClose)
	s.app.Get("/export/trades", s.handleExportTrades)
}

func (s *Server) handleForceClose(c *fiber.Ctx) error {
	mint := c.Params("mint")
	reason := c.Query("reason", "manual_close")

	if err := s.handler.ForceClose(mint, reason); err != nil {
		log.Error().Err(err).Str("mint", mint).Msg("adminhttp: force close failed")
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}

	log.Info().Str("mint", mint).Str("reason", reason).Msg("adminhttp: force close requested")
	return c.JSON(fiber.Map{"status": "closing", "mint": mint})
}

func (s *Server) handleExportTrades(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 500)

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", `attachment; filename="trades.csv"`)

	n, err := s.handler.ExportTrades(c.Response().BodyWriter(), limit)
	if err != nil {
		log.Error().Err(err).Msg("adminhttp: export failed")
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	log.Info().Int("rows", n).Msg("adminhttp: trades exported")
	return nil
}

// Start begins serving; blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	log.Info().Str("addr", addr).Msg("adminhttp: starting control plane")
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
