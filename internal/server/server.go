// Package server exposes the generator and the retrieval assistant over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/LiboWorks/bitrag/internal/generator"
	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/logging"
	"github.com/LiboWorks/bitrag/internal/rag"
)

const headerRequestID = "X-Request-Id"

// Generator is the part of the generation orchestrator the server uses.
type Generator interface {
	Generate(ctx context.Context, req generator.Request) (string, error)
	GenerateStreaming(ctx context.Context, req generator.Request, onToken inference.TokenFunc) (string, error)
	Chat(ctx context.Context, req generator.ChatRequest) (string, error)
	ChatStreaming(ctx context.Context, req generator.ChatRequest, onToken inference.TokenFunc) (string, error)
	Info() generator.Info
}

// Config wires a Server. Store and Assistant are optional; without a store
// the document endpoints answer 503.
type Config struct {
	Generator Generator
	Assistant *rag.Assistant
	Store     rag.Store
	Embedder  rag.Embedder
	// ModelName is reported in OpenAI-style responses.
	ModelName string
	Logger    logging.Logger
}

// Server holds the handlers.
type Server struct {
	gen       Generator
	assistant *rag.Assistant
	store     rag.Store
	embedder  rag.Embedder
	model     string
	log       logging.Logger

	started  time.Time
	requests atomic.Int64
	clock    func() time.Time
}

// New checks cfg. When no assistant is given one is built from the
// generator and the store.
func New(cfg Config) (*Server, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("%w: server needs a generator", inference.ErrInvalidConfig)
	}
	log := logging.OrDiscard(cfg.Logger).With("component", "server")
	if cfg.Store != nil && cfg.Embedder == nil {
		cfg.Embedder = rag.NewHashEmbedder(rag.DefaultDimension)
	}
	if cfg.Assistant == nil {
		a, err := rag.NewAssistant(rag.AssistantConfig{
			Generator: cfg.Generator,
			Store:     cfg.Store,
			Embedder:  cfg.Embedder,
			Logger:    cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		cfg.Assistant = a
	}
	model := cfg.ModelName
	if model == "" {
		model = "bitrag"
	}
	return &Server{
		gen:       cfg.Generator,
		assistant: cfg.Assistant,
		store:     cfg.Store,
		embedder:  cfg.Embedder,
		model:     model,
		log:       log,
		started:   time.Now(),
		clock:     time.Now,
	}, nil
}

// Register mounts every route on e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/health", s.handleHealth)

	v1 := e.Group("/v1")
	v1.GET("/info", s.handleInfo)
	v1.GET("/stats", s.handleStats)
	v1.POST("/generate", s.handleGenerate)
	v1.POST("/chat", s.handleChat)
	v1.POST("/ask", s.handleAsk)
	v1.POST("/classify", s.handleClassify)
	v1.POST("/search", s.handleSearch)

	v1.POST("/documents", s.handleAddDocument)
	v1.GET("/documents", s.handleListDocuments)
	v1.GET("/documents/:id", s.handleGetDocument)
	v1.DELETE("/documents/:id", s.handleDeleteDocument)

	// OpenAI-compatible
	v1.POST("/chat/completions", s.handleChatCompletions)
	v1.GET("/models", s.handleListModels)
}

// Handler returns an echo instance with the middleware stack and routes.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.Use(s.requestID)
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	s.Register(e)
	return e
}

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string, readTimeout time.Duration) error {
	s.log.Info("starting server", "address", addr)
	sc := echo.StartConfig{
		Address: addr,
		BeforeServeFunc: func(srv *http.Server) error {
			srv.ReadHeaderTimeout = readTimeout
			return nil
		},
	}
	return sc.Start(ctx, s.Handler())
}

func (s *Server) requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		s.requests.Add(1)
		id := c.Request().Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Response().Header().Set(headerRequestID, id)
		return next(c)
	}
}

func (s *Server) uptime() time.Duration {
	return s.clock().Sub(s.started).Truncate(time.Second)
}
