package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"token_analyst/dispatcher"
	"token_analyst/summary"
)

const requestIDHeader = "X-Request-ID"

// Handler runs one command to completion.
type Handler interface {
	Handle(ctx context.Context, req dispatcher.Request) dispatcher.Outcome
}

type Server struct {
	handler Handler
	timeout time.Duration
	logger  *zap.Logger
}

// New builds the trigger API. timeout bounds a whole request, ledger calls
// included, and should exceed the pipeline budget.
func New(handler Handler, timeout time.Duration, logger *zap.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.New("command handler required")
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{handler: handler, timeout: timeout, logger: logger}, nil
}

func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logMiddleware())
	r.GET("/healthz", s.handleHealth)
	r.POST("/api/commands", s.handleCommand)
	return r
}

// --- Handlers ---

type commandReq struct {
	UserID  string   `json:"user_id" binding:"required"`
	Command string   `json:"command" binding:"required"`
	Args    []string `json:"args"`
}

type commandResp struct {
	RequestID      string                     `json:"request_id"`
	State          dispatcher.State           `json:"state"`
	Reply          string                     `json:"reply"`
	ReplyHTML      string                     `json:"reply_html,omitempty"`
	Notices        []string                   `json:"notices"`
	PaymentOptions []dispatcher.PaymentOption `json:"payment_options"`
	Summary        *summary.Summary           `json:"summary,omitempty"`
	Error          string                     `json:"error,omitempty"`
}

func (s *Server) handleCommand(c *gin.Context) {
	var req commandReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()
	out := s.handler.Handle(ctx, dispatcher.Request{
		ID:      c.GetString("request_id"),
		UserID:  req.UserID,
		Command: req.Command,
		Args:    req.Args,
	})

	resp := commandResp{
		RequestID:      out.RequestID,
		State:          out.State,
		Reply:          out.Reply,
		Notices:        nonNil(out.Notices),
		PaymentOptions: out.PaymentOptions,
		Summary:        out.Summary,
	}
	if resp.PaymentOptions == nil {
		resp.PaymentOptions = []dispatcher.PaymentOption{}
	}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	if html, err := summary.RenderHTML(out.Reply); err != nil {
		s.logger.Warn("render reply", zap.String("request_id", out.RequestID), zap.Error(err))
	} else {
		resp.ReplyHTML = html
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
}

// --- Helpers ---

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func (s *Server) logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)

		c.Next()

		s.logger.Info("http request",
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
