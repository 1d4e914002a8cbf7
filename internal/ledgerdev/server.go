// Package ledgerdev is a development implementation of the remote ledger
// API. It serves the same routes and JSON shapes the client expects.
package ledgerdev

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/storage"
)

// Events receives one notification per record mutation.
type Events interface {
	PublishRecordEvent(ctx context.Context, e *amqp.RecordEvent) error
}

type Config struct {
	JWTSecret          string
	TokenTTL           time.Duration
	LoginRatePerMinute int
	// Now overrides the clock; tests only.
	Now func() time.Time
}

type Server struct {
	repo    storage.Repository
	events  Events
	tokens  *Tokens
	limiter *ratelimit.Limiter
	logger  *log.Logger
	now     func() time.Time
	engine  *gin.Engine
}

// New wires the router. events may be nil.
func New(repo storage.Repository, events Events, cfg Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := &Server{
		repo:    repo,
		events:  events,
		tokens:  NewTokens([]byte(cfg.JWTSecret), cfg.TokenTTL, now),
		limiter: ratelimit.NewLimiter(ratelimit.Config{Requests: cfg.LoginRatePerMinute, Window: time.Minute, Now: now}),
		logger:  logger.WithComponent(log.ComponentLedgerDev),
		now:     now,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	_ = r.SetTrustedProxies(nil)

	user := r.Group("/user")
	user.POST("/register", s.register)
	user.POST("/login", s.loginLimit(), s.login)

	api := r.Group("/api")
	api.Use(s.requireAuth())
	for _, kind := range []core.Kind{core.Income, core.Expense} {
		h := recordHandlers{s: s, kind: kind}
		path := kind.Path[len("/api"):]
		api.GET(path, h.list)
		api.POST(path, h.create)
		api.PUT(path+"/:id", h.update)
		api.DELETE(path+"/:id", h.remove)
	}
	api.GET("/account", s.account)
	api.PUT("/account", s.updateAccount)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})
	return r
}

func (s *Server) Handler() http.Handler { return s.engine }

// Close stops background work. The repository is owned by the caller.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.LogHTTPEnd(c.Request.Context(), c.Request, c.Writer.Status(), time.Since(start).Milliseconds(), c.ClientIP())
	}
}

func (s *Server) loginLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !s.limiter.Allow(ip) {
			s.logger.Warn("Login rate limit exceeded", log.FieldClientIP, ip)
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many login attempts, please try again later"})
			return
		}
		c.Next()
	}
}

func (s *Server) publish(ctx context.Context, op string, kind core.Kind, id, userID string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishRecordEvent(ctx, amqp.NewRecordEvent(op, kind.Name, id, userID)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish record event",
			log.NewFields().
				WithOperation(log.OpPublish).
				WithRecord(kind.Name, id, 0).
				WithError(err, log.ErrorTypeNetwork).
				ToSlice()...)
	}
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
