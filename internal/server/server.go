// Package server exposes the Telegram webhook and the account linking API over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/logger"
	"github.com/gin-contrib/pprof"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gitlab.com/yelinaung/budgetly-bot/internal/database"
	"gitlab.com/yelinaung/budgetly-bot/internal/linking"
	applog "gitlab.com/yelinaung/budgetly-bot/internal/logger"
)

// SecretTokenHeader carries the webhook secret on every Telegram delivery.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

const (
	accountIDKey   = "accountID"
	maxUpdateBytes = 1 << 20
)

// UpdateHandler processes one Telegram update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update *models.Update)
}

// TokenVerifier maps a bearer token to an account id.
type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// Linker manages the chat binding of an account.
type Linker interface {
	GenerateCode(ctx context.Context, accountID uuid.UUID) (linking.Code, error)
	Status(ctx context.Context, accountID uuid.UUID) (*linking.Status, error)
	Disconnect(ctx context.Context, accountID uuid.UUID) error
}

// ExpenseDeleter removes expenses owned by an account.
type ExpenseDeleter interface {
	Delete(ctx context.Context, accountID, expenseID uuid.UUID) error
}

// Options configures the HTTP surface.
type Options struct {
	// WebhookSecret enables POST /telegram/webhook when set.
	WebhookSecret    string
	BotUsername      string
	CORSAllowOrigins []string
	EnablePprof      bool
}

// Deps are the services behind the HTTP routes. Nil members disable their routes.
type Deps struct {
	Updates  UpdateHandler
	Tokens   TokenVerifier
	Linking  Linker
	Expenses ExpenseDeleter
	DB       database.Pinger
}

// Server is the HTTP entry point.
type Server struct {
	engine  *gin.Engine
	opts    Options
	deps    Deps
	metrics *httpMetrics
}

// New builds the router with its middleware and routes.
func New(opts Options, deps Deps) *Server {
	s := &Server{opts: opts, deps: deps, metrics: newHTTPMetrics()}

	r := gin.New()
	r.ForwardedByClientIP = false
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery())
	r.Use(requestid.New())
	r.Use(logger.SetLogger(
		logger.WithDefaultLevel(zerolog.DebugLevel),
		logger.WithClientErrorLevel(zerolog.InfoLevel),
		logger.WithServerErrorLevel(zerolog.ErrorLevel),
		logger.WithSkipPath([]string{"/healthz", "/metrics"}),
		logger.WithLogger(func(c *gin.Context, _ io.Writer, latency time.Duration) zerolog.Logger {
			return applog.Log.With().
				Str("request_id", requestid.Get(c)).
				Dur("latency", latency).
				Str("method", c.Request.Method).
				Str("path", c.FullPath()).
				Int("status", c.Writer.Status()).
				Logger()
		})))

	r.Use(s.metrics.middleware)

	if len(opts.CORSAllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: opts.CORSAllowOrigins,
			AllowMethods: []string{"OPTIONS", "GET", "POST", "DELETE"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		}))
	}

	_ = r.SetTrustedProxies(nil)

	if opts.EnablePprof {
		pprof.Register(r)
	}

	r.GET("/healthz", s.healthz)
	r.GET("/metrics", s.metrics.handler())

	if deps.Updates != nil && opts.WebhookSecret != "" {
		r.POST("/telegram/webhook", s.webhook)
	}

	if deps.Tokens != nil {
		api := r.Group("/api", s.authenticate)
		if deps.Linking != nil {
			api.POST("/telegram/link-code", s.createLinkCode)
			api.GET("/telegram/status", s.linkStatus)
			api.DELETE("/telegram/link", s.disconnect)
		}
		if deps.Expenses != nil {
			api.DELETE("/expenses/:id", s.deleteExpense)
		}
	}

	s.engine = r
	return s
}

// Handler returns the traced HTTP handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.engine, "budgetly.http")
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		applog.Log.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) healthz(c *gin.Context) {
	if s.deps.DB != nil {
		if err := s.deps.DB.Ping(c.Request.Context()); err != nil {
			applog.Log.Error().Err(err).Msg("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// authenticate resolves the bearer token to an account id.
func (s *Server) authenticate(c *gin.Context) {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		abortWithError(c, http.StatusUnauthorized, "missing bearer token")
		return
	}
	accountID, err := s.deps.Tokens.Verify(token)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "invalid token")
		return
	}
	c.Set(accountIDKey, accountID)
	c.Next()
}

func accountID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(accountIDKey)
	accountID, _ := id.(uuid.UUID)
	return accountID
}

type errorResponse struct {
	Error string `json:"error"`
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}

func secretMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
