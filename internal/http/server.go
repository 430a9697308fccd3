package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmehdipour/credit-gateway/internal/config"
	"github.com/jmehdipour/credit-gateway/internal/engine"
	"github.com/jmehdipour/credit-gateway/internal/http/middleware"
	"github.com/jmehdipour/credit-gateway/internal/logger"
	"github.com/jmehdipour/credit-gateway/internal/metrics"
	"github.com/jmehdipour/credit-gateway/internal/model"
	"github.com/jmehdipour/credit-gateway/internal/repository"
	"github.com/jmehdipour/credit-gateway/internal/service/lending"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Lending is the part of the lending service the handlers call.
type Lending interface {
	RegisterCustomer(ctx context.Context, in lending.RegisterInput) (model.Customer, error)
	CheckEligibility(ctx context.Context, app engine.Application) (engine.Result, error)
	CreateLoan(ctx context.Context, app engine.Application) (lending.CreateResult, error)
	GetLoan(ctx context.Context, loanID int64) (lending.LoanView, error)
	CustomerLoans(ctx context.Context, customerID int64) ([]model.Loan, error)
	LoanSchedule(ctx context.Context, loanID int64) ([]engine.Installment, error)
}

// DecisionReader lists projected decisions.
type DecisionReader interface {
	ListByCustomer(ctx context.Context, customerID int64, f repository.DecisionFilter, limit, offset int) ([]model.DecisionEvent, error)
}

type Server struct{ e *echo.Echo }

// NewServer wires routes. rds may be nil, which disables rate limiting.
func NewServer(cfg config.Config, svc Lending, decisions DecisionReader, rds *redis.Client) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.WARN)
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "rl:ip:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", rlMW)
	v1.POST("/register", registerHandler(svc))
	v1.POST("/check-eligibility", checkEligibilityHandler(svc))
	v1.POST("/create-loan", createLoanHandler(svc))
	v1.GET("/view-loan/:loan_id", viewLoanHandler(svc))
	v1.GET("/view-loans/:customer_id", viewLoansHandler(svc))
	v1.GET("/loans/:loan_id/schedule", scheduleHandler(svc))
	v1.GET("/customers/:customer_id/decisions", listDecisionsHandler(decisions))

	return &Server{e: e}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	logger.Log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
