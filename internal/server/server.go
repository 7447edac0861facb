package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/egsbridge/internal/config"
	"github.com/smallbiznis/egsbridge/internal/invoice"
	invoicedomain "github.com/smallbiznis/egsbridge/internal/invoice/domain"
	"github.com/smallbiznis/egsbridge/internal/observability"
	obscontext "github.com/smallbiznis/egsbridge/internal/observability/context"
	obsmiddleware "github.com/smallbiznis/egsbridge/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/egsbridge/internal/observability/metrics"
	obstracing "github.com/smallbiznis/egsbridge/internal/observability/tracing"
	"github.com/smallbiznis/egsbridge/internal/onboarding"
	onboardingdomain "github.com/smallbiznis/egsbridge/internal/onboarding/domain"
	"github.com/smallbiznis/egsbridge/internal/relay"
)

var Module = fx.Module("http.server",
	invoice.Module,
	relay.Module,
	onboarding.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obstracing.MiddlewareConfig{
		Environment: obsCfg.Environment,
		SkipRoutes:  obstracing.DefaultSkipRoutes,
	}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	schema        relay.Schema
	assembler     invoicedomain.Assembler
	onboardingSvc onboardingdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	Schema        relay.Schema
	Assembler     invoicedomain.Assembler
	OnboardingSvc onboardingdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		schema:        p.Schema,
		assembler:     p.Assembler,
		onboardingSvc: p.OnboardingSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Invoices --------
	api.POST("/invoices/assemble", s.AssembleInvoice)

	// -------- Onboarding --------
	onboarding := api.Group("/onboarding")
	onboarding.POST("/csr", s.GenerateCSR)
	onboarding.POST("/compliance", s.IssueCompliance)
	onboarding.POST("/run", s.Onboard)
	onboarding.POST("/finish", s.FinishOnboarding)
	onboarding.GET("/state/:environment/:key", s.GetOnboardingState)
}

// bindUnit tags the request context with the EGS unit a handler operates
// on, so logs and spans for the request carry it.
func bindUnit(c *gin.Context, unit string) {
	c.Request = c.Request.WithContext(obscontext.WithUnit(c.Request.Context(), unit))
}
