package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	auditdomain "github.com/denhac/memberbridge/internal/audit/domain"
	"github.com/denhac/memberbridge/internal/config"
	customerdomain "github.com/denhac/memberbridge/internal/customer/domain"
	"github.com/denhac/memberbridge/internal/event"
	"github.com/denhac/memberbridge/internal/eventbus"
	featuredomain "github.com/denhac/memberbridge/internal/feature/domain"
	jobsdomain "github.com/denhac/memberbridge/internal/jobs/domain"
	"github.com/denhac/memberbridge/internal/observability"
	obslogger "github.com/denhac/memberbridge/internal/observability/logger"
	obstracing "github.com/denhac/memberbridge/internal/observability/tracing"
	subscriptiondomain "github.com/denhac/memberbridge/internal/subscription/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// EventBus is the part of the bus the HTTP surface drives.
type EventBus interface {
	Append(ctx context.Context, payload event.Payload) (event.Event, error)
	Replay(ctx context.Context, projectorNames ...string) (eventbus.ReplayResult, error)
}

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg)
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
	engine          *gin.Engine
	log             *zap.Logger
	bus             EventBus
	customerSvc     customerdomain.Service
	subscriptionSvc subscriptiondomain.Service
	jobSvc          jobsdomain.Service
	featureSvc      featuredomain.Service
	auditSvc        auditdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Log             *zap.Logger
	Bus             *eventbus.Bus
	CustomerSvc     customerdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	JobSvc          jobsdomain.Service
	FeatureSvc      featuredomain.Service
	AuditSvc        auditdomain.Service `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		log:             p.Log.Named("http.server"),
		bus:             p.Bus,
		customerSvc:     p.CustomerSvc,
		subscriptionSvc: p.SubscriptionSvc,
		jobSvc:          p.JobSvc,
		featureSvc:      p.FeatureSvc,
		auditSvc:        p.AuditSvc,
	}
	svc.registerRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- Journal --------
	v1.POST("/events", s.AppendEvent)
	v1.POST("/replay", s.Replay)

	// -------- Read models --------
	v1.GET("/customers", s.ListCustomers)
	v1.GET("/customers/:id", s.GetCustomerByID)
	v1.GET("/customers/:id/subscriptions", s.ListCustomerSubscriptions)
	v1.GET("/subscriptions/:id", s.GetSubscriptionByID)

	// -------- Operations --------
	v1.GET("/jobs", s.ListJobs)
	v1.GET("/flags", s.ListFlags)
	v1.PUT("/flags/:name", s.SetFlag)
	v1.GET("/audit-logs", s.ListAuditLogs)

	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

// recordAudit writes an operator action. Failures are logged only.
func (s *Server) recordAudit(c *gin.Context, entry auditdomain.Entry) {
	if s.auditSvc == nil {
		return
	}
	entry.ActorType = auditdomain.ActorTypeOperator
	entry.ActorID = c.ClientIP()
	if err := s.auditSvc.Record(c.Request.Context(), entry); err != nil {
		s.log.Warn("audit write failed", zap.String("action", entry.Action), zap.Error(err))
	}
}
