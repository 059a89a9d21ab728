package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/referral/internal/apikey"
	apikeydomain "github.com/smallbiznis/referral/internal/apikey/domain"
	"github.com/smallbiznis/referral/internal/audit"
	auditdomain "github.com/smallbiznis/referral/internal/audit/domain"
	"github.com/smallbiznis/referral/internal/code"
	"github.com/smallbiznis/referral/internal/config"
	"github.com/smallbiznis/referral/internal/event"
	eventdomain "github.com/smallbiznis/referral/internal/event/domain"
	"github.com/smallbiznis/referral/internal/observability"
	obsmiddleware "github.com/smallbiznis/referral/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/referral/internal/observability/metrics"
	obstracing "github.com/smallbiznis/referral/internal/observability/tracing"
	"github.com/smallbiznis/referral/internal/participant"
	participantdomain "github.com/smallbiznis/referral/internal/participant/domain"
	"github.com/smallbiznis/referral/internal/product"
	"github.com/smallbiznis/referral/internal/program"
	programdomain "github.com/smallbiznis/referral/internal/program/domain"
	"github.com/smallbiznis/referral/internal/ratelimit"
	"github.com/smallbiznis/referral/internal/redirect"
	"github.com/smallbiznis/referral/internal/referral"
	referraldomain "github.com/smallbiznis/referral/internal/referral/domain"
	"github.com/smallbiznis/referral/internal/reward"
	rewarddomain "github.com/smallbiznis/referral/internal/reward/domain"
	"github.com/smallbiznis/referral/internal/seed"
	"github.com/smallbiznis/referral/internal/widget"
	widgetdomain "github.com/smallbiznis/referral/internal/widget/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	product.Module,
	program.Module,
	participant.Module,
	referral.Module,
	event.Module,
	reward.Module,
	apikey.Module,
	audit.Module,
	widget.Module,
	redirect.Module,
	ratelimit.Module,
	seed.Module,
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", srv.Addr))
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
	engine         *gin.Engine
	cfg            config.Config
	apiKeySvc      apikeydomain.Service
	auditSvc       auditdomain.Service
	eventSvc       eventdomain.Service
	participantSvc participantdomain.Service
	programSvc     programdomain.Service
	referralSvc    referraldomain.Service
	rewardSvc      rewarddomain.Service
	widgetSvc      widgetdomain.Service
	redirects      *redirect.Resolver
	codes          *code.Generator
	eventLimiter   *ratelimit.EventIngestLimiter
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	ReferralCfg    *config.ReferralConfigHolder `optional:"true"`
	APIKeySvc      apikeydomain.Service
	AuditSvc       auditdomain.Service `optional:"true"`
	EventSvc       eventdomain.Service
	ParticipantSvc participantdomain.Service
	ProgramSvc     programdomain.Service
	ReferralSvc    referraldomain.Service
	RewardSvc      rewarddomain.Service
	WidgetSvc      widgetdomain.Service
	Redirects      *redirect.Resolver
	EventLimiter   *ratelimit.EventIngestLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics           `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		apiKeySvc:      p.APIKeySvc,
		auditSvc:       p.AuditSvc,
		eventSvc:       p.EventSvc,
		participantSvc: p.ParticipantSvc,
		programSvc:     p.ProgramSvc,
		referralSvc:    p.ReferralSvc,
		rewardSvc:      p.RewardSvc,
		widgetSvc:      p.WidgetSvc,
		redirects:      p.Redirects,
		codes:          code.NewGenerator(nil, code.NewFilter(p.ReferralCfg.Get().BlockedWords)),
		eventLimiter:   p.EventLimiter,
		obsMetrics:     p.ObsMetrics,
	}

	svc.registerPublicRoutes()
	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	s.engine.GET("/r/:code", s.Redirect)
	s.engine.POST("/v1/widget/init", s.InitWidget)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1")

	// -------- Events --------
	api.POST("/events", s.APIKeyRequired(apikeydomain.ScopeEventsWrite), s.EventIngestRateLimit(), s.IngestEvent)
	api.GET("/events/:id", s.APIKeyRequired(apikeydomain.ScopeParticipantsRead), s.GetEvent)

	// -------- Participants --------
	participants := api.Group("/participants", s.APIKeyRequired(apikeydomain.ScopeParticipantsRead))
	{
		participants.GET("", s.ListParticipants)
		participants.GET("/:id", s.GetParticipantByID)
		participants.GET("/:id/link", s.GetParticipantLink)
		participants.GET("/:id/referrals", s.ListParticipantReferrals)
		participants.GET("/:id/rewards", s.ListParticipantRewards)
		participants.GET("/:id/events", s.ListParticipantEvents)
	}

	// -------- Programs --------
	programs := api.Group("/programs", s.APIKeyRequired(apikeydomain.ScopeProgramsWrite))
	{
		programs.GET("/:id", s.GetProgram)
		programs.POST("/:id/status", s.SetProgramStatus)
	}

	// -------- Vanity codes --------
	codes := api.Group("/codes", s.APIKeyRequired(""))
	{
		codes.GET("/validate", s.ValidateCode)
		codes.GET("/suggest", s.SuggestCode)
	}

	// -------- API keys --------
	keys := api.Group("/api-keys", s.APIKeyRequired(apikeydomain.ScopeAPIKeysWrite))
	{
		keys.GET("", s.ListAPIKeys)
		keys.GET("/scopes", s.ListAPIKeyScopes)
		keys.POST("", s.CreateAPIKey)
		keys.POST("/:key_id/rotate", s.RotateAPIKey)
		keys.POST("/:key_id/revoke", s.RevokeAPIKey)
	}

	// -------- Audit --------
	api.GET("/audit-logs", s.APIKeyRequired(apikeydomain.ScopeAPIKeysWrite), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
