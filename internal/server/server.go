package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/referrals/internal/account"
	accountdomain "github.com/smallbiznis/referrals/internal/account/domain"
	"github.com/smallbiznis/referrals/internal/commission"
	commissiondomain "github.com/smallbiznis/referrals/internal/commission/domain"
	"github.com/smallbiznis/referrals/internal/config"
	"github.com/smallbiznis/referrals/internal/dashboard"
	dashboarddomain "github.com/smallbiznis/referrals/internal/dashboard/domain"
	"github.com/smallbiznis/referrals/internal/invitation"
	invitationdomain "github.com/smallbiznis/referrals/internal/invitation/domain"
	obslogger "github.com/smallbiznis/referrals/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/referrals/internal/observability/metrics"
	obstracing "github.com/smallbiznis/referrals/internal/observability/tracing"
	"github.com/smallbiznis/referrals/internal/providers"
	"github.com/smallbiznis/referrals/internal/providers/pdf"
	"github.com/smallbiznis/referrals/internal/ratelimit"
	"github.com/smallbiznis/referrals/internal/referral"
	referraldomain "github.com/smallbiznis/referrals/internal/referral/domain"
	"github.com/smallbiznis/referrals/internal/subscription"
	"github.com/smallbiznis/referrals/internal/webhook"
	webhookdomain "github.com/smallbiznis/referrals/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	account.Module,
	subscription.Module,
	referral.Module,
	commission.Module,
	invitation.Module,
	providers.Module,
	ratelimit.Module,
	webhook.Module,
	dashboard.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Log:             log,
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

func registerGin(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(log, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
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
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	webhookSvc     webhookdomain.Service
	accountSvc     accountdomain.Service
	referralSvc    referraldomain.Service
	commissionSvc  commissiondomain.Service
	invitationSvc  invitationdomain.Service
	dashboardSvc   dashboarddomain.Service
	pdfProvider    pdf.Provider
	webhookLimiter *ratelimit.WebhookLimiter
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	WebhookSvc     webhookdomain.Service
	AccountSvc     accountdomain.Service
	ReferralSvc    referraldomain.Service
	CommissionSvc  commissiondomain.Service
	InvitationSvc  invitationdomain.Service
	DashboardSvc   dashboarddomain.Service
	PDFProvider    pdf.Provider
	WebhookLimiter *ratelimit.WebhookLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics       `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		webhookSvc:     p.WebhookSvc,
		accountSvc:     p.AccountSvc,
		referralSvc:    p.ReferralSvc,
		commissionSvc:  p.CommissionSvc,
		invitationSvc:  p.InvitationSvc,
		dashboardSvc:   p.DashboardSvc,
		pdfProvider:    p.PDFProvider,
		webhookLimiter: p.WebhookLimiter,
		obsMetrics:     p.ObsMetrics,
	}

	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	hooks := s.engine.Group("/api/webhook", s.WebhookRateLimit())

	hooks.POST("/user-signup", s.HandleUserSignup)
	hooks.POST("/partner-signup", s.HandlePartnerSignup)
	hooks.POST("/user-events", s.HandleUserEvents)
	hooks.POST("/identity", s.HandleIdentityEvent)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AdminAuthRequired())

	// -------- Accounts --------
	api.GET("/accounts", s.LookupAccount)
	api.GET("/accounts/:id", s.GetAccountByID)

	// -------- Partners --------
	partners := api.Group("/partners/:id")
	{
		partners.GET("/commissions", s.ListCommissions)
		partners.GET("/commissions/summary", s.GetCommissionSummary)
		partners.GET("/commissions/statement.pdf", s.DownloadCommissionStatement)
		partners.GET("/invites", s.ListReferralInvites)
		partners.POST("/invites", s.CreateReferralInvite)
	}
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.AdminAuthRequired())

	admin.GET("/overview", s.GetAdminOverview)
	admin.GET("/webhook-deliveries", s.ListWebhookDeliveries)
	admin.GET("/partners/:id/referral-tree", s.GetReferralTree)
	admin.GET("/partners/:id/invitations", s.ListPartnerInvitations)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
