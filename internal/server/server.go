package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/storefront/internal/billingprofile"
	billingprofiledomain "github.com/smallbiznis/storefront/internal/billingprofile/domain"
	"github.com/smallbiznis/storefront/internal/catalog"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/gateway"
	"github.com/smallbiznis/storefront/internal/invoice"
	invoicedomain "github.com/smallbiznis/storefront/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/storefront/internal/observability/metrics"
	obstracing "github.com/smallbiznis/storefront/internal/observability/tracing"
	"github.com/smallbiznis/storefront/internal/payment"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/smallbiznis/storefront/internal/providers/email"
	"github.com/smallbiznis/storefront/internal/ratelimit"
	"github.com/smallbiznis/storefront/internal/reconcile"
	reconciledomain "github.com/smallbiznis/storefront/internal/reconcile/domain"
	"github.com/smallbiznis/storefront/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/storefront/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	gateway.Module,
	ratelimit.Module,
	email.Module,
	billingprofile.Module,
	subscription.Module,
	invoice.Module,
	payment.Module,
	reconcile.Module,
	catalog.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
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
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node

	billingProfileSvc billingprofiledomain.Service
	subscriptionSvc   subscriptiondomain.Service
	invoiceSvc        invoicedomain.Service
	paymentSvc        paymentdomain.Service
	webhookSvc        paymentdomain.WebhookService
	reconcileSvc      reconciledomain.Service
	catalogSvc        catalogdomain.Service
	gateway           paymentdomain.Gateway

	confirmLimiter *ratelimit.ConfirmLimiter
	metrics        *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node

	BillingProfileSvc billingprofiledomain.Service
	SubscriptionSvc   subscriptiondomain.Service
	InvoiceSvc        invoicedomain.Service
	PaymentSvc        paymentdomain.Service
	WebhookSvc        paymentdomain.WebhookService
	ReconcileSvc      reconciledomain.Service
	CatalogSvc        catalogdomain.Service
	Gateway           paymentdomain.Gateway

	ConfirmLimiter *ratelimit.ConfirmLimiter `optional:"true"`
	Metrics        *obsmetrics.Metrics       `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine: p.Gin,
		cfg:    p.Cfg,
		db:     p.DB,
		log:    p.Log.Named("http.server"),
		genID:  p.GenID,

		billingProfileSvc: p.BillingProfileSvc,
		subscriptionSvc:   p.SubscriptionSvc,
		invoiceSvc:        p.InvoiceSvc,
		paymentSvc:        p.PaymentSvc,
		webhookSvc:        p.WebhookSvc,
		reconcileSvc:      p.ReconcileSvc,
		catalogSvc:        p.CatalogSvc,
		gateway:           p.Gateway,

		confirmLimiter: p.ConfirmLimiter,
		metrics:        p.Metrics,
	}

	svc.registerPaymentRoutes()
	svc.registerPGRoutes()
	svc.registerWebhookRoutes()
	svc.registerSubscriptionRoutes()
	svc.registerBillingKeyRoutes()
	svc.registerCatalogRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPaymentRoutes() {
	payments := s.engine.Group("/payments", s.MemberAuthRequired(), s.ConfirmRateLimit())

	payments.POST("/confirm/:invoiceId", s.ConfirmInvoice)
	payments.POST("/confirm-by-payment-id", s.ConfirmByPaymentID)
}

func (s *Server) registerPGRoutes() {
	pg := s.engine.Group("/pg", s.MemberAuthRequired())

	pg.GET("/lookup", s.LookupPayment)
	pg.GET("/return", s.BillingKeyReturn)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/pg", s.HandleWebhook)
}

func (s *Server) registerSubscriptionRoutes() {
	s.engine.POST("/sub", s.MemberAuthRequired(), s.ConfirmRateLimit(), s.StartSubscription)
}

func (s *Server) registerBillingKeyRoutes() {
	keys := s.engine.Group("/billing-keys", s.MemberAuthRequired())

	keys.POST("", s.CreateBillingKey)
	keys.GET("/list", s.ListBillingKeys)
	keys.DELETE("/:id", s.DeleteBillingKey)
}

func (s *Server) registerCatalogRoutes() {
	api := s.engine.Group("/api")

	api.GET("/products", s.ListProducts)
	api.GET("/products/:slug", s.GetProduct)
	api.POST("/products", s.CreateProduct)
	api.DELETE("/products/:slug", s.DeactivateProduct)

	api.GET("/brands", s.ListBrands)
	api.POST("/brands", s.CreateBrand)

	api.GET("/categories", s.ListCategories)
	api.POST("/categories", s.CreateCategory)
}
