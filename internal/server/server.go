package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/crm/internal/config"
	"github.com/smallbiznis/crm/internal/customer"
	customerdomain "github.com/smallbiznis/crm/internal/customer/domain"
	"github.com/smallbiznis/crm/internal/events"
	"github.com/smallbiznis/crm/internal/jobrun"
	jobrundomain "github.com/smallbiznis/crm/internal/jobrun/domain"
	"github.com/smallbiznis/crm/internal/observability"
	obsmiddleware "github.com/smallbiznis/crm/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/crm/internal/observability/metrics"
	obstracing "github.com/smallbiznis/crm/internal/observability/tracing"
	"github.com/smallbiznis/crm/internal/order"
	orderdomain "github.com/smallbiznis/crm/internal/order/domain"
	"github.com/smallbiznis/crm/internal/product"
	productdomain "github.com/smallbiznis/crm/internal/product/domain"
	"github.com/smallbiznis/crm/internal/providers"
	"github.com/smallbiznis/crm/internal/providers/pdf"
	"github.com/smallbiznis/crm/internal/scheduler"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// HelloMessage is the body of the health endpoint.
const HelloMessage = "Hello, CRM!"

// Services holds the domain modules served over HTTP. Binaries that run jobs
// without the API include it too.
var Services = fx.Options(
	events.Module,
	customer.Module,
	product.Module,
	order.Module,
	jobrun.Module,
	providers.Module,
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterRoutes()
	}),
	fx.Invoke(RunHTTP),
)

type EngineParams struct {
	fx.In

	Cfg         config.Config `optional:"true"`
	ObsCfg      observability.Config
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
}

func NewEngine(p EngineParams) *gin.Engine {
	if p.Cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           p.ObsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(p.HTTPMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": HelloMessage})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
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

type ServerParams struct {
	fx.In

	Engine      *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	CustomerSvc customerdomain.Service
	ProductSvc  productdomain.Service
	OrderSvc    orderdomain.Service
	JobRunSvc   jobrundomain.Service
	Receipts    pdf.Provider
	Scheduler   *scheduler.Scheduler `optional:"true"`
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	customerSvc customerdomain.Service
	productSvc  productdomain.Service
	orderSvc    orderdomain.Service
	jobRunSvc   jobrundomain.Service
	receipts    pdf.Provider
	scheduler   *scheduler.Scheduler
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:      p.Engine,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		customerSvc: p.CustomerSvc,
		productSvc:  p.ProductSvc,
		orderSvc:    p.OrderSvc,
		jobRunSvc:   p.JobRunSvc,
		receipts:    p.Receipts,
		scheduler:   p.Scheduler,
	}
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")

	customers := api.Group("/customers")
	customers.POST("", s.CreateCustomer)
	customers.POST("/bulk", s.BulkCreateCustomers)
	customers.GET("", s.ListCustomers)
	customers.GET("/:id", s.GetCustomerByID)
	customers.PATCH("/:id", s.UpdateCustomer)
	customers.DELETE("/:id", s.DeleteCustomer)

	products := api.Group("/products")
	products.POST("", s.CreateProduct)
	products.GET("", s.ListProducts)
	products.POST("/replenish-low-stock", s.ReplenishLowStock)
	products.GET("/:id", s.GetProductByID)
	products.PATCH("/:id", s.UpdateProduct)

	orders := api.Group("/orders")
	orders.POST("", s.CreateOrder)
	orders.GET("", s.ListOrders)
	orders.GET("/:id", s.GetOrderByID)
	orders.POST("/:id/products", s.AddOrderProducts)
	orders.DELETE("/:id/products", s.RemoveOrderProducts)
	orders.PUT("/:id/products", s.ReplaceOrderProducts)
	orders.POST("/:id/recompute-total", s.RecomputeOrderTotal)
	orders.GET("/:id/receipt", s.GetOrderReceipt)

	jobs := api.Group("/jobs")
	jobs.GET("/runs", s.ListJobRuns)
	jobs.POST("/:name/run", s.RunJob)
}
