package v1

import (
	"github.com/gin-gonic/gin"

	"gatepass/internal/domain/catalogs/counterparty"
	"gatepass/internal/domain/catalogs/product"
	"gatepass/internal/domain/documents/invoice"
	"gatepass/internal/domain/documents/voucher"
	"gatepass/internal/domain/ledger"
	"gatepass/internal/infrastructure/http/v1/handlers"
	"gatepass/internal/infrastructure/http/v1/middleware"
	"gatepass/internal/infrastructure/storage/postgres"
	"gatepass/internal/infrastructure/storage/postgres/catalog_repo"
	"gatepass/internal/infrastructure/storage/postgres/document_repo"
	"gatepass/internal/infrastructure/storage/postgres/ledger_repo"
	"gatepass/pkg/logger"
	"gatepass/pkg/sequence"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (used by health checks)
	Pool *postgres.Pool

	// TxManager runs each mutating request as one transaction
	TxManager *postgres.TxManager

	// Logger for request logging
	Logger *logger.Logger

	// Audit records voucher lifecycle events; nil disables auditing
	Audit *postgres.AuditService
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// Shared dependencies
	baseHandler := handlers.NewBaseHandler()
	codes := sequence.New(cfg.TxManager)

	stockRepo := ledger_repo.NewStockRepo(cfg.TxManager)
	ledgerSvc := ledger.NewService(stockRepo)
	stockValidator := ledger.NewValidator(stockRepo)

	productRepo := catalog_repo.NewProductRepo(cfg.TxManager)
	productSvc := product.NewService(productRepo, cfg.TxManager, codes, ledgerSvc)

	counterpartyRepo := catalog_repo.NewCounterpartyRepo(cfg.TxManager)
	counterpartySvc := counterparty.NewService(counterpartyRepo, cfg.TxManager, codes)

	voucherRepo := document_repo.NewVoucherRepo(cfg.TxManager)
	invoiceRepo := document_repo.NewInvoiceRepo(cfg.TxManager)
	invoiceSvc := invoice.NewService(invoiceRepo, codes, cfg.TxManager, voucherRepo)

	var audit voucher.AuditLogger
	if cfg.Audit != nil {
		audit = document_repo.NewVoucherAuditLogger(cfg.Audit)
	}
	voucherSvc := voucher.NewService(
		voucherRepo,
		invoiceSvc,
		ledgerSvc,
		stockValidator,
		codes,
		cfg.TxManager,
		audit,
	)

	// API v1
	api := router.Group("/api/v1")
	{
		// --- PRODUCTS ---
		{
			handler := handlers.NewProductHandler(baseHandler, productSvc)
			group := api.Group("/products")
			group.GET("/low-stock", handler.LowStock)
			group.GET("/:id/stock", handler.Stock)
			RegisterCatalogRoutes(group, handler)
		}

		// --- COUNTERPARTIES ---
		{
			handler := handlers.NewCounterpartyHandler(baseHandler, counterpartySvc)
			group := api.Group("/counterparties")
			group.GET("/by-tax-id/:taxId", handler.ByTaxID)
			RegisterCatalogRoutes(group, handler)
		}

		// --- INVOICES ---
		{
			handler := handlers.NewInvoiceHandler(baseHandler, invoiceSvc)
			RegisterDocumentRoutes(api.Group("/invoices"), handler)
		}

		// --- EXIT VOUCHERS ---
		{
			handler := handlers.NewVoucherHandler(baseHandler, voucherSvc)
			group := api.Group("/vouchers")
			group.GET("/:id/movements", handler.Movements)
			RegisterDocumentRoutes(group, handler)
		}

		// --- STOCK LEDGER ---
		{
			handler := handlers.NewStockHandler(baseHandler, ledgerSvc)
			group := api.Group("/stock")
			group.GET("/movements/:productId", handler.Movements)
			group.GET("/levels/:productId", handler.Level)
		}
	}

	return router
}
