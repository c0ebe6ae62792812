// Package main provides a CLI tool for seeding the database with demo data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gatepass/internal/core/types"
	"gatepass/internal/domain"
	"gatepass/internal/domain/catalogs/counterparty"
	"gatepass/internal/domain/catalogs/product"
	"gatepass/internal/domain/documents/invoice"
	"gatepass/internal/domain/ledger"
	"gatepass/internal/infrastructure/storage/postgres"
	"gatepass/internal/infrastructure/storage/postgres/catalog_repo"
	"gatepass/internal/infrastructure/storage/postgres/document_repo"
	"gatepass/internal/infrastructure/storage/postgres/ledger_repo"
	"gatepass/pkg/logger"
	"gatepass/pkg/sequence"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txManager := postgres.NewTxManager(pool)
	codes := sequence.New(txManager)

	stockRepo := ledger_repo.NewStockRepo(txManager)
	ledgerSvc := ledger.NewService(stockRepo)

	productRepo := catalog_repo.NewProductRepo(txManager)
	productSvc := product.NewService(productRepo, txManager, codes, ledgerSvc)

	counterpartyRepo := catalog_repo.NewCounterpartyRepo(txManager)
	counterpartySvc := counterparty.NewService(counterpartyRepo, txManager, codes)

	invoiceRepo := document_repo.NewInvoiceRepo(txManager)
	voucherRepo := document_repo.NewVoucherRepo(txManager)
	invoiceSvc := invoice.NewService(invoiceRepo, codes, txManager, voucherRepo)

	products, err := seedProducts(ctx, productSvc, log)
	if err != nil {
		log.Fatalw("failed to seed products", "error", err)
	}

	customer, err := seedCustomer(ctx, counterpartySvc, log)
	if err != nil {
		log.Fatalw("failed to seed customer", "error", err)
	}

	if err := seedInvoice(ctx, invoiceSvc, customer, products, log); err != nil {
		log.Fatalw("failed to seed invoice", "error", err)
	}

	log.Info("seeding completed successfully")
}

func seedProducts(ctx context.Context, svc *product.Service, log *logger.Logger) ([]*product.Product, error) {
	seedRows := []struct {
		name         string
		category     string
		unitPrice    string
		stock        float64
		reorderPoint float64
	}{
		{"Cement 50kg", "Building materials", "12.50", 400, 50},
		{"Steel rebar 12mm", "Building materials", "8.75", 1200, 200},
		{"Ceramic tile 30x30", "Finishing", "22.00", 650, 100},
		{"Paint white 10L", "Finishing", "35.90", 80, 20},
	}

	products := make([]*product.Product, 0, len(seedRows))
	for _, row := range seedRows {
		// Skip products that already exist (seed is re-runnable)
		if existing, err := findProductByName(ctx, svc, row.name); err == nil && existing != nil {
			products = append(products, existing)
			continue
		}

		p := product.NewProduct(row.name, types.MustMoney(row.unitPrice), types.MustMoney("20"))
		category := row.category
		p.Category = &category
		p.Stock = types.NewQuantityFromFloat64(row.stock)
		p.ReorderPoint = types.NewQuantityFromFloat64(row.reorderPoint)

		if err := svc.Create(ctx, p); err != nil {
			return nil, err
		}
		log.Infow("product created", "code", p.Code, "name", p.Name)
		products = append(products, p)
	}

	return products, nil
}

func findProductByName(ctx context.Context, svc *product.Service, name string) (*product.Product, error) {
	result, err := svc.List(ctx, listFilterWithSearch(name))
	if err != nil {
		return nil, err
	}
	for _, p := range result.Items {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, nil
}

func seedCustomer(ctx context.Context, svc *counterparty.Service, log *logger.Logger) (*counterparty.Counterparty, error) {
	const name = "Batipro SARL"

	result, err := svc.List(ctx, listFilterWithSearch(name))
	if err != nil {
		return nil, err
	}
	for _, cp := range result.Items {
		if cp.Name == name {
			return cp, nil
		}
	}

	cp := counterparty.NewCounterparty(name, counterparty.KindCustomer)
	taxID := "FR40123456824"
	address := "12 rue des Chantiers, Lyon"
	cp.TaxID = &taxID
	cp.Address = &address

	if err := svc.Create(ctx, cp); err != nil {
		return nil, err
	}
	log.Infow("customer created", "code", cp.Code, "name", cp.Name)
	return cp, nil
}

func seedInvoice(
	ctx context.Context,
	svc *invoice.Service,
	customer *counterparty.Counterparty,
	products []*product.Product,
	log *logger.Logger,
) error {
	docFilter := listFilterWithSearch("")
	docFilter.OrderBy = ""
	existing, err := svc.List(ctx, invoice.ListFilter{ListFilter: docFilter})
	if err != nil {
		return err
	}
	if existing.TotalCount > 0 {
		return nil
	}

	doc := invoice.NewInvoice(customer.ID, time.Now().UTC())
	doc.AddLine(products[0].ID, types.NewQuantityFromInt(20))
	doc.AddLine(products[1].ID, types.NewQuantityFromInt(100))
	doc.SetAmounts(types.MustMoney("1125.00"), types.MustMoney("20"))

	if err := svc.Create(ctx, doc); err != nil {
		return err
	}
	log.Infow("invoice created", "number", doc.Number)
	return nil
}

func listFilterWithSearch(search string) domain.ListFilter {
	f := domain.DefaultListFilter()
	f.Search = search
	return f
}
