// Package seed loads sample customers, products and orders through the
// regular services so every record passes validation.
package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/crm/internal/config"
	customerdomain "github.com/smallbiznis/crm/internal/customer/domain"
	orderdomain "github.com/smallbiznis/crm/internal/order/domain"
	productdomain "github.com/smallbiznis/crm/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type sampleCustomer struct {
	name  string
	email string
	phone string
}

type sampleProduct struct {
	name  string
	price string
	stock int
}

type sampleOrder struct {
	email    string
	products []string
}

var sampleCustomers = []sampleCustomer{
	{name: "Alice", email: "alice@example.com", phone: "+1234567890"},
	{name: "Bob", email: "bob@example.com", phone: "123-456-7890"},
	{name: "Carol", email: "carol@example.com"},
	{name: "Dave", email: "dave@example.com", phone: "(555) 123-4567"},
	{name: "Eve", email: "eve@example.com"},
}

var sampleProducts = []sampleProduct{
	{name: "Laptop", price: "999.99", stock: 10},
	{name: "Mouse", price: "19.99", stock: 100},
	{name: "Keyboard", price: "49.99", stock: 8},
	{name: "Monitor", price: "199.99", stock: 15},
	{name: "USB Cable", price: "9.99", stock: 5},
	{name: "Headphones", price: "79.99", stock: 3},
	{name: "Webcam", price: "59.99", stock: 25},
}

var sampleOrders = []sampleOrder{
	{email: "alice@example.com", products: []string{"Laptop", "Mouse"}},
	{email: "bob@example.com", products: []string{"Keyboard", "Monitor"}},
	{email: "carol@example.com", products: []string{"USB Cable"}},
	{email: "dave@example.com", products: []string{"Headphones", "Webcam", "Mouse"}},
	{email: "eve@example.com", products: []string{"Laptop"}},
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Customers customerdomain.Service
	Products  productdomain.Service
	Orders    orderdomain.Service
}

type Seeder struct {
	log       *zap.Logger
	customers customerdomain.Service
	products  productdomain.Service
	orders    orderdomain.Service
}

// Summary counts the records created by one Run.
type Summary struct {
	Customers int
	Products  int
	Orders    int
}

func New(p Params) *Seeder {
	return &Seeder{
		log:       p.Log.Named("seed"),
		customers: p.Customers,
		products:  p.Products,
		orders:    p.Orders,
	}
}

// Run creates whatever sample data is missing. Customers and products are
// matched by email and name; orders are only created into an empty table.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	customerIDs := make(map[string]string, len(sampleCustomers))
	for _, sample := range sampleCustomers {
		id, created, err := s.ensureCustomer(ctx, sample)
		if err != nil {
			return summary, fmt.Errorf("seed customer %s: %w", sample.email, err)
		}
		customerIDs[sample.email] = id
		if created {
			summary.Customers++
		}
	}

	productIDs := make(map[string]string, len(sampleProducts))
	for _, sample := range sampleProducts {
		id, created, err := s.ensureProduct(ctx, sample)
		if err != nil {
			return summary, fmt.Errorf("seed product %s: %w", sample.name, err)
		}
		productIDs[sample.name] = id
		if created {
			summary.Products++
		}
	}

	existing, err := s.orders.List(ctx, orderdomain.ListRequest{PageSize: 1})
	if err != nil {
		return summary, err
	}
	if len(existing.Orders) == 0 {
		for _, sample := range sampleOrders {
			ids := make([]string, 0, len(sample.products))
			for _, name := range sample.products {
				ids = append(ids, productIDs[name])
			}
			if _, err := s.orders.Create(ctx, orderdomain.CreateRequest{
				CustomerID: customerIDs[sample.email],
				ProductIDs: ids,
			}); err != nil {
				return summary, fmt.Errorf("seed order for %s: %w", sample.email, err)
			}
			summary.Orders++
		}
	}

	s.log.Info("sample data seeded",
		zap.Int("customers", summary.Customers),
		zap.Int("products", summary.Products),
		zap.Int("orders", summary.Orders),
	)
	return summary, nil
}

func (s *Seeder) ensureCustomer(ctx context.Context, sample sampleCustomer) (string, bool, error) {
	found, err := s.customers.List(ctx, customerdomain.ListCustomerRequest{Email: sample.email})
	if err != nil {
		return "", false, err
	}
	for _, c := range found.Customers {
		if c.Email == sample.email {
			return c.ID.String(), false, nil
		}
	}

	req := customerdomain.CreateCustomerRequest{Name: sample.name, Email: sample.email}
	if sample.phone != "" {
		phone := sample.phone
		req.Phone = &phone
	}
	created, err := s.customers.Create(ctx, req)
	if err != nil {
		return "", false, err
	}
	return created.ID.String(), true, nil
}

func (s *Seeder) ensureProduct(ctx context.Context, sample sampleProduct) (string, bool, error) {
	found, err := s.products.List(ctx, productdomain.ListRequest{Name: sample.name})
	if err != nil {
		return "", false, err
	}
	for _, p := range found.Products {
		if strings.EqualFold(p.Name, sample.name) {
			return p.ID, false, nil
		}
	}

	stock := sample.stock
	created, err := s.products.Create(ctx, productdomain.CreateRequest{
		Name:  sample.name,
		Price: decimal.RequireFromString(sample.price),
		Stock: &stock,
	})
	if err != nil {
		return "", false, err
	}
	return created.ID, true, nil
}

var Module = fx.Module("seed",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, seeder *Seeder) {
		if !cfg.Bootstrap.SeedSampleData {
			return
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				_, err := seeder.Run(ctx)
				return err
			},
		})
	}),
)
