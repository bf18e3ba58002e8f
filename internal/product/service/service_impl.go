package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/crm/internal/clock"
	"github.com/smallbiznis/crm/internal/events"
	obsmetrics "github.com/smallbiznis/crm/internal/observability/metrics"
	"github.com/smallbiznis/crm/internal/product/domain"
	"github.com/smallbiznis/crm/internal/validation"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock `optional:"true"`
	Repo      domain.Repository
	Publisher events.Publisher    `optional:"true"`
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	genID     *snowflake.Node
	clock     clock.Clock
	publisher events.Publisher
	metrics   *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("product.service"),
		repo:      p.Repo,
		genID:     p.GenID,
		clock:     clk,
		publisher: publisher,
		metrics:   p.Metrics,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	filter := domain.ListFilter{
		Name:     strings.TrimSpace(req.Name),
		PriceMin: req.PriceMin,
		PriceMax: req.PriceMax,
		StockMin: req.StockMin,
		StockMax: req.StockMax,
		LowStock: req.LowStock,
		SortBy:   strings.TrimSpace(req.SortBy),
		OrderBy:  strings.TrimSpace(req.OrderBy),
	}
	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}.Normalize()

	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return nil, err
	}
	items, pageInfo, err := pagination.Trim(items, page)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}

	return &domain.ListResponse{PageInfo: pageInfo, Products: resp}, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	price := req.Price.Round(2)
	stock := 0
	if req.Stock != nil {
		stock = *req.Stock
	}

	if err := validateProduct(name, price, stock); err != nil {
		s.metrics.RecordValidationFailure(ctx, "product")
		return nil, err
	}

	now := s.clock.Now().UTC()
	p := &domain.Product{
		ID:        s.genID.Generate(),
		Name:      name,
		Price:     price,
		Stock:     stock,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, s.db, p); err != nil {
		return nil, err
	}

	s.log.Info("product created", zap.String("product_id", p.ID.String()))
	resp := toResponse(p)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	resp := toResponse(item)
	return &resp, nil
}

// Update edits a product. A price change rewrites the total of every order
// holding the product in the same transaction.
func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	productID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	var item *domain.Product
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err = s.repo.FindByID(ctx, tx, productID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}

		previousPrice := item.Price
		if req.Name != nil {
			item.Name = strings.TrimSpace(*req.Name)
		}
		if req.Price != nil {
			item.Price = req.Price.Round(2)
		}
		if req.Stock != nil {
			item.Stock = *req.Stock
		}
		if err := validateProduct(item.Name, item.Price, item.Stock); err != nil {
			s.metrics.RecordValidationFailure(ctx, "product")
			return err
		}

		now := s.clock.Now().UTC()
		item.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, item); err != nil {
			return err
		}
		if item.Price.Equal(previousPrice) {
			return nil
		}

		orders, err := s.repo.RecomputeOrderTotals(ctx, tx, item.ID, now)
		if err != nil {
			return fmt.Errorf("recompute order totals: %w", err)
		}
		if orders > 0 {
			s.log.Info("order totals recomputed after price change",
				zap.String("product_id", item.ID.String()),
				zap.Int("orders", orders),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := toResponse(item)
	return &resp, nil
}

// ReplenishLowStock adds the restock amount to every product under the
// threshold, one atomic update per product. Updates are not rolled back when a
// later one fails; the products already updated are returned with the error.
func (s *Service) ReplenishLowStock(ctx context.Context, req domain.ReplenishRequest) (*domain.ReplenishResult, error) {
	threshold := req.Threshold
	if threshold == 0 {
		threshold = domain.LowStockThreshold
	}
	if threshold < 0 {
		return nil, domain.ErrInvalidThreshold
	}
	amount := req.RestockAmount
	if amount == 0 {
		amount = domain.DefaultRestockAmount
	}
	if amount < 0 {
		return nil, domain.ErrInvalidRestock
	}

	result := &domain.ReplenishResult{Products: []domain.Response{}}

	items, err := s.repo.ListLowStock(ctx, s.db, threshold)
	if err != nil {
		return result, fmt.Errorf("scan low stock products: %w", err)
	}
	if len(items) == 0 {
		result.Message = domain.MsgNoLowStock
		return result, nil
	}

	for i := range items {
		item := items[i]
		if err := ctx.Err(); err != nil {
			s.finishReplenish(ctx, req.Trigger, result)
			return result, err
		}

		if err := s.repo.IncrementStock(ctx, s.db, item.ID, amount, s.clock.Now().UTC()); err != nil {
			s.finishReplenish(ctx, req.Trigger, result)
			return result, fmt.Errorf("restock product %s: %w", item.ID, err)
		}

		updated, err := s.repo.FindByID(ctx, s.db, item.ID)
		if err != nil || updated == nil {
			// The increment is committed; report the expected value.
			item.Stock += amount
			updated = &item
		}
		result.Products = append(result.Products, toResponse(updated))
	}

	result.Message = fmt.Sprintf(domain.MsgReplenishedFmt, len(result.Products))
	s.finishReplenish(ctx, req.Trigger, result)
	return result, nil
}

func (s *Service) finishReplenish(ctx context.Context, trigger string, result *domain.ReplenishResult) {
	if len(result.Products) == 0 {
		return
	}
	if trigger == "" {
		trigger = "api"
	}
	s.metrics.RecordProductsRestocked(ctx, trigger, len(result.Products))

	ids := make([]string, 0, len(result.Products))
	for _, p := range result.Products {
		ids = append(ids, p.ID)
	}
	if err := s.publisher.Publish(ctx, events.Event{
		Type:       events.TypeProductsRestocked,
		OccurredAt: s.clock.Now().UTC(),
		Payload:    map[string]any{"product_ids": ids, "trigger": trigger},
	}); err != nil {
		s.log.Warn("publish restock event failed", zap.Error(err))
	}

	s.log.Info("low stock products replenished",
		zap.String("trigger", trigger),
		zap.Int("count", len(result.Products)),
	)
}

func validateProduct(name string, price decimal.Decimal, stock int) error {
	var verrs validation.Errors
	if name == "" {
		verrs.Add("name", validation.CodeRequired, validation.MsgNameRequired)
	}
	if !price.IsPositive() {
		verrs.Add("price", validation.CodeInvalid, validation.MsgPriceNotPositive)
	}
	if stock < 0 {
		verrs.Add("stock", validation.CodeInvalid, validation.MsgStockNegative)
	}
	return verrs.Err()
}

func toResponse(p *domain.Product) domain.Response {
	return domain.Response{
		ID:        p.ID.String(),
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
		LowStock:  p.Stock < domain.LowStockThreshold,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
