package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/crm/internal/clock"
	customerdomain "github.com/smallbiznis/crm/internal/customer/domain"
	"github.com/smallbiznis/crm/internal/events"
	obsmetrics "github.com/smallbiznis/crm/internal/observability/metrics"
	"github.com/smallbiznis/crm/internal/order/domain"
	productdomain "github.com/smallbiznis/crm/internal/product/domain"
	"github.com/smallbiznis/crm/internal/validation"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock `optional:"true"`
	Repo         domain.Repository
	CustomerRepo customerdomain.Repository
	ProductRepo  productdomain.Repository
	Publisher    events.Publisher    `optional:"true"`
	Metrics      *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	customerRepo customerdomain.Repository
	productRepo  productdomain.Repository
	publisher    events.Publisher
	metrics      *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("order.service"),
		genID:        p.GenID,
		clock:        clk,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		productRepo:  p.ProductRepo,
		publisher:    publisher,
		metrics:      p.Metrics,
	}
}

// Create validates the customer and product references, then inserts the
// order, its product links and its total in one transaction.
func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	var order domain.Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var verrs validation.Errors

		customerID, err := s.resolveCustomer(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}
		if customerID == 0 {
			verrs.Add("customer_id", validation.CodeNotFound, validation.MsgInvalidCustomerID)
		}

		productIDs, productErrs, err := s.resolveProducts(ctx, tx, req.ProductIDs)
		if err != nil {
			return err
		}
		verrs = append(verrs, productErrs...)

		if err := verrs.Err(); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		orderDate := now
		if req.OrderDate != nil && !req.OrderDate.IsZero() {
			orderDate = req.OrderDate.UTC()
		}

		order = domain.Order{
			ID:          s.genID.Generate(),
			CustomerID:  customerID,
			TotalAmount: decimal.Zero,
			OrderDate:   orderDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Insert(ctx, tx, &order); err != nil {
			return err
		}
		if err := s.repo.AddProducts(ctx, tx, order.ID, productIDs); err != nil {
			return err
		}
		total, err := s.recompute(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		order.TotalAmount = total
		return nil
	})
	if err != nil {
		if _, ok := validation.As(err); ok {
			s.metrics.RecordValidationFailure(ctx, "order")
		}
		return nil, err
	}

	s.metrics.RecordOrderCreated(ctx)
	if err := s.publisher.Publish(ctx, events.Event{
		Type:       events.TypeOrderCreated,
		OccurredAt: order.CreatedAt,
		Payload: map[string]any{
			"order_id":     order.ID.String(),
			"customer_id":  order.CustomerID.String(),
			"total_amount": order.TotalAmount.StringFixed(2),
		},
	}); err != nil {
		s.log.Warn("publish order event failed", zap.String("order_id", order.ID.String()), zap.Error(err))
	}
	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
	)

	return s.load(ctx, s.db, order.ID)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	orderID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	return s.load(ctx, s.db, orderID)
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	filter := domain.ListFilter{
		CustomerName:  strings.TrimSpace(req.CustomerName),
		ProductName:   strings.TrimSpace(req.ProductName),
		TotalMin:      req.TotalMin,
		TotalMax:      req.TotalMax,
		OrderDateFrom: req.OrderDateFrom,
		OrderDateTo:   req.OrderDateTo,
		SortBy:        strings.TrimSpace(req.SortBy),
		OrderBy:       strings.TrimSpace(req.OrderBy),
	}
	if value := strings.TrimSpace(req.CustomerID); value != "" {
		id, err := parseID(value)
		if err != nil {
			return nil, domain.ErrInvalidFilterID
		}
		filter.CustomerID = id
	}
	if value := strings.TrimSpace(req.ProductID); value != "" {
		id, err := parseID(value)
		if err != nil {
			return nil, domain.ErrInvalidFilterID
		}
		filter.ProductID = id
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

	orders, err := s.buildResponses(ctx, s.db, items)
	if err != nil {
		return nil, err
	}
	return &domain.ListResponse{PageInfo: pageInfo, Orders: orders}, nil
}

func (s *Service) AddProducts(ctx context.Context, req domain.ProductsRequest) (*domain.Response, error) {
	return s.mutateProducts(ctx, req, true, func(tx *gorm.DB, orderID snowflake.ID, productIDs []snowflake.ID) error {
		return s.repo.AddProducts(ctx, tx, orderID, productIDs)
	})
}

func (s *Service) RemoveProducts(ctx context.Context, req domain.ProductsRequest) (*domain.Response, error) {
	return s.mutateProducts(ctx, req, false, func(tx *gorm.DB, orderID snowflake.ID, productIDs []snowflake.ID) error {
		return s.repo.RemoveProducts(ctx, tx, orderID, productIDs)
	})
}

func (s *Service) ReplaceProducts(ctx context.Context, req domain.ProductsRequest) (*domain.Response, error) {
	return s.mutateProducts(ctx, req, true, func(tx *gorm.DB, orderID snowflake.ID, productIDs []snowflake.ID) error {
		if err := s.repo.ClearProducts(ctx, tx, orderID); err != nil {
			return err
		}
		return s.repo.AddProducts(ctx, tx, orderID, productIDs)
	})
}

func (s *Service) RecomputeTotal(ctx context.Context, id string) (*domain.Response, error) {
	orderID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrNotFound
		}
		_, err = s.recompute(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, s.db, orderID)
}

func (s *Service) ListReminders(ctx context.Context, since time.Time) ([]domain.Reminder, error) {
	return s.repo.ListReminders(ctx, s.db, since.UTC())
}

// mutateProducts locks the order, applies fn and recomputes the total in the
// same transaction. When mustExist is set every id has to name a stored product.
func (s *Service) mutateProducts(
	ctx context.Context,
	req domain.ProductsRequest,
	mustExist bool,
	fn func(tx *gorm.DB, orderID snowflake.ID, productIDs []snowflake.ID) error,
) (*domain.Response, error) {
	orderID, err := parseID(req.OrderID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrNotFound
		}

		var productIDs []snowflake.ID
		if mustExist {
			ids, verrs, err := s.resolveProducts(ctx, tx, req.ProductIDs)
			if err != nil {
				return err
			}
			if err := verrs.Err(); err != nil {
				return err
			}
			productIDs = ids
		} else {
			ids, ok := parseIDs(req.ProductIDs)
			if len(req.ProductIDs) == 0 {
				return validation.New("product_ids", validation.CodeRequired, validation.MsgNoProducts)
			}
			if !ok {
				return validation.New("product_ids", validation.CodeInvalid, validation.MsgInvalidProductIDs)
			}
			productIDs = ids
		}

		if err := fn(tx, orderID, productIDs); err != nil {
			return err
		}
		_, err = s.recompute(ctx, tx, orderID)
		return err
	})
	if err != nil {
		if _, ok := validation.As(err); ok {
			s.metrics.RecordValidationFailure(ctx, "order")
		}
		return nil, err
	}

	return s.load(ctx, s.db, orderID)
}

// recompute sums the prices of the order's current products and stores the
// result. An order without products totals zero.
func (s *Service) recompute(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) (decimal.Decimal, error) {
	rows, err := s.repo.ListProducts(ctx, tx, []snowflake.ID{orderID})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Price)
	}
	total = total.Round(2)

	if err := s.repo.UpdateTotal(ctx, tx, orderID, total, s.clock.Now().UTC()); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// resolveCustomer returns 0 when the id is malformed or unknown.
func (s *Service) resolveCustomer(ctx context.Context, tx *gorm.DB, raw string) (snowflake.ID, error) {
	id, err := parseID(raw)
	if err != nil {
		return 0, nil
	}
	customer, err := s.customerRepo.FindByID(ctx, tx, id)
	if err != nil {
		return 0, err
	}
	if customer == nil {
		return 0, nil
	}
	return customer.ID, nil
}

// resolveProducts deduplicates the requested ids and checks that each one
// names a stored product.
func (s *Service) resolveProducts(ctx context.Context, tx *gorm.DB, raw []string) ([]snowflake.ID, validation.Errors, error) {
	if len(raw) == 0 {
		return nil, validation.New("product_ids", validation.CodeRequired, validation.MsgNoProducts), nil
	}
	ids, ok := parseIDs(raw)
	if !ok {
		return nil, validation.New("product_ids", validation.CodeInvalid, validation.MsgInvalidProductIDs), nil
	}
	found, err := s.productRepo.FindByIDs(ctx, tx, ids)
	if err != nil {
		return nil, nil, err
	}
	if len(found) != len(ids) {
		return nil, validation.New("product_ids", validation.CodeNotFound, validation.MsgInvalidProductIDs), nil
	}
	return ids, nil, nil
}

func (s *Service) load(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Response, error) {
	order, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	resp, err := s.buildResponses(ctx, db, []domain.Order{*order})
	if err != nil {
		return nil, err
	}
	return &resp[0], nil
}

func (s *Service) buildResponses(ctx context.Context, db *gorm.DB, orders []domain.Order) ([]domain.Response, error) {
	resp := make([]domain.Response, 0, len(orders))
	if len(orders) == 0 {
		return resp, nil
	}

	orderIDs := make([]snowflake.ID, 0, len(orders))
	customerIDs := make([]snowflake.ID, 0, len(orders))
	seenCustomer := map[snowflake.ID]struct{}{}
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
		if _, ok := seenCustomer[o.CustomerID]; !ok {
			seenCustomer[o.CustomerID] = struct{}{}
			customerIDs = append(customerIDs, o.CustomerID)
		}
	}

	customers, err := s.customerRepo.FindByIDs(ctx, db, customerIDs)
	if err != nil {
		return nil, err
	}
	customerByID := make(map[snowflake.ID]customerdomain.Customer, len(customers))
	for _, c := range customers {
		customerByID[c.ID] = c
	}

	lines, err := s.repo.ListProducts(ctx, db, orderIDs)
	if err != nil {
		return nil, err
	}
	productsByOrder := make(map[snowflake.ID][]domain.ProductSummary, len(orders))
	for _, line := range lines {
		productsByOrder[line.OrderID] = append(productsByOrder[line.OrderID], domain.ProductSummary{
			ID:    line.ID.String(),
			Name:  line.Name,
			Price: line.Price,
		})
	}

	for _, o := range orders {
		summary := domain.CustomerSummary{ID: o.CustomerID.String()}
		if c, ok := customerByID[o.CustomerID]; ok {
			summary.Name = c.Name
			summary.Email = c.Email
		}
		products := productsByOrder[o.ID]
		if products == nil {
			products = []domain.ProductSummary{}
		}
		resp = append(resp, domain.Response{
			ID:          o.ID.String(),
			Customer:    summary,
			Products:    products,
			TotalAmount: o.TotalAmount,
			OrderDate:   o.OrderDate,
			CreatedAt:   o.CreatedAt,
			UpdatedAt:   o.UpdatedAt,
		})
	}
	return resp, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

// parseIDs parses and deduplicates ids, keeping first occurrences in order.
func parseIDs(values []string) ([]snowflake.ID, bool) {
	ids := make([]snowflake.ID, 0, len(values))
	seen := make(map[snowflake.ID]struct{}, len(values))
	for _, value := range values {
		id, err := parseID(value)
		if err != nil {
			return nil, false
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, true
}
