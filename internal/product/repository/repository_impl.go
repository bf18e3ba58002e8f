package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/crm/internal/product/domain"
	"github.com/smallbiznis/crm/pkg/db/option"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (id, name, price, stock, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.Name,
		product.Price,
		product.Stock,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	if product == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE products
		 SET name = ?, price = ?, stock = ?, updated_at = ?
		 WHERE id = ?`,
		product.Name,
		product.Price,
		product.Stock,
		product.UpdatedAt,
		product.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	var items []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, price, stock, created_at, updated_at
		 FROM products WHERE id = ?`,
		id,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.Product
	err := db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("id IN ?", ids).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]domain.Product, error) {
	var items []domain.Product
	stmt := db.WithContext(ctx).Model(&domain.Product{})

	opts := []option.QueryOption{}
	if filter.Name != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "name", Operator: option.Contains, Value: filter.Name}))
	}
	if filter.PriceMin != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "price", Operator: option.GTE, Value: *filter.PriceMin}))
	}
	if filter.PriceMax != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "price", Operator: option.LTE, Value: *filter.PriceMax}))
	}
	if filter.StockMin != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "stock", Operator: option.GTE, Value: *filter.StockMin}))
	}
	if filter.StockMax != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "stock", Operator: option.LTE, Value: *filter.StockMax}))
	}
	if filter.LowStock != nil {
		if *filter.LowStock {
			opts = append(opts, option.ApplyOperator(option.Condition{Field: "stock", Operator: option.LT, Value: domain.LowStockThreshold}))
		} else {
			opts = append(opts, option.ApplyOperator(option.Condition{Field: "stock", Operator: option.GTE, Value: domain.LowStockThreshold}))
		}
	}
	opts = append(opts,
		option.WithSortBy(option.QuerySortBy{
			SortBy:  filter.SortBy,
			OrderBy: filter.OrderBy,
			Allow: map[string]bool{
				"name":       true,
				"price":      true,
				"stock":      true,
				"created_at": true,
			},
			Default: "name",
		}),
		option.ApplyPagination(page),
	)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListLowStock(ctx context.Context, db *gorm.DB, threshold int) ([]domain.Product, error) {
	var items []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, price, stock, created_at, updated_at
		 FROM products
		 WHERE stock < ?
		 ORDER BY name ASC, id ASC`,
		threshold,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) IncrementStock(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int, now time.Time) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ?`,
		amount,
		now,
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type orderPrice struct {
	OrderID snowflake.ID
	Price   decimal.Decimal
}

func (r *repo) RecomputeOrderTotals(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int, error) {
	var rows []orderPrice
	err := db.WithContext(ctx).Raw(
		`SELECT op.order_id, p.price
		 FROM order_products op
		 JOIN products p ON p.id = op.product_id
		 WHERE op.order_id IN (SELECT order_id FROM order_products WHERE product_id = ?)
		 ORDER BY op.order_id ASC`,
		id,
	).Scan(&rows).Error
	if err != nil {
		return 0, err
	}

	totals := map[snowflake.ID]decimal.Decimal{}
	orderIDs := []snowflake.ID{}
	for _, row := range rows {
		total, seen := totals[row.OrderID]
		if !seen {
			orderIDs = append(orderIDs, row.OrderID)
		}
		totals[row.OrderID] = total.Add(row.Price)
	}

	for _, orderID := range orderIDs {
		err := db.WithContext(ctx).Exec(
			`UPDATE orders SET total_amount = ?, updated_at = ? WHERE id = ?`,
			totals[orderID].Round(2),
			now,
			orderID,
		).Error
		if err != nil {
			return 0, err
		}
	}
	return len(orderIDs), nil
}
