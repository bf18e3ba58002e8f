package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/crm/internal/order/domain"
	"github.com/smallbiznis/crm/pkg/db/option"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (id, customer_id, total_amount, order_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.CustomerID,
		order.TotalAmount,
		order.OrderDate,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var items []domain.Order
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var items []domain.Order
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]domain.Order, error) {
	var items []domain.Order
	stmt := db.WithContext(ctx).Model(&domain.Order{})

	opts := []option.QueryOption{}
	if filter.CustomerID != 0 {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "orders.customer_id", Operator: option.EQ, Value: filter.CustomerID}))
	}
	if filter.TotalMin != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "orders.total_amount", Operator: option.GTE, Value: *filter.TotalMin}))
	}
	if filter.TotalMax != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "orders.total_amount", Operator: option.LTE, Value: *filter.TotalMax}))
	}
	if filter.OrderDateFrom != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "orders.order_date", Operator: option.GTE, Value: *filter.OrderDateFrom}))
	}
	if filter.OrderDateTo != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "orders.order_date", Operator: option.LTE, Value: *filter.OrderDateTo}))
	}
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}

	// Related-entity clauses use EXISTS so an order matching through several
	// products is still returned once.
	if filter.CustomerName != "" {
		stmt = stmt.Where(
			`EXISTS (SELECT 1 FROM customers c
			  WHERE c.id = orders.customer_id AND LOWER(c.name) LIKE ? ESCAPE '!')`,
			containsPattern(filter.CustomerName),
		)
	}
	if filter.ProductName != "" {
		stmt = stmt.Where(
			`EXISTS (SELECT 1 FROM order_products op
			  JOIN products p ON p.id = op.product_id
			  WHERE op.order_id = orders.id AND LOWER(p.name) LIKE ? ESCAPE '!')`,
			containsPattern(filter.ProductName),
		)
	}
	if filter.ProductID != 0 {
		stmt = stmt.Where(
			`EXISTS (SELECT 1 FROM order_products op
			  WHERE op.order_id = orders.id AND op.product_id = ?)`,
			filter.ProductID,
		)
	}

	stmt = option.WithSortBy(option.QuerySortBy{
		SortBy:  filter.SortBy,
		OrderBy: filter.OrderBy,
		Allow: map[string]bool{
			"order_date":   true,
			"total_amount": true,
			"created_at":   true,
		},
		Default:     "order_date",
		DefaultDesc: true,
	}).Apply(stmt)
	stmt = option.ApplyPagination(page).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) AddProducts(ctx context.Context, db *gorm.DB, orderID snowflake.ID, productIDs []snowflake.ID) error {
	if len(productIDs) == 0 {
		return nil
	}
	links := make([]domain.OrderProduct, 0, len(productIDs))
	for _, id := range productIDs {
		links = append(links, domain.OrderProduct{OrderID: orderID, ProductID: id})
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&links).Error
}

func (r *repo) RemoveProducts(ctx context.Context, db *gorm.DB, orderID snowflake.ID, productIDs []snowflake.ID) error {
	if len(productIDs) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`DELETE FROM order_products WHERE order_id = ? AND product_id IN ?`,
		orderID,
		productIDs,
	).Error
}

func (r *repo) ClearProducts(ctx context.Context, db *gorm.DB, orderID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM order_products WHERE order_id = ?`,
		orderID,
	).Error
}

func (r *repo) ListProducts(ctx context.Context, db *gorm.DB, orderIDs []snowflake.ID) ([]domain.LineProduct, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var rows []domain.LineProduct
	err := db.WithContext(ctx).Raw(
		`SELECT op.order_id, p.id, p.name, p.price
		 FROM order_products op
		 JOIN products p ON p.id = op.product_id
		 WHERE op.order_id IN ?
		 ORDER BY p.name ASC, p.id ASC`,
		orderIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) UpdateTotal(ctx context.Context, db *gorm.DB, orderID snowflake.ID, total decimal.Decimal, now time.Time) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders SET total_amount = ?, updated_at = ? WHERE id = ?`,
		total,
		now,
		orderID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repo) ListReminders(ctx context.Context, db *gorm.DB, since time.Time) ([]domain.Reminder, error) {
	var rows []domain.Reminder
	err := db.WithContext(ctx).Raw(
		`SELECT o.id AS order_id, c.email AS customer_email, o.order_date
		 FROM orders o
		 JOIN customers c ON c.id = o.customer_id
		 WHERE o.order_date >= ?
		 ORDER BY o.order_date DESC, o.id DESC`,
		since,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func containsPattern(value string) string {
	return "%" + option.EscapeLike(strings.ToLower(value)) + "%"
}
