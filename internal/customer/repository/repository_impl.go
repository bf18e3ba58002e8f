package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/customer/domain"
	"github.com/smallbiznis/crm/pkg/db/option"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO customers (id, name, email, phone, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		customer.ID,
		customer.Name,
		customer.Email,
		customer.Phone,
		customer.CreatedAt,
		customer.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`UPDATE customers SET name = ?, email = ?, phone = ?, updated_at = ? WHERE id = ?`,
		customer.Name,
		customer.Email,
		customer.Phone,
		customer.UpdatedAt,
		customer.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Customer, error) {
	var customers []domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, phone, created_at, updated_at
		 FROM customers WHERE id = ?`,
		id,
	).Scan(&customers).Error
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, nil
	}
	return &customers[0], nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Customer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var customers []domain.Customer
	err := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("id IN ?", ids).
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) EmailExists(ctx context.Context, db *gorm.DB, email string, excludeID snowflake.ID) (bool, error) {
	var count int64
	stmt := db.WithContext(ctx).Model(&domain.Customer{}).Where("email = ?", email)
	if excludeID != 0 {
		stmt = stmt.Where("id <> ?", excludeID)
	}
	if err := stmt.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListCustomerFilter, page pagination.Pagination) ([]*domain.Customer, error) {
	var customers []*domain.Customer
	stmt := db.WithContext(ctx).Model(&domain.Customer{})

	opts := []option.QueryOption{}
	if filter.Name != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "name", Operator: option.Contains, Value: filter.Name}))
	}
	if filter.Email != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "email", Operator: option.Contains, Value: filter.Email}))
	}
	if filter.PhonePrefix != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "phone", Operator: option.HasPrefix, Value: filter.PhonePrefix}))
	}
	if filter.CreatedFrom != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "created_at", Operator: option.GTE, Value: *filter.CreatedFrom}))
	}
	if filter.CreatedTo != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "created_at", Operator: option.LTE, Value: *filter.CreatedTo}))
	}
	opts = append(opts,
		option.WithSortBy(option.QuerySortBy{
			SortBy:  filter.SortBy,
			OrderBy: filter.OrderBy,
			Allow:   map[string]bool{"name": true, "email": true, "created_at": true},
			Default: "name",
		}),
		option.ApplyPagination(page),
	)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}

	if err := stmt.Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	var deleted bool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`DELETE FROM order_products
			 WHERE order_id IN (SELECT id FROM orders WHERE customer_id = ?)`,
			id,
		).Error; err != nil {
			return err
		}
		if err := tx.Exec(`DELETE FROM orders WHERE customer_id = ?`, id).Error; err != nil {
			return err
		}
		result := tx.Exec(`DELETE FROM customers WHERE id = ?`, id)
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected > 0
		return nil
	})
	return deleted, err
}
