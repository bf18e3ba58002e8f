package repository

import (
	"context"

	"github.com/smallbiznis/crm/internal/jobrun/domain"
	"github.com/smallbiznis/crm/pkg/db/option"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, run *domain.JobRun) error {
	return db.WithContext(ctx).Create(run).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]domain.JobRun, error) {
	stmt := db.WithContext(ctx).Model(&domain.JobRun{})

	opts := []option.QueryOption{}
	if filter.Job != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "job", Operator: option.EQ, Value: filter.Job}))
	}
	if filter.Status != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "status", Operator: option.EQ, Value: filter.Status}))
	}
	opts = append(opts,
		option.WithSortBy(option.QuerySortBy{Default: "started_at", DefaultDesc: true}),
		option.ApplyPagination(page),
	)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}

	var runs []domain.JobRun
	if err := stmt.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
