package domain

import (
	"context"

	"github.com/smallbiznis/crm/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Job    string
	Status string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, run *JobRun) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]JobRun, error)
}
