package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/crm/pkg/db/pagination"
)

var ErrInvalidRun = errors.New("invalid_job_run")

type ListRequest struct {
	Job       string
	Status    string
	PageToken string
	PageSize  int
}

type ListResponse struct {
	pagination.PageInfo
	Runs []JobRun `json:"runs"`
}

type Service interface {
	Record(ctx context.Context, run JobRun) (*JobRun, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
}
