package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/jobrun/domain"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("jobrun.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, run domain.JobRun) (*domain.JobRun, error) {
	run.Job = strings.TrimSpace(run.Job)
	if run.Job == "" || run.RunID == "" || run.StartedAt.IsZero() {
		return nil, domain.ErrInvalidRun
	}
	if run.ID == 0 {
		run.ID = s.genID.Generate()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = run.StartedAt
	}
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()

	if err := s.repo.Insert(ctx, s.db, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	filter := domain.ListFilter{
		Job:    strings.TrimSpace(req.Job),
		Status: strings.TrimSpace(req.Status),
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
	if items == nil {
		items = []domain.JobRun{}
	}
	return &domain.ListResponse{PageInfo: pageInfo, Runs: items}, nil
}
