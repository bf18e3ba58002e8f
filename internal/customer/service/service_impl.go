package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/clock"
	"github.com/smallbiznis/crm/internal/customer/domain"
	obsmetrics "github.com/smallbiznis/crm/internal/observability/metrics"
	"github.com/smallbiznis/crm/internal/validation"
	dbpkg "github.com/smallbiznis/crm/pkg/db"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock `optional:"true"`
	Repo    domain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	metrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("customer.service"),
		genID:   p.GenID,
		clock:   clk,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	customer, err := s.create(ctx, s.db, req)
	if err != nil {
		s.recordFailure(ctx, err)
		return domain.Customer{}, err
	}

	s.metrics.RecordCustomersCreated(ctx, "single", 1)
	s.log.Info("customer created", zap.String("customer_id", customer.ID.String()))
	return customer, nil
}

// BulkCreate stores every valid entry in one transaction. Each entry runs in
// its own savepoint so a rejected entry never undoes the others.
func (s *Service) BulkCreate(ctx context.Context, reqs []domain.CreateCustomerRequest) (domain.BulkCreateResult, error) {
	result := domain.BulkCreateResult{
		Customers: []domain.Customer{},
		Errors:    []string{},
		Rejected:  []domain.BulkEntryErrors{},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, req := range reqs {
			var created domain.Customer
			err := tx.Transaction(func(sp *gorm.DB) error {
				customer, err := s.create(ctx, sp, req)
				if err != nil {
					return err
				}
				created = customer
				return nil
			})
			if err == nil {
				result.Customers = append(result.Customers, created)
				continue
			}

			messages := []string{err.Error()}
			if verrs, ok := validation.As(err); ok {
				s.recordFailure(ctx, err)
				messages = verrs.Messages()
			} else {
				s.log.Warn("bulk customer entry failed", zap.Int("index", i), zap.Error(err))
			}
			result.Rejected = append(result.Rejected, domain.BulkEntryErrors{Index: i, Messages: messages})
			for _, msg := range messages {
				result.Errors = append(result.Errors, fmt.Sprintf("Customer %d: %s", i+1, msg))
			}
		}
		return nil
	})
	if err != nil {
		return domain.BulkCreateResult{}, err
	}

	s.metrics.RecordCustomersCreated(ctx, "bulk", len(result.Customers))
	s.log.Info("bulk customers created",
		zap.Int("requested", len(reqs)),
		zap.Int("created", len(result.Customers)),
		zap.Int("rejected", len(reqs)-len(result.Customers)),
	)
	return result, nil
}

func (s *Service) create(ctx context.Context, db *gorm.DB, req domain.CreateCustomerRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	phone := normalizePhone(req.Phone)

	verrs, err := s.validate(ctx, db, name, req.Email, phone, 0)
	if err != nil {
		return domain.Customer{}, err
	}
	if err := verrs.Err(); err != nil {
		return domain.Customer{}, err
	}

	now := s.clock.Now().UTC()
	customer := domain.Customer{
		ID:        s.genID.Generate(),
		Name:      name,
		Email:     req.Email,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, db, &customer); err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			return domain.Customer{}, validation.New("email", validation.CodeExists, validation.MsgEmailExists)
		}
		return domain.Customer{}, err
	}
	return customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	filter := domain.ListCustomerFilter{
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.TrimSpace(req.Email),
		PhonePrefix: strings.TrimSpace(req.PhonePrefix),
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
		SortBy:      req.SortBy,
		OrderBy:     req.OrderBy,
	}
	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}.Normalize()

	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}
	items, pageInfo, err := pagination.Trim(items, page)
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *item)
	}

	return domain.ListCustomerResponse{PageInfo: pageInfo, Customers: customers}, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetCustomerRequest) (domain.Customer, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Customer{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateCustomerRequest) (domain.Customer, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Customer{}, err
	}

	var updated domain.Customer
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		next := *current
		if req.Name != nil {
			next.Name = strings.TrimSpace(*req.Name)
		}
		if req.Email != nil {
			next.Email = *req.Email
		}
		if req.Phone != nil {
			next.Phone = normalizePhone(req.Phone)
		}

		verrs, err := s.validate(ctx, tx, next.Name, next.Email, next.Phone, id)
		if err != nil {
			return err
		}
		if err := verrs.Err(); err != nil {
			return err
		}

		next.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.Update(ctx, tx, &next); err != nil {
			if dbpkg.IsDuplicateKeyErr(err) {
				return validation.New("email", validation.CodeExists, validation.MsgEmailExists)
			}
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, err)
		return domain.Customer{}, err
	}

	return updated, nil
}

func (s *Service) Delete(ctx context.Context, req domain.GetCustomerRequest) error {
	id, err := s.parseID(req.ID)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, s.db, id)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}

	s.log.Info("customer deleted", zap.String("customer_id", id.String()))
	return nil
}

// validate runs every customer rule and reports each failure. The returned
// error is reserved for storage failures.
func (s *Service) validate(ctx context.Context, db *gorm.DB, name, email string, phone *string, excludeID snowflake.ID) (validation.Errors, error) {
	var verrs validation.Errors

	if name == "" {
		verrs.Add("name", validation.CodeRequired, validation.MsgNameRequired)
	}

	if !validation.ValidEmail(email) {
		verrs.Add("email", validation.CodeInvalid, validation.MsgInvalidEmail)
	}
	if email != "" {
		exists, err := s.repo.EmailExists(ctx, db, email, excludeID)
		if err != nil {
			return nil, err
		}
		if exists {
			verrs.Add("email", validation.CodeExists, validation.MsgEmailExists)
		}
	}

	if phone != nil && !validation.ValidPhone(*phone) {
		verrs.Add("phone", validation.CodeInvalid, validation.MsgInvalidPhone)
	}

	return verrs, nil
}

func (s *Service) recordFailure(ctx context.Context, err error) {
	if _, ok := validation.As(err); ok {
		s.metrics.RecordValidationFailure(ctx, "customer")
	}
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func normalizePhone(phone *string) *string {
	if phone == nil || *phone == "" {
		return nil
	}
	value := *phone
	return &value
}
