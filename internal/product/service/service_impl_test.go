package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/crm/internal/clock"
	"github.com/smallbiznis/crm/internal/events"
	"github.com/smallbiznis/crm/internal/product/domain"
	"github.com/smallbiznis/crm/internal/product/repository"
	"github.com/smallbiznis/crm/internal/testutil"
	"github.com/smallbiznis/crm/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupProductService(t *testing.T, repo domain.Repository, publisher events.Publisher) (domain.Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t)
	if repo == nil {
		repo = repository.Provide()
	}
	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     testutil.NewNode(t),
		Repo:      repo,
		Publisher: publisher,
	})
	return svc, db
}

func intPtr(v int) *int { return &v }

func createProduct(t *testing.T, svc domain.Service, name, price string, stock int) *domain.Response {
	t.Helper()

	resp, err := svc.Create(context.Background(), domain.CreateRequest{
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: intPtr(stock),
	})
	require.NoError(t, err)
	return resp
}

func TestCreateProduct(t *testing.T) {
	svc, _ := setupProductService(t, nil, nil)

	resp, err := svc.Create(context.Background(), domain.CreateRequest{
		Name:  "Laptop",
		Price: decimal.RequireFromString("999.999"),
	})
	require.NoError(t, err)
	assert.Equal(t, "1000.00", resp.Price.StringFixed(2))
	assert.Equal(t, 0, resp.Stock)
	assert.True(t, resp.LowStock)

	got, err := svc.Get(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Laptop", got.Name)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("1000")))
}

func TestCreateProductValidation(t *testing.T) {
	svc, _ := setupProductService(t, nil, nil)

	_, err := svc.Create(context.Background(), domain.CreateRequest{
		Name:  "",
		Price: decimal.Zero,
		Stock: intPtr(-1),
	})
	verrs, ok := validation.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{
		validation.MsgNameRequired,
		validation.MsgPriceNotPositive,
		validation.MsgStockNegative,
	}, verrs.Messages())

	_, err = svc.Create(context.Background(), domain.CreateRequest{
		Name:  "Cable",
		Price: decimal.RequireFromString("-5"),
	})
	verrs, ok = validation.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{validation.MsgPriceNotPositive}, verrs.Messages())
}

func TestUpdateProduct(t *testing.T) {
	svc, _ := setupProductService(t, nil, nil)
	created := createProduct(t, svc, "Mouse", "25.50", 3)

	price := decimal.RequireFromString("30")
	updated, err := svc.Update(context.Background(), domain.UpdateRequest{
		ID:    created.ID,
		Price: &price,
		Stock: intPtr(40),
	})
	require.NoError(t, err)
	assert.Equal(t, "30.00", updated.Price.StringFixed(2))
	assert.Equal(t, 40, updated.Stock)
	assert.False(t, updated.LowStock)

	_, err = svc.Update(context.Background(), domain.UpdateRequest{ID: created.ID, Stock: intPtr(-2)})
	_, ok := validation.As(err)
	assert.True(t, ok)

	_, err = svc.Update(context.Background(), domain.UpdateRequest{ID: "999"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Get(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestReplenishLowStock(t *testing.T) {
	recorder := &events.Recorder{}
	svc, _ := setupProductService(t, nil, recorder)

	createProduct(t, svc, "Cable", "5.00", 5)
	createProduct(t, svc, "Monitor", "150.00", 15)
	createProduct(t, svc, "Adapter", "9.00", 9)

	result, err := svc.ReplenishLowStock(context.Background(), domain.ReplenishRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Successfully updated 2 products with low stock", result.Message)
	require.Len(t, result.Products, 2)
	assert.Equal(t, "Adapter", result.Products[0].Name)
	assert.Equal(t, 19, result.Products[0].Stock)
	assert.Equal(t, "Cable", result.Products[1].Name)
	assert.Equal(t, 15, result.Products[1].Stock)

	all, err := svc.List(context.Background(), domain.ListRequest{})
	require.NoError(t, err)
	stocks := map[string]int{}
	for _, p := range all.Products {
		stocks[p.Name] = p.Stock
	}
	assert.Equal(t, map[string]int{"Adapter": 19, "Cable": 15, "Monitor": 15}, stocks)

	require.Len(t, recorder.Events, 1)
	assert.Equal(t, events.TypeProductsRestocked, recorder.Events[0].Type)
}

func TestReplenishLowStockNoneFound(t *testing.T) {
	recorder := &events.Recorder{}
	svc, _ := setupProductService(t, nil, recorder)
	createProduct(t, svc, "Monitor", "150.00", 10)

	result, err := svc.ReplenishLowStock(context.Background(), domain.ReplenishRequest{})
	require.NoError(t, err)
	assert.Empty(t, result.Products)
	assert.Equal(t, domain.MsgNoLowStock, result.Message)
	assert.Empty(t, recorder.Events)
}

func TestReplenishLowStockCustomThreshold(t *testing.T) {
	svc, _ := setupProductService(t, nil, nil)
	createProduct(t, svc, "Monitor", "150.00", 15)
	createProduct(t, svc, "Desk", "300.00", 20)

	result, err := svc.ReplenishLowStock(context.Background(), domain.ReplenishRequest{Threshold: 16, RestockAmount: 5})
	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "Monitor", result.Products[0].Name)
	assert.Equal(t, 20, result.Products[0].Stock)

	_, err = svc.ReplenishLowStock(context.Background(), domain.ReplenishRequest{Threshold: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)
	_, err = svc.ReplenishLowStock(context.Background(), domain.ReplenishRequest{RestockAmount: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidRestock)
}

type failingIncrementRepo struct {
	domain.Repository
	failOn snowflake.ID
}

func (r *failingIncrementRepo) IncrementStock(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int, now time.Time) error {
	if id == r.failOn {
		return errors.New("disk full")
	}
	return r.Repository.IncrementStock(ctx, db, id, amount, now)
}

func TestReplenishLowStockReturnsPartialResult(t *testing.T) {
	repo := &failingIncrementRepo{Repository: repository.Provide()}
	svc, _ := setupProductService(t, repo, nil)

	createProduct(t, svc, "Adapter", "9.00", 1)
	cable := createProduct(t, svc, "Cable", "5.00", 2)
	createProduct(t, svc, "Dongle", "7.00", 3)
	failOn, err := snowflake.ParseString(cable.ID)
	require.NoError(t, err)
	repo.failOn = failOn

	result, err := svc.ReplenishLowStock(context.Background(), domain.ReplenishRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.Len(t, result.Products, 1)
	assert.Equal(t, "Adapter", result.Products[0].Name)
	assert.Equal(t, 11, result.Products[0].Stock)

	dongle, err := svc.List(context.Background(), domain.ListRequest{Name: "dongle"})
	require.NoError(t, err)
	require.Len(t, dongle.Products, 1)
	assert.Equal(t, 3, dongle.Products[0].Stock)
}

type recomputeRepo struct {
	domain.Repository
	calls int
	err   error
}

func (r *recomputeRepo) RecomputeOrderTotals(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int, error) {
	r.calls++
	if r.err != nil {
		return 0, r.err
	}
	return r.Repository.RecomputeOrderTotals(ctx, db, id, now)
}

func TestUpdateRecomputesOrdersOnlyOnPriceChange(t *testing.T) {
	repo := &recomputeRepo{Repository: repository.Provide()}
	svc, _ := setupProductService(t, repo, nil)
	ctx := context.Background()
	created := createProduct(t, svc, "Mouse", "10.50", 5)

	_, err := svc.Update(ctx, domain.UpdateRequest{ID: created.ID, Stock: intPtr(8)})
	require.NoError(t, err)
	same := decimal.RequireFromString("10.5")
	_, err = svc.Update(ctx, domain.UpdateRequest{ID: created.ID, Price: &same})
	require.NoError(t, err)
	assert.Equal(t, 0, repo.calls)

	price := decimal.RequireFromString("12.00")
	_, err = svc.Update(ctx, domain.UpdateRequest{ID: created.ID, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)
}

func TestUpdateRollsBackWhenOrderTotalsFail(t *testing.T) {
	repo := &recomputeRepo{Repository: repository.Provide(), err: errors.New("deadlock")}
	svc, _ := setupProductService(t, repo, nil)
	ctx := context.Background()
	created := createProduct(t, svc, "Mouse", "10.50", 5)

	price := decimal.RequireFromString("12.00")
	_, err := svc.Update(ctx, domain.UpdateRequest{ID: created.ID, Price: &price})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock")

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.50", got.Price.StringFixed(2))
}

func TestProductTimestampsComeFromClock(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    testutil.NewTestDB(t),
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clk,
		Repo:  repository.Provide(),
	})
	ctx := context.Background()

	created := createProduct(t, svc, "Cable", "5.00", 2)
	assert.True(t, created.CreatedAt.Equal(clk.Now()))

	clk.Advance(30 * time.Minute)
	result, err := svc.ReplenishLowStock(ctx, domain.ReplenishRequest{})
	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	assert.True(t, result.Products[0].UpdatedAt.Equal(clk.Now()))
	assert.True(t, result.Products[0].CreatedAt.Equal(created.CreatedAt))
}

func TestListProductsFilters(t *testing.T) {
	svc, _ := setupProductService(t, nil, nil)
	createProduct(t, svc, "Keyboard", "45.00", 8)
	createProduct(t, svc, "Monitor", "150.00", 15)
	createProduct(t, svc, "Mouse", "25.50", 10)
	createProduct(t, svc, "Headphones", "80.00", 9)

	low := true
	lowResp, err := svc.List(context.Background(), domain.ListRequest{LowStock: &low})
	require.NoError(t, err)
	require.Len(t, lowResp.Products, 2)
	assert.Equal(t, "Headphones", lowResp.Products[0].Name)
	assert.Equal(t, "Keyboard", lowResp.Products[1].Name)

	notLow := false
	okResp, err := svc.List(context.Background(), domain.ListRequest{LowStock: &notLow})
	require.NoError(t, err)
	require.Len(t, okResp.Products, 2)
	assert.Equal(t, "Monitor", okResp.Products[0].Name)
	assert.Equal(t, "Mouse", okResp.Products[1].Name)

	min := decimal.RequireFromString("25.50")
	max := decimal.RequireFromString("80")
	priced, err := svc.List(context.Background(), domain.ListRequest{PriceMin: &min, PriceMax: &max})
	require.NoError(t, err)
	names := []string{}
	for _, p := range priced.Products {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Headphones", "Keyboard", "Mouse"}, names)

	stocked, err := svc.List(context.Background(), domain.ListRequest{StockMin: intPtr(9), StockMax: intPtr(10), Name: "o"})
	require.NoError(t, err)
	names = names[:0]
	for _, p := range stocked.Products {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Headphones", "Mouse"}, names)
}
