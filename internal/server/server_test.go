package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/crm/internal/clock"
	"github.com/smallbiznis/crm/internal/config"
	customerrepo "github.com/smallbiznis/crm/internal/customer/repository"
	customerservice "github.com/smallbiznis/crm/internal/customer/service"
	jobrundomain "github.com/smallbiznis/crm/internal/jobrun/domain"
	jobrunrepo "github.com/smallbiznis/crm/internal/jobrun/repository"
	jobrunservice "github.com/smallbiznis/crm/internal/jobrun/service"
	"github.com/smallbiznis/crm/internal/observability"
	obsmetrics "github.com/smallbiznis/crm/internal/observability/metrics"
	orderrepo "github.com/smallbiznis/crm/internal/order/repository"
	orderservice "github.com/smallbiznis/crm/internal/order/service"
	productrepo "github.com/smallbiznis/crm/internal/product/repository"
	productservice "github.com/smallbiznis/crm/internal/product/service"
	"github.com/smallbiznis/crm/internal/providers/pdf"
	"github.com/smallbiznis/crm/internal/scheduler"
	"github.com/smallbiznis/crm/internal/testutil"
	"github.com/smallbiznis/crm/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *errorPayload   `json:"error"`
}

type customerBody struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
}

type productBody struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	LowStock bool            `json:"low_stock"`
}

type orderBody struct {
	ID          string          `json:"id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Products    []productBody   `json:"products"`
	Customer    customerBody    `json:"customer"`
}

func newTestServer(t *testing.T, withScheduler bool) *Server {
	t.Helper()

	db := testutil.NewTestDB(t)
	node := testutil.NewNode(t)
	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))

	customers := customerservice.New(customerservice.Params{DB: db, Log: log, GenID: node, Repo: customerrepo.Provide()})
	products := productservice.New(productservice.Params{DB: db, Log: log, GenID: node, Repo: productrepo.Provide()})
	orders := orderservice.New(orderservice.Params{
		DB:           db,
		Log:          log,
		GenID:        node,
		Clock:        clk,
		Repo:         orderrepo.Provide(),
		CustomerRepo: customerrepo.Provide(),
		ProductRepo:  productrepo.Provide(),
	})
	jobRuns := jobrunservice.New(jobrunservice.Params{DB: db, Log: log, GenID: node, Repo: jobrunrepo.Provide()})

	var sched *scheduler.Scheduler
	if withScheduler {
		jobsCfg := config.DefaultJobsConfig()
		jobsCfg.Heartbeat.ProbeURL = ""
		var err error
		sched, err = scheduler.New(scheduler.Params{
			Log:        log,
			Clock:      clk,
			Jobs:       config.NewStaticJobsConfigHolder(jobsCfg),
			ProductSvc: products,
			OrderSvc:   orders,
			JobRunSvc:  jobRuns,
			Sink:       scheduler.NewMemorySink(),
			Metrics:    obsmetrics.NewSchedulerMetrics(prometheus.NewRegistry(), obsmetrics.Config{}),
		})
		require.NoError(t, err)
	}

	s := NewServer(ServerParams{
		Engine:      NewEngine(EngineParams{ObsCfg: observability.Config{Environment: "test"}}),
		Cfg:         config.Config{AppName: "crm"},
		Log:         log,
		CustomerSvc: customers,
		ProductSvc:  products,
		OrderSvc:    orders,
		JobRunSvc:   jobRuns,
		Receipts:    pdf.New(),
		Scheduler:   sched,
	})
	s.RegisterRoutes()
	return s
}

func (s *Server) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) (T, envelope) {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	var data T
	if len(env.Data) > 0 && string(env.Data) != "null" {
		require.NoError(t, json.Unmarshal(env.Data, &data))
	}
	return data, env
}

func errorMessages(env envelope) []string {
	if env.Error == nil {
		return nil
	}
	return validation.Errors(env.Error.Errors).Messages()
}

func (s *Server) createCustomer(t *testing.T, name, email string) customerBody {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/customers", gin.H{"name": name, "email": email})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	customer, _ := decode[customerBody](t, rec)
	return customer
}

func (s *Server) createProduct(t *testing.T, name, price string, stock int) productBody {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/products", gin.H{"name": name, "price": price, "stock": stock})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product, _ := decode[productBody](t, rec)
	return product
}

func TestHealthReturnsHello(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, HelloMessage, body["message"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestCreateCustomerReportsEveryViolation(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/customers", gin.H{"name": " ", "email": "nope", "phone": "555"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	_, env := decode[customerBody](t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Type)
	assert.Equal(t, []string{
		validation.MsgNameRequired,
		validation.MsgInvalidEmail,
		validation.MsgInvalidPhone,
	}, errorMessages(env))
}

func TestCustomerLifecycle(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/customers", gin.H{"name": "Alice", "email": "alice@example.com", "phone": "+1234567890"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	alice, env := decode[customerBody](t, rec)
	assert.Equal(t, "Customer created successfully", env.Message)
	require.NotNil(t, alice.Phone)
	assert.Equal(t, "+1234567890", *alice.Phone)

	rec = s.do(t, http.MethodPost, "/api/customers", gin.H{"name": "Alice Again", "email": "alice@example.com"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	_, env = decode[customerBody](t, rec)
	assert.Equal(t, []string{validation.MsgEmailExists}, errorMessages(env))

	rec = s.do(t, http.MethodPatch, "/api/customers/"+alice.ID, gin.H{"name": "Alice Smith"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated, env := decode[customerBody](t, rec)
	assert.Equal(t, "Alice Smith", updated.Name)
	assert.Equal(t, "Customer updated successfully", env.Message)

	rec = s.do(t, http.MethodGet, "/api/customers/"+alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/customers/"+alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/customers/"+alice.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/customers/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBulkCreateCustomersReportsRejectedEntries(t *testing.T) {
	s := newTestServer(t, false)
	s.createCustomer(t, "Alice", "alice@example.com")

	rec := s.do(t, http.MethodPost, "/api/customers/bulk", gin.H{"customers": []gin.H{
		{"name": "Bob", "email": "bob@example.com"},
		{"name": "Alice Copy", "email": "alice@example.com"},
	}})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result, _ := decode[struct {
		Customers []customerBody `json:"customers"`
		Errors    []string       `json:"errors"`
		Rejected  []struct {
			Index    int      `json:"index"`
			Messages []string `json:"messages"`
		} `json:"rejected"`
	}](t, rec)
	require.Len(t, result.Customers, 1)
	assert.Equal(t, "Bob", result.Customers[0].Name)
	assert.Equal(t, []string{"Customer 2: Email already exists"}, result.Errors)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, 1, result.Rejected[0].Index)
	assert.Equal(t, []string{"Email already exists"}, result.Rejected[0].Messages)
}

func TestListCustomersFiltersByName(t *testing.T) {
	s := newTestServer(t, false)
	s.createCustomer(t, "Alice", "alice@example.com")
	s.createCustomer(t, "Bob", "bob@example.com")

	rec := s.do(t, http.MethodGet, "/api/customers?name=BO", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	list, _ := decode[struct {
		Customers []customerBody `json:"customers"`
	}](t, rec)
	require.Len(t, list.Customers, 1)
	assert.Equal(t, "Bob", list.Customers[0].Name)

	rec = s.do(t, http.MethodGet, "/api/customers?created_from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductEndpoints(t *testing.T) {
	s := newTestServer(t, false)
	cable := s.createProduct(t, "Cable", "9.99", 5)
	s.createProduct(t, "Laptop", "999.99", 20)

	rec := s.do(t, http.MethodPost, "/api/products", gin.H{"name": "Broken", "price": "0", "stock": -1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	_, env := decode[productBody](t, rec)
	assert.Equal(t, []string{validation.MsgPriceNotPositive, validation.MsgStockNegative}, errorMessages(env))

	rec = s.do(t, http.MethodGet, "/api/products?low_stock=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list, _ := decode[struct {
		Products []productBody `json:"products"`
	}](t, rec)
	require.Len(t, list.Products, 1)
	assert.Equal(t, cable.ID, list.Products[0].ID)
	assert.True(t, list.Products[0].LowStock)

	rec = s.do(t, http.MethodGet, "/api/products?price_min=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/products/"+cable.ID, gin.H{"price": "12.50"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated, _ := decode[productBody](t, rec)
	assert.True(t, decimal.RequireFromString("12.50").Equal(updated.Price))

	rec = s.do(t, http.MethodPost, "/api/products/replenish-low-stock", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result, env := decode[struct {
		Products []productBody `json:"products"`
		Message  string        `json:"message"`
	}](t, rec)
	assert.Equal(t, "Successfully updated 1 products with low stock", env.Message)
	require.Len(t, result.Products, 1)
	assert.Equal(t, 15, result.Products[0].Stock)

	rec = s.do(t, http.MethodPost, "/api/products/replenish-low-stock", gin.H{"threshold": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderEndpointsKeepTotalInSync(t *testing.T) {
	s := newTestServer(t, false)
	alice := s.createCustomer(t, "Alice", "alice@example.com")
	mouse := s.createProduct(t, "Mouse", "19.99", 10)
	monitor := s.createProduct(t, "Monitor", "199.99", 10)

	rec := s.do(t, http.MethodPost, "/api/orders", gin.H{
		"customer_id": alice.ID,
		"product_ids": []string{mouse.ID, mouse.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order, env := decode[orderBody](t, rec)
	assert.Equal(t, "Order created successfully", env.Message)
	assert.True(t, decimal.RequireFromString("19.99").Equal(order.TotalAmount))
	assert.Equal(t, "alice@example.com", order.Customer.Email)

	rec = s.do(t, http.MethodPost, "/api/orders/"+order.ID+"/products", gin.H{"product_ids": []string{monitor.ID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order, _ = decode[orderBody](t, rec)
	assert.True(t, decimal.RequireFromString("219.98").Equal(order.TotalAmount))

	rec = s.do(t, http.MethodDelete, "/api/orders/"+order.ID+"/products", gin.H{"product_ids": []string{mouse.ID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order, _ = decode[orderBody](t, rec)
	assert.True(t, decimal.RequireFromString("199.99").Equal(order.TotalAmount))

	rec = s.do(t, http.MethodPut, "/api/orders/"+order.ID+"/products", gin.H{"product_ids": []string{mouse.ID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order, _ = decode[orderBody](t, rec)
	assert.True(t, decimal.RequireFromString("19.99").Equal(order.TotalAmount))
	require.Len(t, order.Products, 1)

	rec = s.do(t, http.MethodPost, "/api/orders/"+order.ID+"/recompute-total", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/orders?product_name=mou", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list, _ := decode[struct {
		Orders []orderBody `json:"orders"`
	}](t, rec)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, order.ID, list.Orders[0].ID)

	rec = s.do(t, http.MethodGet, "/api/orders/"+order.ID+"/receipt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestCreateOrderRejectsInvalidReferences(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/orders", gin.H{
		"customer_id": "12345",
		"product_ids": []string{"67890"},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	_, env := decode[orderBody](t, rec)
	assert.Equal(t, []string{validation.MsgInvalidCustomerID, validation.MsgInvalidProductIDs}, errorMessages(env))

	rec = s.do(t, http.MethodGet, "/api/orders/12345", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobEndpoints(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, http.MethodPost, "/api/jobs/heartbeat/run", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	run, _ := decode[jobrundomain.JobRun](t, rec)
	assert.Equal(t, scheduler.JobHeartbeat, run.Job)
	assert.Equal(t, jobrundomain.StatusSuccess, run.Status)
	assert.Equal(t, jobrundomain.TriggerManual, run.Trigger)

	rec = s.do(t, http.MethodPost, "/api/jobs/unknown/run", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/jobs/runs?job=heartbeat", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list, _ := decode[struct {
		Runs []jobrundomain.JobRun `json:"runs"`
	}](t, rec)
	require.Len(t, list.Runs, 1)
	assert.Equal(t, run.RunID, list.Runs[0].RunID)
}

func TestRunJobWithoutScheduler(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/jobs/heartbeat/run", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMapErrorStatuses(t *testing.T) {
	status, payload := mapError(scheduler.ErrLeaseHeld)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", payload.Type)

	status, _ = mapError(ErrNotFound)
	assert.Equal(t, http.StatusNotFound, status)

	status, payload = mapError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", payload.Type)

	errType, code := classifyErrorForLog(validation.New("email", validation.CodeInvalid, validation.MsgInvalidEmail))
	assert.Equal(t, "validation_error", errType)
	assert.Equal(t, validation.CodeInvalid, code)
}
