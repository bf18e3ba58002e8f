package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	obscontext "github.com/smallbiznis/crm/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-42")
	ctx = obscontext.WithJobRun(ctx, "heartbeat", "run-1")
	WithContext(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "heartbeat", fields["job"])
	assert.Equal(t, "run-1", fields["run_id"])
	assert.NotContains(t, fields, "trace_id")
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "UPDATE", operationFromSQL("update products set stock = stock + 10"))
	assert.Equal(t, "SELECT", operationFromSQL("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.Equal(t, "SAVEPOINT", operationFromSQL("SAVEPOINT sp1"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}

func TestTableFromSQL(t *testing.T) {
	assert.Equal(t, "products", tableFromSQL(`UPDATE "products" SET "stock"=stock + $1 WHERE id = $2`))
	assert.Equal(t, "order_products", tableFromSQL("DELETE FROM order_products WHERE order_id = ?"))
	assert.Equal(t, "orders", tableFromSQL("SELECT orders.* FROM orders JOIN customers ON customers.id = orders.customer_id"))
	assert.Equal(t, "", tableFromSQL("SELECT 1"))
}

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	l := NewGormLogger(DefaultGormLoggerConfig())
	sql := func() (string, int64) { return "SELECT * FROM customers WHERE id = ?", 0 }

	l.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now(), sql, errors.New("connection reset"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "gorm.query", entry.Message)
	assert.Equal(t, "customers", entry.ContextMap()["table"])
	assert.Equal(t, "SELECT", entry.ContextMap()["operation"])
}
