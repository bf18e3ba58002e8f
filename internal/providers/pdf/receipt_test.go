package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReceipt(t *testing.T) {
	provider := New()

	r, err := provider.GenerateReceipt(context.Background(), ReceiptData{
		StoreName:     "CRM",
		OrderID:       "1234",
		OrderDate:     "2024-03-10 12:00:00",
		CustomerName:  "Alice",
		CustomerEmail: "alice@example.com",
		Items: []ReceiptItem{
			{Name: "Keyboard", Price: "20.25"},
			{Name: "Mouse", Price: "10.50"},
		},
		Total: "30.75",
	})
	require.NoError(t, err)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestGenerateReceiptRequiresOrder(t *testing.T) {
	_, err := New().GenerateReceipt(context.Background(), ReceiptData{})
	assert.Error(t, err)
}
