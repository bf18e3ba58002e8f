package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

// Provider renders order documents.
type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

var Module = fx.Module("pdf",
	fx.Provide(New),
)
