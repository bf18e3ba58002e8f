package pdf

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type ReceiptData struct {
	StoreName     string
	OrderID       string
	OrderDate     string
	CustomerName  string
	CustomerEmail string

	Items []ReceiptItem

	Total string
}

type ReceiptItem struct {
	Name  string
	Price string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateReceipt(ctx context.Context, receipt ReceiptData) (io.Reader, error) {
	if receipt.OrderID == "" {
		return nil, errors.New("receipt order id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Order receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, receipt.StoreName, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Order: "+receipt.OrderID, props.Text{Top: 0}),
			text.New("Order date: "+receipt.OrderDate, props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New("Customer", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(receipt.CustomerName, props.Text{Top: 5, Align: align.Right}),
			text.New(receipt.CustomerEmail, props.Text{Top: 10, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(9, "Product", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, item := range receipt.Items {
		m.AddRow(8,
			text.NewCol(9, item.Name, props.Text{Size: 9}),
			text.NewCol(3, item.Price, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(12,
		col.New(6),
		text.NewCol(3, "Total", props.Text{Size: 10, Style: fontstyle.Bold, Top: 3}),
		text.NewCol(3, receipt.Total, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right, Top: 3}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
