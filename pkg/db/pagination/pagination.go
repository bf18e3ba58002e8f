package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

const MaxPageSize = 250

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

type Cursor struct {
	Offset int `json:"offset"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

// Normalize clamps the page size into [0, MaxPageSize].
func (p Pagination) Normalize() Pagination {
	if p.PageSize < 0 {
		p.PageSize = 0
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Pagination) Offset() (int, error) {
	if p.PageToken == "" {
		return 0, nil
	}
	cursor, err := DecodeCursor(p.PageToken)
	if err != nil {
		return 0, ErrInvalidPageToken
	}
	if cursor.Offset < 0 {
		return 0, ErrInvalidPageToken
	}
	return cursor.Offset, nil
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}

// Trim drops the look-ahead row fetched by ApplyPagination and builds the
// page info for the next request.
func Trim[T any](items []T, page Pagination) ([]T, PageInfo, error) {
	if page.PageSize <= 0 || len(items) <= page.PageSize {
		return items, PageInfo{}, nil
	}

	offset, err := page.Offset()
	if err != nil {
		return nil, PageInfo{}, err
	}
	token, err := EncodeCursor(Cursor{Offset: offset + page.PageSize})
	if err != nil {
		return nil, PageInfo{}, err
	}
	return items[:page.PageSize], PageInfo{NextPageToken: token, HasMore: true}, nil
}
