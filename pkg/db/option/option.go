// Package option holds composable gorm query clauses used by list endpoints.
package option

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/crm/pkg/db/pagination"
	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

type Operator string

const (
	EQ        Operator = "eq"
	GTE       Operator = "gte"
	LTE       Operator = "lte"
	LT        Operator = "lt"
	Contains  Operator = "contains"
	HasPrefix Operator = "prefix"
)

// Condition is a single predicate on a column. Field must be a trusted
// column name, never user input.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

func ApplyOperator(cond Condition) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		switch cond.Operator {
		case EQ:
			return db.Where(fmt.Sprintf("%s = ?", cond.Field), cond.Value)
		case GTE:
			return db.Where(fmt.Sprintf("%s >= ?", cond.Field), cond.Value)
		case LTE:
			return db.Where(fmt.Sprintf("%s <= ?", cond.Field), cond.Value)
		case LT:
			return db.Where(fmt.Sprintf("%s < ?", cond.Field), cond.Value)
		case Contains:
			pattern := "%" + EscapeLike(strings.ToLower(fmt.Sprint(cond.Value))) + "%"
			return db.Where(fmt.Sprintf("LOWER(%s) LIKE ? ESCAPE '!'", cond.Field), pattern)
		case HasPrefix:
			pattern := EscapeLike(fmt.Sprint(cond.Value)) + "%"
			return db.Where(fmt.Sprintf("%s LIKE ? ESCAPE '!'", cond.Field), pattern)
		default:
			_ = db.AddError(fmt.Errorf("unsupported operator %q", cond.Operator))
			return db
		}
	})
}

// EscapeLike escapes LIKE wildcards using '!' as the escape character.
func EscapeLike(value string) string {
	replacer := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return replacer.Replace(value)
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
	// Default is used when SortBy is empty or not allowed.
	Default string
	// DefaultDesc sorts Default descending.
	DefaultDesc bool
}

// WithSortBy orders by the requested column and always appends id as the
// tie-breaker so results are deterministic.
func WithSortBy(sort QuerySortBy) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		column := strings.ToLower(strings.TrimSpace(sort.SortBy))
		desc := strings.EqualFold(strings.TrimSpace(sort.OrderBy), "desc")
		if column == "" || !sort.Allow[column] {
			column = sort.Default
			desc = sort.DefaultDesc
		}
		if column == "" {
			column = "created_at"
		}

		direction := "ASC"
		if desc {
			direction = "DESC"
		}
		db = db.Order(fmt.Sprintf("%s %s", column, direction))
		if column != "id" {
			db = db.Order(fmt.Sprintf("id %s", direction))
		}
		return db
	})
}

// ApplyPagination applies offset pagination encoded in the page token.
// A zero page size returns every row.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		offset, err := page.Offset()
		if err != nil {
			_ = db.AddError(err)
			return db
		}
		if offset > 0 {
			db = db.Offset(offset)
		}
		if page.PageSize > 0 {
			db = db.Limit(page.PageSize + 1)
		}
		return db
	})
}
