package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a query before it is executed by a repository.
type QueryOption func(*gorm.DB) *gorm.DB

type Operator string

const (
	EQ  Operator = "="
	NEQ Operator = "<>"
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
	IN  Operator = "IN"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	// Allow whitelists the columns a caller may sort on. Empty means only
	// the default column.
	Allow map[string]bool
}

// LockingUpdate is a scope that appends SELECT ... FOR UPDATE. Dialects
// without row locks (sqlite) drop the clause.
func LockingUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

func WithLockingUpdate() QueryOption {
	return LockingUpdate
}

func WithSortBy(s QuerySortBy) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		column := "created_at"
		if s.SortBy != "" && s.Allow[s.SortBy] {
			column = s.SortBy
		}
		desc := strings.EqualFold(s.OrderBy, "desc")
		return db.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc})
	}
}

func ApplyOperator(c Condition) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if c.Operator == IN {
			return db.Where(clause.IN{Column: clause.Column{Name: c.Field}, Values: toValues(c.Value)})
		}
		return db.Where(fmt.Sprintf("%s %s ?", db.Statement.Quote(c.Field), c.Operator), c.Value)
	}
}

// WithEqual filters on column = value. Struct queries drop zero values, so
// key filters go through here.
func WithEqual(field string, value any) QueryOption {
	return ApplyOperator(Condition{Field: field, Operator: EQ, Value: value})
}

func WithLimitOffset(limit, offset int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if limit > 0 {
			db = db.Limit(limit)
		}
		if offset > 0 {
			db = db.Offset(offset)
		}
		return db
	}
}

func toValues(v any) []any {
	switch vs := v.(type) {
	case []any:
		return vs
	case []string:
		out := make([]any, 0, len(vs))
		for _, s := range vs {
			out = append(out, s)
		}
		return out
	case []int64:
		out := make([]any, 0, len(vs))
		for _, n := range vs {
			out = append(out, n)
		}
		return out
	default:
		return []any{v}
	}
}
