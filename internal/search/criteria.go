package search

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jogardn/order-fulfillment/pkg/models"
)

// Operator is the closed set of predicate operations a Criteria may carry.
type Operator int

const (
	Equality Operator = iota
	Negation
	BooleanEquality
	GreaterThan
	GreaterThanEqual
	LessThan
	LessThanEqual
	Like
	StartsWith
	EndsWith
	Contains
	// Join-qualified operators traverse to a related entity before matching.
	CustomerJoinLike
	ProductJoinLike
)

// Criteria is one immutable filter condition. A search is an ordered list
// of criteria folded into a single conjunction at query time.
type Criteria struct {
	Key   string
	Op    Operator
	Value any
}

var (
	ErrInvalidPage = errors.New("page and limit must be positive")
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
)

const dateLayout = "2006-01-02"

// DayBound resolves a calendar date string to a timestamp: start-of-day
// when the date is used as a lower bound, end-of-day (23:59:59) otherwise.
func DayBound(dateStr string, lower bool) (time.Time, error) {
	day, err := time.Parse(dateLayout, strings.TrimSpace(dateStr))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, dateStr)
	}
	if lower {
		return day, nil
	}
	return day.Add(23*time.Hour + 59*time.Minute + 59*time.Second), nil
}

// FromSearchBody converts each non-nil filter into exactly one Criteria.
// All criteria are conjoined; there is no OR support.
func FromSearchBody(body models.SearchBody) ([]Criteria, error) {
	var criteria []Criteria

	if body.Status != nil {
		criteria = append(criteria, Criteria{Key: "status", Op: Equality, Value: strings.TrimSpace(*body.Status)})
	}
	if body.StartDate != nil {
		start, err := DayBound(*body.StartDate, true)
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, Criteria{Key: "created_at", Op: GreaterThanEqual, Value: start})
	}
	if body.EndDate != nil {
		end, err := DayBound(*body.EndDate, false)
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, Criteria{Key: "created_at", Op: LessThanEqual, Value: end})
	}
	if body.ProductName != nil {
		criteria = append(criteria, Criteria{Key: "name", Op: ProductJoinLike, Value: strings.TrimSpace(*body.ProductName)})
	}
	if body.CustomerName != nil {
		criteria = append(criteria, Criteria{Key: "account_name", Op: CustomerJoinLike, Value: strings.TrimSpace(*body.CustomerName)})
	}
	if body.CustomerEmail != nil {
		criteria = append(criteria, Criteria{Key: "email", Op: CustomerJoinLike, Value: strings.TrimSpace(*body.CustomerEmail)})
	}
	if body.CustomerPhone != nil {
		criteria = append(criteria, Criteria{Key: "phone_number", Op: CustomerJoinLike, Value: strings.TrimSpace(*body.CustomerPhone)})
	}
	if body.OrderID != nil {
		criteria = append(criteria, Criteria{Key: "id", Op: Equality, Value: strings.TrimSpace(*body.OrderID)})
	}
	return criteria, nil
}
