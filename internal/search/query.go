package search

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jogardn/order-fulfillment/pkg/models"
)

// ErrQueryFailed is the uniform error surfaced for any failure while the
// composed predicate executes. The underlying cause is logged, not leaked.
var ErrQueryFailed = errors.New("error while fetching orders")

// Query is a composed predicate plus ordering and pagination, ready to be
// appended to a SELECT over the orders table aliased as "o".
type Query struct {
	Where   string
	Args    []any
	OrderBy string
	Limit   int
	Offset  int
}

// Columns the engine may touch, keyed by criteria key. Anything else is
// rejected before it can reach SQL text.
var orderColumns = map[string]string{
	"id":         "o.id",
	"code":       "o.code",
	"user_id":    "o.user_id",
	"status":     "o.status",
	"total":      "o.total_price",
	"created_at": "o.created_at",
}

var customerColumns = map[string]string{
	"account_name": "c.account_name",
	"email":        "c.email",
	"phone_number": "c.phone_number",
}

// Build folds a SearchBody into a single Query. Page numbers are 1-based
// at the interface and converted to a 0-based offset here; page or limit
// below 1 is a validation error rather than a wrap-around.
func Build(body models.SearchBody) (*Query, error) {
	if body.Page < 1 || body.Limit < 1 {
		return nil, fmt.Errorf("%w: page=%d limit=%d", ErrInvalidPage, body.Page, body.Limit)
	}

	criteria, err := FromSearchBody(body)
	if err != nil {
		return nil, err
	}

	q := &Query{Limit: body.Limit, Offset: (body.Page - 1) * body.Limit}
	var clauses []string
	for _, c := range criteria {
		clause, arg, err := renderCriteria(c, len(q.Args)+1)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
		q.Args = append(q.Args, arg)
	}
	q.Where = strings.Join(clauses, " AND ")
	q.OrderBy = buildOrderBy(body)
	return q, nil
}

// renderCriteria translates one criteria into a parameterized SQL fragment.
func renderCriteria(c Criteria, argIndex int) (string, any, error) {
	ph := "$" + strconv.Itoa(argIndex)

	switch c.Op {
	case CustomerJoinLike:
		col, ok := customerColumns[c.Key]
		if !ok {
			return "", nil, fmt.Errorf("unsupported customer field %q", c.Key)
		}
		clause := fmt.Sprintf("EXISTS (SELECT 1 FROM customers c WHERE c.id = o.user_id AND %s LIKE %s)", col, ph)
		return clause, "%" + fmt.Sprint(c.Value) + "%", nil
	case ProductJoinLike:
		clause := fmt.Sprintf("EXISTS (SELECT 1 FROM order_details d JOIN products p ON p.id = d.product_id WHERE d.order_id = o.id AND p.name LIKE %s)", ph)
		return clause, "%" + fmt.Sprint(c.Value) + "%", nil
	}

	col, ok := orderColumns[c.Key]
	if !ok {
		return "", nil, fmt.Errorf("unsupported order field %q", c.Key)
	}

	switch c.Op {
	case Equality:
		return col + " = " + ph, c.Value, nil
	case Negation:
		return col + " <> " + ph, c.Value, nil
	case BooleanEquality:
		b, err := strconv.ParseBool(fmt.Sprint(c.Value))
		if err != nil {
			return "", nil, fmt.Errorf("boolean criteria on %q: %w", c.Key, err)
		}
		return col + " = " + ph, b, nil
	case GreaterThan:
		return col + " > " + ph, c.Value, nil
	case GreaterThanEqual:
		return col + " >= " + ph, c.Value, nil
	case LessThan:
		return col + " < " + ph, c.Value, nil
	case LessThanEqual:
		return col + " <= " + ph, c.Value, nil
	case Like, Contains:
		return col + " LIKE " + ph, "%" + fmt.Sprint(c.Value) + "%", nil
	case StartsWith:
		return col + " LIKE " + ph, fmt.Sprint(c.Value) + "%", nil
	case EndsWith:
		return col + " LIKE " + ph, "%" + fmt.Sprint(c.Value), nil
	default:
		return "", nil, fmt.Errorf("unsupported operator %d", c.Op)
	}
}

// buildOrderBy always includes the creation-time clause. When a price sort
// is requested it is placed first, so price dominates and time breaks ties.
func buildOrderBy(body models.SearchBody) string {
	timeClause := "o.created_at DESC"
	if body.TimeSorting != nil && strings.Contains(*body.TimeSorting, "oldest") {
		timeClause = "o.created_at ASC"
	}

	if body.PriceSorting == nil {
		return timeClause
	}
	priceClause := "o.total_price ASC"
	if strings.Contains(*body.PriceSorting, "descending") {
		priceClause = "o.total_price DESC"
	}
	return priceClause + ", " + timeClause
}
