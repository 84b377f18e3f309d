package models

// SearchBody carries the optional order search filters plus pagination and
// sorting. Page is 1-based at the API surface.
type SearchBody struct {
	Status        *string `json:"status,omitempty"`
	StartDate     *string `json:"start_date,omitempty"`
	EndDate       *string `json:"end_date,omitempty"`
	ProductName   *string `json:"product_name,omitempty"`
	CustomerName  *string `json:"customer_name,omitempty"`
	CustomerEmail *string `json:"customer_email,omitempty"`
	CustomerPhone *string `json:"customer_phone,omitempty"`
	OrderID       *string `json:"order_id,omitempty"`
	TimeSorting   *string `json:"time_sorting,omitempty"`  // "newest" (default) or "oldest"
	PriceSorting  *string `json:"price_sorting,omitempty"` // "ascending" or "descending"
	Page          int     `json:"page"`
	Limit         int     `json:"limit"`
}

type OrderPage struct {
	Orders     []Order `json:"orders"`
	TotalCount int     `json:"total_count"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
}
