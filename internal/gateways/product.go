package gateways

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jogardn/order-fulfillment/internal/circuitbreaker"
	"github.com/jogardn/order-fulfillment/internal/metrics"
)

type ProductClient struct {
	client
}

func NewProductClient(baseURL string, breakers *circuitbreaker.Manager, gm *metrics.GatewayMetrics, logger *logrus.Logger) *ProductClient {
	return &ProductClient{newClient("product-service", baseURL, breakers, gm, logger)}
}

func (c *ProductClient) GetProductByID(ctx context.Context, id int64) (*Product, error) {
	var product Product
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/products/%d", id), nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *ProductClient) GetProductsByIDs(ctx context.Context, ids []int64) ([]Product, error) {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}

	var products []Product
	if err := c.doJSON(ctx, http.MethodGet, "/products?ids="+strings.Join(parts, ","), nil, &products); err != nil {
		return nil, err
	}

	c.logger.WithField("count", len(products)).Debug("Fetched products from product service")
	return products, nil
}
