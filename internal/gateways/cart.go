package gateways

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jogardn/order-fulfillment/internal/circuitbreaker"
	"github.com/jogardn/order-fulfillment/internal/metrics"
)

type CartClient struct {
	client
}

func NewCartClient(baseURL string, breakers *circuitbreaker.Manager, gm *metrics.GatewayMetrics, logger *logrus.Logger) *CartClient {
	return &CartClient{newClient("cart-service", baseURL, breakers, gm, logger)}
}

// DeleteByIDs removes the consumed cart lines, keyed by (user, product).
func (c *CartClient) DeleteByIDs(ctx context.Context, ids []UserAndProductID) error {
	if err := c.doJSON(ctx, http.MethodPost, "/carts/delete", ids, nil); err != nil {
		return err
	}

	c.logger.WithField("count", len(ids)).Info("Deleted cart lines")
	return nil
}

// Restore re-adds cart lines removed by DeleteByIDs. It is the
// compensating action when a later order-creation step fails.
func (c *CartClient) Restore(ctx context.Context, lines []CartLine) error {
	if err := c.doJSON(ctx, http.MethodPost, "/carts/restore", lines, nil); err != nil {
		return err
	}

	c.logger.WithField("count", len(lines)).Info("Restored cart lines")
	return nil
}
