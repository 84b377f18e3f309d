package gateways

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jogardn/order-fulfillment/internal/circuitbreaker"
	"github.com/jogardn/order-fulfillment/internal/metrics"
)

type UserClient struct {
	client
}

func NewUserClient(baseURL string, breakers *circuitbreaker.Manager, gm *metrics.GatewayMetrics, logger *logrus.Logger) *UserClient {
	return &UserClient{newClient("user-service", baseURL, breakers, gm, logger)}
}

func (c *UserClient) GetUserByID(ctx context.Context, id int64) (*User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/users/%d", id), nil, &user); err != nil {
		return nil, err
	}

	c.logger.WithField("user_id", id).Debug("Fetched user from user service")
	return &user, nil
}
