package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"OrderPulse/internal/modules/tracking/application/service"
	"OrderPulse/internal/modules/tracking/domain/order"
	"OrderPulse/pkg/socket"
	"OrderPulse/pkg/xerr"

	"github.com/go-resty/resty/v2"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	// 旧接口 {success, order} / {success, orders}
	Success *bool           `json:"success,omitempty"`
	Order   json.RawMessage `json:"order,omitempty"`
	Orders  json.RawMessage `json:"orders,omitempty"`
}

type orderList struct {
	Orders []json.RawMessage `json:"orders"`
	Count  int               `json:"count"`
}

// OrderClient 订单 REST 接口，带 Bearer token
type OrderClient struct {
	client *resty.Client
	token  socket.TokenSource
}

var (
	_ service.OrderFetcher = (*OrderClient)(nil)
	_ service.OrderLister  = (*OrderClient)(nil)
)

func NewOrderClient(baseURL string, token socket.TokenSource, timeout time.Duration) *OrderClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &OrderClient{client: c, token: token}
}

// FetchOrder GET {apiBase}/orders/{id}
func (c *OrderClient) FetchOrder(ctx context.Context, orderID string) (order.Record, error) {
	if orderID == "" {
		return nil, xerr.ErrParam
	}
	req := c.newRequest(ctx).SetPathParam("id", orderID)
	env, err := c.get(req, "/orders/{id}", "fetch order "+orderID)
	if err != nil {
		return nil, err
	}
	if env.Success != nil {
		return order.ParseRecord(env.Order)
	}
	return order.ParseRecord(env.Data)
}

// FetchMyOrders GET {apiBase}/orders/me，新的在前；缺 _id 的条目跳过
func (c *OrderClient) FetchMyOrders(ctx context.Context) ([]order.Record, error) {
	env, err := c.get(c.newRequest(ctx), "/orders/me", "fetch my orders")
	if err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if env.Success != nil {
		if len(env.Orders) > 0 {
			if err := json.Unmarshal(env.Orders, &raws); err != nil {
				return nil, fmt.Errorf("fetch my orders: decode: %w", err)
			}
		}
	} else if len(env.Data) > 0 && string(env.Data) != "null" {
		var list orderList
		if err := json.Unmarshal(env.Data, &list); err != nil {
			return nil, fmt.Errorf("fetch my orders: decode: %w", err)
		}
		raws = list.Orders
	}

	out := make([]order.Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := order.ParseRecord(raw)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *OrderClient) newRequest(ctx context.Context) *resty.Request {
	req := c.client.R().SetContext(ctx)
	if c.token != nil {
		if tok := strings.TrimSpace(c.token()); tok != "" {
			req.SetAuthToken(tok)
		}
	}
	return req
}

// get 发请求并拆开 back 响应包，业务码非 0 时返回 xerr
func (c *OrderClient) get(req *resty.Request, path, what string) (envelope, error) {
	var env envelope
	resp, err := req.Get(path)
	if err != nil {
		return env, err
	}
	decodeErr := json.Unmarshal(resp.Body(), &env)
	if resp.IsError() {
		if decodeErr == nil && env.Code != 0 {
			return env, xerr.New(env.Code, env.Message)
		}
		return env, fmt.Errorf("%s: http %s", what, resp.Status())
	}
	if decodeErr != nil {
		return env, fmt.Errorf("%s: decode: %w", what, decodeErr)
	}
	if env.Success != nil {
		if !*env.Success {
			return env, fmt.Errorf("%s: request not successful", what)
		}
		return env, nil
	}
	if env.Code != xerr.OK {
		return env, xerr.New(env.Code, env.Message)
	}
	return env, nil
}
