package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"OrderPulse/internal/modules/tracking/domain/order"
	"OrderPulse/pkg/socket"
	"OrderPulse/pkg/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderClient_FetchOrder(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/orders/O1":
			_, _ = w.Write([]byte(`{"code":200,"message":"Success","data":{"_id":"O1","status":"pending","extra":true}}`))
		case "/orders/legacy":
			_, _ = w.Write([]byte(`{"success":true,"order":{"_id":"legacy","status":"processing"}}`))
		case "/orders/denied":
			_, _ = w.Write([]byte(`{"code":403,"message":"无权限"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewOrderClient(srv.URL+"/", socket.StaticToken("tok"), time.Second)
	ctx := context.Background()

	rec, err := c.FetchOrder(ctx, "O1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/orders/O1", gotPath)
	assert.Equal(t, order.StatusPending, rec.Status())
	assert.Equal(t, "true", string(rec["extra"]))

	rec, err = c.FetchOrder(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, rec.Status())

	_, err = c.FetchOrder(ctx, "denied")
	var ce *xerr.CodeError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, xerr.Forbidden, ce.Code)

	_, err = c.FetchOrder(ctx, "missing")
	assert.Error(t, err)

	_, err = c.FetchOrder(ctx, "")
	assert.Error(t, err)
}

func TestOrderClient_NoTokenNoHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"code":200,"message":"Success","data":{"_id":"O1"}}`))
	}))
	defer srv.Close()

	c := NewOrderClient(srv.URL, socket.StaticToken(""), 0)
	_, err := c.FetchOrder(context.Background(), "O1")
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestOrderClient_FetchMyOrders(t *testing.T) {
	bodies := map[string]string{
		"Bearer current": `{"code":200,"message":"Success","data":{"orders":[{"_id":"O2","status":"processing"},{"status":"pending"},{"_id":"O1","status":"pending"}],"count":3}}`,
		"Bearer legacy":  `{"success":true,"orders":[{"_id":"L1","status":"ready_for_pickup"}]}`,
		"Bearer empty":   `{"code":200,"message":"Success","data":{"orders":[],"count":0}}`,
		"Bearer expired": `{"code":401,"message":"未登录"}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/me" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(bodies[r.Header.Get("Authorization")]))
	}))
	defer srv.Close()

	fetch := func(token string) ([]order.Record, error) {
		return NewOrderClient(srv.URL, socket.StaticToken(token), time.Second).FetchMyOrders(context.Background())
	}

	recs, err := fetch("current")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "O2", recs[0].ID())
	assert.Equal(t, "O1", recs[1].ID())

	recs, err = fetch("legacy")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, order.StatusReadyForPickup, recs[0].Status())

	recs, err = fetch("empty")
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = fetch("expired")
	var ce *xerr.CodeError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 401, ce.Code)
}
