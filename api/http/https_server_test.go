package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"OrderPulse/internal/modules/order/application/service"
	"OrderPulse/internal/modules/order/infrastructure/presence"
	"OrderPulse/pkg/util/myjwt"
	"OrderPulse/pkg/ws"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	signer := myjwt.NewSigner("k", "test", 1)
	hub := ws.NewHub()
	orders := service.NewOrderService(nil, nil, "order-changes")
	r := NewEngine(Deps{
		Hub:       hub,
		Signer:    signer,
		Orders:    orders,
		Broadcast: service.NewBroadcastService(nil, orders, hub),
		Presence:  presence.NewMemoryPresence(),
	})

	customer, err := signer.GenerateToken("alice", "alice", myjwt.RoleCustomer)
	require.NoError(t, err)
	staff, err := signer.GenerateToken("owner", "owner", myjwt.RoleStoreOwner)
	require.NoError(t, err)
	notify := `{"target":"customer","customerId":"alice","message":"Your order is on its way"}`

	cases := []struct {
		method, path string
		token        string
		body         string
		want         int
	}{
		{http.MethodGet, "/realtime/online", "", "", http.StatusOK},
		{http.MethodGet, "/orders/o1", "", "", http.StatusUnauthorized},
		{http.MethodPut, "/orders/o1/status", customer, "", http.StatusForbidden},
		{http.MethodGet, "/auth/ping", customer, "", http.StatusOK},
		{http.MethodGet, "/wss", "", "", http.StatusUnauthorized},
		{http.MethodPost, "/realtime/notify", "", notify, http.StatusUnauthorized},
		{http.MethodPost, "/realtime/notify", customer, notify, http.StatusForbidden},
		{http.MethodPost, "/realtime/notify", staff, notify, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, "%s %s", tc.method, tc.path)
	}
}
