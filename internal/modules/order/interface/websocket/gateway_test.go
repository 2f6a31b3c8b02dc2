package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"OrderPulse/internal/modules/order/infrastructure/presence"
	"OrderPulse/pkg/socket"
	"OrderPulse/pkg/util/myjwt"
	"OrderPulse/pkg/ws"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatewayFixture struct {
	hub    *ws.Hub
	signer *myjwt.Signer
	srv    *httptest.Server
	url    string
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &gatewayFixture{
		hub:    ws.NewHub(),
		signer: myjwt.NewSigner("test-key", "orderpulse-test", 1),
	}
	gw := NewGateway(f.hub, f.signer, presence.NewMemoryPresence())
	r := gin.New()
	r.GET("/wss", gw.Connect)
	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	f.url = "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/wss"
	return f
}

func (f *gatewayFixture) manager(t *testing.T, token string) *socket.Manager {
	t.Helper()
	m := socket.NewManager(socket.Config{
		URL:              f.url,
		BaseDelay:        20 * time.Millisecond,
		MaxDelay:         50 * time.Millisecond,
		MaxAttempts:      1,
		HandshakeTimeout: time.Second,
	}, socket.NewGorillaDialer(time.Second, ws.PongWait), socket.StaticToken(token))
	t.Cleanup(m.Close)
	return m
}

func (f *gatewayFixture) token(t *testing.T, uid, role string) string {
	t.Helper()
	tok, err := f.signer.GenerateToken(uid, uid, role)
	require.NoError(t, err)
	return tok
}

func TestGatewayJoinsRoomsAndDelivers(t *testing.T) {
	f := newGatewayFixture(t)
	m := f.manager(t, f.token(t, "alice", myjwt.RoleCustomer))

	status := make(chan ws.ConnectionStatus, 1)
	m.On(ws.EventConnectionStatus, func(data json.RawMessage) {
		var s ws.ConnectionStatus
		_ = json.Unmarshal(data, &s)
		status <- s
	})
	updates := make(chan ws.SingleOrderUpdate, 1)
	m.On(ws.EventSingleOrderUpdate, func(data json.RawMessage) {
		var u ws.SingleOrderUpdate
		_ = json.Unmarshal(data, &u)
		updates <- u
	})

	m.Connect()

	select {
	case s := <-status:
		assert.Equal(t, ws.TypeConnected, s.Type)
		assert.Equal(t, "Connected to real-time order updates", s.Message)
	case <-time.After(3 * time.Second):
		t.Fatal("no connection_status")
	}
	assert.Equal(t, socket.StateConnected, m.State())
	assert.Equal(t, 1, f.hub.RoomSize(ws.CustomerRoom("alice")))
	assert.Equal(t, 1, f.hub.RoomSize(ws.RoomCustomers))
	assert.Equal(t, 0, f.hub.RoomSize(ws.RoomStoreNotifications))

	require.NoError(t, m.Emit(ws.EventJoinOrderRoom, "o1"))
	require.Eventually(t, func() bool { return f.hub.RoomSize(ws.OrderRoom("o1")) == 1 }, 2*time.Second, 10*time.Millisecond)

	n, err := f.hub.EmitToRoom(ws.OrderRoom("o1"), ws.EventSingleOrderUpdate, ws.SingleOrderUpdate{
		Type:      ws.TypeSingleOrderUpdate,
		Operation: ws.OperationUpdated,
		OrderID:   "o1",
		Timestamp: ws.At(time.Now()),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case u := <-updates:
		assert.Equal(t, "o1", u.OrderID)
		assert.Equal(t, ws.OperationUpdated, u.Operation)
	case <-time.After(3 * time.Second):
		t.Fatal("no single_order_update")
	}

	require.NoError(t, m.Emit(ws.EventLeaveOrderRoom, map[string]string{"orderId": "o1"}))
	require.Eventually(t, func() bool { return f.hub.RoomSize(ws.OrderRoom("o1")) == 0 }, 2*time.Second, 10*time.Millisecond)

	m.Disconnect()
	require.Eventually(t, func() bool { return f.hub.OnlineUsers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestGatewayStaffJoinsStoreRoom(t *testing.T) {
	f := newGatewayFixture(t)
	m := f.manager(t, f.token(t, "owner", myjwt.RoleStoreOwner))

	m.Connect()
	require.Eventually(t, func() bool { return f.hub.RoomSize(ws.RoomStoreNotifications) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, f.hub.RoomSize(ws.RoomCustomers))
	assert.Equal(t, 1, f.hub.RoomSize(ws.CustomerRoom("owner")))
}

func TestGatewayRejectsBadToken(t *testing.T) {
	f := newGatewayFixture(t)
	m := f.manager(t, "not-a-jwt")

	errs := make(chan struct{}, 4)
	m.On(socket.EventConnectError, func(json.RawMessage) { errs <- struct{}{} })
	m.Connect()

	select {
	case <-errs:
	case <-time.After(3 * time.Second):
		t.Fatal("expected connect_error")
	}
	assert.NotEqual(t, socket.StateConnected, m.State())
	assert.Equal(t, 0, f.hub.OnlineUsers())
}

func TestOrderIDOf(t *testing.T) {
	assert.Equal(t, "o1", orderIDOf(json.RawMessage(`"o1"`)))
	assert.Equal(t, "o2", orderIDOf(json.RawMessage(`{"orderId":" o2 "}`)))
	assert.Equal(t, "", orderIDOf(json.RawMessage(`42`)))
	assert.Equal(t, "", orderIDOf(nil))
}

func TestPresenceTracksConnections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := ws.NewHub()
	signer := myjwt.NewSigner("k", "i", 1)
	p := presence.NewMemoryPresence()
	r := gin.New()
	r.GET("/wss", NewGateway(hub, signer, p).Connect)
	srv := httptest.NewServer(r)
	defer srv.Close()

	tok, err := signer.GenerateToken("u1", "u1", "")
	require.NoError(t, err)
	m := socket.NewManager(socket.Config{URL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/wss"},
		socket.NewGorillaDialer(time.Second, ws.PongWait), socket.StaticToken(tok))
	defer m.Close()

	m.Connect()
	require.Eventually(t, func() bool {
		n, _ := p.Count(context.Background())
		return n == 1
	}, 3*time.Second, 10*time.Millisecond)

	m.Disconnect()
	require.Eventually(t, func() bool {
		n, _ := p.Count(context.Background())
		return n == 0
	}, 3*time.Second, 10*time.Millisecond)
}
