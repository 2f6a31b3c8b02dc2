package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"OrderPulse/internal/middleware/jwt"
	"OrderPulse/internal/modules/order/domain/repository"
	"OrderPulse/pkg/back"
	"OrderPulse/pkg/util/myjwt"
	"OrderPulse/pkg/ws"
	"OrderPulse/pkg/xerr"
	"OrderPulse/pkg/zlog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxMessageSize  = 4096
	presenceTimeout = 3 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Gateway /wss 事件网关
type Gateway struct {
	hub      *ws.Hub
	signer   *myjwt.Signer
	presence repository.PresenceRepository
}

func NewGateway(hub *ws.Hub, signer *myjwt.Signer, presence repository.PresenceRepository) *Gateway {
	return &Gateway{hub: hub, signer: signer, presence: presence}
}

// Connect 握手时校验 token（?token= 或 Authorization），不走 Auth 中间件
func (g *Gateway) Connect(c *gin.Context) {
	token := jwt.BearerToken(c)
	if token == "" {
		back.Error(c, xerr.Unauthorized, "Authentication token required")
		return
	}
	claims, err := g.signer.ParseToken(token)
	if err != nil || claims.Uuid == "" {
		back.Error(c, xerr.Unauthorized, "Authentication failed")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zlog.Error(err.Error())
		return
	}

	client := ws.NewClient(claims.Uuid, claims.Role, conn)
	g.hub.Register(client)
	g.joinDefaultRooms(client, claims)
	g.markOnline(claims.Uuid)
	zlog.Info("user connected", zap.String("user_id", claims.Uuid), zap.String("role", claims.Role))

	defer func() {
		g.hub.Unregister(client)
		g.markOffline(claims.Uuid)
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(ws.PongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(ws.PongWait))
		return nil
	})

	go client.WritePump()

	_ = g.hub.EmitToClient(client, ws.EventConnectionStatus, ws.ConnectionStatus{
		Type:      ws.TypeConnected,
		Message:   "Connected to real-time order updates",
		Timestamp: ws.At(time.Now()),
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			zlog.Info("user disconnected", zap.String("user_id", claims.Uuid), zap.String("reason", closeReason(err)))
			return
		}
		g.dispatch(client, data)
	}
}

func (g *Gateway) joinDefaultRooms(client *ws.Client, claims *myjwt.CustomClaims) {
	g.hub.Join(client, ws.CustomerRoom(claims.Uuid))
	switch {
	case claims.IsStaff():
		g.hub.Join(client, ws.RoomStoreNotifications)
	case claims.Role == myjwt.RoleCustomer:
		g.hub.Join(client, ws.RoomCustomers)
	}
}

func (g *Gateway) dispatch(client *ws.Client, data []byte) {
	var env ws.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		zlog.Warn("malformed client frame", zap.String("user_id", client.UserID()), zap.Error(err))
		return
	}
	switch env.Event {
	case ws.EventJoinOrderRoom:
		if id := orderIDOf(env.Data); id != "" {
			g.hub.Join(client, ws.OrderRoom(id))
			zlog.Info("joined order room", zap.String("user_id", client.UserID()), zap.String("order_id", id))
		}
	case ws.EventLeaveOrderRoom:
		if id := orderIDOf(env.Data); id != "" {
			g.hub.Leave(client, ws.OrderRoom(id))
			zlog.Info("left order room", zap.String("user_id", client.UserID()), zap.String("order_id", id))
		}
	default:
		zlog.Debug("ignore client event", zap.String("event", env.Event))
	}
}

// orderIDOf 负载可以是 "id" 或 {"orderId": "id"}
func orderIDOf(raw json.RawMessage) string {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var obj struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.OrderID)
	}
	return ""
}

func (g *Gateway) markOnline(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if err := g.presence.Online(ctx, userID); err != nil {
		zlog.Warn("presence online failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (g *Gateway) markOffline(userID string) {
	// 请求可能已经结束，用 Background
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if err := g.presence.Offline(ctx, userID); err != nil {
		zlog.Warn("presence offline failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func closeReason(err error) string {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if ce.Text != "" {
			return ce.Text
		}
		return "transport close"
	}
	return "transport error"
}
