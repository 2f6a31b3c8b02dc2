package ws

import (
	"encoding/json"
	"sync"
	"time"

	"OrderPulse/pkg/zlog"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	PongWait     = 60 * time.Second
	pingInterval = (PongWait * 9) / 10
	sendBufSize  = 64
)

// Hub 管理在线连接和房间（customer_<uid>、customers、store_notifications、order_<id>）
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	if c == nil || c.userID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.userID]
	if set == nil {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
}

// Unregister 移出所有房间并关闭连接
func (h *Hub) Unregister(c *Client) {
	if c == nil || c.userID == "" {
		return
	}
	h.mu.Lock()
	set := h.clients[c.userID]
	if set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	h.mu.Unlock()
	c.Close()
}

func (h *Hub) Join(c *Client, room string) {
	if c == nil || room == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[room]
	if members == nil {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) Leave(c *Client, room string) {
	if c == nil || room == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members := h.rooms[room]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// RoomSize 房间内连接数
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// OnlineUsers 当前在线的不同用户数
func (h *Hub) OnlineUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// EmitToRoom 向房间广播一个事件，返回成功投递的连接数
func (h *Hub) EmitToRoom(room, event string, data interface{}) (int, error) {
	payload, err := encodeFrame(event, data)
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range targets {
		if h.deliver(c, payload) {
			n++
		}
	}
	return n, nil
}

// EmitToClient 只发给单个连接
func (h *Hub) EmitToClient(c *Client, event string, data interface{}) error {
	payload, err := encodeFrame(event, data)
	if err != nil {
		return err
	}
	h.deliver(c, payload)
	return nil
}

// deliver 发送队列满的慢连接直接踢掉
func (h *Hub) deliver(c *Client, payload []byte) bool {
	if c == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		zlog.Warn("ws send buffer full, dropping client", zap.String("user_id", c.userID))
		h.Unregister(c)
		return false
	}
}

func encodeFrame(event string, data interface{}) ([]byte, error) {
	env, err := NewEnvelope(event, data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

type Client struct {
	userID string
	role   string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}

	// 只在持有 Hub.mu 时访问
	rooms map[string]struct{}

	closeOnce sync.Once
}

func NewClient(userID, role string, conn *websocket.Conn) *Client {
	return &Client{
		userID: userID,
		role:   role,
		conn:   conn,
		send:   make(chan []byte, sendBufSize),
		done:   make(chan struct{}),
		rooms:  make(map[string]struct{}),
	}
}

func (c *Client) UserID() string { return c.userID }
func (c *Client) Role() string   { return c.role }

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// WritePump 串行写出队列中的帧，并定期发送 ping
func (c *Client) WritePump() {
	if c.conn == nil {
		return
	}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				zlog.Error(err.Error())
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				zlog.Warn("ws ping failed", zap.String("user_id", c.userID), zap.Error(err))
				c.Close()
				return
			}
		}
	}
}
