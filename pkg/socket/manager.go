package socket

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"OrderPulse/pkg/ws"
	"OrderPulse/pkg/zlog"

	"go.uber.org/zap"
)

// Handler 事件回调，data 为原始 JSON
type Handler func(data json.RawMessage)

type ListenerID uint64

// TokenSource 每次建立连接时读取当前登录 token，空串表示未登录
type TokenSource func() string

func StaticToken(token string) TokenSource {
	return func() string { return token }
}

type Config struct {
	URL              string
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	MaxAttempts      int
	HandshakeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 20 * time.Second
	}
	return c
}

type timer interface {
	Stop() bool
}

type listener struct {
	id ListenerID
	fn Handler
}

type dispatchItem struct {
	event  string
	data   json.RawMessage
	status *Status
}

// Manager 每个会话唯一的事件流连接。
//
// 所有回调（服务端事件、生命周期事件、状态观察者）都在同一个分发 goroutine 中按到达顺序执行。
// gen 每次替换或丢弃连接时递增，旧的拨号结果和读循环据此失效，保证任何时刻最多一条活动连接。
type Manager struct {
	cfg    Config
	dialer Dialer
	token  TokenSource

	mu        sync.Mutex
	conn      Conn
	gen       uint64
	state     State
	attempts  int
	lastErr   string
	lastErrAt time.Time
	lost      bool
	retry     timer
	closed    bool
	listeners map[string][]listener
	watchers  []func(Status)
	nextID    ListenerID

	qmu     sync.Mutex
	pending []dispatchItem
	wake    chan struct{}
	done    chan struct{}

	afterFunc func(time.Duration, func()) timer
	now       func() time.Time
}

func NewManager(cfg Config, dialer Dialer, token TokenSource) *Manager {
	if token == nil {
		token = StaticToken("")
	}
	m := &Manager{
		cfg:       cfg.withDefaults(),
		dialer:    dialer,
		token:     token,
		state:     StateDisconnected,
		listeners: make(map[string][]listener),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		afterFunc: func(d time.Duration, f func()) timer { return time.AfterFunc(d, f) },
		now:       time.Now,
	}
	go m.dispatchLoop()
	return m
}

// Connect 已连接或正在连接时直接返回；没有 token 时只记日志（匿名会话不需要推送）
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if m.conn != nil || m.state != StateDisconnected {
		zlog.Debug("socket already active", zap.String("state", string(m.state)))
		return
	}
	tok := strings.TrimSpace(m.token())
	if tok == "" {
		zlog.Info("no token found, skipping socket connection")
		return
	}
	m.lost = false
	m.setStateLocked(StateConnecting)
	m.startDialLocked(tok)
}

// Disconnect 关闭连接并清空所有监听器，可重复调用
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
	m.lost = false
	m.listeners = make(map[string][]listener)
}

// Reconnect 丢弃现有连接（和待执行的重连定时器）后重新连接，监听器保留
func (m *Manager) Reconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	zlog.Info("manually reconnecting socket")
	m.teardownLocked()
	m.lost = false
	m.mu.Unlock()

	m.Connect()
}

// Close 会话结束：断开连接并停止分发
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.teardownLocked()
	m.listeners = make(map[string][]listener)
	m.watchers = nil
	m.closed = true
	m.mu.Unlock()
	close(m.done)
}

// On 注册事件监听；尚无连接时顺带发起连接（连接已判定丢失时除外）
func (m *Manager) On(event string, fn Handler) ListenerID {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[event] = append(m.listeners[event], listener{id: id, fn: fn})
	needConnect := m.conn == nil && m.state == StateDisconnected && !m.lost
	m.mu.Unlock()

	if needConnect {
		m.Connect()
	}
	return id
}

func (m *Manager) Off(event string, id ListenerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls := m.listeners[event]
	for i := range ls {
		if ls[i].id == id {
			m.listeners[event] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(m.listeners[event]) == 0 {
		delete(m.listeners, event)
	}
}

// Watch 订阅状态变化
func (m *Manager) Watch(fn func(Status)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.watchers = append(m.watchers, fn)
	m.mu.Unlock()
}

func (m *Manager) Emit(event string, data interface{}) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()
	if conn == nil || !connected {
		return ErrNotConnected
	}

	env, err := ws.NewEnvelope(event, data)
	if err != nil {
		return err
	}
	return conn.WriteEnvelope(env)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	return Status{
		State:       m.state,
		Attempts:    m.attempts,
		LastError:   m.lastErr,
		LastErrorAt: m.lastErrAt,
		Lost:        m.lost,
	}
}

func (m *Manager) teardownLocked() {
	m.stopRetryLocked()
	m.gen++
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.attempts = 0
	m.setStateLocked(StateDisconnected)
}

func (m *Manager) startDialLocked(tok string) {
	m.gen++
	go m.dial(m.gen, tok)
}

func (m *Manager) dial(gen uint64, tok string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
	conn, err := m.dialer.Dial(ctx, m.cfg.URL, tok)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.closed {
		// 拨号期间连接已被替换或丢弃
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		zlog.Warn("socket connection error", zap.Error(err), zap.Int("attempts", m.attempts))
		m.recordErrorLocked(err)
		if m.state == StateReconnecting {
			m.enqueueLocked(EventReconnectError, err.Error())
		}
		m.enqueueLocked(EventConnectError, err.Error())
		m.scheduleRetryLocked()
		return
	}

	reconnected := m.state == StateReconnecting
	attempt := m.attempts

	m.conn = conn
	m.attempts = 0
	m.lastErr = ""
	m.lastErrAt = time.Time{}
	m.stopRetryLocked()
	m.setStateLocked(StateConnected)
	go m.readLoop(gen, conn)

	zlog.Info("socket connected", zap.String("url", m.cfg.URL))
	m.enqueueLocked(EventConnect, nil)
	if reconnected {
		zlog.Info("socket reconnected", zap.Int("attempt", attempt))
		m.enqueueLocked(EventReconnect, attempt)
	}
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		env, err := conn.ReadEnvelope()
		if err != nil {
			if errors.Is(err, ErrMalformedFrame) {
				zlog.Warn("dropping malformed frame", zap.Error(err))
				continue
			}
			m.handleDrop(gen, conn, err)
			return
		}
		if env.Event == "" {
			continue
		}

		m.mu.Lock()
		stale := gen != m.gen
		if !stale {
			m.enqueueRawLocked(env.Event, env.Data)
		}
		m.mu.Unlock()
		if stale {
			return
		}
	}
}

func (m *Manager) handleDrop(gen uint64, conn Conn, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		// 我们自己关掉的连接
		return
	}

	reason := DisconnectReason(err)
	_ = conn.Close()
	m.conn = nil
	zlog.Info("socket disconnected", zap.String("reason", reason))
	m.enqueueLocked(EventDisconnect, reason)

	if IsDeliberate(reason) {
		m.attempts = 0
		m.setStateLocked(StateDisconnected)
		return
	}
	m.recordErrorLocked(err)
	m.scheduleRetryLocked()
}

// scheduleRetryLocked 同一时刻最多一个待执行的重连定时器
func (m *Manager) scheduleRetryLocked() {
	if m.retry != nil {
		return
	}
	if m.attempts >= m.cfg.MaxAttempts {
		m.lost = true
		m.setStateLocked(StateDisconnected)
		zlog.Error("max reconnection attempts reached",
			zap.Int("attempts", m.attempts),
			zap.String("last_error", m.lastErr))
		m.enqueueLocked(EventConnectionLost, m.lastErr)
		return
	}

	delay := Backoff(m.attempts, m.cfg.BaseDelay, m.cfg.MaxDelay)
	m.attempts++
	m.setStateLocked(StateReconnecting)

	gen := m.gen
	m.retry = m.afterFunc(delay, func() { m.retryNow(gen) })
	zlog.Info("socket reconnect scheduled",
		zap.Duration("delay", delay),
		zap.Int("attempt", m.attempts))
}

func (m *Manager) retryNow(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.closed || m.state != StateReconnecting {
		return
	}
	m.retry = nil

	tok := strings.TrimSpace(m.token())
	if tok == "" {
		zlog.Info("token removed while reconnecting, giving up")
		m.attempts = 0
		m.setStateLocked(StateDisconnected)
		return
	}
	m.startDialLocked(tok)
}

func (m *Manager) stopRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func (m *Manager) recordErrorLocked(err error) {
	m.lastErr = err.Error()
	m.lastErrAt = m.now()
}

func (m *Manager) setStateLocked(st State) {
	if m.state == st {
		return
	}
	m.state = st
	s := m.statusLocked()
	m.push(dispatchItem{status: &s})
}

func (m *Manager) enqueueLocked(event string, payload interface{}) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			zlog.Error("encode lifecycle payload failed", zap.String("event", event), zap.Error(err))
			return
		}
		raw = b
	}
	m.enqueueRawLocked(event, raw)
}

func (m *Manager) enqueueRawLocked(event string, data json.RawMessage) {
	m.push(dispatchItem{event: event, data: data})
}

func (m *Manager) push(item dispatchItem) {
	m.qmu.Lock()
	m.pending = append(m.pending, item)
	m.qmu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) pop() (dispatchItem, bool) {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	if len(m.pending) == 0 {
		return dispatchItem{}, false
	}
	item := m.pending[0]
	m.pending[0] = dispatchItem{}
	m.pending = m.pending[1:]
	return item, true
}

func (m *Manager) dispatchLoop() {
	for {
		select {
		case <-m.done:
			return
		case <-m.wake:
		}
		for {
			item, ok := m.pop()
			if !ok {
				break
			}
			m.deliver(item)
		}
	}
}

func (m *Manager) deliver(item dispatchItem) {
	if item.status != nil {
		m.mu.Lock()
		watchers := append([]func(Status){}, m.watchers...)
		m.mu.Unlock()
		for _, w := range watchers {
			safeCall(item.event, func() { w(*item.status) })
		}
		return
	}

	m.mu.Lock()
	ls := append([]listener{}, m.listeners[item.event]...)
	m.mu.Unlock()
	for _, l := range ls {
		fn := l.fn
		safeCall(item.event, func() { fn(item.data) })
	}
}

// safeCall 单个回调 panic 不能拖垮整个分发循环
func safeCall(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error("socket handler panicked", zap.String("event", event), zap.Any("panic", r))
		}
	}()
	fn()
}
