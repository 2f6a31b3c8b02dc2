package socket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"OrderPulse/pkg/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

type frame struct {
	env ws.Envelope
	err error
}

type fakeConn struct {
	in      chan frame
	closeCh chan struct{}

	mu      sync.Mutex
	written []ws.Envelope
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan frame, 16), closeCh: make(chan struct{})}
}

func (c *fakeConn) ReadEnvelope() (ws.Envelope, error) {
	select {
	case f := <-c.in:
		return f.env, f.err
	case <-c.closeCh:
		return ws.Envelope{}, &DisconnectError{Reason: ReasonClientDisconnect}
	}
}

func (c *fakeConn) WriteEnvelope(env ws.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("write on closed conn")
	}
	c.written = append(c.written, env)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closeCh)
	}
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) push(event string, data interface{}) {
	env, _ := ws.NewEnvelope(event, data)
	c.in <- frame{env: env}
}

func (c *fakeConn) drop(reason string) {
	c.in <- frame{err: &DisconnectError{Reason: reason}}
}

type fakeDialer struct {
	mu     sync.Mutex
	dials  int
	tokens []string
	conns  []*fakeConn
	fail   error
}

func (d *fakeDialer) Dial(_ context.Context, _ string, token string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.tokens = append(d.tokens, token)
	if d.fail != nil {
		return nil, d.fail
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func (d *fakeDialer) setFail(err error) {
	d.mu.Lock()
	d.fail = err
	d.mu.Unlock()
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) afterFunc(d time.Duration, f func()) timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *fakeClock) fire(i int) {
	c.mu.Lock()
	t := c.timers[i]
	c.mu.Unlock()
	t.f()
}

func (c *fakeClock) delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, 0, len(c.timers))
	for _, t := range c.timers {
		out = append(out, t.d)
	}
	return out
}

type recorder struct {
	mu     sync.Mutex
	events []string
	data   []json.RawMessage
}

func (r *recorder) handler(event string) Handler {
	return func(data json.RawMessage) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, event)
		r.data = append(r.data, data)
	}
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newTestManager(t *testing.T, d Dialer, token string) (*Manager, *fakeClock) {
	t.Helper()
	m := NewManager(Config{URL: "ws://test/wss"}, d, StaticToken(token))
	clock := &fakeClock{}
	m.afterFunc = clock.afterFunc
	t.Cleanup(m.Close)
	return m, clock
}

func waitState(t *testing.T, m *Manager, st State) {
	t.Helper()
	require.Eventually(t, func() bool { return m.State() == st }, waitFor, tick, "want state %s", st)
}

func TestBackoff(t *testing.T) {
	base, max := time.Second, 10*time.Second
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{10, 10 * time.Second},
		{100, 10 * time.Second},
		{-1, time.Second},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Backoff(c.attempt, base, max), "attempt %d", c.attempt)
	}
}

func TestManager_ConnectWithoutTokenIsNoop(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestManager(t, d, "")

	m.Connect()

	assert.Equal(t, StateDisconnected, m.State())
	assert.Equal(t, 0, d.dialCount())
	assert.Empty(t, m.Status().LastError)
}

func TestManager_SingleLiveConnection(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestManager(t, d, "tok")

	m.Connect()
	m.Connect()
	waitState(t, m, StateConnected)
	m.Connect()
	m.Connect()

	assert.Equal(t, 1, d.dialCount())
	assert.Equal(t, []string{"tok"}, d.tokens)
}

func TestManager_ReconnectBackoffBudget(t *testing.T) {
	d := &fakeDialer{fail: errors.New("connection refused")}
	m, clock := newTestManager(t, d, "tok")
	rec := &recorder{}
	m.On(EventConnectError, rec.handler(EventConnectError))
	m.On(EventConnectionLost, rec.handler(EventConnectionLost))

	m.Connect()

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
	}
	for i := range want {
		require.Eventually(t, func() bool { return clock.count() == i+1 }, waitFor, tick)
		assert.Equal(t, StateReconnecting, m.State())
		clock.fire(i)
	}

	require.Eventually(t, func() bool { return m.Status().Lost }, waitFor, tick)
	st := m.Status()
	assert.Equal(t, StateDisconnected, st.State)
	assert.Equal(t, "connection refused", st.LastError)
	assert.False(t, st.LastErrorAt.IsZero())
	assert.Equal(t, want, clock.delays())

	require.Eventually(t, func() bool { return rec.count(EventConnectionLost) == 1 }, waitFor, tick)
	assert.Equal(t, 6, rec.count(EventConnectError))
	assert.Equal(t, 6, d.dialCount())

	// 预算耗尽后不再自动安排重连
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 5, clock.count())
}

func TestManager_ReconnectAfterBudgetRecovers(t *testing.T) {
	d := &fakeDialer{fail: errors.New("refused")}
	m, clock := newTestManager(t, d, "tok")
	m.cfg.MaxAttempts = 1

	m.Connect()
	require.Eventually(t, func() bool { return clock.count() == 1 }, waitFor, tick)
	clock.fire(0)
	require.Eventually(t, func() bool { return m.Status().Lost }, waitFor, tick)

	d.setFail(nil)
	m.Reconnect()
	waitState(t, m, StateConnected)

	st := m.Status()
	assert.False(t, st.Lost)
	assert.Equal(t, 0, st.Attempts)
	assert.Empty(t, st.LastError)
}

func TestManager_UnexpectedDropReconnects(t *testing.T) {
	d := &fakeDialer{}
	m, clock := newTestManager(t, d, "tok")
	rec := &recorder{}
	m.On(EventConnect, rec.handler(EventConnect))
	m.On(EventDisconnect, rec.handler(EventDisconnect))
	m.On(EventReconnect, rec.handler(EventReconnect))
	waitState(t, m, StateConnected)

	d.conn(0).drop(ReasonTransportError)
	require.Eventually(t, func() bool { return clock.count() == 1 }, waitFor, tick)
	assert.Equal(t, StateReconnecting, m.State())
	assert.Equal(t, time.Second, clock.delays()[0])

	clock.fire(0)
	waitState(t, m, StateConnected)
	require.Eventually(t, func() bool { return rec.count(EventReconnect) == 1 }, waitFor, tick)

	assert.Equal(t, []string{EventConnect, EventDisconnect, EventConnect, EventReconnect}, rec.snapshot())
	assert.Equal(t, 0, m.Status().Attempts)
	assert.Equal(t, 2, d.dialCount())
}

func TestManager_ServerDisconnectDoesNotReconnect(t *testing.T) {
	d := &fakeDialer{}
	m, clock := newTestManager(t, d, "tok")
	m.Connect()
	waitState(t, m, StateConnected)

	d.conn(0).drop(ReasonServerDisconnect)
	waitState(t, m, StateDisconnected)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, clock.count())
	assert.False(t, m.Status().Lost)
	assert.Equal(t, 1, d.dialCount())
}

func TestManager_DisconnectClearsListenersAndIsIdempotent(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestManager(t, d, "tok")
	rec := &recorder{}
	m.On("customer_notification", rec.handler("customer_notification"))
	waitState(t, m, StateConnected)
	conn := d.conn(0)

	m.Disconnect()
	m.Disconnect()

	assert.Equal(t, StateDisconnected, m.State())
	assert.True(t, conn.isClosed())
	m.mu.Lock()
	assert.Empty(t, m.listeners)
	m.mu.Unlock()
}

func TestManager_ReconnectReplacesConnection(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestManager(t, d, "tok")
	m.Connect()
	waitState(t, m, StateConnected)
	first := d.conn(0)

	m.Reconnect()
	require.Eventually(t, func() bool { return d.dialCount() == 2 && m.IsConnected() }, waitFor, tick)

	assert.True(t, first.isClosed())
	assert.False(t, d.conn(1).isClosed())
}

func TestManager_ReconnectCancelsPendingRetry(t *testing.T) {
	d := &fakeDialer{}
	m, clock := newTestManager(t, d, "tok")
	m.Connect()
	waitState(t, m, StateConnected)

	d.conn(0).drop(ReasonPingTimeout)
	require.Eventually(t, func() bool { return clock.count() == 1 }, waitFor, tick)

	m.Reconnect()
	waitState(t, m, StateConnected)

	clock.mu.Lock()
	stopped := clock.timers[0].stopped
	clock.mu.Unlock()
	assert.True(t, stopped)

	// 过期的定时器触发也不能再拨一次号
	clock.fire(0)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, d.dialCount())
}

func TestManager_EventsDeliveredInOrder(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestManager(t, d, "tok")

	var mu sync.Mutex
	var got []int
	h := func(data json.RawMessage) {
		var n int
		_ = json.Unmarshal(data, &n)
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	}
	m.On("tick", h)
	waitState(t, m, StateConnected)

	for i := 1; i <= 5; i++ {
		d.conn(0).push("tick", i)
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 5
	}, waitFor, tick)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestManager_OffRemovesHandler(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestManager(t, d, "tok")
	rec := &recorder{}
	id := m.On("x", rec.handler("x"))
	m.On("y", rec.handler("y"))
	waitState(t, m, StateConnected)

	m.Off("x", id)
	d.conn(0).push("x", 1)
	d.conn(0).push("y", 1)

	require.Eventually(t, func() bool { return rec.count("y") == 1 }, waitFor, tick)
	assert.Equal(t, 0, rec.count("x"))
}

func TestManager_HandlerPanicDoesNotStopDispatch(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestManager(t, d, "tok")
	rec := &recorder{}
	m.On("boom", func(json.RawMessage) { panic("bad payload") })
	m.On("boom", rec.handler("boom"))
	waitState(t, m, StateConnected)

	d.conn(0).push("boom", nil)
	d.conn(0).push("boom", nil)

	require.Eventually(t, func() bool { return rec.count("boom") == 2 }, waitFor, tick)
}

func TestManager_Emit(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestManager(t, d, "tok")

	assert.ErrorIs(t, m.Emit(ws.EventJoinOrderRoom, "O1"), ErrNotConnected)

	m.Connect()
	waitState(t, m, StateConnected)
	require.NoError(t, m.Emit(ws.EventJoinOrderRoom, "O1"))

	c := d.conn(0)
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.written, 1)
	assert.Equal(t, ws.EventJoinOrderRoom, c.written[0].Event)
	assert.JSONEq(t, `"O1"`, string(c.written[0].Data))
}

func TestManager_WatchReportsTransitions(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestManager(t, d, "tok")

	var mu sync.Mutex
	var states []State
	m.Watch(func(s Status) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	m.Connect()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 2
	}, waitFor, tick)
	assert.Equal(t, []State{StateConnecting, StateConnected}, states)
}

func TestDisconnectReason(t *testing.T) {
	assert.Equal(t, ReasonPingTimeout, DisconnectReason(&DisconnectError{Reason: ReasonPingTimeout}))
	assert.Equal(t, ReasonTransportError, DisconnectReason(errors.New("boom")))
	assert.True(t, IsDeliberate(ReasonServerDisconnect))
	assert.True(t, IsDeliberate(ReasonClientDisconnect))
	assert.False(t, IsDeliberate(ReasonTransportClose))
}
