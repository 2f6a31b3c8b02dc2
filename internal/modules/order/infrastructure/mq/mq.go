package mq

import (
	"context"
	"errors"
	"sync"
)

// Message 订单变更消息，Key 为订单 uuid，保证同一订单落在同一分区
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

type PublishResult struct {
	Partition int32
	Offset    int64
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) (PublishResult, error)
	Close() error
}

type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

type HandlerFunc func(ctx context.Context, msg Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg Message) error { return f(ctx, msg) }

type Consumer interface {
	Run(ctx context.Context, handler Handler) error
	Close() error
}

var ErrClosed = errors.New("mq closed")

// Loopback 未配置 Kafka 时使用：Publish 直接在进程内交给 Handler
// 同时实现 Publisher 和 Consumer，Run 之前发布的消息会被丢弃
type Loopback struct {
	mu      sync.RWMutex
	handler Handler
	offset  int64
	closed  bool
	done    chan struct{}
}

func NewLoopback() *Loopback {
	return &Loopback{done: make(chan struct{})}
}

func (l *Loopback) Publish(ctx context.Context, msg Message) (PublishResult, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return PublishResult{}, ErrClosed
	}
	h := l.handler
	l.offset++
	res := PublishResult{Offset: l.offset}
	l.mu.Unlock()

	if h == nil {
		return res, nil
	}
	if err := h.Handle(ctx, msg); err != nil {
		return res, err
	}
	return res, nil
}

// Run 注册 Handler 并阻塞到 ctx 结束或 Close
func (l *Loopback) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("handler is nil")
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.handler = handler
	l.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return nil
	}
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.handler = nil
	close(l.done)
	return nil
}
