package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackDeliversAfterRun(t *testing.T) {
	l := NewLoopback()
	got := make(chan Message, 2)

	// Run 之前的消息没有消费者
	_, err := l.Publish(context.Background(), Message{Topic: "t", Key: []byte("early")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() {
		runErr <- l.Run(ctx, HandlerFunc(func(_ context.Context, m Message) error {
			got <- m
			return nil
		}))
	}()

	require.Eventually(t, func() bool {
		l.mu.RLock()
		defer l.mu.RUnlock()
		return l.handler != nil
	}, time.Second, 5*time.Millisecond)

	res, err := l.Publish(context.Background(), Message{Topic: "t", Key: []byte("o1")})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Offset)
	assert.Equal(t, "o1", string((<-got).Key))

	cancel()
	assert.ErrorIs(t, <-runErr, context.Canceled)
}

func TestLoopbackHandlerError(t *testing.T) {
	l := NewLoopback()
	boom := errors.New("boom")
	go func() {
		_ = l.Run(context.Background(), HandlerFunc(func(context.Context, Message) error { return boom }))
	}()
	require.Eventually(t, func() bool {
		l.mu.RLock()
		defer l.mu.RUnlock()
		return l.handler != nil
	}, time.Second, 5*time.Millisecond)

	_, err := l.Publish(context.Background(), Message{})
	assert.ErrorIs(t, err, boom)
}

func TestLoopbackClose(t *testing.T) {
	l := NewLoopback()
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background(), HandlerFunc(func(context.Context, Message) error { return nil })) }()

	require.Eventually(t, func() bool {
		l.mu.RLock()
		defer l.mu.RUnlock()
		return l.handler != nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.NoError(t, <-done)

	_, err := l.Publish(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, l.Run(context.Background(), HandlerFunc(func(context.Context, Message) error { return nil })), ErrClosed)
}
