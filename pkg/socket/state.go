package socket

import (
	"errors"
	"time"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// 由 Manager 在本地产生的生命周期事件，和服务端推送的事件走同一套监听器
const (
	EventConnect        = "connect"
	EventDisconnect     = "disconnect"
	EventConnectError   = "connect_error"
	EventReconnect      = "reconnect"
	EventReconnectError = "reconnect_error"
	EventConnectionLost = "connection_lost"
)

// 断开原因
const (
	ReasonClientDisconnect = "io client disconnect"
	ReasonServerDisconnect = "io server disconnect"
	ReasonTransportClose   = "transport close"
	ReasonTransportError   = "transport error"
	ReasonPingTimeout      = "ping timeout"
)

var (
	ErrNotConnected   = errors.New("socket: not connected")
	ErrMalformedFrame = errors.New("socket: malformed frame")
)

// IsDeliberate 主动断开（客户端或服务端正常关闭）不触发重连
func IsDeliberate(reason string) bool {
	return reason == ReasonClientDisconnect || reason == ReasonServerDisconnect
}

// DisconnectError 携带断开原因的读错误
type DisconnectError struct {
	Reason string
	Err    error
}

func (e *DisconnectError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *DisconnectError) Unwrap() error { return e.Err }

// Status 连接状态快照，UI 层只通过它感知失败
type Status struct {
	State       State     `json:"state"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"lastError,omitempty"`
	LastErrorAt time.Time `json:"lastErrorAt,omitempty"`
	Lost        bool      `json:"lost"`
}
