package ws

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Timestamp 推送负载里的时间，兼容 RFC3339 字符串和毫秒时间戳。
// 无法识别的值解成零值，不让可选字段拖垮整条事件。
type Timestamp struct {
	time.Time
}

func At(t time.Time) Timestamp { return Timestamp{Time: t} }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return t.Time.MarshalJSON()
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	t.Time = time.Time{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] != '"' {
		if ms, err := strconv.ParseFloat(string(b), 64); err == nil {
			t.Time = time.UnixMilli(int64(ms))
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = ts
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.UnixMilli(ms)
	}
	return nil
}
