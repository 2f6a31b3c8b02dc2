package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_Unmarshal(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		raw  string
		zero bool
	}{
		{name: "rfc3339", raw: `"2024-05-01T12:30:00Z"`},
		{name: "rfc3339 millis", raw: `"2024-05-01T12:30:00.000Z"`},
		{name: "epoch millis", raw: `1714566600000`},
		{name: "epoch millis string", raw: `"1714566600000"`},
		{name: "null", raw: `null`, zero: true},
		{name: "garbage", raw: `"yesterday"`, zero: true},
		{name: "object", raw: `{"t":1}`, zero: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &ts))
			if tc.zero {
				assert.True(t, ts.IsZero())
				return
			}
			assert.True(t, want.Equal(ts.Time), ts.Time.String())
		})
	}
}

func TestTimestamp_BadValueKeepsPayload(t *testing.T) {
	var u SingleOrderUpdate
	err := json.Unmarshal([]byte(`{"operation":"updated","orderId":"O1","changes":{"status":"processing"},"timestamp":false}`), &u)
	require.NoError(t, err)
	assert.Equal(t, OperationUpdated, u.Operation)
	assert.Equal(t, "O1", u.OrderID)
	assert.True(t, u.Timestamp.IsZero())
}

func TestTimestamp_Marshal(t *testing.T) {
	b, err := json.Marshal(ConnectionStatus{Type: TypeConnected, Message: "hi"})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"timestamp":null`)

	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	b, err = json.Marshal(ConnectionStatus{Type: TypeConnected, Timestamp: At(at)})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"timestamp":"2024-05-01T12:30:00Z"`)
}
