package gateway

import (
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialStream(t *testing.T, srv *Server) (*websocket.Conn, func()) {
	t.Helper()

	ts := httptest.NewServer(srv.Router())
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/stream"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

func TestStreamSubscribePushesData(t *testing.T) {
	srv, emu := newTestServer(t)
	emu.SetSymbol("Main.counter", []byte{1, 0, 0, 0})

	conn, cleanup := dialStream(t, srv)
	defer cleanup()

	require.NoError(t, conn.WriteJSON(StreamMessage{
		Type:      "subscribe",
		RequestID: "sub-1",
		Symbols:   []StreamSymbol{{Name: "Main.counter", Size: 4}},
		Interval:  20,
	}))

	var ack StreamMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, "subscribed", ack.Type)
	assert.Equal(t, 1, emu.LiveHandles())

	var data StreamMessage
	require.NoError(t, conn.ReadJSON(&data))
	require.Equal(t, "data", data.Type)
	assert.Equal(t, []byte{1, 0, 0, 0}, data.Data["Main.counter"])

	// Unsubscribe releases the handle.
	require.NoError(t, conn.WriteJSON(StreamMessage{Type: "unsubscribe", RequestID: "sub-1"}))
	var done StreamMessage
	require.NoError(t, conn.ReadJSON(&done))
	require.Equal(t, "unsubscribed", done.Type)

	assert.Eventually(t, func() bool { return emu.LiveHandles() == 0 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, srv.stream.Count())
}

func TestStreamSubscribeUnknownSymbol(t *testing.T) {
	srv, _ := newTestServer(t)

	conn, cleanup := dialStream(t, srv)
	defer cleanup()

	require.NoError(t, conn.WriteJSON(StreamMessage{
		Type:      "subscribe",
		RequestID: "sub-1",
		Symbols:   []StreamSymbol{{Name: "Main.missing", Size: 4}},
	}))

	var resp StreamMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "error", resp.Type)
	assert.Equal(t, 0, srv.stream.Count())
}

func TestStreamConnectionCloseCleansUp(t *testing.T) {
	srv, emu := newTestServer(t)
	emu.SetSymbol("Main.counter", []byte{1, 0, 0, 0})

	before := runtime.NumGoroutine()

	conn, cleanup := dialStream(t, srv)

	require.NoError(t, conn.WriteJSON(StreamMessage{
		Type:      "subscribe",
		RequestID: "sub-1",
		Symbols:   []StreamSymbol{{Name: "Main.counter", Size: 4}},
		Interval:  20,
	}))

	var ack StreamMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, "subscribed", ack.Type)

	// Dropping the connection must release the stream's handles and let
	// every per-connection goroutine (reader, poller, pinger) exit.
	cleanup()

	assert.Eventually(t, func() bool { return emu.LiveHandles() == 0 },
		2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return srv.stream.Count() == 0 },
		2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= before },
		5*time.Second, 20*time.Millisecond)
}
