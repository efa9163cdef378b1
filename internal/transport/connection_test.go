package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// dialPair spins up a local WebSocket echo-upgrade server and returns a
// connected (serverSide, clientSide) *websocket.Conn pair for tests.
func dialPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverCh := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverCh <- c
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + srv.URL[len("http"):]
	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	return <-serverCh, c
}

type echoHandler struct {
	calls int
}

func (h *echoHandler) Handle(ctx context.Context, msg *Message) *Message {
	h.calls++
	reply := *msg
	return &reply
}

func TestCallEchoRoundTrip(t *testing.T) {
	require := require.New(t)

	serverWS, clientWS := dialPair(t)
	key := testKey()

	handler := &echoHandler{}
	server := New(serverWS, RoleAdmin, key, handler)
	defer server.Close()
	client := New(clientWS, RoleAdmin, key, nil)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.Call(ctx, &Message{Method: "ping", Payload: []byte("hi")})
	require.NoError(err)
	require.Equal("ping", resp.Method)
	require.Equal([]byte("hi"), resp.Payload)
	require.Equal(1, handler.calls)
}

func TestCallTimesOutWithNoHandler(t *testing.T) {
	require := require.New(t)

	serverWS, clientWS := dialPair(t)
	key := testKey()

	server := New(serverWS, RoleConsumer, key, nil)
	defer server.Close()
	client := New(clientWS, RoleConsumer, key, nil)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := client.Call(ctx, &Message{Method: "job.execute"})
	require.Error(err)
}
