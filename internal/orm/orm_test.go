package orm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/CortexLM/challenge/common/cbor"
	"github.com/CortexLM/challenge/internal/session"
	"github.com/CortexLM/challenge/internal/transport"
)

// dialPairForOrm spins up a local WebSocket echo-upgrade server and
// returns a connected (serverSide, clientSide) *websocket.Conn pair,
// mirroring the transport package's own connection test helper since
// that helper is unexported and this package sits one level above it.
func dialPairForOrm(t *testing.T) (server, client *websocket.Conn) {
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

func testKeyForOrm() []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func testPolicy() Policy {
	p := NewPolicy()
	p.Allow("scores", TablePolicy{
		ReadColumns:   map[string]bool{"uid": true, "score": true},
		InsertColumns: map[string]bool{"uid": true, "score": true},
		UpdateColumns: map[string]bool{"score": true},
		DeleteAllowed: true,
	})
	return p
}

// stubHandler answers every orm.* request with a fixed Result, echoing
// the operation back so tests can assert on it.
type stubHandler struct{}

func (stubHandler) Handle(ctx context.Context, msg *transport.Message) *transport.Message {
	res := &Result{RowCount: 1, Rows: []map[string]interface{}{{"uid": "abc"}}}
	return &transport.Message{Payload: cbor.Marshal(res)}
}

func dialBridge(t *testing.T) (*Bridge, *session.Manager) {
	t.Helper()
	serverWS, clientWS := dialPairForOrm(t)

	server := transport.New(serverWS, transport.RoleAdmin, testKeyForOrm(), stubHandler{})
	t.Cleanup(server.Close)
	client := transport.New(clientWS, transport.RoleAdmin, testKeyForOrm(), nil)
	t.Cleanup(client.Close)

	sessions := session.NewManager()
	sessions.Admit(&session.Peer{Role: transport.RoleAdmin, Conn: client})

	return NewBridge(sessions, testPolicy()), sessions
}

func TestSelectRejectsUnknownColumn(t *testing.T) {
	require := require.New(t)
	b, _ := dialBridge(t)

	_, err := b.Select(context.Background(), &Query{
		Table:   "scores",
		Columns: []string{"secret_column"},
	})
	require.ErrorIs(err, ErrForbidden)
}

func TestSelectRejectsUnknownTable(t *testing.T) {
	require := require.New(t)
	b, _ := dialBridge(t)

	_, err := b.Select(context.Background(), &Query{Table: "other"})
	require.ErrorIs(err, ErrForbidden)
}

func TestSelectRoundTrip(t *testing.T) {
	require := require.New(t)
	b, _ := dialBridge(t)

	res, err := b.Select(context.Background(), &Query{
		Table:   "scores",
		Columns: []string{"uid", "score"},
	})
	require.NoError(err)
	require.Equal(1, res.RowCount)
}

func TestDeleteRejectsEmptyFilters(t *testing.T) {
	require := require.New(t)
	b, _ := dialBridge(t)

	_, err := b.Delete(context.Background(), &Query{Table: "scores"})
	require.ErrorIs(err, ErrUnsafeDelete)
}

func TestUpdateRejectsEmptyFilters(t *testing.T) {
	require := require.New(t)
	b, _ := dialBridge(t)

	_, err := b.Update(context.Background(), &Query{
		Table:     "scores",
		SetValues: map[string]interface{}{"score": 1.0},
	})
	require.ErrorIs(err, ErrUnsafeDelete)
}

func TestInsertRoutesToAdminOnly(t *testing.T) {
	require := require.New(t)
	b, sessions := dialBridge(t)
	sessions.Drop(transport.RoleAdmin)

	_, err := b.Insert(context.Background(), &Query{
		Table:  "scores",
		Values: map[string]interface{}{"uid": "x", "score": 1.0},
	})
	require.ErrorIs(err, ErrNoAdmin)
}

func TestInsertRejectsUnknownColumn(t *testing.T) {
	require := require.New(t)
	b, _ := dialBridge(t)

	_, err := b.Insert(context.Background(), &Query{
		Table:  "scores",
		Values: map[string]interface{}{"internal_flag": true},
	})
	require.ErrorIs(err, ErrForbidden)
}

func TestCountRoundTrip(t *testing.T) {
	require := require.New(t)
	b, _ := dialBridge(t)

	res, err := b.Count(context.Background(), "scores", []Filter{{Column: "uid", Operator: "=", Value: "abc"}})
	require.NoError(err)
	require.Equal(1, res.RowCount)
}

func TestCountRejectsUnknownTable(t *testing.T) {
	require := require.New(t)
	b, _ := dialBridge(t)

	_, err := b.Count(context.Background(), "other", nil)
	require.ErrorIs(err, ErrForbidden)
}

func TestAggregateRejectsUnknownColumn(t *testing.T) {
	require := require.New(t)
	b, _ := dialBridge(t)

	_, err := b.Aggregate(context.Background(), &Query{
		Table:        "scores",
		Aggregations: []Aggregation{{Function: "sum", Column: "secret_column", Alias: "total"}},
	})
	require.ErrorIs(err, ErrForbidden)
}
