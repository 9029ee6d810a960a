package mintsdk

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// headServer accepts newHeads subscriptions and sends heads[n] on the n-th connection.
// Every connection except the last is closed after its heads are sent.
func headServer(t *testing.T, heads ...[]string) (string, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	done := make(chan struct{})
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := int(conns.Add(1)) - 1

		var sub rpcRequest
		if err := conn.ReadJSON(&sub); err != nil || sub.Method != "eth_subscribe" {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":1,"result":"0xsub"}`))
		if n >= len(heads) {
			<-done
			return
		}
		for _, head := range heads[n] {
			msg := fmt.Sprintf(`{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0xsub","result":{"number":"%s"}}}`, head)
			if head == "garbage" {
				msg = "not json"
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
		}
		if n < len(heads)-1 {
			return
		}
		<-done
	}))
	t.Cleanup(func() {
		close(done)
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), &conns
}

func quietEntry() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestHeadWatcherFollowsHeads(t *testing.T) {
	endpoint, _ := headServer(t, []string{"0x10", "garbage", "0xc", "0x12"})
	hw := NewHeadWatcher(HeadWatcherConfig{Endpoint: endpoint, Logger: quietEntry()})
	defer hw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, hw.Connect(ctx))
	require.True(t, hw.IsConnected())

	latest, err := hw.WaitFor(ctx, 0x12)
	require.NoError(t, err)
	require.Equal(t, uint64(0x12), latest)
	require.Equal(t, uint64(0x12), hw.Latest())
}

func TestHeadWatcherWaitForCanceled(t *testing.T) {
	endpoint, _ := headServer(t, []string{"0x1"})
	hw := NewHeadWatcher(HeadWatcherConfig{Endpoint: endpoint, Logger: quietEntry()})
	defer hw.Close()
	require.NoError(t, hw.Connect(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := hw.WaitFor(ctx, 100)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHeadWatcherReconnects(t *testing.T) {
	endpoint, conns := headServer(t, []string{"0x5"}, []string{"0x9"})
	hw := NewHeadWatcher(HeadWatcherConfig{
		Endpoint:          endpoint,
		ReconnectInterval: 10 * time.Millisecond,
		Logger:            quietEntry(),
	})
	defer hw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, hw.Connect(ctx))
	hw.mu.RLock()
	first := hw.connCtx
	hw.mu.RUnlock()

	latest, err := hw.WaitFor(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, uint64(9), latest)
	require.GreaterOrEqual(t, conns.Load(), int32(2))

	// the dropped connection's goroutines are released
	require.ErrorIs(t, first.Err(), context.Canceled)
	hw.mu.RLock()
	require.NoError(t, hw.connCtx.Err())
	hw.mu.RUnlock()
}

func TestHeadWatcherConnectFails(t *testing.T) {
	hw := NewHeadWatcher(HeadWatcherConfig{Endpoint: "ws://127.0.0.1:1", Logger: quietEntry()})
	err := hw.Connect(context.Background())
	require.Error(t, err)
	require.False(t, hw.IsConnected())
}
