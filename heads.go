package mintsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Ping interval
	HeartbeatInterval = 30 * time.Second

	// Reconnect settings
	DefaultReconnectInterval    = 5 * time.Second
	DefaultMaxReconnectAttempts = 10
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcMessage struct {
	ID     *int            `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Params *struct {
		Subscription string `json:"subscription"`
		Result       struct {
			Number hexutil.Uint64 `json:"number"`
		} `json:"result"`
	} `json:"params,omitempty"`
}

// HeadWatcherConfig holds configuration for a HeadWatcher
type HeadWatcherConfig struct {
	Endpoint             string
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	Logger               *logrus.Entry
}

// HeadWatcher follows the chain head over a websocket newHeads subscription
type HeadWatcher struct {
	config HeadWatcherConfig

	mu               sync.RWMutex
	conn             *websocket.Conn
	isConnected      bool
	ctx              context.Context
	cancel           context.CancelFunc
	connCtx          context.Context
	connCancel       context.CancelFunc
	heartbeatTicker  *time.Ticker
	reconnectAttempt int
	writeMu          sync.Mutex

	headMu  sync.Mutex
	latest  uint64
	changed chan struct{}
}

// NewHeadWatcher creates a new HeadWatcher
func NewHeadWatcher(config HeadWatcherConfig) *HeadWatcher {
	if config.ReconnectInterval == 0 {
		config.ReconnectInterval = DefaultReconnectInterval
	}
	if config.MaxReconnectAttempts == 0 {
		config.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if config.Logger == nil {
		config.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &HeadWatcher{
		config:  config,
		changed: make(chan struct{}),
	}
}

// Connect dials the endpoint and subscribes to new heads
func (hw *HeadWatcher) Connect(ctx context.Context) error {
	hw.mu.Lock()
	defer hw.mu.Unlock()

	if hw.isConnected {
		return nil
	}
	if hw.ctx == nil || hw.ctx.Err() != nil {
		hw.ctx, hw.cancel = context.WithCancel(context.Background())
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, hw.config.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}

	sub := rpcRequest{JSONRPC: "2.0", ID: 1, Method: "eth_subscribe", Params: []interface{}{"newHeads"}}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to new heads: %w", err)
	}

	// per-connection context, canceled on disconnect
	hw.connCtx, hw.connCancel = context.WithCancel(hw.ctx)
	hw.conn = conn
	hw.isConnected = true
	hw.reconnectAttempt = 0

	hw.startHeartbeat(hw.connCtx, conn)
	go hw.readLoop(hw.connCtx, conn)

	hw.config.Logger.WithField("endpoint", hw.config.Endpoint).Debug("head watcher connected")
	return nil
}

// Close stops the watcher and closes the connection
func (hw *HeadWatcher) Close() error {
	hw.mu.Lock()
	defer hw.mu.Unlock()

	if hw.cancel != nil {
		hw.cancel()
	}
	if hw.heartbeatTicker != nil {
		hw.heartbeatTicker.Stop()
	}
	hw.isConnected = false

	var err error
	if hw.conn != nil {
		err = hw.conn.Close()
		hw.conn = nil
	}
	return err
}

// IsConnected returns the current connection status
func (hw *HeadWatcher) IsConnected() bool {
	hw.mu.RLock()
	defer hw.mu.RUnlock()
	return hw.isConnected
}

// Latest returns the highest block number seen so far
func (hw *HeadWatcher) Latest() uint64 {
	hw.headMu.Lock()
	defer hw.headMu.Unlock()
	return hw.latest
}

// WaitFor blocks until a head at or above number has been seen
func (hw *HeadWatcher) WaitFor(ctx context.Context, number uint64) (uint64, error) {
	for {
		hw.headMu.Lock()
		latest, changed := hw.latest, hw.changed
		hw.headMu.Unlock()

		if latest >= number {
			return latest, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return latest, ctx.Err()
		}
	}
}

func (hw *HeadWatcher) observe(number uint64) {
	hw.headMu.Lock()
	defer hw.headMu.Unlock()
	if number <= hw.latest {
		return
	}
	hw.latest = number
	close(hw.changed)
	hw.changed = make(chan struct{})
}

func (hw *HeadWatcher) startHeartbeat(ctx context.Context, conn *websocket.Conn) {
	hw.heartbeatTicker = time.NewTicker(HeartbeatInterval)
	ticker := hw.heartbeatTicker

	go func() {
		for {
			select {
			case <-ticker.C:
				hw.writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
				hw.writeMu.Unlock()
				if err != nil {
					hw.config.Logger.WithError(err).Warn("head watcher ping failed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// readLoop continuously reads subscription notifications
func (hw *HeadWatcher) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				hw.config.Logger.WithError(err).Warn("head watcher read error")
			}
			hw.handleDisconnect()
			return
		}

		var msg rpcMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			hw.config.Logger.WithError(err).Debug("ignoring malformed websocket message")
			continue
		}
		switch {
		case msg.Error != nil:
			hw.config.Logger.WithField("code", msg.Error.Code).Warn("newHeads subscription rejected: " + msg.Error.Message)
		case msg.Method == "eth_subscription" && msg.Params != nil:
			hw.observe(uint64(msg.Params.Result.Number))
		}
	}
}

// handleDisconnect marks the watcher disconnected and starts reconnecting
func (hw *HeadWatcher) handleDisconnect() {
	hw.mu.Lock()
	hw.isConnected = false
	if hw.connCancel != nil {
		hw.connCancel()
	}
	if hw.heartbeatTicker != nil {
		hw.heartbeatTicker.Stop()
	}
	if hw.conn != nil {
		hw.conn.Close()
		hw.conn = nil
	}
	ctx := hw.ctx
	hw.mu.Unlock()

	go hw.attemptReconnect(ctx)
}

// attemptReconnect redials and resubscribes until the attempt budget runs out
func (hw *HeadWatcher) attemptReconnect(ctx context.Context) {
	for {
		hw.mu.Lock()
		if hw.reconnectAttempt >= hw.config.MaxReconnectAttempts {
			hw.mu.Unlock()
			hw.config.Logger.Errorf("head watcher gave up after %d reconnect attempts", hw.config.MaxReconnectAttempts)
			return
		}
		hw.reconnectAttempt++
		attempt := hw.reconnectAttempt
		hw.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(hw.config.ReconnectInterval):
		}

		if err := hw.Connect(ctx); err != nil {
			hw.config.Logger.WithError(err).Warnf("head watcher reconnect attempt %d failed", attempt)
			continue
		}
		return
	}
}
