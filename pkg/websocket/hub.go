package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/pkg/types"
)

const (
	// writeWait bounds every frame write, state pushes and pings alike.
	writeWait = 10 * time.Second

	// pongWait is how long a client may go silent before its connection
	// is dropped; pings go out at the usual 9/10 of it.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// readLimit is tiny: clients only ever send control frames.
	readLimit = 512
)

// StateSource supplies the snapshot pushed to connected clients.
type StateSource interface {
	Snapshot() types.StateSnapshot
}

// Hub pushes scanner state over WebSocket. Each connection gets the full
// snapshot every push interval, the same payload the SSE stream carries, so
// programmatic consumers can pick either transport.
type Hub struct {
	source       StateSource
	logger       *zap.Logger
	pushInterval time.Duration
	upgrader     websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// Config holds hub configuration.
type Config struct {
	Source       StateSource
	PushInterval time.Duration
	Logger       *zap.Logger
}

// New creates a Hub.
func New(cfg *Config) (*Hub, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("state source cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	pushInterval := cfg.PushInterval
	if pushInterval <= 0 {
		pushInterval = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		source:       cfg.Source,
		logger:       cfg.Logger,
		pushInterval: pushInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The dashboard is same-origin; ops tooling connects with no
			// Origin header at all.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[*websocket.Conn]struct{}),
	}, nil
}

// ServeHTTP upgrades the request and starts pushing state to the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		upgradeFailuresTotal.Inc()
		h.logger.Warn("websocket-upgrade-failed", zap.Error(err))
		return
	}

	h.register(conn)
	h.logger.Debug("dashboard-client-connected", zap.String("remote", conn.RemoteAddr().String()))

	done := make(chan struct{})
	h.wg.Add(2)
	go h.readLoop(conn, done)
	go h.writeLoop(conn, done)
}

// readLoop drains the connection so close frames and pongs are processed.
// Clients never send data; any payload is ignored.
func (h *Hub) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer h.wg.Done()
	defer close(done)

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, done <-chan struct{}) {
	defer h.wg.Done()
	defer h.unregister(conn)

	// First snapshot goes out immediately so a fresh client is never blank
	// for a full interval.
	if err := h.push(conn); err != nil {
		return
	}

	pushTicker := time.NewTicker(h.pushInterval)
	defer pushTicker.Stop()
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-done:
			return
		case <-pushTicker.C:
			if err := h.push(conn); err != nil {
				pushErrorsTotal.Inc()
				return
			}
		case <-pingTicker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) push(conn *websocket.Conn) error {
	payload, err := json.Marshal(h.source.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write state: %w", err)
	}

	messagesSentTotal.Inc()
	return nil
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	connectionsActive.Set(float64(len(h.conns)))
	h.mu.Unlock()
}

// unregister is idempotent: the write loop always calls it, and Close may
// have beaten it to the connection.
func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		conn.Close()
	}
	connectionsActive.Set(float64(len(h.conns)))
	h.mu.Unlock()
}

// Close disconnects every client and waits for their loops to finish.
func (h *Hub) Close() error {
	h.logger.Info("websocket-hub-closing")
	h.cancel()

	h.mu.Lock()
	for conn := range h.conns {
		delete(h.conns, conn)
		conn.Close()
	}
	connectionsActive.Set(0)
	h.mu.Unlock()

	h.wg.Wait()
	return nil
}
