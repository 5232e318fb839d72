package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

const (
	defaultReadLimit  = 32768
	defaultPingPeriod = 54 * time.Second
	defaultSendBuffer = 32
	writeWait         = 5 * time.Second
)

// Handler receives the lifecycle and inbound events of every connection.
type Handler interface {
	OnConnect(sid domain.SessionID, conn core.SignalConnection, cancel context.CancelFunc)
	OnDisconnect(sid domain.SessionID)
	Dispatch(sid domain.SessionID, ev domain.Event)
}

type SignalWSController struct {
	Orch       Handler
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
}

func NewSignalWSController(h Handler) *SignalWSController {
	return &SignalWSController{
		Orch:       h,
		ReadLimit:  defaultReadLimit,
		PingPeriod: defaultPingPeriod,
		SendBuffer: defaultSendBuffer,
	}
}

// WsSignalConn queues outbound frames for a single writer goroutine, which
// keeps frames to one recipient in the order they were queued.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and starts the pumps. The connection
// lives until the peer leaves, the transport fails, or ctx (or the cancel
// stored in the registry) ends it.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := domain.NewSessionID()
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("remote", c.Request.RemoteAddr).Msg("new WS connection")

	buf := ctl.SendBuffer
	if buf <= 0 {
		buf = defaultSendBuffer
	}
	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, buf),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.OnConnect(sid, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
