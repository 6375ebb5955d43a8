package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
	"quizroom-service/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	commandTimeout = 5 * time.Second
)

// WSOptions tunes per-connection limits.
type WSOptions struct {
	MessagesPerSecond float64
	Burst             int
	SendBuffer        int
}

type WSHandler struct {
	registry *app.Registry
	opts     WSOptions
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(registry *app.Registry, opts WSOptions, log *zap.Logger) *WSHandler {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		registry: registry,
		opts:     opts,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// client is one websocket connection. Rooms deliver to it from their own
// goroutines, so Deliver only ever enqueues; a client that cannot keep up is
// dropped instead of stalling the room.
type client struct {
	id        string
	conn      *websocket.Conn
	send      chan protocol.Event
	done      chan struct{}
	closeOnce sync.Once
	log       *zap.Logger
}

func (c *client) Deliver(ev protocol.Event) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- ev:
	default:
		c.log.Warn("outbound buffer full, dropping connection")
		c.shutdown()
	}
}

func (c *client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// ServeWS upgrades the request and runs the room protocol until the
// connection drops. Leaving is implicit on disconnect.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	c := &client{
		id:   id,
		conn: conn,
		send: make(chan protocol.Event, h.opts.SendBuffer),
		done: make(chan struct{}),
		log:  h.log.With(zap.String("conn", id)),
	}
	c.log.Debug("connection opened")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(c)
	}()

	h.readPump(r.Context(), c)

	c.shutdown()
	h.registry.Disconnect(context.Background(), c.id)
	<-writerDone
	c.log.Debug("connection closed")
}

func (h *WSHandler) readPump(ctx context.Context, c *client) {
	limit := rate.Inf
	if h.opts.MessagesPerSecond > 0 {
		limit = rate.Limit(h.opts.MessagesPerSecond)
	}
	limiter := rate.NewLimiter(limit, h.opts.Burst)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Info("ws read failed", zap.Error(err))
			}
			return
		}
		if !limiter.Allow() {
			c.Deliver(protocol.RateLimited())
			continue
		}
		cmd, err := protocol.Decode(raw)
		if err != nil {
			c.Deliver(protocol.Rejection(err))
			continue
		}
		if err := h.dispatch(ctx, c, cmd); err != nil {
			c.Deliver(protocol.Rejection(err))
		}
	}
}

func (h *WSHandler) dispatch(parent context.Context, c *client, cmd protocol.Command) error {
	ctx, cancel := context.WithTimeout(parent, commandTimeout)
	defer cancel()

	var err error
	switch cmd.Type {
	case protocol.TypeJoinLobby:
		_, err = h.registry.Join(ctx, cmd.Join.RoomID, c.id, cmd.Join.DisplayName, c)
	case protocol.TypeLeaveLobby:
		err = h.registry.Leave(ctx, cmd.Leave.RoomID, c.id)
	case protocol.TypeStartQuiz:
		err = h.registry.Start(ctx, cmd.Start.RoomID, c.id, cmd.Start.QuizRef)
	case protocol.TypeSubmitAnswer:
		err = h.registry.SubmitAnswer(ctx, cmd.Submit.RoomID, c.id, domain.RoomAnswer{
			AnswerIndex:    *cmd.Submit.AnswerIndex,
			QuestionNumber: cmd.Submit.QuestionNumber,
		})
	case protocol.TypeAdvance:
		err = h.registry.Advance(ctx, cmd.Next.RoomID, c.id)
	}
	if err != nil && protocol.ErrorCode(err) == protocol.CodeInternal {
		c.log.Error("command failed", zap.String("type", string(cmd.Type)), zap.Error(err))
	}
	return err
}

func (h *WSHandler) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.log.Debug("ws write failed", zap.Error(err))
				c.shutdown()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		case <-c.done:
			return
		}
	}
}
