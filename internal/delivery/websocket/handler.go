// Package websocket streams the Results of a view over a websocket.
//
// The server sends one text message per encoded Result, starting with the
// full document. A client may send {"type":"resync"} to receive the full
// document again, and {"type":"event","name":...,"node_id":...,"data":...}
// to send an input event to the view.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"livedom/dom/common"
	"livedom/dom/push"
	"livedom/dom/view"
	"livedom/internal/delivery"
	"livedom/pkg/utils"
)

// Message types sent by clients.
const (
	MessageResync = "resync"
	MessageEvent  = "event"
)

// ClientMessage is a message sent by a client. Name, NodeID and Data are
// only used by input events.
type ClientMessage struct {
	Type   string                 `json:"type"`
	Name   string                 `json:"name,omitempty"`
	NodeID common.NodeID          `json:"node_id,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Client is one websocket connection attached to a view.
type Client struct {
	conn     *websocket.Conn
	feed     *delivery.Feed
	registry *view.Registry
	viewID   string
	logger   *zap.Logger

	mutex  sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(conn *websocket.Conn, feed *delivery.Feed, registry *view.Registry, viewID string, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:     conn,
		feed:     feed,
		registry: registry,
		viewID:   viewID,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// run sends frames until the view finishes or the connection is closed.
func (c *Client) run() {
	defer c.Close()

	go c.receiveLoop()

	if err := c.send(c.feed.Initial().Data); err != nil {
		return
	}

	for {
		select {
		case <-c.ctx.Done():
			return
		case frame := <-c.feed.Frames():
			if err := c.send(frame.Data); err != nil {
				return
			}
		case <-c.feed.Done():
			for _, frame := range c.feed.Pending() {
				if err := c.send(frame.Data); err != nil {
					return
				}
			}
			c.closeWith(websocket.CloseNormalClosure, "view finished")
			return
		}
	}
}

// receiveLoop는 WebSocket 메시지 수신 루프입니다.
func (c *Client) receiveLoop() {
	defer c.cancel()

	for {
		_, msgBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error",
					zap.String("view", c.viewID),
					zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			c.sendError(errors.Wrap(err, "invalid message"))
			continue
		}

		if err := c.handleMessage(&msg); err != nil {
			c.logger.Warn("Failed to handle WebSocket message",
				zap.String("view", c.viewID),
				zap.String("message_type", msg.Type),
				zap.Error(err))
			c.sendError(err)
		}
	}
}

func (c *Client) handleMessage(msg *ClientMessage) error {
	switch msg.Type {
	case MessageResync:
		frame, err := c.feed.Snapshot(c.ctx)
		if err != nil {
			return err
		}
		return c.send(frame.Data)
	case MessageEvent:
		if msg.Name == "" {
			return errors.New("event without name")
		}
		return c.registry.Dispatch(c.ctx, c.viewID, view.InputEvent{
			Name:   msg.Name,
			NodeID: msg.NodeID,
			Data:   msg.Data,
		})
	default:
		return errors.Errorf("unknown message type: %s", msg.Type)
	}
}

func (c *Client) sendError(err error) {
	data, _ := json.Marshal(errorMessage{Type: "error", Error: err.Error()})
	_ = c.send(data)
}

// send writes one text message. Writes are serialized by the client mutex.
func (c *Client) send(data []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return errors.New("client is closed")
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

func (c *Client) closeWith(code int, reason string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}

// Close closes the connection and the feed.
func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.cancel()
	c.feed.Close()

	return c.conn.Close()
}

// Handler upgrades requests to websocket connections attached to a view.
type Handler struct {
	registry   *view.Registry
	subscriber push.Subscriber
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

// NewHandler creates a websocket Handler.
func NewHandler(registry *view.Registry, subscriber push.Subscriber, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry:   registry,
		subscriber: subscriber,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // 모든 오리진 허용
			},
		},
	}
}

// ServeHTTP attaches the connection to the view named by the "id" route variable.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt, err := h.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		utils.SetError(r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	// the request context ends with the handler, the connection outlives it
	feed, err := delivery.Open(context.Background(), rt, h.subscriber, h.logger)
	if err != nil {
		h.logger.Warn("Failed to open feed", zap.String("view", rt.ID()), zap.Error(err))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "feed unavailable"))
		_ = conn.Close()
		return
	}

	client := newClient(conn, feed, h.registry, rt.ID(), h.logger)
	h.logger.Debug("WebSocket client connected", zap.String("view", rt.ID()))

	go client.run()
}
