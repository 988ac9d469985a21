package sse

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"livedom/dom/push"
	"livedom/dom/view"
	"livedom/internal/delivery"
	"livedom/pkg/utils"
)

// Event names written on the stream.
const (
	EventResult = "result"
	EventEnd    = "end"
)

// Client represents a connected SSE client
type Client struct {
	ID      string
	ViewID  string
	Writer  http.ResponseWriter
	Flusher http.Flusher

	seq uint64
}

// Options configures a Router.
type Options struct {
	// Heartbeat is the interval of keep-alive comments.
	Heartbeat time.Duration
	// Logger logs connections. Nil means no logging.
	Logger *zap.Logger
}

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		Heartbeat: 15 * time.Second,
	}
}

// Router streams the Results of a view as Server-Sent Events.
type Router struct {
	registry   *view.Registry
	subscriber push.Subscriber
	heartbeat  time.Duration
	logger     *zap.Logger
}

// NewRouter creates a new SSE router
func NewRouter(registry *view.Registry, subscriber push.Subscriber, options *Options) *Router {
	if options == nil {
		options = NewOptions()
	}
	heartbeat := options.Heartbeat
	if heartbeat <= 0 {
		heartbeat = NewOptions().Heartbeat
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		registry:   registry,
		subscriber: subscriber,
		heartbeat:  heartbeat,
		logger:     logger,
	}
}

// HandleEvents handles SSE connections. The view id is the "id" route variable.
func (r *Router) HandleEvents(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	rt, err := r.registry.Get(mux.Vars(req)["id"])
	if err != nil {
		utils.SetError(req, err)
		return
	}

	feed, err := delivery.Open(req.Context(), rt, r.subscriber, r.logger)
	if err != nil {
		utils.SetError(req, err)
		return
	}
	defer feed.Close()

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	client := &Client{
		ID:      utils.GenerateRequestID(),
		ViewID:  rt.ID(),
		Writer:  w,
		Flusher: flusher,
	}

	r.logger.Debug("SSE client connected",
		zap.String("client", client.ID),
		zap.String("view", client.ViewID))
	defer r.logger.Debug("SSE client disconnected",
		zap.String("client", client.ID),
		zap.String("view", client.ViewID))

	r.sendFrame(client, feed.Initial())

	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-req.Context().Done():
			return
		case frame := <-feed.Frames():
			r.sendFrame(client, frame)
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-feed.Done():
			for _, frame := range feed.Pending() {
				r.sendFrame(client, frame)
			}
			r.sendEvent(client, EventEnd, []byte(rt.ID()))
			return
		}
	}
}

func (r *Router) sendFrame(client *Client, frame delivery.Frame) {
	r.sendEvent(client, EventResult, frame.Data)
}

// sendEvent sends an event to a client
func (r *Router) sendEvent(client *Client, event string, data []byte) {
	client.seq++
	fmt.Fprintf(client.Writer, "id: %d\nevent: %s\ndata: %s\n\n", client.seq, event, data)
	client.Flusher.Flush()
}
