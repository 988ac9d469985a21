package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"livedom/internal/delivery/sse"
	"livedom/internal/delivery/websocket"
	"livedom/pkg/utils"
)

// Router handles HTTP routing
type Router struct {
	handler   *Handler
	sseRouter *sse.Router
	wsHandler *websocket.Handler
	logger    *zap.Logger
}

// NewRouter creates a new HTTP router
func NewRouter(handler *Handler, sseRouter *sse.Router, wsHandler *websocket.Handler, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		handler:   handler,
		sseRouter: sseRouter,
		wsHandler: wsHandler,
		logger:    logger,
	}
}

// Setup sets up the HTTP routes
func (r *Router) Setup() http.Handler {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/catalog", r.handler.GetCatalog).Methods("GET")
	api.HandleFunc("/zones", r.handler.GetZones).Methods("GET")
	api.HandleFunc("/views", r.handler.GetViews).Methods("GET")
	api.HandleFunc("/views", r.handler.StartView).Methods("POST")
	api.HandleFunc("/views/{id}", r.handler.GetView).Methods("GET")
	api.HandleFunc("/views/{id}", r.handler.StopView).Methods("DELETE")
	api.HandleFunc("/views/{id}/document", r.handler.GetDocument).Methods("GET")
	api.HandleFunc("/views/{id}/input", r.handler.SendInput).Methods("POST")

	// streaming routes
	api.HandleFunc("/views/{id}/events", r.sseRouter.HandleEvents).Methods("GET")
	api.Handle("/views/{id}/ws", r.wsHandler).Methods("GET")

	var handler http.Handler = router
	handler = utils.ErrorHandlerMiddleware(r.logger, handler)
	handler = utils.LoggingMiddleware(r.logger, handler)
	handler = utils.RequestIDMiddleware(handler)
	return handler
}
