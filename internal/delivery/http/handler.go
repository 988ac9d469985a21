package http

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"livedom/dom/common"
	"livedom/dom/push"
	"livedom/dom/scheduling"
	"livedom/dom/view"
	"livedom/pkg/utils"
)

// Handler handles the view API.
type Handler struct {
	registry  *view.Registry
	scheduler *scheduling.Scheduler
	catalog   map[string]view.Handler
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler. catalog holds the views that can be started by name.
func NewHandler(registry *view.Registry, scheduler *scheduling.Scheduler, catalog map[string]view.Handler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry:  registry,
		scheduler: scheduler,
		catalog:   catalog,
		logger:    logger,
	}
}

// StartViewRequest is the body of a start request.
type StartViewRequest struct {
	Name string `json:"name"`
}

// ZoneInfo describes one scheduler zone.
type ZoneInfo struct {
	Name    string `json:"name"`
	Pending int    `json:"pending"`
}

// ZonesResponse lists the scheduler zones by kind.
type ZonesResponse struct {
	Task   []ZoneInfo `json:"task"`
	Thread []ZoneInfo `json:"thread"`
}

// GetCatalog returns the names of the views that can be started.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.catalog))
	for name := range h.catalog {
		names = append(names, name)
	}
	sort.Strings(names)

	writeJSON(w, http.StatusOK, names)
}

// GetViews returns the running views.
func (h *Handler) GetViews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.List())
}

// StartView starts a view of the catalog.
func (h *Handler) StartView(w http.ResponseWriter, r *http.Request) {
	var req StartViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SetErrorWithCode(r, errors.Wrap(err, "invalid request body"), http.StatusBadRequest)
		return
	}

	handler, ok := h.catalog[req.Name]
	if !ok {
		utils.SetError(r, common.ErrUnknownView{Name: req.Name})
		return
	}

	rt, err := h.registry.Start(req.Name, handler)
	if err != nil {
		utils.SetError(r, err)
		return
	}

	writeJSON(w, http.StatusCreated, view.Info{ID: rt.ID(), Name: rt.Name(), Topic: rt.Topic()})
}

// GetView returns one running view.
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	rt, err := h.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		utils.SetError(r, err)
		return
	}

	writeJSON(w, http.StatusOK, view.Info{ID: rt.ID(), Name: rt.Name(), Topic: rt.Topic()})
}

// GetDocument returns the full document of a view, encoded in the format
// of the "format" query parameter (json by default).
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	rt, err := h.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		utils.SetError(r, err)
		return
	}

	format := push.EncodingFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = push.EncodingFormatJSON
	}
	if _, err := push.GetEncoderDecoder(format); err != nil {
		utils.SetError(r, err)
		return
	}

	result, err := rt.Serialize(r.Context())
	if err != nil {
		utils.SetError(r, err)
		return
	}

	data, err := push.EncodeResult(result, format)
	if err != nil {
		utils.SetError(r, err)
		return
	}

	if format == push.EncodingFormatJSON {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/plain")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// SendInput dispatches an input event to a running view.
func (h *Handler) SendInput(w http.ResponseWriter, r *http.Request) {
	var ev view.InputEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		utils.SetErrorWithCode(r, errors.Wrap(err, "invalid request body"), http.StatusBadRequest)
		return
	}
	if ev.Name == "" {
		utils.SetErrorWithCode(r, errors.New("event name is required"), http.StatusBadRequest)
		return
	}

	if err := h.registry.Dispatch(r.Context(), mux.Vars(r)["id"], ev); err != nil {
		utils.SetError(r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// StopView cancels a running view. The view leaves the registry once its handler returned.
func (h *Handler) StopView(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.registry.Stop(id); err != nil {
		utils.SetError(r, err)
		return
	}

	h.logger.Info("View stop requested", zap.String("view", id))
	w.WriteHeader(http.StatusAccepted)
}

// GetZones returns the scheduler zones with their queue lengths.
func (h *Handler) GetZones(w http.ResponseWriter, r *http.Request) {
	resp := ZonesResponse{
		Task:   h.zones(scheduling.KindTask),
		Thread: h.zones(scheduling.KindBlocking),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) zones(kind scheduling.Kind) []ZoneInfo {
	names := h.scheduler.Zones(kind)
	infos := make([]ZoneInfo, 0, len(names))
	for _, name := range names {
		pending, err := h.scheduler.Pending(kind, name)
		if err != nil {
			continue
		}
		infos = append(infos, ZoneInfo{Name: name, Pending: pending})
	}
	return infos
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
