package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mrpasztoradam/goadsym"
)

// maxValueSize caps the byte count a single read request may ask for.
const maxValueSize = 1 << 20

// Handler contains HTTP request handlers
type Handler struct {
	session   *goadsym.PortSession
	symbols   *goadsym.SymbolAccess
	stream    *StreamManager
	logger    *slog.Logger
	target    string
	startTime time.Time
	upgrader  *websocket.Upgrader
}

// NewHandler creates a new handler
func NewHandler(session *goadsym.PortSession, symbols *goadsym.SymbolAccess, stream *StreamManager, logger *slog.Logger, target string) *Handler {
	return &Handler{
		session:   session,
		symbols:   symbols,
		stream:    stream,
		logger:    logger,
		target:    target,
		startTime: time.Now(),
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func parseSize(r *http.Request) (uint32, error) {
	raw := r.URL.Query().Get("size")
	if raw == "" {
		return 0, NewInvalidRequestError("size query parameter is required")
	}
	size, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || size == 0 || size > maxValueSize {
		return 0, NewInvalidRequestError("size must be between 1 and 1048576")
	}
	return uint32(size), nil
}

// HandleReadSymbol handles GET /api/v1/symbols/{name}/value
func (h *Handler) HandleReadSymbol(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		WriteError(w, NewInvalidRequestError("symbol name is required"))
		return
	}

	size, err := parseSize(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	value, err := h.symbols.ReadBySymbol(r.Context(), name, size)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, ValueResponse{Symbol: name, Size: len(value), Value: value})
}

// HandleWriteSymbol handles POST /api/v1/symbols/{name}/value
func (h *Handler) HandleWriteSymbol(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		WriteError(w, NewInvalidRequestError("symbol name is required"))
		return
	}

	var req WriteValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid JSON body"))
		return
	}
	if len(req.Value) == 0 {
		WriteError(w, NewInvalidRequestError("value is required"))
		return
	}

	if err := h.symbols.WriteBySymbol(r.Context(), name, req.Value); err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, WriteValueResponse{Success: true, Symbol: name, Written: len(req.Value)})
}

// HandleAcquireHandle handles POST /api/v1/handles
func (h *Handler) HandleAcquireHandle(w http.ResponseWriter, r *http.Request) {
	var req AcquireHandleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid JSON body"))
		return
	}
	if req.Symbol == "" {
		WriteError(w, NewInvalidRequestError("symbol is required"))
		return
	}

	handle, err := h.symbols.GetHandle(r.Context(), req.Symbol)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, AcquireHandleResponse{Symbol: req.Symbol, Handle: uint32(handle)})
}

func parseHandle(r *http.Request) (goadsym.Handle, error) {
	raw := chi.URLParam(r, "handle")
	handle, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || handle == 0 {
		return 0, NewInvalidRequestError("invalid handle")
	}
	return goadsym.Handle(handle), nil
}

// HandleReleaseHandle handles DELETE /api/v1/handles/{handle}
func (h *Handler) HandleReleaseHandle(w http.ResponseWriter, r *http.Request) {
	handle, err := parseHandle(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	if err := h.symbols.ReleaseHandle(r.Context(), handle); err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, ReleaseHandleResponse{Success: true, Handle: uint32(handle)})
}

// HandleReadByHandle handles GET /api/v1/handles/{handle}/value
func (h *Handler) HandleReadByHandle(w http.ResponseWriter, r *http.Request) {
	handle, err := parseHandle(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	size, err := parseSize(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	value, err := h.symbols.ReadByHandle(r.Context(), handle, size)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, ValueResponse{Handle: uint32(handle), Size: len(value), Value: value})
}

// HandleWriteByHandle handles POST /api/v1/handles/{handle}/value
func (h *Handler) HandleWriteByHandle(w http.ResponseWriter, r *http.Request) {
	handle, err := parseHandle(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req WriteValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid JSON body"))
		return
	}
	if len(req.Value) == 0 {
		WriteError(w, NewInvalidRequestError("value is required"))
		return
	}

	if err := h.symbols.WriteByHandle(r.Context(), handle, req.Value); err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, WriteValueResponse{Success: true, Handle: uint32(handle), Written: len(req.Value)})
}

// HandleGetState handles GET /api/v1/state
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.session.ReadState(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, StateResponse{
		State:       uint16(state.State),
		StateName:   state.State.String(),
		DeviceState: state.DeviceState,
	})
}

// HandleInfo handles GET /api/v1/info
func (h *Handler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	resp := InfoResponse{
		Target:       h.target,
		NetID:        h.session.NetID().String(),
		SubPort:      uint16(h.session.SubPort()),
		Port:         h.session.Port(),
		Open:         h.session.IsOpen(),
		ServerUptime: time.Since(h.startTime).Round(time.Second).String(),
	}

	if resp.Open {
		if info, err := h.session.ReadDeviceInfo(r.Context()); err == nil {
			resp.DeviceName = info.Name
			resp.DeviceVersion = info.Version()
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

// HandleHealth handles GET /api/v1/health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	open := h.session.IsOpen()
	status := "ok"
	if !open {
		status = "degraded"
	}
	WriteJSON(w, http.StatusOK, HealthResponse{Status: status, Open: open, Timestamp: time.Now()})
}

// HandleVersion handles GET /api/v1/version
func (h *Handler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	info := goadsym.GetBuildInfo()
	WriteJSON(w, http.StatusOK, VersionResponse{
		Version:   info.Version,
		GoVersion: info.GoVersion,
		Commit:    info.GitCommit,
	})
}

// HandleSetTimeout handles POST /api/v1/timeout
func (h *Handler) HandleSetTimeout(w http.ResponseWriter, r *http.Request) {
	var req TimeoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid JSON body"))
		return
	}
	if req.TimeoutMs < 1 {
		WriteError(w, NewInvalidRequestError("timeout_ms must be at least 1"))
		return
	}

	if err := h.session.SetTimeout(time.Duration(req.TimeoutMs) * time.Millisecond); err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, TimeoutResponse{Success: true, TimeoutMs: req.TimeoutMs})
}

// HandleStream handles WebSocket connections on /ws/stream
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	h.stream.Handle(conn)
}
