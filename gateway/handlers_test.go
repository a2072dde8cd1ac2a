package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrpasztoradam/goadsym"
)

func newTestServer(t *testing.T) (*Server, *goadsym.Emulator) {
	t.Helper()

	cfg := DefaultConfig()
	emu := goadsym.NewEmulator()

	srv, err := New(cfg, emu)
	require.NoError(t, err)

	_, err = srv.Session().Open(context.Background(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Session().Close() })

	return srv, emu
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(raw)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestReadSymbolEndpoint(t *testing.T) {
	srv, emu := newTestServer(t)
	emu.SetSymbol("Main.counter", []byte{0x2A, 0, 0, 0})

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/symbols/Main.counter/value?size=4", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ValueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Main.counter", resp.Symbol)
	assert.Equal(t, []byte{0x2A, 0, 0, 0}, resp.Value)
	assert.Equal(t, 4, resp.Size)

	// One-shot read must not leak a handle.
	assert.Equal(t, 0, emu.LiveHandles())
}

func TestReadSymbolRequiresSize(t *testing.T) {
	srv, emu := newTestServer(t)
	emu.SetSymbol("Main.counter", []byte{1, 2, 3, 4})

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/symbols/Main.counter/value", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadSymbolNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/symbols/Main.missing/value?size=4", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeSymbolNotFound, resp.Error.Code)
}

func TestWriteSymbolEndpoint(t *testing.T) {
	srv, emu := newTestServer(t)
	emu.SetSymbol("Main.setpoint", make([]byte, 2))

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/symbols/Main.setpoint/value",
		WriteValueRequest{Value: []byte{0xAB, 0xCD}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp WriteValueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Written)

	value, ok := emu.Symbol("Main.setpoint")
	require.True(t, ok)
	assert.Equal(t, []byte{0xAB, 0xCD}, value)
}

func TestHandleLifecycleEndpoints(t *testing.T) {
	srv, emu := newTestServer(t)
	emu.SetSymbol("Main.counter", make([]byte, 4))

	// Acquire
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/handles",
		AcquireHandleRequest{Symbol: "Main.counter"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var acquired AcquireHandleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acquired))
	require.NotZero(t, acquired.Handle)
	assert.Equal(t, 1, emu.LiveHandles())

	// Write by handle
	rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/handles/%d/value", acquired.Handle),
		WriteValueRequest{Value: []byte{1, 2, 3, 4}})
	require.Equal(t, http.StatusOK, rec.Code)

	// Read back by handle
	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/handles/%d/value?size=4", acquired.Handle), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var read ValueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &read))
	assert.Equal(t, []byte{1, 2, 3, 4}, read.Value)

	// Release
	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/v1/handles/%d", acquired.Handle), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, emu.LiveHandles())

	// Second release fails remotely
	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/v1/handles/%d", acquired.Handle), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestStateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run", resp.StateName)
}

func TestInfoEndpoint(t *testing.T) {
	srv, emu := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp InfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Open)
	assert.NotZero(t, resp.Port)
	assert.Equal(t, emu.DeviceName, resp.DeviceName)
	assert.Equal(t, "3.1.4024", resp.DeviceVersion)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Open)

	// A closed session degrades health but keeps the endpoint serving.
	require.NoError(t, srv.Session().Close())
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
}

func TestVersionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VersionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, goadsym.LibraryVersion(), resp.Version)
}

func TestSetTimeoutEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/timeout", TimeoutRequest{TimeoutMs: 2500})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2500, int(srv.Session().Timeout().Milliseconds()))

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/timeout", TimeoutRequest{TimeoutMs: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClosedSessionReturnsServiceUnavailable(t *testing.T) {
	srv, emu := newTestServer(t)
	emu.SetSymbol("Main.counter", make([]byte, 4))
	require.NoError(t, srv.Session().Close())

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/symbols/Main.counter/value?size=4", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodePortClosed, resp.Error.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, emu := newTestServer(t)
	emu.SetSymbol("Main.counter", make([]byte, 4))

	doJSON(t, srv, http.MethodGet, "/api/v1/symbols/Main.counter/value?size=4", nil)

	rec := doJSON(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goadsym_operations_total")
	assert.Contains(t, rec.Body.String(), "goadsym_connection_attempts_total")
}

func TestRootIndex(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var index map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &index))
	assert.Equal(t, "/api/v1", index["api"])
}
