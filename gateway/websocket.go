package gateway

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mrpasztoradam/goadsym"
)

// StreamManager manages WebSocket value streams. Each subscription acquires
// one handle per symbol, polls the values on a fixed interval and pushes
// updates when they change. Handles are released when the subscription ends.
type StreamManager struct {
	symbols *goadsym.SymbolAccess
	logger  *slog.Logger

	mu      sync.Mutex
	streams map[string]*stream
	maxSubs int
}

type stream struct {
	id       string
	conn     *websocket.Conn
	interval time.Duration
	cancel   context.CancelFunc

	symbols []StreamSymbol
	handles map[string]goadsym.Handle

	mu         sync.Mutex
	lastValues map[string][]byte
}

// NewStreamManager creates a stream manager over the given symbol access.
func NewStreamManager(symbols *goadsym.SymbolAccess, logger *slog.Logger, maxSubscriptions int) *StreamManager {
	return &StreamManager{
		symbols: symbols,
		logger:  logger,
		streams: make(map[string]*stream),
		maxSubs: maxSubscriptions,
	}
}

// Count returns the number of active streams.
func (sm *StreamManager) Count() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.streams)
}

func (sm *StreamManager) subscribe(ctx context.Context, conn *websocket.Conn, requestID string, symbols []StreamSymbol, interval time.Duration) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.streams) >= sm.maxSubs {
		return NewInvalidRequestError("maximum stream limit reached")
	}
	if _, exists := sm.streams[requestID]; exists {
		return NewInvalidRequestError("stream ID already exists")
	}

	// Resolve all handles up front; a single unknown symbol rejects the
	// whole subscription.
	handles := make(map[string]goadsym.Handle, len(symbols))
	for _, sym := range symbols {
		handle, err := sm.symbols.GetHandle(ctx, sym.Name)
		if err != nil {
			for name, h := range handles {
				sm.releaseHandle(h, name)
			}
			return err
		}
		handles[sym.Name] = handle
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	st := &stream{
		id:         requestID,
		conn:       conn,
		interval:   interval,
		cancel:     cancel,
		symbols:    symbols,
		handles:    handles,
		lastValues: make(map[string][]byte),
	}
	sm.streams[requestID] = st

	go sm.poll(pollCtx, st)
	return nil
}

func (sm *StreamManager) unsubscribe(requestID string) error {
	sm.mu.Lock()
	st, exists := sm.streams[requestID]
	if exists {
		delete(sm.streams, requestID)
	}
	sm.mu.Unlock()

	if !exists {
		return NewInvalidRequestError("stream not found")
	}

	st.cancel()
	sm.releaseStream(st)
	return nil
}

func (sm *StreamManager) unsubscribeConn(conn *websocket.Conn) {
	sm.mu.Lock()
	var dropped []*stream
	for id, st := range sm.streams {
		if st.conn == conn {
			dropped = append(dropped, st)
			delete(sm.streams, id)
		}
	}
	sm.mu.Unlock()

	for _, st := range dropped {
		st.cancel()
		sm.releaseStream(st)
	}
}

func (sm *StreamManager) releaseStream(st *stream) {
	for name, handle := range st.handles {
		sm.releaseHandle(handle, name)
	}
}

func (sm *StreamManager) releaseHandle(handle goadsym.Handle, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sm.symbols.ReleaseHandle(ctx, handle); err != nil {
		sm.logger.Warn("stream handle release failed", "symbol", name, "error", err)
	}
}

func (sm *StreamManager) poll(ctx context.Context, st *stream) {
	ticker := time.NewTicker(st.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.readAndPush(ctx, st)
		}
	}
}

func (sm *StreamManager) readAndPush(ctx context.Context, st *stream) {
	data := make(map[string][]byte)
	changed := false

	for _, sym := range st.symbols {
		value, err := sm.symbols.ReadByHandle(ctx, st.handles[sym.Name], sym.Size)
		if err != nil {
			sm.logger.Debug("stream read failed", "symbol", sym.Name, "error", err)
			continue
		}

		st.mu.Lock()
		if !bytes.Equal(st.lastValues[sym.Name], value) {
			st.lastValues[sym.Name] = value
			changed = true
		}
		st.mu.Unlock()

		data[sym.Name] = value
	}

	if changed {
		msg := StreamMessage{
			Type:      "data",
			RequestID: st.id,
			Data:      data,
			Timestamp: time.Now(),
		}
		if err := st.conn.WriteJSON(msg); err != nil {
			sm.logger.Debug("stream push failed", "stream", st.id, "error", err)
		}
	}
}

// Handle runs the read loop for one WebSocket connection.
func (sm *StreamManager) Handle(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	// Stop() alone would leave the ping goroutine parked on the ticker
	// channel forever; done lets it exit with the connection.
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-done:
				return
			case <-pingTicker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				sm.logger.Warn("websocket error", "error", err)
			}
			break
		}

		switch msg.Type {
		case "subscribe":
			if len(msg.Symbols) == 0 {
				sm.sendError(conn, msg.RequestID, "no symbols specified")
				continue
			}
			valid := true
			for _, sym := range msg.Symbols {
				if sym.Name == "" || sym.Size == 0 {
					sm.sendError(conn, msg.RequestID, "each symbol needs a name and a size")
					valid = false
					break
				}
			}
			if !valid {
				continue
			}

			interval := time.Duration(msg.Interval) * time.Millisecond
			if interval == 0 {
				interval = time.Second
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := sm.subscribe(ctx, conn, msg.RequestID, msg.Symbols, interval)
			cancel()
			if err != nil {
				sm.sendError(conn, msg.RequestID, err.Error())
				continue
			}

			conn.WriteJSON(StreamMessage{
				Type:      "subscribed",
				RequestID: msg.RequestID,
				Symbols:   msg.Symbols,
				Timestamp: time.Now(),
			})

		case "unsubscribe":
			if err := sm.unsubscribe(msg.RequestID); err != nil {
				sm.sendError(conn, msg.RequestID, err.Error())
				continue
			}
			conn.WriteJSON(StreamMessage{
				Type:      "unsubscribed",
				RequestID: msg.RequestID,
				Timestamp: time.Now(),
			})

		default:
			sm.sendError(conn, msg.RequestID, "unknown message type")
		}
	}

	sm.unsubscribeConn(conn)
}

func (sm *StreamManager) sendError(conn *websocket.Conn, requestID, message string) {
	conn.WriteJSON(StreamMessage{
		Type:      "error",
		RequestID: requestID,
		Error:     message,
		Timestamp: time.Now(),
	})
}
