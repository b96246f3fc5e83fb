package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-realtime/internal/middleware"
	"github.com/iliyamo/cinema-seat-realtime/internal/model"
	"github.com/iliyamo/cinema-seat-realtime/internal/realtime"
	"github.com/iliyamo/cinema-seat-realtime/internal/service"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8 << 10
)

// WSHandler serves the per-showing watcher channel.  A connection receives
// a snapshot on connect and every later change to the showing.  Parties
// may select, deselect and finalize over the same connection; when it
// drops, every hold of the party is released.
type WSHandler struct {
	Hub      *realtime.Hub
	Coord    *service.Coordinator
	Bookings *service.BookingManager
	Log      *zap.Logger

	SendBuffer   int
	PingInterval time.Duration

	upgrader websocket.Upgrader
	conns    sync.WaitGroup
}

// NewWSHandler constructs a WSHandler.
func NewWSHandler(hub *realtime.Hub, coord *service.Coordinator, bookings *service.BookingManager, sendBuffer int, pingInterval time.Duration, log *zap.Logger) *WSHandler {
	if hub == nil || coord == nil || bookings == nil {
		panic("nil dependency passed to NewWSHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &WSHandler{
		Hub:          hub,
		Coord:        coord,
		Bookings:     bookings,
		Log:          log.Named("ws"),
		SendBuffer:   sendBuffer,
		PingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// clientMessage is one request from a watcher.
type clientMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Seat      string `json:"seat"`
	finalizeBody
}

// Serve handles GET /v1/showings/:id/ws.
func (h *WSHandler) Serve(c echo.Context) error {
	showingID, ok := parseShowingID(c)
	if !ok {
		return badRequest(c, "invalid showing id")
	}
	partyID := middleware.PartyID(c)

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.Log.Debug("upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()
	h.conns.Add(1)
	defer h.conns.Done()

	// The request context ends with the handler; holds must still be
	// released after the client is gone, so the connection gets its own.
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request().Context()))
	defer cancel()

	w := realtime.NewWatcher(partyID, h.SendBuffer)
	lg := h.Log.With(
		zap.String("watcher_id", w.ID),
		zap.String("party_id", partyID),
		zap.Uint64("showing_id", showingID),
	)
	if err := h.Hub.Subscribe(ctx, w, showingID); err != nil {
		lg.Warn("subscribe failed", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "snapshot unavailable"),
			time.Now().Add(writeWait))
		return nil
	}
	lg.Info("watcher connected")

	done := make(chan struct{})
	go h.writeLoop(conn, w, done)
	h.readLoop(ctx, conn, w, showingID)

	h.Hub.Unsubscribe(ctx, w)
	<-done
	lg.Info("watcher disconnected")
	return nil
}

// Wait blocks until every connection has released its holds and exited,
// or ctx is done.
func (h *WSHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writeLoop is the only writer on conn.  It exits when the watcher is
// closed or a write fails, closing conn so the read loop stops too.
func (h *WSHandler) writeLoop(conn *websocket.Conn, w *realtime.Watcher, done chan<- struct{}) {
	ticker := time.NewTicker(h.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		close(done)
	}()
	for {
		select {
		case ev, ok := <-w.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "dropped"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, w *realtime.Watcher, showingID uint64) {
	pongWait := 2 * h.PingInterval
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Log.Debug("read failed", zap.String("watcher_id", w.ID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			w.Reply(realtime.Event{Type: realtime.EventError, Code: "invalid_request", Message: "invalid JSON", At: time.Now().UTC()})
			continue
		}
		origin := &service.Origin{WatcherID: w.ID}
		reply := h.dispatch(service.WithOrigin(ctx, origin), w, showingID, msg)
		if reply.Type == realtime.EventAck {
			reply.Seq = origin.Seq
		}
		w.Reply(reply)
	}
}

// dispatch runs one client request and returns the reply.
func (h *WSHandler) dispatch(ctx context.Context, w *realtime.Watcher, showingID uint64, msg clientMessage) realtime.Event {
	reply := realtime.Event{
		Type:      realtime.EventAck,
		ShowingID: showingID,
		RequestID: msg.RequestID,
		At:        time.Now().UTC(),
	}
	kind := strings.ToLower(msg.Type)
	if kind == "ping" {
		reply.Message = "pong"
		return reply
	}
	if kind != "select" && kind != "deselect" && kind != "finalize" {
		return errorReply(reply, service.ErrInvalidRequest, "unknown message type")
	}
	if w.PartyID == "" {
		reply.Type = realtime.EventError
		reply.Code = "unauthorized"
		reply.Message = "authentication required"
		return reply
	}

	switch kind {
	case "select", "deselect":
		label := seatLabel(msg.Seat)
		reply.Labels = []string{label}
		var (
			seat model.Seat
			err  error
		)
		if kind == "select" {
			seat, err = h.Coord.Select(ctx, showingID, label, w.PartyID)
		} else {
			seat, err = h.Coord.Deselect(ctx, showingID, label, w.PartyID)
		}
		if err != nil {
			return errorReply(reply, err, err.Error())
		}
		reply.Seats = []model.Seat{seat}
		reply.Status = string(seat.Status)
	case "finalize":
		req := msg.finalizeBody.request(showingID, w.PartyID)
		reply.Labels = req.Labels
		b, err := h.Bookings.Finalize(ctx, req)
		if err != nil {
			return errorReply(reply, err, err.Error())
		}
		reply.Booking = b
		reply.BookingCode = b.Code
		reply.Status = string(model.SeatBooked)
	}
	return reply
}

func errorReply(reply realtime.Event, err error, msg string) realtime.Event {
	var held *service.SeatNoLongerHeldError
	if errors.As(err, &held) {
		reply.Labels = held.Labels
	}
	reply.Type = realtime.EventError
	reply.Code = service.Code(err)
	reply.Message = msg
	if reply.Code == "internal" {
		reply.Message = "internal error"
	}
	return reply
}
