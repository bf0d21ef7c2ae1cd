package ws

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
	"github.com/sonet/feed-realtime-service/internal/domain/registry"
	wsmarshaller "github.com/sonet/feed-realtime-service/internal/handler/marshaller/ws"
	"github.com/sonet/feed-realtime-service/internal/service"
)

const (
	maxFrameSize  = 4 << 10 // inbound frames are tiny control messages
	writeDeadline = 10 * time.Second
	readDeadline  = 6 * time.Minute // outlives the idle sweep, never blocks it
	replyTimeout  = time.Second
)

type WSHandler struct {
	logger    *slog.Logger
	deliverer service.Deliverer
	upgrader  websocket.Upgrader
}

func NewWSHandler(logger *slog.Logger, deliverer service.Deliverer) *WSHandler {
	return &WSHandler{
		logger:    logger,
		deliverer: deliverer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true }, // Security: adjust for production
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	creds := credentialsFrom(r)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WS_UPGRADE_FAILED", "error", err, "remote_ip", creds.RemoteIP)
		return
	}
	defer ws.Close()

	conn, err := h.deliverer.Connect(r.Context(), creds)
	if err != nil {
		h.logger.Warn("WS_ADMISSION_REFUSED", "error", err, "remote_ip", creds.RemoteIP)
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server full"),
			time.Now().Add(writeDeadline))
		return
	}
	defer h.deliverer.Disconnect(conn)

	// Single-writer invariant: only writePump touches the socket's write
	// side, so service replies go through the connection mailbox too.
	done := make(chan struct{})
	go h.writePump(ws, conn, done)

	h.readPump(ws, conn)
	<-done
}

// credentialsFrom extracts the bearer token from the Authorization header or,
// for browser clients that cannot set headers on a WebSocket, the token query
// parameter.
func credentialsFrom(r *http.Request) service.Credentials {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return service.Credentials{
		Token:    token,
		RemoteIP: r.RemoteAddr,
	}
}

func (h *WSHandler) readPump(ws *websocket.Conn, conn registry.Connector) {
	ws.SetReadLimit(maxFrameSize)
	ws.SetReadDeadline(time.Now().Add(readDeadline))
	ws.SetPongHandler(func(string) error {
		conn.Touch()
		return ws.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WS_READ_FAILED", "conn_id", conn.ID(), "error", err)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(readDeadline))
		h.dispatch(conn, data)
	}
}

// dispatch routes one inbound frame. Protocol errors answer with an error
// frame on the same socket; they never tear the session down.
func (h *WSHandler) dispatch(conn registry.Connector, data []byte) {
	frame, err := wsmarshaller.ParseClientFrame(data)
	if err != nil {
		h.reply(conn, errorEvent(err))
		return
	}

	switch frame.Type {
	case wsmarshaller.FrameSubscribe:
		if err := h.deliverer.Subscribe(conn, frame.Channel); err != nil {
			h.reply(conn, errorEvent(err))
			return
		}
		h.reply(conn, successEvent(frame.Type, frame.Channel))

	case wsmarshaller.FrameUnsubscribe:
		h.deliverer.Unsubscribe(conn, frame.Channel)
		h.reply(conn, successEvent(frame.Type, frame.Channel))

	case wsmarshaller.FrameTypingStart:
		if err := h.deliverer.Typing(conn, frame.TargetUserID, true); err != nil {
			h.reply(conn, errorEvent(err))
		}

	case wsmarshaller.FrameTypingStop:
		if err := h.deliverer.Typing(conn, frame.TargetUserID, false); err != nil {
			h.reply(conn, errorEvent(err))
		}

	case wsmarshaller.FramePing:
		h.deliverer.Ping(conn)
	}
}

func (h *WSHandler) reply(conn registry.Connector, ev *model.Event) {
	conn.Send(ev, replyTimeout)
}

func (h *WSHandler) writePump(ws *websocket.Conn, conn registry.Connector, done chan<- struct{}) {
	defer close(done)

	for ev := range conn.Recv() {
		data, err := wsmarshaller.MarshalEvent(ev)
		if err != nil {
			h.logger.Error("WS_MARSHAL_FAILED", "conn_id", conn.ID(), "event", ev.Type, "error", err)
			continue
		}

		ws.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("WS_SEND_FAILED", "conn_id", conn.ID(), "error", err)
			ws.Close() // unblocks the read pump
			return
		}
	}

	// Mailbox closed: the registry evicted us. Say goodbye properly.
	ws.SetWriteDeadline(time.Now().Add(writeDeadline))
	ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func errorEvent(err error) *model.Event {
	return model.NewEvent(model.EventError, "", model.ErrorPayload{
		Message: err.Error(),
	}).WithPriority(model.PriorityHigh)
}

func successEvent(op, channel string) *model.Event {
	return model.NewEvent(model.EventSuccess, "", model.SuccessPayload{
		Op:      op,
		Channel: channel,
	}).WithPriority(model.PriorityHigh)
}
