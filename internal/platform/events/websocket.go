package events

import (
	"net/http"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/portal/internal/platform/auth"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// WebSocketHandler streams the caller's own session events to the browser,
// the server-side counterpart of an auth state change listener.
type WebSocketHandler struct {
	hub      *Hub
	upgrader gorillawebsocket.Upgrader
	logger   zerolog.Logger
}

// NewWebSocketHandler accepts upgrades only from allowedOrigins. An empty
// list allows same-origin requests only.
func NewWebSocketHandler(hub *Hub, allowedOrigins []string, logger zerolog.Logger) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin] || origin == "http://"+r.Host || origin == "https://"+r.Host
			},
		},
	}
}

func (h *WebSocketHandler) RegisterRoutes(api *echo.Group) {
	api.GET("/auth/events", h.HandleConnect, auth.RequireSession())
}

func (h *WebSocketHandler) HandleConnect(c echo.Context) error {
	sess := auth.SessionFromContext(c.Request().Context())

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return nil
	}

	sub := h.hub.Subscribe(SessionTopic(sess.AccountID))
	done := make(chan struct{})

	go h.readPump(ws, done)
	go h.writePump(ws, sub, done)
	return nil
}

// readPump discards client frames and signals done when the peer goes away.
func (h *WebSocketHandler) readPump(ws *gorillawebsocket.Conn, done chan<- struct{}) {
	defer close(done)
	ws.SetReadLimit(512)
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHandler) writePump(ws *gorillawebsocket.Conn, sub *Subscription, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		ws.Close()
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(ev); err != nil {
				h.logger.Debug().Err(err).Msg("session event write failed")
				return
			}
			if ev.Type == TypeSignedOut {
				ws.WriteControl(gorillawebsocket.CloseMessage,
					gorillawebsocket.FormatCloseMessage(gorillawebsocket.CloseNormalClosure, "signed out"),
					time.Now().Add(writeWait))
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(gorillawebsocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
