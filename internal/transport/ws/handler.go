package ws

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"smartsurvey/internal/platform/logger"
	"smartsurvey/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Handler handles WebSocket connections
type Handler struct {
	hub        *Hub
	authSvc    *service.AuthService
	surveySvc  *service.SurveyService
	sessionSvc *service.SessionService
	log        *logger.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, authSvc *service.AuthService, surveySvc *service.SurveyService, sessionSvc *service.SessionService, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		hub:        hub,
		authSvc:    authSvc,
		surveySvc:  surveySvc,
		sessionSvc: sessionSvc,
		log:        log,
	}
}

// ObserveSurvey handles GET /v1/ws/surveys/{surveyId}?token=
func (h *Handler) ObserveSurvey(w http.ResponseWriter, r *http.Request) {
	surveyID := mux.Vars(r)["surveyId"]
	token := r.URL.Query().Get("token")

	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.authSvc.ValidateHostToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	if _, err := h.surveySvc.Get(r.Context(), claims.HostID, surveyID); err != nil {
		switch {
		case errors.Is(err, service.ErrSurveyNotFound):
			http.Error(w, "survey not found", http.StatusNotFound)
		case errors.Is(err, service.ErrForbidden):
			http.Error(w, "survey belongs to another host", http.StatusForbidden)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	h.serve(w, r, &Connection{SurveyID: surveyID, Send: make(chan []byte, 256)})
}

// FollowSession handles GET /v1/ws/sessions/{sessionId}
func (h *Handler) FollowSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	view, err := h.sessionSvc.Current(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.serve(w, r, &Connection{SurveyID: view.SurveyID, SessionID: sessionID, Send: make(chan []byte, 16)})
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, conn *Connection) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.hub.Register(conn)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// clients only listen; reads keep the pong deadline moving
		if _, _, err := wsConn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("websocket closed unexpectedly", "survey_id", conn.SurveyID, "error", err)
			}
			return
		}
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := wsConn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
