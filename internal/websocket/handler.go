package websocket

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	apperrors "covidcli/internal/errors"
)

// Handler upgrades requests to websocket connections on the hub
type Handler struct {
	hub          *Hub
	upgrader     websocket.Upgrader
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewHandler creates the events endpoint handler. Cross-origin clients are
// accepted; the feed carries no user data.
func NewHandler(hub *Hub, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apperrors.NewErrorHandler(logger, false)
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:       logger.With(slog.String("component", "websocket.handler")),
		errorHandler: errorHandler,
	}
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.hub.Running() {
		h.errorHandler.HandleError(w, r, apperrors.New(http.StatusServiceUnavailable,
			"EVENTS_UNAVAILABLE", "Event feed is not running"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := NewClient(h.hub, NewConnection(conn), middleware.GetReqID(r.Context()), h.logger)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
