package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/config"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/hub"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/chaterr"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

type WSHandler struct {
	base     context.Context
	service  service.ChatService
	wsCfg    config.WebSocketConfig
	upgrader websocket.Upgrader

	// sessions counts handlers still running, hijacked ones included.
	sessions sync.WaitGroup
}

// NewWSHandler builds the upgrade handler. Sessions live until their peer
// leaves or base is cancelled.
func NewWSHandler(base context.Context, svc service.ChatService, wsCfg config.WebSocketConfig) *WSHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if !wsCfg.CheckOrigin {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			return true
		}
	}

	return &WSHandler{
		base:     base,
		service:  svc,
		wsCfg:    wsCfg,
		upgrader: upgrader,
	}
}

func (h *WSHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws/{room_id}", h.HandleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/chat/ws/{room_id}", h.HandleWebSocket).Methods(http.MethodGet)
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Counted before the upgrade, while http.Server.Shutdown still tracks
	// this request, so Wait never races a late Add.
	h.sessions.Add(1)
	defer h.sessions.Done()

	roomID := mux.Vars(r)["room_id"]
	token := r.URL.Query().Get("token")
	l := log.Ctx(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), conn, h.wsCfg)
	go client.WritePump()

	// The request context is tied to the HTTP exchange, which is over once
	// the connection is hijacked.
	ctx := log.WithLogger(h.base, l)
	if err := h.service.Serve(ctx, client, roomID, token); err != nil {
		l.Info().Err(err).
			Str(log.FieldConnID, client.ID()).
			Str(log.FieldRoomID, roomID).
			Str(log.FieldErrorKind, string(chaterr.KindOf(err))).
			Msg("session ended with error")
	}

	<-client.Done()
}

// Wait blocks until every session has released its connection, or until
// ctx is done. Call it after the server has stopped accepting upgrades and
// the base context is cancelled.
func (h *WSHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HealthCheck reports liveness.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
