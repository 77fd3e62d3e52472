package ws

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"socialnet/internal/model/chat"
	"socialnet/internal/service/hub"
)

// Handler upgrades chat clients and runs their read pump.
type Handler struct {
	hub      *hub.Hub
	upgrader websocket.Upgrader
}

// New creates the websocket handler for the given hub.
func New(h *hub.Hub) *Handler {
	return &Handler{
		hub: h,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handle upgrades the connection, waits for the connect handshake and then
// feeds inbound frames to the hub until the transport closes.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}

	// The first frame must identify the connecting user.
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}
	frame, err := chat.DecodeFrame(data)
	if err != nil || frame.Type != chat.FrameConnect || frame.From == 0 {
		log.Printf("[websocket] rejecting connection without handshake from %s", r.RemoteAddr)
		conn.Close()
		return
	}

	client := h.hub.Register(frame.From, conn)
	defer h.hub.Unregister(client)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		frame, err := chat.DecodeFrame(data)
		if err != nil {
			log.Printf("[websocket] dropping frame: %v", err)
			continue
		}
		h.hub.Process(client, frame)
	}
}
