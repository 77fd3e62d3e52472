package hub

import (
	"log"
	"sync"
	"time"

	"socialnet/internal/model/chat"
	"socialnet/internal/store"
)

// Sender is the write side of one connected client. *websocket.Conn
// satisfies it; hub writes are serialized under the hub lock.
type Sender interface {
	WriteJSON(v any) error
	Close() error
}

// Client is one registered chat connection. A user with several open
// sessions has several independent clients.
type Client struct {
	UserID int
	conn   Sender
}

// Hub tracks connected chat clients and routes frames between them,
// persisting conversations and messages through the store.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]bool
	store   *store.Store
}

// New creates an empty hub on top of the given store.
func New(st *store.Store) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		store:   st,
	}
}

// Register adds a newly connected client and pushes its conversation
// roster, which doubles as the ready signal for the session handshake.
func (h *Hub) Register(userID int, conn Sender) *Client {
	c := &Client{UserID: userID, conn: conn}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	log.Printf("[hub] client connected: user=%d", userID)
	h.sendRoster(c)
	return c
}

// Unregister drops a client and closes its connection. Safe to call for a
// client that is already gone.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	c.conn.Close()
	log.Printf("[hub] client disconnected: user=%d", c.UserID)
}

// Process routes one inbound frame from a connected client. Unknown frame
// types are dropped.
func (h *Hub) Process(c *Client, frame chat.Frame) {
	switch frame.Type {
	case chat.FrameMessage:
		h.handleMessage(c, frame)
	case chat.FrameCreateConversation:
		h.handleCreateConversation(c, frame)
	case chat.FrameGetConversations:
		h.sendRoster(c)
	default:
		log.Printf("[hub] ignoring frame type %q from user %d", frame.Type, c.UserID)
	}
}

// handleMessage persists a chat message and fans it out to every online
// participant, the sender included (the echo confirms the send).
func (h *Hub) handleMessage(c *Client, frame chat.Frame) {
	conversationID := frame.ConversationID
	if conversationID == 0 && frame.To != 0 {
		id, err := h.findOrCreateDirect(c.UserID, frame.To)
		if err != nil {
			log.Printf("[hub] resolve conversation for user %d failed: %v", c.UserID, err)
			return
		}
		conversationID = id
	}
	if conversationID == 0 || frame.Content == "" {
		return
	}

	messageID, err := h.store.CreateMessage(conversationID, c.UserID, frame.Content)
	if err != nil {
		log.Printf("[hub] store message failed: %v", err)
		return
	}

	participants, err := h.store.Participants(conversationID)
	if err != nil {
		log.Printf("[hub] fetch participants of conversation %d failed: %v", conversationID, err)
		return
	}

	// The sender identity comes from the registered connection, not from
	// the frame's from field.
	out := chat.Frame{
		Type:           chat.FrameMessage,
		From:           c.UserID,
		Sender:         c.UserID,
		Content:        frame.Content,
		ConversationID: conversationID,
		Time:           time.Now().UTC().Format(time.RFC3339),
	}
	for _, userID := range participants {
		h.sendToUser(userID, out)
	}
	log.Printf("[hub] message %d delivered to conversation %d", messageID, conversationID)
}

// handleCreateConversation creates (or finds) a direct conversation and
// pushes fresh rosters to both parties. Group creation is not part of the
// wire protocol yet.
func (h *Hub) handleCreateConversation(c *Client, frame chat.Frame) {
	if len(frame.Users) != 1 {
		return
	}
	remoteID := frame.Users[0]

	conversationID, err := h.findOrCreateDirect(c.UserID, remoteID)
	if err != nil {
		log.Printf("[hub] create conversation for users %d,%d failed: %v", c.UserID, remoteID, err)
		return
	}
	log.Printf("[hub] direct conversation %d between users %d and %d", conversationID, c.UserID, remoteID)

	h.sendRosterToUser(c.UserID)
	h.sendRosterToUser(remoteID)
}

// findOrCreateDirect dedupes direct conversations by their participant
// pair, never by display name.
func (h *Hub) findOrCreateDirect(user1ID, user2ID int) (int, error) {
	id, err := h.store.FindDirectConversation(user1ID, user2ID)
	if err == nil {
		return id, nil
	}
	if err != store.ErrNotFound {
		return 0, err
	}
	return h.store.CreateDirectConversation(user1ID, user2ID)
}

func (h *Hub) sendRoster(c *Client) {
	roster, err := h.store.ConversationsFor(c.UserID)
	if err != nil {
		log.Printf("[hub] fetch roster for user %d failed: %v", c.UserID, err)
		return
	}
	if roster == nil {
		roster = []chat.Conversation{}
	}

	h.send(c, chat.Frame{Type: chat.FrameConversationList, Conversation: roster})
}

func (h *Hub) sendRosterToUser(userID int) {
	for _, c := range h.clientsFor(userID) {
		h.sendRoster(c)
	}
}

func (h *Hub) sendToUser(userID int, frame chat.Frame) {
	for _, c := range h.clientsFor(userID) {
		h.send(c, frame)
	}
}

func (h *Hub) clientsFor(userID int) []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	var matched []*Client
	for c := range h.clients {
		if c.UserID == userID {
			matched = append(matched, c)
		}
	}
	return matched
}

// send writes one frame, dropping the client on write failure.
func (h *Hub) send(c *Client, frame chat.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[c] {
		return
	}
	if err := c.conn.WriteJSON(frame); err != nil {
		log.Printf("[hub] write to user %d failed: %v", c.UserID, err)
		delete(h.clients, c)
		c.conn.Close()
	}
}
