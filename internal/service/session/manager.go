package session

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"socialnet/internal/model/chat"
	directoryModel "socialnet/internal/model/directory"
)

// State of the session connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Conn is the subset of the websocket connection the manager drives.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// DialFunc establishes the session transport.
type DialFunc func(ctx context.Context, url string) (Conn, error)

func websocketDial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Config wires a Manager to its chat server and local identity.
type Config struct {
	// URL of the websocket chat endpoint, e.g. ws://localhost:8080/ws.
	URL string
	// UserID is the authenticated local user the session belongs to.
	UserID int
	// Dial overrides the transport dialer; defaults to a gorilla websocket
	// dial. Tests inject fakes here.
	Dial DialFunc
	// Reconnect enables the automatic reconnect policy. The zero value
	// keeps the default behavior: a retry is an explicit Open call.
	Reconnect Reconnect
}

// Manager owns one client's live chat connection: the connection state
// machine, the conversation roster and the message log. It is the sole
// writer of that state; the rendering layer reads snapshots and selects on
// Updates for change notification.
type Manager struct {
	id        string
	url       string
	userID    int
	dial      DialFunc
	reconnect Reconnect

	mu       sync.Mutex
	state    State
	conn     Conn
	gen      int // transport generation, bumped on every open and close
	selected int
	attempts int

	store   *Store
	updates chan struct{}
}

// NewManager creates a disconnected session manager for the given user.
func NewManager(cfg Config) *Manager {
	dial := cfg.Dial
	if dial == nil {
		dial = websocketDial
	}
	return &Manager{
		id:        uuid.NewString(),
		url:       cfg.URL,
		userID:    cfg.UserID,
		dial:      dial,
		reconnect: cfg.Reconnect,
		store:     NewStore(),
		updates:   make(chan struct{}, 1),
	}
}

// UserID returns the local user the session was opened for.
func (m *Manager) UserID() int { return m.userID }

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Selected returns the id of the active conversation, zero if none.
func (m *Manager) Selected() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected
}

// Roster returns the conversations in server order.
func (m *Manager) Roster() []chat.Conversation { return m.store.Roster() }

// MessagesFor returns the current message snapshot of one conversation.
func (m *Manager) MessagesFor(conversationID int) []chat.Message {
	return m.store.MessagesFor(conversationID)
}

// Updates returns a coalescing channel that signals after every state or
// store mutation.
func (m *Manager) Updates() <-chan struct{} { return m.updates }

func (m *Manager) notify() {
	select {
	case m.updates <- struct{}{}:
	default:
	}
}

// Open establishes the transport and sends the connect handshake. Calling
// it while connecting or connected is a no-op, so repeated invocations
// cannot create a second transport. Failure before the roster arrives
// surfaces as StateDisconnected.
func (m *Manager) Open(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.gen++
	gen := m.gen
	m.mu.Unlock()
	m.notify()

	go m.connect(ctx, gen)
}

func (m *Manager) connect(ctx context.Context, gen int) {
	conn, err := m.dial(ctx, m.url)
	if err != nil {
		log.Printf("[session] %s: dial %s failed: %v", m.id, m.url, err)
		m.transportDown(gen)
		m.maybeReconnect(ctx)
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.mu.Unlock()

	handshake := chat.Frame{Type: chat.FrameConnect, From: m.userID}
	if err := conn.WriteJSON(handshake); err != nil {
		log.Printf("[session] %s: handshake failed: %v", m.id, err)
		conn.Close()
		m.transportDown(gen)
		m.maybeReconnect(ctx)
		return
	}

	m.readLoop(ctx, conn, gen)
}

func (m *Manager) readLoop(ctx context.Context, conn Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			stale := gen != m.gen
			m.mu.Unlock()
			if !stale && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[session] %s: read error: %v", m.id, err)
			}
			conn.Close()
			m.transportDown(gen)
			if !stale {
				m.maybeReconnect(ctx)
			}
			return
		}

		frame, err := chat.DecodeFrame(data)
		if err != nil {
			log.Printf("[session] %s: dropping frame: %v", m.id, err)
			continue
		}
		m.handleFrame(frame, gen)
	}
}

// handleFrame routes one inbound frame. Frames from a superseded transport
// generation are dropped so a torn-down session cannot mutate state.
func (m *Manager) handleFrame(frame chat.Frame, gen int) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}

	switch frame.Type {
	case chat.FrameConversationList:
		m.store.ReplaceRoster(frame.Conversation)
		m.state = StateConnected
		m.attempts = 0
		m.mu.Unlock()
	case chat.FrameMessage:
		selected := m.selected
		m.mu.Unlock()
		msg := frame.Message()
		m.store.Append(msg)
		if msg.ConversationID != selected {
			m.store.IncrementUnread(msg.ConversationID)
		}
	default:
		// Unrecognized event types are a forward-compatible no-op.
		m.mu.Unlock()
		return
	}
	m.notify()
}

// transportDown flips the session to disconnected unless the transport has
// already been superseded by a newer open or an explicit close.
func (m *Manager) transportDown(gen int) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()
	m.notify()
}

// Close tears the transport down unconditionally. It is idempotent and
// always leaves the session disconnected; events still in flight from the
// old transport are discarded.
func (m *Manager) Close() {
	m.mu.Lock()
	m.gen++
	conn := m.conn
	m.conn = nil
	changed := m.state != StateDisconnected
	m.state = StateDisconnected
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if changed {
		m.notify()
	}
}

// SendMessage emits a message frame for the given conversation. Calls that
// fail the preconditions (connected, content non-blank after trimming, a
// conversation chosen) are silently dropped. The local message log only
// changes when the server echoes the message back.
func (m *Manager) SendMessage(conversationID int, content string) {
	m.mu.Lock()
	conn := m.conn
	ok := m.state == StateConnected &&
		conn != nil &&
		conversationID != 0 &&
		strings.TrimSpace(content) != ""
	m.mu.Unlock()
	if !ok {
		return
	}

	frame := chat.Frame{
		Type:           chat.FrameMessage,
		From:           m.userID,
		Content:        content,
		ConversationID: conversationID,
	}
	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("[session] %s: send failed: %v", m.id, err)
	}
}

// StartConversation opens a direct conversation with the given user. When
// the roster already holds a direct thread with the same participant pair
// it is selected locally; otherwise a create_conversation frame is emitted
// and the server follows up with a fresh roster.
func (m *Manager) StartConversation(user directoryModel.User) {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected && conn != nil
	m.mu.Unlock()
	if !connected {
		return
	}

	if conv, ok := m.store.FindDirect(m.userID, user.ID, user.DisplayName()); ok {
		m.Select(conv.ID)
		return
	}

	frame := chat.Frame{
		Type:  chat.FrameCreateConversation,
		From:  m.userID,
		Users: []int{user.ID},
	}
	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("[session] %s: create conversation failed: %v", m.id, err)
	}
}

// Select marks the active conversation and clears its unread count.
// Messages arriving for any other conversation bump that conversation's
// unread count until it is selected.
func (m *Manager) Select(conversationID int) {
	m.mu.Lock()
	m.selected = conversationID
	m.mu.Unlock()
	m.store.ResetUnread(conversationID)
	m.notify()
}

// maybeReconnect schedules one reconnect attempt under the configured
// policy. The attempt is abandoned when Close or a fresh Open supersedes
// the session, or when the context is cancelled.
func (m *Manager) maybeReconnect(ctx context.Context) {
	if !m.reconnect.Enabled {
		return
	}

	m.mu.Lock()
	m.attempts++
	attempt := m.attempts
	gen := m.gen
	m.mu.Unlock()

	if m.reconnect.MaxAttempts > 0 && attempt > m.reconnect.MaxAttempts {
		log.Printf("[session] %s: giving up after %d reconnect attempts", m.id, attempt-1)
		return
	}

	delay := m.reconnect.delay(attempt)
	log.Printf("[session] %s: reconnecting in %s (attempt %d)", m.id, delay, attempt)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	m.mu.Lock()
	if gen != m.gen || m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.gen++
	gen = m.gen
	m.mu.Unlock()
	m.notify()

	m.connect(ctx, gen)
}
