package hub

import (
	"path/filepath"
	"sync"
	"testing"

	"socialnet/internal/model/chat"
	"socialnet/internal/store"
)

// fakeSender records every frame written to it.
type fakeSender struct {
	mu     sync.Mutex
	frames []chat.Frame
	closed bool
}

func (f *fakeSender) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, v.(chat.Frame))
	return nil
}

func (f *fakeSender) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSender) sent() []chat.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.Frame(nil), f.frames...)
}

func newTestHub(t *testing.T) (*Hub, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "hub.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st), st
}

func seedUser(t *testing.T, st *store.Store, email, nickname string) int {
	t.Helper()

	id, err := st.CreateUser(email, "hash", nickname, "", "")
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return id
}

func TestRegisterSendsRoster(t *testing.T) {
	h, st := newTestHub(t)
	alice := seedUser(t, st, "alice@example.com", "alice")
	bob := seedUser(t, st, "bob@example.com", "bob")
	if _, err := st.CreateDirectConversation(alice, bob); err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	conn := &fakeSender{}
	c := h.Register(alice, conn)
	defer h.Unregister(c)

	frames := conn.sent()
	if len(frames) != 1 || frames[0].Type != chat.FrameConversationList {
		t.Fatalf("expected a conversation_list on register, got %+v", frames)
	}
	if len(frames[0].Conversation) != 1 || frames[0].Conversation[0].Name != "bob" {
		t.Fatalf("unexpected roster: %+v", frames[0].Conversation)
	}
}

func TestRegisterWithEmptyRosterStillSendsList(t *testing.T) {
	h, st := newTestHub(t)
	alice := seedUser(t, st, "alice@example.com", "alice")

	conn := &fakeSender{}
	c := h.Register(alice, conn)
	defer h.Unregister(c)

	frames := conn.sent()
	if len(frames) != 1 || frames[0].Type != chat.FrameConversationList {
		t.Fatalf("expected a conversation_list on register, got %+v", frames)
	}
	if frames[0].Conversation == nil || len(frames[0].Conversation) != 0 {
		t.Fatalf("expected empty roster, got %+v", frames[0].Conversation)
	}
}

func TestMessagePersistsAndEchoes(t *testing.T) {
	h, st := newTestHub(t)
	alice := seedUser(t, st, "alice@example.com", "alice")
	bob := seedUser(t, st, "bob@example.com", "bob")
	convID, err := st.CreateDirectConversation(alice, bob)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	aliceConn, bobConn := &fakeSender{}, &fakeSender{}
	aliceClient := h.Register(alice, aliceConn)
	bobClient := h.Register(bob, bobConn)
	defer h.Unregister(aliceClient)
	defer h.Unregister(bobClient)

	h.Process(aliceClient, chat.Frame{
		Type:           chat.FrameMessage,
		From:           999, // ignored; identity comes from the connection
		Content:        "hello",
		ConversationID: convID,
	})

	for name, conn := range map[string]*fakeSender{"alice": aliceConn, "bob": bobConn} {
		frames := conn.sent()
		last := frames[len(frames)-1]
		if last.Type != chat.FrameMessage || last.Content != "hello" {
			t.Fatalf("%s: unexpected frame %+v", name, last)
		}
		if last.Sender != alice || last.From != alice {
			t.Fatalf("%s: sender not taken from connection: %+v", name, last)
		}
		if last.ConversationID != convID || last.Time == "" {
			t.Fatalf("%s: incomplete frame %+v", name, last)
		}
	}

	roster, err := st.ConversationsFor(bob)
	if err != nil {
		t.Fatalf("ConversationsFor err: %v", err)
	}
	if len(roster) != 1 || roster[0].UnreadCount != 1 {
		t.Fatalf("message not persisted: %+v", roster)
	}
}

func TestMessageToUserResolvesConversation(t *testing.T) {
	h, st := newTestHub(t)
	alice := seedUser(t, st, "alice@example.com", "alice")
	bob := seedUser(t, st, "bob@example.com", "bob")

	aliceConn := &fakeSender{}
	aliceClient := h.Register(alice, aliceConn)
	defer h.Unregister(aliceClient)

	h.Process(aliceClient, chat.Frame{Type: chat.FrameMessage, To: bob, Content: "hi"})

	convID, err := st.FindDirectConversation(alice, bob)
	if err != nil {
		t.Fatalf("conversation not created: %v", err)
	}

	frames := aliceConn.sent()
	last := frames[len(frames)-1]
	if last.Type != chat.FrameMessage || last.ConversationID != convID {
		t.Fatalf("unexpected echo %+v", last)
	}
}

func TestEmptyMessageDropped(t *testing.T) {
	h, st := newTestHub(t)
	alice := seedUser(t, st, "alice@example.com", "alice")
	bob := seedUser(t, st, "bob@example.com", "bob")
	convID, err := st.CreateDirectConversation(alice, bob)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	conn := &fakeSender{}
	c := h.Register(alice, conn)
	defer h.Unregister(c)
	before := len(conn.sent())

	h.Process(c, chat.Frame{Type: chat.FrameMessage, ConversationID: convID})

	if got := len(conn.sent()); got != before {
		t.Fatalf("empty message produced frames: %d -> %d", before, got)
	}
}

func TestCreateConversationDedupes(t *testing.T) {
	h, st := newTestHub(t)
	alice := seedUser(t, st, "alice@example.com", "alice")
	bob := seedUser(t, st, "bob@example.com", "bob")

	aliceConn, bobConn := &fakeSender{}, &fakeSender{}
	aliceClient := h.Register(alice, aliceConn)
	bobClient := h.Register(bob, bobConn)
	defer h.Unregister(aliceClient)
	defer h.Unregister(bobClient)

	h.Process(aliceClient, chat.Frame{Type: chat.FrameCreateConversation, Users: []int{bob}})
	first, err := st.FindDirectConversation(alice, bob)
	if err != nil {
		t.Fatalf("conversation not created: %v", err)
	}

	// Creating again, from either side, reuses the same thread.
	h.Process(bobClient, chat.Frame{Type: chat.FrameCreateConversation, Users: []int{alice}})
	second, err := st.FindDirectConversation(alice, bob)
	if err != nil {
		t.Fatalf("find after recreate: %v", err)
	}
	if second != first {
		t.Fatalf("conversation duplicated: %d != %d", second, first)
	}

	// Both sides got roster pushes past the registration one.
	for name, conn := range map[string]*fakeSender{"alice": aliceConn, "bob": bobConn} {
		frames := conn.sent()
		last := frames[len(frames)-1]
		if last.Type != chat.FrameConversationList || len(last.Conversation) != 1 {
			t.Fatalf("%s: expected fresh roster, got %+v", name, last)
		}
	}
}

func TestGetConversationsRefreshesRoster(t *testing.T) {
	h, st := newTestHub(t)
	alice := seedUser(t, st, "alice@example.com", "alice")
	bob := seedUser(t, st, "bob@example.com", "bob")

	conn := &fakeSender{}
	c := h.Register(alice, conn)
	defer h.Unregister(c)

	if _, err := st.CreateDirectConversation(alice, bob); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	h.Process(c, chat.Frame{Type: chat.FrameGetConversations})

	frames := conn.sent()
	last := frames[len(frames)-1]
	if last.Type != chat.FrameConversationList || len(last.Conversation) != 1 {
		t.Fatalf("expected refreshed roster, got %+v", last)
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	h, st := newTestHub(t)
	alice := seedUser(t, st, "alice@example.com", "alice")
	bob := seedUser(t, st, "bob@example.com", "bob")
	convID, err := st.CreateDirectConversation(alice, bob)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	aliceConn, bobConn := &fakeSender{}, &fakeSender{}
	aliceClient := h.Register(alice, aliceConn)
	bobClient := h.Register(bob, bobConn)

	h.Unregister(bobClient)
	if !bobConn.closed {
		t.Fatal("unregister should close the connection")
	}
	before := len(bobConn.sent())

	h.Process(aliceClient, chat.Frame{Type: chat.FrameMessage, ConversationID: convID, Content: "gone?"})
	h.Unregister(aliceClient)

	if got := len(bobConn.sent()); got != before {
		t.Fatalf("frames delivered after unregister: %d -> %d", before, got)
	}
}
