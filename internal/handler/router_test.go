package handler

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"socialnet/internal/auth"
	directoryModel "socialnet/internal/model/directory"
	"socialnet/internal/service/hub"
	"socialnet/internal/service/session"
	"socialnet/internal/store"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// Runs the full path: two clients connect over a real websocket, one opens
// a direct conversation with the other and sends a message, and both ends
// converge on the same persisted state.
func TestChatOverRouter(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "router.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	signer, err := auth.NewSigner()
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	srv := httptest.NewServer(NewRouter(st, signer, hub.New(st)))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	aliceID, err := st.CreateUser("alice@example.com", "hash", "alice", "", "")
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bobID, err := st.CreateUser("bob@example.com", "hash", "bob", "", "")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := session.NewManager(session.Config{URL: wsURL, UserID: aliceID})
	bob := session.NewManager(session.Config{URL: wsURL, UserID: bobID})
	defer alice.Close()
	defer bob.Close()

	alice.Open(ctx)
	bob.Open(ctx)
	waitFor(t, "alice connected", func() bool { return alice.State() == session.StateConnected })
	waitFor(t, "bob connected", func() bool { return bob.State() == session.StateConnected })

	alice.StartConversation(directoryModel.User{ID: bobID, Nickname: "bob"})
	waitFor(t, "rosters converged", func() bool {
		return len(alice.Roster()) == 1 && len(bob.Roster()) == 1
	})

	convID := alice.Roster()[0].ID
	if bob.Roster()[0].ID != convID {
		t.Fatalf("roster mismatch: alice sees %d, bob sees %d", convID, bob.Roster()[0].ID)
	}
	if bob.Roster()[0].Name != "alice" || alice.Roster()[0].Name != "bob" {
		t.Fatalf("direct names not filled: alice=%q bob=%q", alice.Roster()[0].Name, bob.Roster()[0].Name)
	}

	alice.Select(convID)
	alice.SendMessage(convID, "hello bob")

	waitFor(t, "message delivered", func() bool {
		return len(alice.MessagesFor(convID)) == 1 && len(bob.MessagesFor(convID)) == 1
	})
	got := bob.MessagesFor(convID)[0]
	if got.Content != "hello bob" || got.Sender != aliceID {
		t.Fatalf("unexpected message: %+v", got)
	}
	// Alice only appended on the server echo, never optimistically.
	if echo := alice.MessagesFor(convID)[0]; echo.Sender != aliceID {
		t.Fatalf("unexpected echo: %+v", echo)
	}

	// Bob never selected the conversation, so the message counts as unread.
	waitFor(t, "bob unread bumped", func() bool {
		roster := bob.Roster()
		return len(roster) == 1 && roster[0].UnreadCount == 1
	})
	bob.Select(convID)
	if unread := bob.Roster()[0].UnreadCount; unread != 0 {
		t.Fatalf("select did not clear unread: %d", unread)
	}
}

// A second conversation request for the same pair must land in the
// existing thread, whichever side asks.
func TestDirectConversationReuseOverRouter(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "router.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	signer, err := auth.NewSigner()
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	srv := httptest.NewServer(NewRouter(st, signer, hub.New(st)))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	aliceID, err := st.CreateUser("alice@example.com", "hash", "alice", "", "")
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bobID, err := st.CreateUser("bob@example.com", "hash", "bob", "", "")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := session.NewManager(session.Config{URL: wsURL, UserID: aliceID})
	bob := session.NewManager(session.Config{URL: wsURL, UserID: bobID})
	defer alice.Close()
	defer bob.Close()

	alice.Open(ctx)
	bob.Open(ctx)
	waitFor(t, "alice connected", func() bool { return alice.State() == session.StateConnected })
	waitFor(t, "bob connected", func() bool { return bob.State() == session.StateConnected })

	alice.StartConversation(directoryModel.User{ID: bobID, Nickname: "bob"})
	waitFor(t, "rosters converged", func() bool {
		return len(alice.Roster()) == 1 && len(bob.Roster()) == 1
	})
	convID := alice.Roster()[0].ID

	// Bob's roster already holds the thread, so this selects it locally
	// instead of asking the server for a new one.
	bob.StartConversation(directoryModel.User{ID: aliceID, Nickname: "alice"})
	if bob.Selected() != convID {
		t.Fatalf("expected existing thread %d selected, got %d", convID, bob.Selected())
	}

	if dup, err := st.FindDirectConversation(aliceID, bobID); err != nil || dup != convID {
		t.Fatalf("conversation not stable: id=%d err=%v", dup, err)
	}
	if roster := alice.Roster(); len(roster) != 1 {
		t.Fatalf("conversation duplicated for alice: %+v", roster)
	}
}
