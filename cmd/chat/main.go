package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"socialnet/internal/auth"
	"socialnet/internal/config"
	directoryModel "socialnet/internal/model/directory"
	"socialnet/internal/service/directory"
	"socialnet/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	creds, err := auth.LoadCredentials(cfg.Chat.CredentialsPath)
	if err != nil {
		log.Fatalf("failed to load credentials: %v", err)
	}

	mgr := session.NewManager(session.Config{
		URL:    cfg.Chat.ServerURL,
		UserID: creds.User.ID,
		Reconnect: session.Reconnect{
			Enabled:     cfg.Chat.Reconnect,
			BaseDelay:   cfg.Chat.ReconnectBase,
			MaxDelay:    cfg.Chat.ReconnectMax,
			MaxAttempts: cfg.Chat.ReconnectTries,
		},
	})
	mgr.Open(ctx)
	defer mgr.Close()

	// Directory failure degrades to an empty candidate list; chat itself
	// stays usable.
	candidates, err := directory.NewClient(cfg.Chat.APIURL, creds.Token).Resolve(ctx)
	if err != nil {
		log.Printf("[chat] directory resolution failed: %v", err)
	}

	go printUpdates(ctx, mgr)

	fmt.Printf("connected as %s (user %d). /help for commands.\n", creds.User.DisplayName(), creds.User.ID)
	repl(ctx, mgr, candidates)
}

// printUpdates mirrors the rendering layer: it re-reads the store snapshot
// on every update signal and prints what changed for the selected
// conversation.
func printUpdates(ctx context.Context, mgr *session.Manager) {
	printed := make(map[int]int)
	lastState := mgr.State()

	for {
		select {
		case <-ctx.Done():
			return
		case <-mgr.Updates():
		}

		if state := mgr.State(); state != lastState {
			lastState = state
			fmt.Printf("-- %s\n", state)
		}

		selected := mgr.Selected()
		if selected == 0 {
			continue
		}
		messages := mgr.MessagesFor(selected)
		for _, msg := range messages[printed[selected]:] {
			fmt.Printf("[%d] %s\n", msg.Sender, msg.Content)
		}
		printed[selected] = len(messages)
	}
}

func repl(ctx context.Context, mgr *session.Manager, candidates []directoryModel.User) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/help":
			fmt.Println("/list  /users  /open <conversation-id>  /new <user-id>  /quit  or type a message")
		case line == "/quit":
			return
		case line == "/list":
			for _, conv := range mgr.Roster() {
				marker := " "
				if conv.ID == mgr.Selected() {
					marker = "*"
				}
				fmt.Printf("%s %d: %s (%s, %d unread)\n", marker, conv.ID, conv.Name, conv.Kind, conv.UnreadCount)
			}
		case line == "/users":
			for _, u := range candidates {
				fmt.Printf("  %d: %s\n", u.ID, u.DisplayName())
			}
		case strings.HasPrefix(line, "/open "):
			id, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "/open ")))
			if err != nil {
				fmt.Println("usage: /open <conversation-id>")
				continue
			}
			mgr.Select(id)
		case strings.HasPrefix(line, "/new "):
			id, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "/new ")))
			if err != nil {
				fmt.Println("usage: /new <user-id>")
				continue
			}
			user, ok := findCandidate(candidates, id)
			if !ok {
				fmt.Println("no such user in the directory")
				continue
			}
			mgr.StartConversation(user)
		default:
			if mgr.Selected() == 0 {
				fmt.Println("select a conversation first: /list then /open <id>")
				continue
			}
			mgr.SendMessage(mgr.Selected(), line)
		}
	}
}

func findCandidate(candidates []directoryModel.User, id int) (directoryModel.User, bool) {
	for _, u := range candidates {
		if u.ID == id {
			return u, true
		}
	}
	return directoryModel.User{}, false
}
