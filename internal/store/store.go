package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"socialnet/internal/model/chat"
	directoryModel "socialnet/internal/model/directory"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

// Store wraps the sqlite database backing the chat server.
type Store struct {
	db *sql.DB
}

// Open opens the database at path, creating the schema when needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS user (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL,
			nickname TEXT NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			profile_picture INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS follows (
			follower_id INTEGER NOT NULL REFERENCES user(id),
			followed_id INTEGER NOT NULL REFERENCES user(id),
			status TEXT NOT NULL DEFAULT 'accepted',
			PRIMARY KEY (follower_id, followed_id)
		)`,
		`CREATE TABLE IF NOT EXISTS conversation (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL DEFAULT 'direct',
			name TEXT,
			last_message_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_participant (
			user INTEGER NOT NULL REFERENCES user(id),
			conversation INTEGER NOT NULL REFERENCES conversation(id),
			PRIMARY KEY (user, conversation)
		)`,
		`CREATE TABLE IF NOT EXISTS message (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation INTEGER NOT NULL REFERENCES conversation(id),
			sender INTEGER REFERENCES user(id),
			content TEXT,
			sent_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
			status TEXT NOT NULL DEFAULT 'sent'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_message_conversation ON message(conversation, sent_at)`,
		`CREATE INDEX IF NOT EXISTS idx_participant_user ON conversation_participant(user)`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// CreateUser inserts a user with an already-hashed password and returns
// the new id.
func (s *Store) CreateUser(email, passwordHash, nickname, firstName, lastName string) (int, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM user WHERE email = ?)`, email).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return 0, ErrEmailTaken
	}

	var id int
	err = s.db.QueryRow(`
		INSERT INTO user (email, password, nickname, first_name, last_name)
		VALUES (?, ?, ?, ?, ?) RETURNING id
	`, email, passwordHash, nickname, firstName, lastName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// UserByEmail fetches a user and its password hash by email.
func (s *Store) UserByEmail(email string) (directoryModel.User, string, error) {
	var u directoryModel.User
	var first, last, hash string
	err := s.db.QueryRow(`
		SELECT id, nickname, first_name, last_name, profile_picture, password
		FROM user WHERE email = ?
	`, email).Scan(&u.ID, &u.Nickname, &first, &last, &u.ProfilePicture, &hash)
	if err == sql.ErrNoRows {
		return directoryModel.User{}, "", ErrNotFound
	}
	if err != nil {
		return directoryModel.User{}, "", fmt.Errorf("query user by email: %w", err)
	}

	u.FirstName, u.LastName = first, last
	u.FullName = fullName(first, last, u.Nickname)
	return u, hash, nil
}

// UserByID fetches a user by id.
func (s *Store) UserByID(id int) (directoryModel.User, error) {
	var u directoryModel.User
	var first, last string
	err := s.db.QueryRow(`
		SELECT id, nickname, first_name, last_name, profile_picture
		FROM user WHERE id = ?
	`, id).Scan(&u.ID, &u.Nickname, &first, &last, &u.ProfilePicture)
	if err == sql.ErrNoRows {
		return directoryModel.User{}, ErrNotFound
	}
	if err != nil {
		return directoryModel.User{}, fmt.Errorf("query user by id: %w", err)
	}

	u.FirstName, u.LastName = first, last
	u.FullName = fullName(first, last, u.Nickname)
	return u, nil
}

// CreateFollow records followerID following followedID, accepted
// immediately. Re-follows are a no-op.
func (s *Store) CreateFollow(followerID, followedID int) error {
	_, err := s.db.Exec(`
		INSERT INTO follows (follower_id, followed_id, status) VALUES (?, ?, 'accepted')
		ON CONFLICT (follower_id, followed_id) DO NOTHING
	`, followerID, followedID)
	if err != nil {
		return fmt.Errorf("create follow: %w", err)
	}
	return nil
}

// Followers returns the accepted followers of userID.
func (s *Store) Followers(userID int) ([]directoryModel.User, error) {
	return s.queryUsers(`
		SELECT u.id, u.nickname, u.first_name, u.last_name, u.profile_picture
		FROM user u
		JOIN follows f ON f.follower_id = u.id
		WHERE f.followed_id = ? AND f.status = 'accepted'
		ORDER BY u.id
	`, userID)
}

// Following returns the users userID follows.
func (s *Store) Following(userID int) ([]directoryModel.User, error) {
	return s.queryUsers(`
		SELECT u.id, u.nickname, u.first_name, u.last_name, u.profile_picture
		FROM user u
		JOIN follows f ON f.followed_id = u.id
		WHERE f.follower_id = ? AND f.status = 'accepted'
		ORDER BY u.id
	`, userID)
}

func (s *Store) queryUsers(query string, args ...any) ([]directoryModel.User, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []directoryModel.User
	for rows.Next() {
		var u directoryModel.User
		var first, last string
		if err := rows.Scan(&u.ID, &u.Nickname, &first, &last, &u.ProfilePicture); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		u.FirstName, u.LastName = first, last
		u.FullName = fullName(first, last, u.Nickname)
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateDirectConversation creates a direct conversation between two users
// and returns its id.
func (s *Store) CreateDirectConversation(user1ID, user2ID int) (int, error) {
	if user1ID == user2ID {
		return 0, fmt.Errorf("cannot create a direct conversation with oneself (user %d)", user1ID)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var conversationID int
	err = tx.QueryRow(`INSERT INTO conversation (type) VALUES ('direct') RETURNING id`).Scan(&conversationID)
	if err != nil {
		return 0, fmt.Errorf("insert conversation: %w", err)
	}

	for _, userID := range []int{user1ID, user2ID} {
		if _, err := tx.Exec(`INSERT INTO conversation_participant (user, conversation) VALUES (?, ?)`, userID, conversationID); err != nil {
			return 0, fmt.Errorf("insert participant %d: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return conversationID, nil
}

// FindDirectConversation returns the id of an existing direct conversation
// whose participant set is exactly the two given users.
func (s *Store) FindDirectConversation(user1ID, user2ID int) (int, error) {
	var id int
	err := s.db.QueryRow(`
		SELECT c.id FROM conversation c
		WHERE c.type = 'direct'
		AND (SELECT COUNT(*) FROM conversation_participant cp WHERE cp.conversation = c.id) = 2
		AND EXISTS(SELECT 1 FROM conversation_participant cp WHERE cp.conversation = c.id AND cp.user = ?)
		AND EXISTS(SELECT 1 FROM conversation_participant cp WHERE cp.conversation = c.id AND cp.user = ?)
	`, user1ID, user2ID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("find direct conversation: %w", err)
	}
	return id, nil
}

// Participants returns the user ids in a conversation.
func (s *Store) Participants(conversationID int) ([]int, error) {
	rows, err := s.db.Query(`SELECT user FROM conversation_participant WHERE conversation = ?`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var participants []int
	for rows.Next() {
		var userID int
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan participant row: %w", err)
		}
		participants = append(participants, userID)
	}
	return participants, rows.Err()
}

// CreateMessage stores a message and bumps the conversation's
// last_message_at. It returns the new message id.
func (s *Store) CreateMessage(conversationID, senderID int, content string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var messageID int
	err = tx.QueryRow(`
		INSERT INTO message (conversation, sender, content) VALUES (?, ?, ?) RETURNING id
	`, conversationID, senderID, content).Scan(&messageID)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE conversation SET last_message_at = strftime('%Y-%m-%dT%H:%M:%SZ','now') WHERE id = ?
	`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("bump conversation timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return messageID, nil
}

// ConversationsFor returns the roster for a user: every conversation the
// user participates in, ordered by last activity, with participant ids,
// per-user unread counts, and the counterpart's nickname filled in for
// unnamed direct threads.
func (s *Store) ConversationsFor(userID int) ([]chat.Conversation, error) {
	rows, err := s.db.Query(`
		SELECT
			c.id,
			c.type,
			c.name,
			(
				SELECT u.nickname
				FROM conversation_participant cp
				JOIN user u ON u.id = cp.user
				WHERE cp.conversation = c.id AND u.id != ?
				LIMIT 1
			) AS direct_name,
			c.last_message_at,
			(
				SELECT COUNT(*)
				FROM message m
				WHERE m.conversation = c.id AND m.sender != ? AND m.status != 'read'
			) AS unread_count
		FROM conversation c
		JOIN conversation_participant cp ON c.id = cp.conversation
		WHERE cp.user = ?
		ORDER BY c.last_message_at DESC
	`, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations for user %d: %w", userID, err)
	}
	defer rows.Close()

	var conversations []chat.Conversation
	for rows.Next() {
		var conv chat.Conversation
		var name, directName sql.NullString
		if err := rows.Scan(&conv.ID, &conv.Kind, &name, &directName, &conv.LastMessageAt, &conv.UnreadCount); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		switch {
		case name.Valid:
			conv.Name = name.String
		case directName.Valid:
			conv.Name = directName.String
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}

	for i := range conversations {
		participants, err := s.Participants(conversations[i].ID)
		if err != nil {
			return nil, err
		}
		conversations[i].Participants = participants
	}
	return conversations, nil
}

func fullName(first, last, nickname string) string {
	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		return nickname
	}
	return name
}
