package session

import (
	"sync"

	"socialnet/internal/model/chat"
)

// Store is the in-memory projection of the conversation roster and the
// message log. The Manager is its sole writer; readers always get copies.
type Store struct {
	mu       sync.RWMutex
	roster   []chat.Conversation
	messages map[int][]chat.Message
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{messages: make(map[int][]chat.Message)}
}

// Roster returns the conversations in the order the server delivered them.
func (s *Store) Roster() []chat.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roster := make([]chat.Conversation, len(s.roster))
	copy(roster, s.roster)
	return roster
}

// MessagesFor returns the messages of one conversation in arrival order.
func (s *Store) MessagesFor(conversationID int) []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.messages[conversationID]
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied
}

// ReplaceRoster swaps in a full roster snapshot, preserving its order.
func (s *Store) ReplaceRoster(roster []chat.Conversation) {
	copied := make([]chat.Conversation, len(roster))
	copy(copied, roster)

	s.mu.Lock()
	s.roster = copied
	s.mu.Unlock()
}

// Append records an inbound message under its conversation.
func (s *Store) Append(msg chat.Message) {
	s.mu.Lock()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	s.mu.Unlock()
}

// IncrementUnread bumps the unread count of a conversation.
func (s *Store) IncrementUnread(conversationID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.roster {
		if s.roster[i].ID == conversationID {
			s.roster[i].UnreadCount++
			return
		}
	}
}

// ResetUnread zeroes the unread count of a conversation.
func (s *Store) ResetUnread(conversationID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.roster {
		if s.roster[i].ID == conversationID {
			s.roster[i].UnreadCount = 0
			return
		}
	}
}

// FindDirect looks for an existing direct conversation with the given
// remote user. Matching keys on the participant set; the display name is
// only consulted for rosters that carry no participant data.
func (s *Store) FindDirect(localID, remoteID int, displayName string) (chat.Conversation, bool) {
	key := chat.DirectKey(localID, remoteID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, conv := range s.roster {
		if conv.Kind != chat.KindDirect {
			continue
		}
		if len(conv.Participants) > 0 {
			if conv.ParticipantKey() == key {
				return conv, true
			}
			continue
		}
		if displayName != "" && conv.Name == displayName {
			return conv, true
		}
	}
	return chat.Conversation{}, false
}
