package chat

import (
	"sort"
	"strconv"
	"strings"
)

// Conversation kinds.
const (
	KindDirect = "direct"
	KindGroup  = "group"
)

// Conversation is one addressable chat thread in the roster. Roster order
// is server-determined and preserved as delivered.
type Conversation struct {
	ID            int    `json:"id"`
	Kind          string `json:"type"`
	Name          string `json:"name,omitempty"`
	Participants  []int  `json:"participants,omitempty"`
	LastMessageAt string `json:"last_message_at"`
	UnreadCount   int    `json:"unread_message_count"`
}

// ParticipantKey returns a canonical key for the participant set, so direct
// conversations can be matched without relying on display names.
func (c Conversation) ParticipantKey() string {
	ids := make([]int, len(c.Participants))
	copy(ids, c.Participants)
	sort.Ints(ids)

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ":")
}

// DirectKey returns the participant key of a direct conversation between
// two users.
func DirectKey(a, b int) string {
	return Conversation{Participants: []int{a, b}}.ParticipantKey()
}
