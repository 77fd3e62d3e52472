package chat

// Message is a single displayable chat event. Messages are appended in
// arrival order and never mutated afterwards.
type Message struct {
	From           int    `json:"from,omitempty"`
	Sender         int    `json:"sender,omitempty"`
	Content        string `json:"content,omitempty"`
	ConversationID int    `json:"conversationId,omitempty"`
	SentAt         string `json:"time,omitempty"`
}
