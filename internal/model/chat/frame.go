package chat

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Frame types exchanged over the session transport.
const (
	FrameConnect            = "connect"
	FrameMessage            = "message"
	FrameCreateConversation = "create_conversation"
	FrameGetConversations   = "get_conversations"
	FrameConversationList   = "conversation_list"
)

var ErrBadFrame = errors.New("malformed frame")

// Frame is the tagged wire envelope for the chat transport. Which fields
// carry meaning depends on Type; the rest stay at their zero value.
type Frame struct {
	Type           string         `json:"type"`
	From           int            `json:"from,omitempty"`
	To             int            `json:"to,omitempty"`
	Content        string         `json:"content,omitempty"`
	Users          []int          `json:"users,omitempty"`
	Time           string         `json:"time,omitempty"`
	Conversation   []Conversation `json:"conversation,omitempty"`
	ConversationID int            `json:"conversationId,omitempty"`
	Sender         int            `json:"sender,omitempty"`
}

// DecodeFrame validates and decodes one inbound frame. Frames that are not
// JSON objects or lack the type discriminant are rejected; callers treat
// unknown type values as a forward-compatible no-op.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("%w: missing type", ErrBadFrame)
	}
	return f, nil
}

// Message extracts the chat message carried by a message-typed frame.
func (f Frame) Message() Message {
	return Message{
		From:           f.From,
		Sender:         f.Sender,
		Content:        f.Content,
		ConversationID: f.ConversationID,
		SentAt:         f.Time,
	}
}
