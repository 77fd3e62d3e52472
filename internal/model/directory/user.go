package directory

import "strings"

// User is a directory entry eligible for starting a direct conversation.
// It is a read-only projection of the social graph; the chat core never
// mutates it.
type User struct {
	ID             int    `json:"id"`
	Nickname       string `json:"nickname,omitempty"`
	FirstName      string `json:"firstName,omitempty"`
	LastName       string `json:"lastName,omitempty"`
	FullName       string `json:"fullName,omitempty"`
	ProfilePicture int    `json:"profilePicture,omitempty"`
}

// DisplayName prefers the full name and falls back to the nickname.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	return u.Nickname
}
