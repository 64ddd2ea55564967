package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a chat message.
type Role string

// Available message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// RoleHuman is accepted as an alias of RoleUser.
	RoleHuman Role = "human"
)

// ParseRole converts a string to a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
	return r, nil
}

// IsValid returns true if the role is recognised.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleHuman:
		return true
	default:
		return false
	}
}

// IsUser reports whether the role is user or its human alias.
func (r Role) IsUser() bool {
	return r == RoleUser || r == RoleHuman
}

// Normalize maps aliases to the roles model backends understand.
func (r Role) Normalize() Role {
	if r == RoleHuman {
		return RoleUser
	}
	return r
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// Message is a single entry in a chat session.
type Message struct {
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// DefaultChatModel is used for new sessions when no model is chosen.
const DefaultChatModel = "deepseek-r1"

// ChatSession is a conversation with an ordered, append-only history.
type ChatSession struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Model     string    `json:"model" yaml:"model"`
	UseRAG    bool      `json:"useRAG" yaml:"use_rag"`
	Messages  []Message `json:"messages" yaml:"messages"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updated_at"`
}

// DefaultChatTitle is the title given to sessions created without one.
func DefaultChatTitle(now time.Time) string {
	return "Chat " + now.Format("2006-01-02 15:04:05")
}

// Append adds messages to the end of the history.
// Messages are never edited or removed once appended.
func (s *ChatSession) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// Touch refreshes the update timestamp. Stores call it on every save.
func (s *ChatSession) Touch(now time.Time) {
	s.UpdatedAt = now
}

// LastUserMessage returns the most recent user or human message.
func LastUserMessage(msgs []Message) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role.IsUser() {
			return msgs[i], true
		}
	}
	return Message{}, false
}

// ChatUpdate carries optional changes to session settings.
// Nil fields are left untouched.
type ChatUpdate struct {
	Title  *string
	Model  *string
	UseRAG *bool
}
