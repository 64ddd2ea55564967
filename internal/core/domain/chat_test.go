package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"system", RoleSystem},
		{"user", RoleUser},
		{"assistant", RoleAssistant},
		{"human", RoleHuman},
		{" USER ", RoleUser},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseRole("tool")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestRole_IsUser(t *testing.T) {
	assert.True(t, RoleUser.IsUser())
	assert.True(t, RoleHuman.IsUser())
	assert.False(t, RoleSystem.IsUser())
	assert.False(t, RoleAssistant.IsUser())
}

func TestRole_Normalize(t *testing.T) {
	assert.Equal(t, RoleUser, RoleHuman.Normalize())
	assert.Equal(t, RoleUser, RoleUser.Normalize())
	assert.Equal(t, RoleSystem, RoleSystem.Normalize())
	assert.Equal(t, RoleAssistant, RoleAssistant.Normalize())
}

func TestLastUserMessage(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: "be nice"},
		{Role: RoleHuman, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "second"},
		{Role: RoleAssistant, Content: "reply 2"},
	}

	msg, ok := LastUserMessage(msgs)
	require.True(t, ok)
	assert.Equal(t, "second", msg.Content)

	msg, ok = LastUserMessage(msgs[:3])
	require.True(t, ok)
	assert.Equal(t, "first", msg.Content)

	_, ok = LastUserMessage([]Message{{Role: RoleSystem, Content: "only system"}})
	assert.False(t, ok)
}

func TestChatSession_AppendPreservesOrder(t *testing.T) {
	s := &ChatSession{}
	s.Append(Message{Role: RoleUser, Content: "q"})
	s.Append(Message{Role: RoleAssistant, Content: "a"}, Message{Role: RoleUser, Content: "q2"})

	require.Len(t, s.Messages, 3)
	assert.Equal(t, "q", s.Messages[0].Content)
	assert.Equal(t, "a", s.Messages[1].Content)
	assert.Equal(t, "q2", s.Messages[2].Content)
}

func TestChatSession_Touch(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &ChatSession{CreatedAt: created, UpdatedAt: created}

	later := created.Add(time.Hour)
	s.Touch(later)

	assert.Equal(t, created, s.CreatedAt)
	assert.Equal(t, later, s.UpdatedAt)
}

func TestDefaultChatTitle(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	assert.Equal(t, "Chat 2024-03-05 14:07:09", DefaultChatTitle(now))
}
