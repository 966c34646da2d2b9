package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationKeyString(t *testing.T) {
	tests := []struct {
		key  ConversationKey
		want string
	}{
		{ConversationKey{ChatID: 12345}, "12345"},
		{ConversationKey{ChatID: 12345, SenderID: 67890}, "12345:67890"},
		{ConversationKey{ChatID: -100987, SenderID: 42}, "-100987:42"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.key.String())
	}
}

func TestNewConversation(t *testing.T) {
	now := time.Now()
	c := NewConversation("12345", now)

	assert.Equal(t, "12345", c.ID)
	assert.Equal(t, int64(0), c.Version)
	assert.Empty(t, c.Turns)
	assert.Equal(t, now, c.CreatedAt)
}

func TestConversationAppend(t *testing.T) {
	base := time.Now()
	c := NewConversation("12345", base)

	c.Append(RoleUser, "hello", base.Add(time.Second))
	c.Append(RoleAssistant, "hi there", base.Add(2*time.Second))

	require.Len(t, c.Turns, 2)
	assert.Equal(t, RoleUser, c.Turns[0].Role)
	assert.Equal(t, "hello", c.Turns[0].Text)
	assert.Equal(t, RoleAssistant, c.Turns[1].Role)
	assert.Equal(t, base.Add(2*time.Second), c.LastActivity)

	// Version is untouched by in-memory appends
	assert.Equal(t, int64(0), c.Version)
}

func TestWindowTurnLimit(t *testing.T) {
	c := NewConversation("c", time.Now())
	for i := 0; i < 10; i++ {
		c.Append(RoleUser, "msg", time.Now())
	}

	assert.Len(t, c.Window(4, 0), 4)
	assert.Len(t, c.Window(0, 0), 10)  // 0 = unlimited
	assert.Len(t, c.Window(20, 0), 10) // limit above length
}

func TestWindowKeepsNewestTurns(t *testing.T) {
	c := NewConversation("c", time.Now())
	c.Append(RoleUser, "first", time.Now())
	c.Append(RoleAssistant, "second", time.Now())
	c.Append(RoleUser, "third", time.Now())

	w := c.Window(2, 0)
	require.Len(t, w, 2)
	assert.Equal(t, "second", w[0].Text)
	assert.Equal(t, "third", w[1].Text)
}

func TestWindowCharBudget(t *testing.T) {
	c := NewConversation("c", time.Now())
	c.Append(RoleUser, "aaaaaaaaaa", time.Now())    // 10 chars
	c.Append(RoleAssistant, "bbbbbbbbbb", time.Now()) // 10 chars
	c.Append(RoleUser, "ccccc", time.Now())            // 5 chars

	// Budget of 15 fits the last two turns only.
	w := c.Window(0, 15)
	require.Len(t, w, 2)
	assert.Equal(t, "bbbbbbbbbb", w[0].Text)

	// A budget smaller than the newest turn still yields that turn.
	w = c.Window(0, 3)
	require.Len(t, w, 1)
	assert.Equal(t, "ccccc", w[0].Text)
}

func TestWindowDoesNotMutate(t *testing.T) {
	c := NewConversation("c", time.Now())
	c.Append(RoleUser, "one", time.Now())
	c.Append(RoleUser, "two", time.Now())

	_ = c.Window(1, 0)
	assert.Len(t, c.Turns, 2)
}
