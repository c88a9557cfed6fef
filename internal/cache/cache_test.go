package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"drover/internal/chat"
)

const claude = "anthropic/claude-sonnet-4"

func conversationOf(n int) chat.Conversation {
	c := chat.NewConversation("system prompt")
	for i := 1; i < n; i++ {
		role := chat.RoleUser
		if i%2 == 0 {
			role = chat.RoleAssistant
		}
		c.Append(chat.Message{Role: role, Content: fmt.Sprintf("message %d", i)})
	}
	return c
}

func markedIndices(c chat.Conversation) []int {
	var out []int
	for i, m := range c {
		if m.HasCacheMarker() {
			out = append(out, i)
		}
	}
	return out
}

func TestApply_NoOpForUnsupportedModels(t *testing.T) {
	c := conversationOf(20)
	Apply(c, "gemini-3-pro")
	require.Empty(t, markedIndices(c))
	Apply(c, "gpt-5")
	require.Empty(t, markedIndices(c))
}

func TestApply_SystemAlwaysMarked(t *testing.T) {
	c := conversationOf(3)
	Apply(c, claude)

	require.True(t, c[0].HasCacheMarker())
	require.True(t, c[0].Parts[len(c[0].Parts)-1].Cache)
	require.Equal(t, "system prompt", c[0].Text())
}

func TestApply_StrideCheckpoints(t *testing.T) {
	c := conversationOf(20)
	Apply(c, claude)

	// Candidates at 8 and 16, both with content, both kept.
	require.Equal(t, []int{0, 8, 16}, markedIndices(c))
}

func TestApply_WindowMovesForward(t *testing.T) {
	c := conversationOf(30)
	Apply(c, claude)

	// Candidates 8, 16, 24; only the most recent two survive.
	require.Equal(t, []int{0, 16, 24}, markedIndices(c))
}

func TestApply_RemovesStaleMarkers(t *testing.T) {
	c := conversationOf(20)
	Apply(c, claude)
	require.Contains(t, markedIndices(c), 8)

	for len(c) < 34 {
		c.Append(chat.Message{Role: chat.RoleUser, Content: "more"})
	}
	Apply(c, claude)

	require.Equal(t, []int{0, 24, 32}, markedIndices(c))
}

func TestApply_SnapsToNearestContent(t *testing.T) {
	c := conversationOf(12)
	c[8].Content = "" // empty candidate; snapping tries 8, then 7
	Apply(c, claude)

	require.Equal(t, []int{0, 7}, markedIndices(c))
}

func TestApply_Idempotent(t *testing.T) {
	c := conversationOf(26)
	Apply(c, claude)
	first := markedIndices(c)

	Apply(c, claude)
	require.Equal(t, first, markedIndices(c))
}

func TestApply_MarkerOnLastSegment(t *testing.T) {
	c := conversationOf(10)
	c[8] = chat.Message{Role: chat.RoleAssistant, Parts: []chat.Part{
		{Type: chat.PartText, Text: "first"},
		{Type: chat.PartText, Text: "second"},
	}}
	Apply(c, claude)

	require.False(t, c[8].Parts[0].Cache)
	require.True(t, c[8].Parts[1].Cache)
}

func TestApply_NeverReordersMessages(t *testing.T) {
	c := conversationOf(20)
	var texts []string
	for _, m := range c {
		texts = append(texts, m.Text())
	}
	Apply(c, claude)

	require.Len(t, c, 20)
	for i, m := range c {
		require.Equal(t, texts[i], m.Text())
	}
}
