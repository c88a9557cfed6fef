package chat

// Conversation is the full ordered message sequence. The turn engine owns
// the single mutable instance; collaborators read it or mutate markers in
// place but never reorder or delete entries.
type Conversation []Message

// NewConversation seeds a conversation with its system message. The system
// message is always at index 0 and there is never more than one.
func NewConversation(systemPrompt string) Conversation {
	return Conversation{{Role: RoleSystem, Content: systemPrompt}}
}

// Append adds messages to the tail.
func (c *Conversation) Append(msgs ...Message) {
	*c = append(*c, msgs...)
}

// Clone returns a deep copy, used for undo snapshots.
func (c Conversation) Clone() Conversation {
	out := make(Conversation, len(c))
	for i, m := range c {
		out[i] = m.Clone()
	}
	return out
}

// LastUserInput returns the content of the most recent user message, or ""
// if there is none.
func (c Conversation) LastUserInput() string {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Role == RoleUser {
			return c[i].Text()
		}
	}
	return ""
}
