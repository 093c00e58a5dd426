// Package session manages chat-companion conversation history on
// disk. One JSON file per session; archived sessions move to an
// archive/ subdirectory, deleted sessions are unlinked.
package session

// Turn is one exchange in a conversation.
type Turn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Metadata tracks session lifecycle and discussion topics.
type Metadata struct {
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time,omitempty"`
	TotalTurns      int      `json:"total_turns"`
	TopicsDiscussed []string `json:"topics_discussed"`
}

// Session is the persistent conversation record.
type Session struct {
	SessionID         string   `json:"session_id"`
	UserID            string   `json:"user_id"`
	ConversationTurns []Turn   `json:"conversation_turns"`
	SessionMetadata   Metadata `json:"session_metadata"`
}

func cloneSession(s *Session) Session {
	out := *s
	out.ConversationTurns = append([]Turn(nil), s.ConversationTurns...)
	out.SessionMetadata.TopicsDiscussed = append([]string(nil), s.SessionMetadata.TopicsDiscussed...)
	return out
}
