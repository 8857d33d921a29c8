package app

// Message and conversation kinds as stored.
const (
	KindText  = "text"
	KindImage = "image"
	KindGroup = "group"
)

// Conversation is one group chat. ID is the store-assigned key; the
// collection preserves store insertion order.
type Conversation struct {
	ID        string
	Name      string
	CreatedBy string
	Kind      string
}

// Message is one chat message. Payload is literal text for KindText and a
// blob retrieval reference for KindImage. CreatedAt is epoch milliseconds.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Kind           string
	Payload        string
	CreatedAt      int64
}

// Wire records. Field names are fixed by the store schema.
type conversationRecord struct {
	Name      string `json:"name"`
	CreatedBy string `json:"createdBy"`
	Kind      string `json:"type"`
}

type messageRecord struct {
	Kind      string `json:"type"`
	Payload   string `json:"content"`
	SenderID  string `json:"senderId"`
	CreatedAt int64  `json:"timestamp"`
}

const conversationsPath = "chats"

func messagesPath(conversationID string) string {
	return "messages/" + conversationID
}
