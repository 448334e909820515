package store

// Conversation kind tags, normalized from the remote product thread type.
const (
	KindOneToOne = "oneToOne"
	KindGroup    = "group"
	KindChannel  = "channel"
	KindMeeting  = "meeting"
	KindUnknown  = "unknown"
)

// Conversation represents a synced remote conversation.
type Conversation struct {
	ID                 string
	DisplayName        string
	Kind               string
	LastMessagePreview string
	LastMessageFrom    string
	LastActivity       string // ISO-8601, used as the freshness sort key
	MemberNames        string
	RawPayload         string
}

// Message represents a synced message. Message ids are only unique within
// a conversation, so identity is (MsgID, ConversationID).
type Message struct {
	MsgID          string
	ConversationID string
	SenderName     string
	BodyPlain      string
	BodyRaw        string
	MessageType    string
	ComposeTime    string // ISO-8601
	IsSelf         bool
	RawPayload     string
}

// SearchHit pairs a matched message with its conversation's display name.
type SearchHit struct {
	Message          Message
	ConversationName string
}

// ConversationMessages groups a conversation with its recent messages.
type ConversationMessages struct {
	Conversation Conversation
	Messages     []Message
}

// Stats holds cache row counts and asset sizes.
type Stats struct {
	Conversations int64
	Messages      int64
	Assets        int64
	AssetBytes    int64
}
