package teams

import (
	"encoding/json"
	"strings"

	"github.com/tmzdev/tmz/internal/htmltext"
	"github.com/tmzdev/tmz/internal/store"
)

// renderableTypes is the allow-list of message types worth caching.
// Everything else (member adds, call events, control payloads) is skipped.
var renderableTypes = map[string]bool{
	"Text":                       true,
	"RichText":                   true,
	"RichText/Html":              true,
	"RichText/UriObject":         true,
	"RichText/Media_GenericFile": true,
	"RichText/Media_Card":        true,
}

// ParseConversation maps a raw conversation payload onto a cache row. The
// payload is untyped; every field read substitutes an empty default when
// absent so ingestion never fails on a missing optional field.
func ParseConversation(payload map[string]any) *store.Conversation {
	tp := sub(payload, "threadProperties")
	lm := sub(payload, "lastMessage")

	topic := str(tp, "topic")
	productType := str(tp, "productThreadType")
	lastFrom := str(lm, "imdisplayname")

	// Channels carry a topic; 1:1 and group chats fall back to the last
	// sender, then the product type.
	displayName := topic
	if displayName == "" {
		displayName = lastFrom
	}
	if displayName == "" {
		displayName = productType
	}

	raw, _ := json.Marshal(payload)

	return &store.Conversation{
		ID:                 str(payload, "id"),
		DisplayName:        displayName,
		Kind:               kindFromProductType(productType),
		LastMessagePreview: htmltext.Strip(str(lm, "content")),
		LastMessageFrom:    lastFrom,
		LastActivity:       str(lm, "composetime"),
		MemberNames:        memberNames(payload),
		RawPayload:         string(raw),
	}
}

// ParseMessage maps a raw message payload onto a cache row, or returns nil
// for system/control payloads that are not renderable.
func ParseMessage(payload map[string]any, conversationID string) *store.Message {
	msgType := str(payload, "messagetype")
	if !renderableTypes[msgType] {
		return nil
	}

	bodyRaw := str(payload, "content")
	isSelf, _ := payload["isFromMe"].(bool)
	raw, _ := json.Marshal(payload)

	return &store.Message{
		MsgID:          str(payload, "id"),
		ConversationID: conversationID,
		SenderName:     str(payload, "imdisplayname"),
		BodyPlain:      htmltext.Strip(bodyRaw),
		BodyRaw:        bodyRaw,
		MessageType:    msgType,
		ComposeTime:    str(payload, "composetime"),
		IsSelf:         isSelf,
		RawPayload:     string(raw),
	}
}

// kindFromProductType normalizes the vendor's product thread type into one
// of the cache's categorical kind tags.
func kindFromProductType(productType string) string {
	pt := strings.ToLower(productType)
	switch {
	case strings.Contains(pt, "onetoone"):
		return store.KindOneToOne
	case strings.Contains(pt, "meeting"):
		return store.KindMeeting
	case strings.Contains(pt, "channel") || strings.Contains(pt, "space") || strings.Contains(pt, "topic"):
		return store.KindChannel
	case strings.Contains(pt, "group"):
		return store.KindGroup
	default:
		return store.KindUnknown
	}
}

// memberNames joins member display names when the payload includes them.
// Many list responses omit members entirely; that's fine.
func memberNames(payload map[string]any) string {
	arr, ok := payload["members"].([]any)
	if !ok {
		return ""
	}
	var names []string
	for _, m := range arr {
		member, ok := m.(map[string]any)
		if !ok {
			continue
		}
		name := str(member, "friendlyName")
		if name == "" {
			name = str(member, "displayName")
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func sub(m map[string]any, key string) map[string]any {
	s, _ := m[key].(map[string]any)
	if s == nil {
		return map[string]any{}
	}
	return s
}
