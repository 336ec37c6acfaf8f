package session

import (
	"strings"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/caam1406/wahook/pkg/bus"
)

// Normalize converts one raw inbound transport event into a canonical
// message. It is a pure function: the same event always yields the same
// record. The second return is false when the event must be skipped
// (self-originated or broadcast traffic).
func Normalize(evt *events.Message) (bus.CanonicalMessage, bool) {
	if evt == nil || evt.Info.IsFromMe {
		return bus.CanonicalMessage{}, false
	}
	if evt.Info.Chat.Server == types.BroadcastServer {
		return bus.CanonicalMessage{}, false
	}

	conversationID := evt.Info.Chat.String()

	senderName := evt.Info.PushName
	if senderName == "" {
		senderName = "Unknown"
	}

	return bus.CanonicalMessage{
		ID:             evt.Info.ID,
		ConversationID: conversationID,
		SenderName:     senderName,
		SenderAddress:  addressOf(conversationID),
		Timestamp:      evt.Info.Timestamp.Unix(),
		Body:           extractBody(evt.Message),
		Kind:           classifyContent(evt.Message),
		IsGroup:        evt.Info.Chat.Server == types.GroupServer,
	}, true
}

// addressOf derives the bare address from a conversation identifier: the part
// before the domain separator.
func addressOf(conversationID string) string {
	if i := strings.IndexByte(conversationID, '@'); i >= 0 {
		return conversationID[:i]
	}
	return conversationID
}

// extractBody returns the best-effort text of a message: plain text, else
// extended text, else image caption, else video caption, else empty.
func extractBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if t := msg.GetConversation(); t != "" {
		return t
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if img := msg.GetImageMessage(); img != nil && img.GetCaption() != "" {
		return img.GetCaption()
	}
	if vid := msg.GetVideoMessage(); vid != nil && vid.GetCaption() != "" {
		return vid.GetCaption()
	}
	return ""
}

// classifyContent assigns exactly one content kind by checking sub-payloads
// in fixed priority order: text forms first, then media, then location and
// contact.
func classifyContent(msg *waE2E.Message) bus.ContentKind {
	switch {
	case msg == nil:
		return bus.KindUnknown
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return bus.KindText
	case msg.GetImageMessage() != nil:
		return bus.KindImage
	case msg.GetVideoMessage() != nil:
		return bus.KindVideo
	case msg.GetAudioMessage() != nil:
		return bus.KindAudio
	case msg.GetDocumentMessage() != nil:
		return bus.KindDocument
	case msg.GetStickerMessage() != nil:
		return bus.KindSticker
	case msg.GetLocationMessage() != nil:
		return bus.KindLocation
	case msg.GetContactMessage() != nil:
		return bus.KindContact
	default:
		return bus.KindUnknown
	}
}
