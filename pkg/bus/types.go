package bus

// ContentKind classifies the payload of one inbound chat event. Exactly one
// kind is assigned per message.
type ContentKind string

const (
	KindText     ContentKind = "text"
	KindImage    ContentKind = "image"
	KindVideo    ContentKind = "video"
	KindAudio    ContentKind = "audio"
	KindDocument ContentKind = "document"
	KindSticker  ContentKind = "sticker"
	KindLocation ContentKind = "location"
	KindContact  ContentKind = "contact"
	KindUnknown  ContentKind = "unknown"
)

// CanonicalMessage is the normalized, transport-agnostic representation of one
// inbound chat event. It is created once per event and immutable afterwards.
type CanonicalMessage struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderName     string      `json:"sender_name"`
	SenderAddress  string      `json:"sender_address"`
	Timestamp      int64       `json:"timestamp"`
	Body           string      `json:"body"`
	Kind           ContentKind `json:"kind"`
	IsGroup        bool        `json:"is_group"`
}

// StateEvent reports a session state change for observers.
type StateEvent struct {
	State    string `json:"state"`
	Previous string `json:"previous"`
	Reason   string `json:"reason,omitempty"`
}

// QRCodeEvent reports pairing material availability for observers.
type QRCodeEvent struct {
	Event string `json:"event"`          // "code", "pair_code", "success", "timeout"
	Code  string `json:"code,omitempty"` // raw QR data or numeric pairing code
}
