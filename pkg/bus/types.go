package bus

// Provenance records where a message came from. Only user-originated
// messages are ever relayed; everything the bridge itself produced is
// dropped at the first guard that sees it.
type Provenance int

const (
	// UserOriginated is a message typed by a person on either side.
	UserOriginated Provenance = iota
	// RelayOriginated is a message the bridge posted itself (its own chat
	// messages, or transport envelopes flagged as relayed).
	RelayOriginated
	// EchoOriginated is a ledger record that is a return trip of something
	// the bridge submitted (FromAOS marker or the bridge's own nickname).
	EchoOriginated
)

func (p Provenance) String() string {
	switch p {
	case UserOriginated:
		return "user"
	case RelayOriginated:
		return "relay"
	case EchoOriginated:
		return "echo"
	default:
		return "unknown"
	}
}

// Relayable is the single loop guard shared by both halves of the bridge.
func Relayable(p Provenance) bool {
	return p == UserOriginated
}

// ChatEvent is a message observed in the bridged chat channel.
type ChatEvent struct {
	MessageID  string     `json:"message_id,omitempty"`
	AuthorID   string     `json:"author_id"`
	AuthorName string     `json:"author_name"`
	ChannelID  string     `json:"channel_id"`
	Content    string     `json:"content"`
	Provenance Provenance `json:"provenance"`
}

// RelayMessage is the envelope carried on the local transport between the
// chat-facing and ledger-facing halves.
type RelayMessage struct {
	ID          string `json:"id,omitempty"`
	Content     string `json:"content"`
	Command     string `json:"command,omitempty"`
	Lang        string `json:"lang,omitempty"`
	UserID      string `json:"userId,omitempty"`
	FromDevChat bool   `json:"_fromDevChat,omitempty"`
}

// InboundMessage is one unit of work for the chat half: either a chat
// event or an envelope received from the ledger half.
type InboundMessage struct {
	Event    *ChatEvent
	Envelope *RelayMessage
}

type OutboundMessage struct {
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}
