package service

// Transport-independent inbound events and outbound effects for the curation
// state machine. The dispatcher adapts transport updates into Events and
// plays Effects back out; the machine itself never touches the wire.

type EventKind int

const (
	EventCommand EventKind = iota
	EventText
	EventPhoto
	EventCallback
)

type Event struct {
	Kind   EventKind
	ChatID int64
	UserID int64

	// Message carrying the event; callbacks edit it in place.
	MessageID int64

	Command      string // command name without the slash
	Text         string
	PhotoFileID  string
	CallbackID   string
	CallbackData string
}

type EffectKind int

const (
	// EffectRender sends a new message to the conversation.
	EffectRender EffectKind = iota
	// EffectEdit rewrites an already rendered message in place.
	EffectEdit
	// EffectAck acknowledges a button press, optionally with an alert.
	EffectAck
)

// Button is one cell of a structured button layout: a label and the opaque
// callback token behind it.
type Button struct {
	Label string
	Token string
}

type Effect struct {
	Kind      EffectKind
	ChatID    int64
	MessageID int64
	Text      string
	Buttons   [][]Button

	CallbackID string
	Alert      bool
}

func render(chatID int64, text string, buttons [][]Button) Effect {
	return Effect{Kind: EffectRender, ChatID: chatID, Text: text, Buttons: buttons}
}

func edit(chatID, messageID int64, text string, buttons [][]Button) Effect {
	return Effect{Kind: EffectEdit, ChatID: chatID, MessageID: messageID, Text: text, Buttons: buttons}
}

func ack(callbackID string) Effect {
	return Effect{Kind: EffectAck, CallbackID: callbackID}
}

func alert(callbackID, text string) Effect {
	return Effect{Kind: EffectAck, CallbackID: callbackID, Text: text, Alert: true}
}
