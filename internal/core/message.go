package core

import "github.com/vovakirdan/wirebot/internal/identity"

// Message is a chat message sent or received by the bot.
type Message struct {
	Body    string
	From    identity.Identifier
	To      identity.Identifier
	Delayed bool
	Extras  map[string]any
}

// NewMessage builds a message with only a body set.
func NewMessage(body string) *Message {
	return &Message{Body: body, Extras: make(map[string]any)}
}

// Clone returns a new message with the same fields. Extras is shared, not copied.
func (m *Message) Clone() *Message {
	return &Message{
		Body:    m.Body,
		From:    m.From,
		To:      m.To,
		Delayed: m.Delayed,
		Extras:  m.Extras,
	}
}

// IsDirect reports whether the message is addressed to a person.
func (m *Message) IsDirect() bool {
	return identity.IsPerson(m.To)
}

// IsGroup reports whether the message is addressed to a room.
func (m *Message) IsGroup() bool {
	return identity.IsRoom(m.To)
}

func (m *Message) String() string {
	return m.Body
}
