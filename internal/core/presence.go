package core

import (
	"strings"

	"github.com/vovakirdan/wirebot/internal/identity"
)

// Status is a presence status. Backends may use values beyond the constants below.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusAway    Status = "away"
	StatusDND     Status = "dnd"
)

// Presence is a change of status or status message for a person or occupant.
type Presence struct {
	identifier identity.Identifier
	status     Status
	message    string
}

// NewPresence validates and builds a presence. An empty status means the
// status did not change; an empty message means there is no status message.
func NewPresence(id identity.Identifier, status Status, message string) (*Presence, error) {
	if id == nil {
		return nil, &ValidationError{Type: "presence", Err: ErrPresenceIdentifier}
	}
	if status == "" && message == "" {
		return nil, &ValidationError{Type: "presence", Err: ErrPresenceEmpty}
	}
	return &Presence{identifier: id, status: status, message: message}, nil
}

// Identifier returns who the presence is about.
func (p *Presence) Identifier() identity.Identifier {
	return p.identifier
}

// Occupant returns the identifier as a room occupant when it is one.
func (p *Presence) Occupant() (identity.RoomOccupant, bool) {
	return identity.AsOccupant(p.identifier)
}

// Nick returns the nick of a person-like identifier, or "".
func (p *Presence) Nick() string {
	person, ok := identity.AsPerson(p.identifier)
	if !ok {
		return ""
	}
	return person.Nick()
}

func (p *Presence) Status() Status {
	return p.status
}

// Message is the human readable status message, like "BRB, washing the dishes".
func (p *Presence) Message() string {
	return p.message
}

func (p *Presence) String() string {
	var parts []string
	if nick := p.Nick(); nick != "" {
		parts = append(parts, "Nick:"+nick)
	}
	parts = append(parts, "Idd:"+p.identifier.String())
	if p.status != "" {
		parts = append(parts, "Status:"+string(p.status))
	}
	if p.message != "" {
		parts = append(parts, "Msg:"+p.message)
	}
	return strings.Join(parts, " ")
}
