package identity

import (
	"context"
	"errors"
)

// Kind tags an identifier with the one capability set it exposes.
type Kind int

const (
	// KindPerson is somebody the bot can talk to directly.
	KindPerson Kind = iota
	// KindRoomOccupant is a person seen through a room they are in.
	KindRoomOccupant
	// KindRoom is a multi-user chat room.
	KindRoom
)

func (k Kind) String() string {
	switch k {
	case KindPerson:
		return "person"
	case KindRoomOccupant:
		return "occupant"
	case KindRoom:
		return "room"
	default:
		return "unknown"
	}
}

var (
	// ErrRoomNotJoined is returned by room operations that need the bot inside the room.
	ErrRoomNotJoined = errors.New("room not joined")
	// ErrRoomDoesNotExist is returned when operating on a room that does not exist.
	ErrRoomDoesNotExist = errors.New("room does not exist")
	// ErrUserDoesNotExist is returned when operating on an unknown user.
	ErrUserDoesNotExist = errors.New("user does not exist")
	// ErrNotSupported is returned by adapters for operations their network lacks.
	ErrNotSupported = errors.New("not supported by backend")
)

// Identifier is anything the bot can talk to. Concrete identifiers are
// built by adapters; callers get them from messages or BuildIdentifier.
type Identifier interface {
	Kind() Kind
	String() string
}

// Person exposes the fields an adapter may know about a user.
// Only ACLAttr is guaranteed to be populated; everything else may be empty.
type Person interface {
	Identifier

	// Person is the backend specific unique id of the user.
	Person() string
	// Client is the device or client the person talks from.
	Client() string
	Nick() string
	// ACLAttr is the value access control matches against.
	ACLAttr() string
	Fullname() string
}

// RoomOccupant is a person tied to the room they were seen in.
type RoomOccupant interface {
	Person

	Room() Room
}

// Room is a multi-user chat room. The occupant list is a lookup of who is
// currently inside, the room does not own them.
type Room interface {
	Identifier

	// Join enters the room, creating it first when it does not exist.
	Join(ctx context.Context, username, password string) error
	Leave(ctx context.Context, reason string) error
	// Create is a no-op for rooms that already exist.
	Create(ctx context.Context) error
	// Destroy is a no-op for rooms that do not exist.
	Destroy(ctx context.Context) error
	Invite(ctx context.Context, people ...Identifier) error

	Exists() bool
	Joined() bool

	// Topic returns ErrRoomNotJoined before the room is joined. Backends
	// that cannot tell "no topic" from "empty topic" return "".
	Topic() (string, error)
	SetTopic(ctx context.Context, topic string) error

	// Occupants returns ErrRoomNotJoined before the room is joined.
	Occupants() ([]RoomOccupant, error)
}

// IsPerson reports whether id is person-like, that is a Person or a RoomOccupant.
func IsPerson(id Identifier) bool {
	if id == nil {
		return false
	}
	switch id.Kind() {
	case KindPerson, KindRoomOccupant:
		return true
	default:
		return false
	}
}

// IsRoom reports whether id is a Room.
func IsRoom(id Identifier) bool {
	return id != nil && id.Kind() == KindRoom
}

// AsPerson narrows id to a Person when its kind allows it.
func AsPerson(id Identifier) (Person, bool) {
	if !IsPerson(id) {
		return nil, false
	}
	p, ok := id.(Person)
	return p, ok
}

// AsOccupant narrows id to a RoomOccupant when its kind allows it.
func AsOccupant(id Identifier) (RoomOccupant, bool) {
	if id == nil || id.Kind() != KindRoomOccupant {
		return nil, false
	}
	o, ok := id.(RoomOccupant)
	return o, ok
}

// AsRoom narrows id to a Room when its kind allows it.
func AsRoom(id Identifier) (Room, bool) {
	if !IsRoom(id) {
		return nil, false
	}
	r, ok := id.(Room)
	return r, ok
}

// ACLAttr returns the ACL attribute of a person-like identifier, or "".
func ACLAttr(id Identifier) string {
	p, ok := AsPerson(id)
	if !ok {
		return ""
	}
	return p.ACLAttr()
}

// SameACL reports whether two identifiers match for access control.
// Identifiers without an ACL attribute never match.
func SameACL(a, b Identifier) bool {
	attrA := ACLAttr(a)
	if attrA == "" {
		return false
	}
	return attrA == ACLAttr(b)
}
