// Package identitytest provides in-memory identifiers for tests.
package identitytest

import (
	"context"

	"github.com/vovakirdan/wirebot/internal/identity"
)

// User is a fixed set of person fields.
type User struct {
	ID       string
	ClientID string
	NickName string
	ACL      string
	Name     string
}

// NewUser returns a person whose every field derives from name.
func NewUser(name string) *User {
	return &User{ID: name, NickName: name, ACL: name, Name: name}
}

func (p *User) Kind() identity.Kind {
	return identity.KindPerson
}

func (p *User) String() string {
	return p.ID
}

func (p *User) Person() string {
	return p.ID
}

func (p *User) Client() string {
	return p.ClientID
}

func (p *User) Nick() string {
	return p.NickName
}

func (p *User) ACLAttr() string {
	return p.ACL
}

func (p *User) Fullname() string {
	return p.Name
}

// Occupant is a User seen inside a Room.
type Occupant struct {
	User
	In *Room
}

// NewOccupant returns an occupant of room and adds it to the room's occupant list.
func NewOccupant(name string, room *Room) *Occupant {
	o := &Occupant{User: *NewUser(name), In: room}
	room.Members = append(room.Members, o)
	return o
}

func (o *Occupant) Kind() identity.Kind {
	return identity.KindRoomOccupant
}

func (o *Occupant) String() string {
	return o.In.Name + "/" + o.NickName
}

func (o *Occupant) Room() identity.Room {
	return o.In
}

// Room records the calls made on it instead of talking to a network.
type Room struct {
	Name     string
	Present  bool
	IsJoined bool
	Subject  string
	Members  []identity.RoomOccupant
	Invited  []identity.Identifier
}

// NewRoom returns an existing, not yet joined room.
func NewRoom(name string) *Room {
	return &Room{Name: name, Present: true}
}

func (r *Room) Kind() identity.Kind {
	return identity.KindRoom
}

func (r *Room) String() string {
	return r.Name
}

func (r *Room) Join(_ context.Context, _, _ string) error {
	r.Present = true
	r.IsJoined = true
	return nil
}

func (r *Room) Leave(_ context.Context, _ string) error {
	r.IsJoined = false
	return nil
}

func (r *Room) Create(_ context.Context) error {
	r.Present = true
	return nil
}

func (r *Room) Destroy(_ context.Context) error {
	r.Present = false
	r.IsJoined = false
	return nil
}

func (r *Room) Invite(_ context.Context, people ...identity.Identifier) error {
	r.Invited = append(r.Invited, people...)
	return nil
}

func (r *Room) Exists() bool {
	return r.Present
}

func (r *Room) Joined() bool {
	return r.IsJoined
}

func (r *Room) Topic() (string, error) {
	if !r.IsJoined {
		return "", identity.ErrRoomNotJoined
	}
	return r.Subject, nil
}

func (r *Room) SetTopic(_ context.Context, topic string) error {
	if !r.IsJoined {
		return identity.ErrRoomNotJoined
	}
	r.Subject = topic
	return nil
}

func (r *Room) Occupants() ([]identity.RoomOccupant, error) {
	if !r.IsJoined {
		return nil, identity.ErrRoomNotJoined
	}
	return r.Members, nil
}

var (
	_ identity.Person       = (*User)(nil)
	_ identity.RoomOccupant = (*Occupant)(nil)
	_ identity.Room         = (*Room)(nil)
)
