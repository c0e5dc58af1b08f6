package wirechat

import (
	"context"
	"sort"
	"sync"

	"github.com/vovakirdan/wirebot/internal/identity"
)

// Person is a wirechat user. Usernames are unique per server, so the
// username is the id, the nick and the ACL attribute at once.
type Person struct {
	username string
}

// NewPerson builds a person for username.
func NewPerson(username string) *Person {
	return &Person{username: username}
}

func (p *Person) Kind() identity.Kind {
	return identity.KindPerson
}

func (p *Person) String() string {
	return p.username
}

func (p *Person) Person() string {
	return p.username
}

// Client is always empty, the protocol does not expose devices.
func (p *Person) Client() string {
	return ""
}

func (p *Person) Nick() string {
	return p.username
}

func (p *Person) ACLAttr() string {
	return p.username
}

func (p *Person) Fullname() string {
	return ""
}

// Occupant is a user seen through a room.
type Occupant struct {
	user *Person
	room *Room
}

func (o *Occupant) Kind() identity.Kind {
	return identity.KindRoomOccupant
}

// String renders "#room/nick", which BuildIdentifier parses back.
func (o *Occupant) String() string {
	return o.room.String() + "/" + o.user.username
}

func (o *Occupant) Person() string {
	return o.user.Person()
}

func (o *Occupant) Client() string {
	return o.user.Client()
}

func (o *Occupant) Nick() string {
	return o.user.Nick()
}

func (o *Occupant) ACLAttr() string {
	return o.user.ACLAttr()
}

func (o *Occupant) Fullname() string {
	return o.user.Fullname()
}

func (o *Occupant) Room() identity.Room {
	return o.room
}

// Room is a wirechat room. Rooms are created by the server on first join
// and have no topic.
type Room struct {
	name    string
	adapter *Adapter

	mu        sync.RWMutex
	joined    bool
	occupants map[string]*Occupant
}

func newRoom(name string, a *Adapter) *Room {
	return &Room{name: name, adapter: a, occupants: make(map[string]*Occupant)}
}

func (r *Room) Kind() identity.Kind {
	return identity.KindRoom
}

func (r *Room) String() string {
	return "#" + r.name
}

// Name is the room name without the leading "#".
func (r *Room) Name() string {
	return r.name
}

// Join asks the server to put the bot in the room. The room counts as
// joined once the server echoes the bot's own user_joined event.
// Wirechat rooms have no passwords, so username and password are ignored.
func (r *Room) Join(ctx context.Context, _, _ string) error {
	return r.adapter.joinRoom(ctx, r)
}

// Leave asks the server to remove the bot. The room-left callback is
// delivered on the serve loop, in order with inbound events.
func (r *Room) Leave(ctx context.Context, _ string) error {
	return r.adapter.leaveRoom(ctx, r)
}

// Create is a no-op: the server creates rooms on first join.
func (r *Room) Create(context.Context) error {
	return nil
}

func (r *Room) Destroy(context.Context) error {
	return identity.ErrNotSupported
}

func (r *Room) Invite(context.Context, ...identity.Identifier) error {
	return identity.ErrNotSupported
}

// Exists is always true, any room name can be joined.
func (r *Room) Exists() bool {
	return true
}

func (r *Room) Joined() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.joined
}

func (r *Room) Topic() (string, error) {
	if !r.Joined() {
		return "", identity.ErrRoomNotJoined
	}
	return "", nil
}

func (r *Room) SetTopic(context.Context, string) error {
	return identity.ErrNotSupported
}

// Occupants lists the users seen joining since the bot entered, sorted by nick.
func (r *Room) Occupants() ([]identity.RoomOccupant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.joined {
		return nil, identity.ErrRoomNotJoined
	}

	out := make([]identity.RoomOccupant, 0, len(r.occupants))
	for _, o := range r.occupants {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Nick() < out[j].Nick()
	})
	return out, nil
}

// occupant returns the known occupant for nick, or a detached one.
func (r *Room) occupant(nick string) *Occupant {
	r.mu.RLock()
	o, ok := r.occupants[nick]
	r.mu.RUnlock()
	if ok {
		return o
	}
	return &Occupant{user: NewPerson(nick), room: r}
}

func (r *Room) addOccupant(nick string) *Occupant {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.occupants[nick]; ok {
		return o
	}
	o := &Occupant{user: NewPerson(nick), room: r}
	r.occupants[nick] = o
	return o
}

func (r *Room) removeOccupant(nick string) *Occupant {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.occupants[nick]
	if !ok {
		return &Occupant{user: NewPerson(nick), room: r}
	}
	delete(r.occupants, nick)
	return o
}

// setJoined updates the joined flag and reports whether it changed.
// Leaving forgets every occupant.
func (r *Room) setJoined(joined bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.joined == joined {
		return false
	}
	r.joined = joined
	if !joined {
		r.occupants = make(map[string]*Occupant)
	}
	return true
}

var (
	_ identity.Person       = (*Person)(nil)
	_ identity.RoomOccupant = (*Occupant)(nil)
	_ identity.Room         = (*Room)(nil)
)
