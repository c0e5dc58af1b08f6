package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vovakirdan/wirebot/internal/identity"
	"github.com/vovakirdan/wirebot/internal/identity/identitytest"
)

func TestKindClassification(t *testing.T) {
	room := identitytest.NewRoom("general")
	tests := []struct {
		name     string
		id       identity.Identifier
		isPerson bool
		isRoom   bool
	}{
		{name: "person", id: identitytest.NewUser("alice"), isPerson: true},
		{name: "occupant", id: identitytest.NewOccupant("bob", room), isPerson: true},
		{name: "room", id: room, isRoom: true},
		{name: "nil", id: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isPerson, identity.IsPerson(tt.id))
			assert.Equal(t, tt.isRoom, identity.IsRoom(tt.id))
		})
	}
}

func TestNarrowing(t *testing.T) {
	room := identitytest.NewRoom("general")
	occ := identitytest.NewOccupant("bob", room)

	p, ok := identity.AsPerson(occ)
	assert.True(t, ok)
	assert.Equal(t, "bob", p.Nick())

	o, ok := identity.AsOccupant(occ)
	assert.True(t, ok)
	assert.Equal(t, identity.Room(room), o.Room())

	_, ok = identity.AsOccupant(identitytest.NewUser("alice"))
	assert.False(t, ok)

	_, ok = identity.AsRoom(occ)
	assert.False(t, ok)

	r, ok := identity.AsRoom(room)
	assert.True(t, ok)
	assert.Equal(t, "general", r.String())
}

func TestSameACLUsesAttributeOnly(t *testing.T) {
	room := identitytest.NewRoom("general")
	direct := identitytest.NewUser("alice")
	direct.ClientID = "phone"
	inRoom := identitytest.NewOccupant("alice", room)
	inRoom.ClientID = "laptop"

	assert.True(t, identity.SameACL(direct, inRoom), "same aclattr from different identifiers")

	other := identitytest.NewUser("alice")
	other.ACL = "mallory"
	assert.False(t, identity.SameACL(direct, other), "same person id but different aclattr")

	anonymous := identitytest.NewUser("ghost")
	anonymous.ACL = ""
	assert.False(t, identity.SameACL(anonymous, anonymous))
	assert.False(t, identity.SameACL(room, room))
}

func TestRoomNotJoinedErrors(t *testing.T) {
	room := identitytest.NewRoom("general")

	_, err := room.Topic()
	assert.ErrorIs(t, err, identity.ErrRoomNotJoined)
	_, err = room.Occupants()
	assert.ErrorIs(t, err, identity.ErrRoomNotJoined)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "person", identity.KindPerson.String())
	assert.Equal(t, "occupant", identity.KindRoomOccupant.String())
	assert.Equal(t, "room", identity.KindRoom.String())
	assert.Equal(t, "unknown", identity.Kind(42).String())
}
