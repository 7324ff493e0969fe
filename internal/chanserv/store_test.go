package chanserv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dalnet/chanops/internal/mask"
)

func TestStoreIdentityFreshness(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore("test", Capabilities{}, Services{}, func() time.Time { return now })

	s.PutIdentity(mask.Identity{Nick: "Bob", Ident: "b", Host: "192.0.2.1"})
	id, ok := s.Identity("bob")
	assert.True(t, ok)
	assert.Equal(t, "192.0.2.1", id.IP)

	now = now.Add(FreshnessWindow)
	_, ok = s.Identity("BOB")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = s.Identity("bob")
	assert.False(t, ok)
}

func TestStoreResolvingExpires(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore("test", Capabilities{}, Services{}, func() time.Time { return now })

	s.startResolving("bob")
	assert.True(t, s.Resolving("Bob"))

	now = now.Add(ActionTimeout)
	assert.False(t, s.Resolving("bob"))
}

func TestStoreAkickBusy(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore("test", Capabilities{Atheme: true}, Services{}, func() time.Time { return now })

	cl := s.channelLists("#one")
	cl.state = fetchCollecting
	cl.started = now
	cl.waiting = map[listKind]bool{listBans: true, listAkicks: true}
	s.akickChannel = "#one"

	assert.False(t, s.akickBusy("#one"))
	assert.True(t, s.akickBusy("#two"))

	assert.False(t, s.endList("#one", listAkicks))
	assert.False(t, s.akickBusy("#two"))
	assert.True(t, s.endList("#one", listBans))
	assert.Equal(t, fetchReady, cl.state)
}

func TestStoreAkickBusyGivesUp(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore("test", Capabilities{Atheme: true}, Services{}, func() time.Time { return now })

	cl := s.channelLists("#one")
	cl.state = fetchCollecting
	cl.started = now
	cl.waiting = map[listKind]bool{listAkicks: true}
	s.akickChannel = "#one"

	now = now.Add(ActionTimeout)
	assert.False(t, s.akickBusy("#two"))
	assert.Empty(t, s.akickChannel)
}

func TestStoreDefaults(t *testing.T) {
	s := NewStore("test", Capabilities{}, Services{}, nil)
	assert.Equal(t, "ChanServ", s.Services.ChanServ)
	assert.Equal(t, "NickServ", s.Services.NickServ)

	s.GrantAkick("#Chan")
	assert.True(t, s.CanAkick("#chan"))
	assert.False(t, s.CanTopic("#chan"))
}
