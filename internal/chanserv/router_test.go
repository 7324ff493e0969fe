package chanserv

import (
	"testing"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func route(r *Router, s *Store, source, command string, params ...string) []Effect {
	return r.Route(s, ircmsg.MakeMessage(nil, source, command, params...))
}

func TestRouterCodes(t *testing.T) {
	codes := NewRouter().Codes()
	for _, code := range []string{RPL_WHOISUSER, RPL_BANLIST, RPL_WHOSPCRPL, "NOTICE", "MODE", ERR_CHANOPRIVSNEEDED} {
		assert.Contains(t, codes, code)
	}
	assert.NotContains(t, codes, "PRIVMSG")
}

func TestRouterIgnoresUnrequestedReplies(t *testing.T) {
	r := NewRouter()
	s := NewStore("test", Capabilities{}, Services{}, nil)

	assert.Nil(t, route(r, s, serverName, RPL_WHOISUSER, "bot", "bob", "~bob", "host", "*", "Bob"))
	assert.Nil(t, route(r, s, serverName, RPL_ENDOFWHOIS, "bot", "bob", "End"))
	assert.Nil(t, route(r, s, serverName, RPL_BANLIST, "bot", "#chan", "a!b@c"))
	assert.Nil(t, route(r, s, serverName, RPL_ENDOFBANLIST, "bot", "#chan", "End"))
	assert.Nil(t, route(r, s, serverName, RPL_ENDOFWHO, "bot", "#chan", "End"))
	assert.Nil(t, route(r, s, serverName, "PRIVMSG", "#chan", "hello"))
	_, ok := s.Identity("bob")
	assert.False(t, ok)
}

func TestRouterWhoisFolding(t *testing.T) {
	r := NewRouter()
	s := NewStore("test", Capabilities{}, Services{}, nil)
	s.startResolving("Bob")

	route(r, s, serverName, RPL_WHOISUSER, "bot", "Bob", "~bob", "192.0.2.7", "*", "Bob Smith")
	route(r, s, serverName, RPL_WHOISREGNICK, "bot", "Bob", "has identified for this nick")
	route(r, s, serverName, RPL_WHOISACCOUNT, "bot", "Bob", "bobacct", "is logged in as")
	effects := route(r, s, serverName, RPL_ENDOFWHOIS, "bot", "Bob", "End of /WHOIS list.")
	require.Len(t, effects, 1)
	assert.Equal(t, EffectRedrive, effects[0].Kind)

	id, ok := s.Identity("bob")
	require.True(t, ok)
	assert.Equal(t, "Bob!~bob@192.0.2.7", id.NUH())
	assert.Equal(t, "192.0.2.7", id.IP)
	// 330 names the account, 307 only says the nick is registered
	assert.Equal(t, "bobacct", id.Account)
	assert.False(t, s.Resolving("bob"))
}

func TestRouterServicesNotices(t *testing.T) {
	r := NewRouter()
	s := NewStore("test", Capabilities{Atheme: true}, Services{}, nil)

	assert.Nil(t, route(r, s, nickServ, "NOTICE", "bot", "Access flag(s) +Vt in #topics"))
	assert.True(t, s.CanTopic("#topics"))
	assert.False(t, s.CanAkick("#topics"))

	// Only services are trusted
	route(r, s, "mallory!m@evil.example", "NOTICE", "bot", "Access flag(s) +f in #victim")
	assert.False(t, s.CanAkick("#victim"))

	effects := route(r, s, chanServ, "NOTICE", "bot", "Unbanned \x02bot\x02 on \x02#chan\x02.")
	require.Len(t, effects, 1)
	assert.Equal(t, EffectSend, effects[0].Kind)
	assert.Equal(t, "JOIN", effects[0].Command)
	assert.Equal(t, []string{"#chan"}, effects[0].Params)

	effects = route(r, s, chanServ, "NOTICE", "bot", "Channel \x02#chan\x02 key is: \x02sekrit\x02")
	require.Len(t, effects, 1)
	assert.Equal(t, []string{"#chan", "sekrit"}, effects[0].Params)

	effects = route(r, s, chanServ, "NOTICE", "bot", "\x02bob\x02 has been added to the access list.")
	require.Len(t, effects, 1)
	assert.Equal(t, EffectNotice, effects[0].Kind)
	assert.Equal(t, "bob has been added to the access list.", effects[0].Text)
}

func TestRouterRefusalFollowsRequestOrder(t *testing.T) {
	r := NewRouter()
	s := NewStore("test", Capabilities{}, Services{}, nil)
	refuse := func() []Effect {
		return route(r, s, chanServ, "NOTICE", "bot", "You are not authorized to perform this operation.")
	}

	s.noteServiceRequest("PRIVMSG", []string{"ChanServ", "OP #one"})
	s.noteServiceRequest("PRIVMSG", []string{"ChanServ", "TOPIC #two hello"})
	s.noteServiceRequest("PRIVMSG", []string{"ChanServ", "OP #three"})
	s.noteServiceRequest("NOTICE", []string{"ChanServ", "OP #four"})
	s.noteServiceRequest("PRIVMSG", []string{"NickServ", "LISTCHANS"})

	assert.True(t, s.opGranted("#one"))

	effects := refuse()
	require.Len(t, effects, 1, "TOPIC #two is the one refused")
	assert.Equal(t, EffectNotice, effects[0].Kind)

	effects = refuse()
	require.Len(t, effects, 2)
	assert.Equal(t, EffectDenied, effects[1].Kind)
	assert.Equal(t, "#three", effects[1].Channel)
	assert.False(t, s.opGranted("#three"))

	effects = refuse()
	require.Len(t, effects, 1)
	assert.Equal(t, EffectNotice, effects[0].Kind)
}

func TestRouterPlainAnswersSkipOpRequests(t *testing.T) {
	r := NewRouter()
	s := NewStore("test", Capabilities{}, Services{}, nil)

	s.noteServiceRequest("PRIVMSG", []string{"ChanServ", "OP #one"})
	s.noteServiceRequest("PRIVMSG", []string{"ChanServ", "INVITE #two"})
	route(r, s, chanServ, "NOTICE", "bot", "You have been invited to #two.")
	require.Len(t, s.serviceQueue, 1)

	effects := route(r, s, chanServ, "NOTICE", "bot", "You are not authorized to perform this operation.")
	require.Len(t, effects, 2)
	assert.Equal(t, "#one", effects[1].Channel)
}

func TestRouterJoinHelpers(t *testing.T) {
	r := NewRouter()
	s := NewStore("test", Capabilities{Atheme: true}, Services{ChanServ: "CS"}, nil)

	tests := []struct {
		code string
		want string
	}{
		{ERR_BANNEDFROMCHAN, "UNBAN #chan"},
		{ERR_CANNOTSENDTOCHAN, "UNBAN #chan"},
		{ERR_INVITEONLYCHAN, "INVITE #chan"},
		{ERR_CHANNELISFULL, "INVITE #chan"},
		{ERR_BADCHANNELKEY, "GETKEY #chan"},
	}
	for _, tt := range tests {
		effects := route(r, s, serverName, tt.code, "bot", "#chan", "Cannot join channel")
		require.Len(t, effects, 1, tt.code)
		assert.Equal(t, []string{"CS", tt.want}, effects[0].Params, tt.code)
	}

	effects := route(r, s, "CS!CS@services.", "INVITE", "bot", "#chan")
	require.Len(t, effects, 1)
	assert.Equal(t, "JOIN", effects[0].Command)

	effects = route(r, s, serverName, RPL_ENDOFMOTD, "bot", "End of /MOTD command.")
	require.Len(t, effects, 1)
	assert.Equal(t, []string{"NickServ", "LISTCHANS"}, effects[0].Params)
}

func TestRouterModeGrants(t *testing.T) {
	r := NewRouter()
	s := NewStore("test", Capabilities{}, Services{}, nil)

	effects := route(r, s, chanServ, "MODE", "#chan", "+vo", "carol", "bot")
	require.Len(t, effects, 1)
	assert.Equal(t, Effect{Kind: EffectElevated, Channel: "#chan", Nick: "bot"}, effects[0])

	assert.Empty(t, route(r, s, chanServ, "MODE", "#chan", "-o", "bot"))
	assert.Empty(t, route(r, s, "op!o@host", "MODE", "#chan", "+o", "bot"))
}

func TestRouterChanOpPrivsNeeded(t *testing.T) {
	r := NewRouter()
	s := NewStore("test", Capabilities{}, Services{}, nil)

	effects := route(r, s, serverName, ERR_CHANOPRIVSNEEDED, "bot", "#chan", "You're not a channel operator")
	require.Len(t, effects, 2)
	assert.Equal(t, "#chan: You're not a channel operator", effects[0].Text)
	assert.Equal(t, Effect{Kind: EffectDenied, Channel: "#chan"}, effects[1])
}
