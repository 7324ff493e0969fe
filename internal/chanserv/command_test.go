package chanserv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandRender(t *testing.T) {
	tests := []struct {
		name   string
		cmd    Command
		opped  bool
		expect string
	}{
		{"ban", Command{Kind: CmdBan, Channel: "#c", Add: true, Mode: 'b', Mask: "*!*@h"}, true, "MODE #c +b *!*@h"},
		{"unquiet", Command{Kind: CmdBan, Channel: "#c", Mode: 'q', Mask: "*!*@h"}, true, "MODE #c -q *!*@h"},
		{"forward", Command{Kind: CmdBan, Channel: "#c", Add: true, Mode: 'b', Mask: "*!*@h", Forward: "#f"}, true, "MODE #c +b *!*@h$#f"},
		{"akick", Command{Kind: CmdAkick, Channel: "#c", Add: true, Mask: "*!*@h", Reason: "bye"}, false, "PRIVMSG ChanServ :AKICK #c ADD *!*@h bye"},
		{"akick timed", Command{Kind: CmdAkick, Channel: "#c", Add: true, Mask: "*!*@h", Minutes: 5, Reason: "bye"}, false, "PRIVMSG ChanServ :AKICK #c ADD *!*@h !T 5 bye"},
		{"akick del", Command{Kind: CmdAkick, Channel: "#c", Mask: "*!*@h"}, false, "PRIVMSG ChanServ :AKICK #c DEL *!*@h"},
		{"op direct", Command{Kind: CmdStatus, Channel: "#c", Add: true, Mode: 'o', Target: "bob"}, true, "MODE #c +o bob"},
		{"devoice services", Command{Kind: CmdStatus, Channel: "#c", Mode: 'v', Target: "bob"}, false, "PRIVMSG ChanServ :DEVOICE #c bob"},
		{"kick", Command{Kind: CmdKick, Channel: "#c", Target: "bob", Reason: "go away"}, true, "KICK #c bob :go away"},
		{"remove", Command{Kind: CmdKick, Channel: "#c", Target: "bob", Reason: "bye", Remove: true}, true, "REMOVE #c bob bye"},
		{"mode", Command{Kind: CmdMode, Channel: "#c", Args: []string{"+l", "10"}}, true, "MODE #c +l 10"},
		{"topic query", Command{Kind: CmdTopic, Channel: "#c"}, false, "TOPIC #c"},
		{"access", Command{Kind: CmdAccess, Channel: "#c"}, false, "PRIVMSG ChanServ :ACCESS #c LIST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verb, params := tt.cmd.Render(tt.opped, "ChanServ")
			assert.Equal(t, tt.expect, raw(verb, params))
		})
	}
}

func TestCommandInverse(t *testing.T) {
	ban := Command{Kind: CmdBan, Channel: "#c", Add: true, Mode: 'b', Mask: "*!*@h", Forward: "#f"}
	inv, ok := ban.inverse()
	assert.True(t, ok)
	assert.Equal(t, "MODE #c -b *!*@h$#f", inv.String())

	_, ok = Command{Kind: CmdAkick, Add: true}.inverse()
	assert.False(t, ok)
	_, ok = Command{Kind: CmdKick}.inverse()
	assert.False(t, ok)
	_, ok = inv.inverse()
	assert.False(t, ok)
}

func TestDedupe(t *testing.T) {
	a := Command{Kind: CmdBan, Channel: "#c", Add: true, Mode: 'b', Mask: "*!*@h"}
	b := Command{Kind: CmdBan, Channel: "#c", Add: true, Mode: 'b', Mask: "*!*@i"}
	assert.Equal(t, []Command{a, b}, dedupe([]Command{a, b, a}))
}

func TestParseOperation(t *testing.T) {
	op, ok := ParseOperation("KB")
	assert.True(t, ok)
	assert.Equal(t, OpKickBan, op)

	op, ok = ParseOperation("kickforward")
	assert.True(t, ok)
	assert.Equal(t, OpKickForward, op)

	_, ok = ParseOperation("explode")
	assert.False(t, ok)
}
