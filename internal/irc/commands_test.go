package irc

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalnet/chanops/internal/chanserv"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		channel string
		want    chanserv.Request
	}{
		{
			name:    "ban in channel",
			line:    "kb bob flooding",
			channel: "#chan",
			want:    chanserv.Request{Op: chanserv.OpKickBan, Channel: "#chan", Args: []string{"bob", "flooding"}},
		},
		{
			name: "explicit channel from private",
			line: "ban #ops -nu -t30 bob",
			want: chanserv.Request{Op: chanserv.OpBan, Channel: "#ops", Fields: "nu", Expiry: 30 * time.Minute, Args: []string{"bob"}},
		},
		{
			name:    "unknown options are dropped",
			line:    "quiet -z -i bob",
			channel: "#chan",
			want:    chanserv.Request{Op: chanserv.OpQuiet, Channel: "#chan", Fields: "i", Args: []string{"bob"}},
		},
		{
			name:    "options stop at the target",
			line:    "kick bob -reason",
			channel: "#chan",
			want:    chanserv.Request{Op: chanserv.OpKick, Channel: "#chan", Args: []string{"bob", "-reason"}},
		},
		{
			name:    "mode keeps dashes",
			line:    "mode -l",
			channel: "#chan",
			want:    chanserv.Request{Op: chanserv.OpMode, Channel: "#chan", Args: []string{"-l"}},
		},
		{
			name: "info needs no channel",
			line: "info #chan",
			want: chanserv.Request{Op: chanserv.OpInfo, Args: []string{"#chan"}},
		},
		{
			name:    "topic",
			line:    "t hello world",
			channel: "&local",
			want:    chanserv.Request{Op: chanserv.OpTopic, Channel: "&local", Args: []string{"hello", "world"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseCommand(strings.Fields(tt.line), tt.channel)
			require.NoError(t, err)
			if tt.want.Args == nil {
				tt.want.Args = []string{}
			}
			assert.Equal(t, tt.want, req)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	_, err := ParseCommand(nil, "#chan")
	assert.EqualError(t, err, "No command specified.")

	_, err = ParseCommand([]string{"explode", "bob"}, "#chan")
	assert.EqualError(t, err, "Unknown command: 'explode'")

	_, err = ParseCommand([]string{"ban", "bob"}, "")
	assert.EqualError(t, err, "No target channel.")

	_, err = ParseCommand([]string{"info"}, "#chan")
	assert.EqualError(t, err, "No target nick.")
}

func TestFormatAction(t *testing.T) {
	a := &chanserv.Action{
		ID:        uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Op:        chanserv.OpBan,
		Channel:   "#chan",
		Requester: "alice",
	}
	cmd := chanserv.Command{Kind: chanserv.CmdBan, Channel: "#chan", Add: true, Mode: 'b', Mask: "*!*@host.example"}

	assert.Equal(t,
		"[now] alice ban #chan: MODE #chan +b *!*@host.example (6ba7b810-9dad-11d1-80b4-00c04fd430c8)",
		formatAction("now", a, cmd))
}

func TestPendingReport(t *testing.T) {
	m := NewMembership(func() string { return "bot" })
	feed(m, "bot!b@host", "JOIN", "#ops")
	feed(m, "bot!b@host", "JOIN", "#chan")

	assert.Equal(t, []string{"On channels: #chan, #ops", "No operations pending"},
		pendingReport(m.Channels(), nil))

	pending := []string{"[resolving] ban C: #chan T: bob"}
	assert.Equal(t, append([]string{"On channels: #chan, #ops"}, pending...),
		pendingReport(m.Channels(), pending))

	assert.Equal(t, []string{"No operations pending"}, pendingReport(nil, nil))
}
