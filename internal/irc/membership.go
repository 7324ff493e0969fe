package irc

import (
	"sort"
	"strings"
	"sync"

	"github.com/ergochat/irc-go/ircmsg"

	"github.com/dalnet/chanops/internal/chanserv"
)

// Status prefixes in rank order, and the channel modes that grant them
const statusPrefixes = "~&@%+"

var modePrefix = map[rune]byte{
	'o': '@',
	'h': '%',
	'v': '+',
}

// Membership tracks who is on the channels we are in and the status
// prefixes they hold, from NAMES replies and channel traffic.
type Membership struct {
	mu       sync.RWMutex
	channels map[string]map[string]string // channel -> nick -> prefixes
	self     func() string
}

// NewMembership creates an empty tracker. self returns our current nick.
func NewMembership(self func() string) *Membership {
	return &Membership{
		channels: make(map[string]map[string]string),
		self:     self,
	}
}

// Codes lists the commands Handle wants to see
func (m *Membership) Codes() []string {
	return []string{"353", "JOIN", "PART", "KICK", "QUIT", "NICK", "MODE"}
}

// Prefix returns the status prefixes nick holds on channel
func (m *Membership) Prefix(channel, nick string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channels[key(channel)][key(nick)]
}

// Channels returns the channels we are on, sorted
func (m *Membership) Channels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.channels))
	for ch := range m.channels {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Reset forgets everything, on disconnect
func (m *Membership) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = make(map[string]map[string]string)
}

// Handle folds one message into the tracker
func (m *Membership) Handle(msg ircmsg.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch msg.Command {
	case "353":
		// 353 <me> <symbol> <channel> :<names>
		if len(msg.Params) < 4 {
			return
		}
		members := m.channel(msg.Params[2])
		for _, name := range strings.Fields(msg.Params[3]) {
			nick := strings.TrimLeft(name, statusPrefixes)
			// userhost-in-names
			if i := strings.IndexByte(nick, '!'); i >= 0 {
				nick = nick[:i]
			}
			members[key(nick)] = name[:len(name)-len(strings.TrimLeft(name, statusPrefixes))]
		}
	case "JOIN":
		if len(msg.Params) < 1 {
			return
		}
		if m.isSelf(msg.Nick()) {
			m.channels[key(msg.Params[0])] = make(map[string]string)
		}
		m.channel(msg.Params[0])[key(msg.Nick())] = ""
	case "PART":
		if len(msg.Params) < 1 {
			return
		}
		m.leave(msg.Params[0], msg.Nick())
	case "KICK":
		if len(msg.Params) < 2 {
			return
		}
		m.leave(msg.Params[0], msg.Params[1])
	case "QUIT":
		for _, members := range m.channels {
			delete(members, key(msg.Nick()))
		}
	case "NICK":
		if len(msg.Params) < 1 {
			return
		}
		old, renamed := key(msg.Nick()), key(msg.Params[0])
		for _, members := range m.channels {
			if p, ok := members[old]; ok {
				delete(members, old)
				members[renamed] = p
			}
		}
	case "MODE":
		if len(msg.Params) < 2 || !chanserv.IsValidChannel(msg.Params[0]) {
			return
		}
		m.applyModes(msg.Params[0], msg.Params[1], msg.Params[2:])
	}
}

func (m *Membership) applyModes(channel, modes string, args []string) {
	members, ok := m.channels[key(channel)]
	if !ok {
		return
	}
	adding := true
	for _, c := range modes {
		switch c {
		case '+':
			adding = true
			continue
		case '-':
			adding = false
			continue
		}
		if !chanserv.ModeTakesArg(c, adding) || len(args) == 0 {
			continue
		}
		arg := args[0]
		args = args[1:]
		p, ok := modePrefix[c]
		if !ok {
			continue
		}
		nick := key(arg)
		current, ok := members[nick]
		if !ok {
			continue
		}
		if adding {
			members[nick] = withPrefix(current, p)
		} else {
			members[nick] = strings.ReplaceAll(current, string(p), "")
		}
	}
}

// withPrefix adds p to prefixes keeping rank order
func withPrefix(prefixes string, p byte) string {
	if strings.IndexByte(prefixes, p) >= 0 {
		return prefixes
	}
	var b strings.Builder
	for i := 0; i < len(statusPrefixes); i++ {
		c := statusPrefixes[i]
		if c == p || strings.IndexByte(prefixes, c) >= 0 {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func (m *Membership) channel(name string) map[string]string {
	members, ok := m.channels[key(name)]
	if !ok {
		members = make(map[string]string)
		m.channels[key(name)] = members
	}
	return members
}

func (m *Membership) leave(channel, nick string) {
	if m.isSelf(nick) {
		delete(m.channels, key(channel))
		return
	}
	if members, ok := m.channels[key(channel)]; ok {
		delete(members, key(nick))
	}
}

func (m *Membership) isSelf(nick string) bool {
	return m.self != nil && strings.EqualFold(nick, m.self())
}

func key(s string) string {
	return strings.ToLower(s)
}
