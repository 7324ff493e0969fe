package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	user := Identity{
		Nick:     "nick",
		Ident:    "~ident",
		Host:     "host.example.com",
		IP:       "192.0.2.7",
		Account:  "account",
		RealName: "John Doe",
	}
	anon := Identity{Nick: "anon", Ident: "anon", Host: "example.org", RealName: "x"}

	tests := []struct {
		name  string
		entry string
		id    Identity
		want  bool
	}{
		{"identical mask", "nick!~ident@host.example.com", user, true},
		{"star host", "*!*@host.example.com", user, true},
		{"star matches empty run", "nick*!*@*", user, true},
		{"question mark one char", "n?ck!*@*", user, true},
		{"question mark not zero chars", "ni?ck!*@*", user, false},
		{"question mark not two chars", "n?k!*@*", user, false},
		{"case insensitive", "NICK!*@HOST.example.COM", user, true},
		{"tilde optional for verified ident", "*!~anon@*", anon, true},
		{"tilde matches tilde", "*!~ident@*", user, true},
		{"ip fallback", "*!*@192.0.2.7", user, true},
		{"ip fallback needs ip", "*!*@192.0.2.7", anon, false},
		{"forward ignored", "*!*@host.example.com$#overflow", user, true},
		{"different host", "*!*@other.example.com", user, false},
		{"account", "$a:account", user, true},
		{"account glob", "$a:acc*", user, true},
		{"account without login", "$a:anon", anon, false},
		{"realname", "$r:John?Doe", user, true},
		{"realname mismatch", "$r:Jane*", user, false},
		{"extended", "$x:nick!*@host.*#John*", user, true},
		{"extended mismatch", "$x:nick!*@host.*#Jane*", user, false},
		{"channel extban", "$j:#somewhere", anon, true},
		{"not logged in", "$~a", anon, true},
		{"not logged in with account", "$~a", user, false},
		{"garbage", "garbage", user, false},
		{"lone star", "*", user, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.entry, tt.id))
		})
	}
}

func TestMatchSelf(t *testing.T) {
	ids := []Identity{
		{Nick: "a", Ident: "b", Host: "c"},
		{Nick: "[x]", Ident: "~y.z", Host: "2001:db8::1"},
		{Nick: "we|rd", Ident: "(id)", Host: "some+host.net"},
	}
	for _, id := range ids {
		assert.True(t, Match(id.NUH(), id), id.NUH())
	}
}

func TestStripForward(t *testing.T) {
	assert.Equal(t, "*!*@host", StripForward("*!*@host$#fwd"))
	assert.Equal(t, "$a:foo", StripForward("$a:foo"))
	assert.Equal(t, "$a:foo", StripForward("$a:foo$#fwd"))

	m, fwd := SplitForward("*!*@host$#fwd")
	assert.Equal(t, "*!*@host", m)
	assert.Equal(t, "#fwd", fwd)
}

func TestParse(t *testing.T) {
	id, ok := Parse("$x:nick!user@host.net#real")
	assert.True(t, ok)
	assert.Equal(t, Identity{Nick: "nick", Ident: "user", Host: "host.net", RealName: "real"}, id)

	id, ok = Parse("nick!user@10.0.0.1")
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.1", id.IP)

	_, ok = Parse("$a:account")
	assert.False(t, ok)
}

func TestIsNick(t *testing.T) {
	assert.True(t, IsNick("foo"))
	assert.True(t, IsNick("[foo]^"))
	assert.False(t, IsNick("*!*@host"))
	assert.False(t, IsNick("1abc"))
	assert.False(t, IsNick("$a:foo"))
}
