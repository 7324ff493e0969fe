// Package mask matches ban-family entries (bans, quiets, akicks and
// extbans) against user identities.
package mask

import (
	"regexp"
	"strings"
)

// Identity is what is known about a user for matching purposes
type Identity struct {
	Nick     string
	Ident    string
	Host     string
	IP       string // derived from Host, empty when not decodable
	Account  string // empty when not logged in
	RealName string
}

// NUH returns nick!ident@host
func (id Identity) NUH() string {
	return id.Nick + "!" + id.Ident + "@" + id.Host
}

var (
	hostmaskRe = regexp.MustCompile(`^[^$][^ ]*![^ ]+@[^ ]+$`)
	accountRe  = regexp.MustCompile(`^\$a:[^ ]+$`)
	realnameRe = regexp.MustCompile(`^\$r:[^ ]+$`)
	extendedRe = regexp.MustCompile(`^\$x:[^ ]+$`)
	channelRe  = regexp.MustCompile(`^\$j:[^ ]+$`)

	// nick!ident@host with an optional #realname tail, as used by $x:
	partsRe = regexp.MustCompile(`^(?:\$x:|)([^ ]+)!([^ ]+)@([^ ]+?)(?:#([^ ]+)|)$`)
)

// Match reports whether the ban-family entry matches the identity.
func Match(entry string, id Identity) bool {
	switch {
	case hostmaskRe.MatchString(entry):
		re := compile(StripForward(entry), true)
		if re.MatchString(id.NUH()) {
			return true
		}
		return id.IP != "" && re.MatchString(id.Nick+"!"+id.Ident+"@"+id.IP)
	case accountRe.MatchString(entry):
		if id.Account == "" {
			return false
		}
		return compile(StripForward(entry[3:]), false).MatchString(id.Account)
	case realnameRe.MatchString(entry):
		if id.RealName == "" {
			return false
		}
		return compile(StripForward(entry[3:]), false).MatchString(id.RealName)
	case extendedRe.MatchString(entry):
		re := compile(StripForward(entry[3:]), true)
		return re.MatchString(id.NUH() + "#" + id.RealName)
	case channelRe.MatchString(entry):
		// channel membership can't be checked locally
		return true
	case entry == "$~a":
		return id.Account == ""
	}
	return false
}

// StripForward removes a trailing $#channel forward from a mask. A leading
// $ (extban) is not treated as a forward.
func StripForward(m string) string {
	if i := strings.LastIndexByte(m, '$'); i > 0 {
		return m[:i]
	}
	return m
}

// SplitForward splits mask$#forward into its two halves.
func SplitForward(m string) (string, string) {
	if i := strings.LastIndexByte(m, '$'); i > 0 {
		return m[:i], m[i+1:]
	}
	return m, ""
}

// IsHostmask reports whether m is a plain nick!ident@host mask
func IsHostmask(m string) bool {
	return hostmaskRe.MatchString(m)
}

// Parse extracts the identity fields present in a nick!ident@host or
// $x:nick!ident@host#realname mask.
func Parse(m string) (Identity, bool) {
	parts := partsRe.FindStringSubmatch(m)
	if parts == nil {
		return Identity{}, false
	}
	id := Identity{
		Nick:     parts[1],
		Ident:    parts[2],
		Host:     parts[3],
		RealName: parts[4],
	}
	id.IP, _ = IPFromHost(id.Host)
	return id, true
}

// compile turns a glob into an anchored, case-insensitive pattern. With
// tilde set, a literal ~ right after ! also matches its absence.
func compile(glob string, tilde bool) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?i)^")
	var prev rune
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
			if tilde && r == '~' && prev == '!' {
				b.WriteString("?")
			}
		}
		prev = r
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}
