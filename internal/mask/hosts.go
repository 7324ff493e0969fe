package mask

import (
	"regexp"
	"strings"
)

var (
	ipv4Re     = regexp.MustCompile(`(([0-9]{1,3}[.-]){3}[0-9]{1,3})`)
	ipv6Re     = regexp.MustCompile(`(?i)^([0-9a-f]{0,4}:)+([0-9a-f]{1,4})?$`)
	hexAddrRe  = regexp.MustCompile(`(?i)([0-9a-f]{32})`)
	leadZeroRe = regexp.MustCompile(`(^|:)0+([^:]+)`)
	zeroRunRe  = regexp.MustCompile(`(^|:)(0(:|$)){2,}`)
	compressRe = regexp.MustCompile(`^(.*)::(.*)$`)
	segmentRe  = regexp.MustCompile(`[^:]+`)
	hostPartRe = regexp.MustCompile(`(:[^:]{1,4}){4}$`)
	gatewayRe  = regexp.MustCompile(`^(gateway/(shell|web)|conference|nat)/`)
	webchatRe  = regexp.MustCompile(`^gateway/web/freenode/`)
	gwPrefixRe = regexp.MustCompile(`^((gateway/shell|conference|nat)/.+/|gateway/web/)`)
	nickFormRe = regexp.MustCompile("^[a-zA-Z_^`|\\\\\\[\\]{}][-a-zA-Z0-9_^`|\\\\\\[\\]{}]{0,16}$")
)

// idents longer than this were not truncated by the server
const maxIdentLen = 9

// IsNick reports whether s is shaped like a nickname rather than a mask
func IsNick(s string) bool {
	return nickFormRe.MatchString(s)
}

// IdentMask returns the ident part used in bans. Unverified idents (~foo)
// and idents that may have been truncated by the server get a leading *.
func IdentMask(ident string) string {
	if strings.HasPrefix(ident, "~") {
		return "*" + ident[1:]
	}
	if len(ident) <= maxIdentLen {
		return "*" + ident
	}
	return ident
}

// Bannable makes a real name usable inside a mask
func Bannable(realname string) string {
	return strings.ReplaceAll(realname, " ", "?")
}

// IPFromHost derives an IP address from a hostname, cloak or raw address.
// It returns the address and the form used in bans (IPv6 reduced to its /64).
// Both are empty when nothing could be decoded.
func IPFromHost(host string) (ip, banForm string) {
	if m := ipv4Re.FindStringSubmatch(host); m != nil {
		ip = strings.ReplaceAll(m[1], "-", ".")
		return ip, ip
	}
	if ipv6Re.MatchString(host) {
		return host, ShortenIPv6(host)
	}
	if m := hexAddrRe.FindStringSubmatch(host); m != nil {
		hex := strings.ToLower(m[1])
		groups := make([]string, 0, 8)
		for i := 0; i < len(hex); i += 4 {
			groups = append(groups, hex[i:i+4])
		}
		ip = leadZeroRe.ReplaceAllString(strings.Join(groups, ":"), "${1}${2}")
		ip = replaceFirst(zeroRunRe, ip, "::")
		return ip, ShortenIPv6(ip)
	}
	return "", ""
}

// ShortenIPv6 expands a compressed address, replaces the interface part
// with * and compresses the result again.
func ShortenIPv6(ip string) string {
	if m := compressRe.FindStringSubmatch(ip); m != nil {
		zeros := 8 - len(segmentRe.FindAllString(ip, -1))
		var parts []string
		if m[1] != "" {
			parts = append(parts, m[1])
		}
		for i := 0; i < zeros; i++ {
			parts = append(parts, "0")
		}
		if m[2] != "" {
			parts = append(parts, m[2])
		}
		ip = strings.Join(parts, ":")
	}
	ip = replaceFirst(hostPartRe, ip, ":*")
	return replaceFirst(zeroRunRe, ip, "::")
}

// IsGateway reports whether host belongs to a shared gateway where a plain
// host ban would hit unrelated users.
func IsGateway(host string) bool {
	return gatewayRe.MatchString(host)
}

// GatewayMask returns the ban mask to use instead of *!*@host for gateway
// users. ok is false when the gateway needs an IP address and none is known.
func GatewayMask(host, ident, ip string) (string, bool) {
	if webchatRe.MatchString(host) {
		if ip == "" {
			return "", false
		}
		return "*!*@" + ip, true
	}
	m := gwPrefixRe.FindStringSubmatch(host)
	if m == nil {
		return "*!*@" + host, true
	}
	return "*!" + IdentMask(ident) + "@" + m[1] + "*", true
}

func replaceFirst(re *regexp.Regexp, s, repl string) string {
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}
	dst := re.ExpandString(nil, repl, s, loc)
	return s[:loc[0]] + string(dst) + s[loc[1]:]
}
