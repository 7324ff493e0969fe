package chanserv

import "strings"

// Operation is a user-level moderation command
type Operation int

const (
	OpInfo Operation = iota
	OpOp
	OpDeop
	OpVoice
	OpDevoice
	OpKick
	OpRemove
	OpBan
	OpKickBan
	OpForward
	OpKickForward
	OpLart
	OpQuiet
	OpAkick
	OpUnban
	OpBans
	OpMatches
	OpAccess
	OpTopic
	OpMode
	OpInvite
)

var opNames = map[Operation]string{
	OpInfo:        "info",
	OpOp:          "op",
	OpDeop:        "deop",
	OpVoice:       "voice",
	OpDevoice:     "devoice",
	OpKick:        "kick",
	OpRemove:      "remove",
	OpBan:         "ban",
	OpKickBan:     "kickban",
	OpForward:     "forward",
	OpKickForward: "kickforward",
	OpLart:        "lart",
	OpQuiet:       "quiet",
	OpAkick:       "akick",
	OpUnban:       "unban",
	OpBans:        "bans",
	OpMatches:     "matches",
	OpAccess:      "access",
	OpTopic:       "topic",
	OpMode:        "mode",
	OpInvite:      "invite",
}

var opAliases = map[string]Operation{
	"i":       OpInfo,
	"o":       OpOp,
	"d":       OpDeop,
	"v":       OpVoice,
	"dv":      OpDevoice,
	"k":       OpKick,
	"r":       OpRemove,
	"b":       OpBan,
	"kb":      OpKickBan,
	"f":       OpForward,
	"kf":      OpKickForward,
	"kickfwd": OpKickForward,
	"l":       OpLart,
	"q":       OpQuiet,
	"mute":    OpQuiet,
	"a":       OpAkick,
	"u":       OpUnban,
	"bs":      OpBans,
	"ms":      OpMatches,
	"x":       OpAccess,
	"t":       OpTopic,
	"m":       OpMode,
	"iv":      OpInvite,
}

func (o Operation) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "unknown"
}

// ParseOperation accepts a full command name or its short alias
func ParseOperation(s string) (Operation, bool) {
	s = strings.ToLower(s)
	if op, ok := opAliases[s]; ok {
		return op, true
	}
	for op, name := range opNames {
		if name == s {
			return op, true
		}
	}
	return 0, false
}

// IsBan reports whether the operation adds ban-family entries
func (o Operation) IsBan() bool {
	switch o {
	case OpBan, OpKickBan, OpForward, OpKickForward, OpLart, OpAkick, OpQuiet:
		return true
	}
	return false
}

// IsKick reports whether the operation removes the target from the channel
func (o Operation) IsKick() bool {
	switch o {
	case OpKick, OpRemove, OpKickBan, OpKickForward, OpLart:
		return true
	}
	return false
}

// IsForward reports whether the operation bans with a forward channel
func (o Operation) IsForward() bool {
	return o == OpForward || o == OpKickForward
}

// takesTarget is false for operations whose arguments are free text
func (o Operation) takesTarget() bool {
	return o != OpAccess && o != OpTopic && o != OpMode
}

// resolvesTarget reports whether a nick target must be looked up first
func (o Operation) resolvesTarget() bool {
	return o.IsBan() || o == OpUnban || o == OpInfo || o == OpBans
}

// acceptsMask reports whether a mask may be given instead of a nick
func (o Operation) acceptsMask() bool {
	return o.resolvesTarget() || o == OpMatches
}
