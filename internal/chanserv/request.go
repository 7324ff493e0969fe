package chanserv

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dalnet/chanops/internal/mask"
)

var (
	channelRe   = regexp.MustCompile(`^[#&][^ ,\a]{1,49}$`)
	extendedRe  = regexp.MustCompile(`^\$x:[^ ]+$`)
	accountRe   = regexp.MustCompile(`^\$a:[^ ]+$`)
	realnameRe  = regexp.MustCompile(`^\$r:[^ ]+$`)
	joinedRe    = regexp.MustCompile(`^\$j:[^ ]+$`)
	modeArgsRe  = regexp.MustCompile(`^\+?[bq]+$`)
	fieldsRe    = regexp.MustCompile(`^[` + AllFields + `]*$`)
	minuteRound = time.Minute - time.Nanosecond
)

// Request is a parsed user command
type Request struct {
	Op        Operation
	Channel   string
	Requester string
	Fields    string        // ban fields, any of AllFields
	Expiry    time.Duration // lift the bans after this long, zero for never
	Args      []string
}

// requestError carries a user-facing message while still matching one
// of the sentinel errors with errors.Is.
type requestError struct {
	kind error
	msg  string
}

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Unwrap() error { return e.kind }

func fail(kind error, format string, args ...interface{}) error {
	return &requestError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// IsValidChannel reports whether name is usable as a channel
func IsValidChannel(name string) bool {
	return channelRe.MatchString(name)
}

// build turns a request into an Action. Notices about commands that were
// degraded or dropped are returned alongside it.
func (s *Scheduler) build(req Request) (*Action, []Notice, error) {
	op, args := req.Op, req.Args
	if _, ok := opNames[op]; !ok {
		return nil, nil, fail(ErrUnknownOperation, "Unknown operation.")
	}
	// info can be asked for in private, with no channel
	if op != OpInfo && !channelRe.MatchString(req.Channel) {
		return nil, nil, fail(ErrInvalidChannel, "Invalid channel: '%s'", req.Channel)
	}
	if !fieldsRe.MatchString(req.Fields) {
		return nil, nil, fail(ErrInvalidTarget, "Invalid ban fields: '%s'", req.Fields)
	}

	a := newAction(op, req.Channel, req.Requester)
	a.Fields = req.Fields
	a.Expiry = req.Expiry
	var notices []Notice

	if op.takesTarget() && len(args) > 0 {
		if err := setTarget(a, args[0]); err != nil {
			return nil, nil, err
		}
	}

	switch {
	case op.IsBan():
		return s.buildBan(a, args)
	case op == OpKick || op == OpRemove:
		if len(args) == 0 {
			return nil, nil, fail(ErrNotEnoughArguments, "Not enough arguments for '%s'", op)
		}
		a.Commands = s.kick(a, args[1:])
	case op == OpUnban:
		if len(args) == 0 {
			return nil, nil, fail(ErrNotEnoughArguments, "Not enough arguments for '%s'", op)
		}
		a.filtered = true
	case op == OpInfo:
		if len(args) == 0 {
			return nil, nil, fail(ErrNotEnoughArguments, "Not enough arguments for '%s'", op)
		}
		a.needsOp = false
		if !a.needsIdentity {
			notices = append(notices, a.notice(nil, "%s", a.describe()))
		}
	case op == OpBans:
		a.needsOp = false
	case op == OpMatches:
		if len(args) == 0 {
			return nil, nil, fail(ErrNotEnoughArguments, "Not enough arguments for '%s'", op)
		}
		a.needsOp = false
	case op == OpOp, op == OpDeop, op == OpVoice, op == OpDevoice:
		a.needsOp = false
		target := a.Nick
		if target == "" {
			target = a.Requester
		}
		c := Command{Kind: CmdStatus, Channel: a.Channel, Add: op == OpOp || op == OpVoice, Mode: 'o', Target: target}
		if op == OpVoice || op == OpDevoice {
			c.Mode = 'v'
		}
		a.Commands = []Command{c}
	case op == OpAccess:
		a.needsOp = false
		a.Commands = []Command{{Kind: CmdAccess, Channel: a.Channel, Args: args}}
	case op == OpTopic:
		switch {
		case len(args) == 0:
			a.needsOp = false
			a.Commands = []Command{{Kind: CmdTopic, Channel: a.Channel}}
		case s.store.CanTopic(a.Channel):
			a.needsOp = false
			a.Commands = []Command{{Kind: CmdServiceTopic, Channel: a.Channel, Args: args}}
		default:
			a.Commands = []Command{{Kind: CmdTopic, Channel: a.Channel, Args: args}}
		}
	case op == OpMode:
		if len(args) == 0 || modeArgsRe.MatchString(strings.Join(args, " ")) {
			a.needsOp = false
		}
		a.Commands = []Command{{Kind: CmdMode, Channel: a.Channel, Args: args}}
	case op == OpInvite:
		if a.Nick == "" {
			a.needsOp = false
			a.Commands = []Command{{Kind: CmdServiceInvite, Channel: a.Channel}}
		} else {
			a.Commands = []Command{{Kind: CmdInvite, Channel: a.Channel, Target: a.Nick}}
		}
	}

	return a, notices, nil
}

// setTarget classifies the first argument as a nick or one of the mask
// forms and records it on the Action.
func setTarget(a *Action, target string) error {
	op := a.Op
	if mask.IsNick(target) {
		if op == OpMatches {
			return fail(ErrInvalidTarget, "Invalid target: '%s'", target)
		}
		a.Nick = target
		a.needsIdentity = op.resolvesTarget()
		a.filtered = true
		return nil
	}
	if !op.acceptsMask() {
		return fail(ErrInvalidTarget, "Invalid target: '%s'", target)
	}

	m, fwd := mask.SplitForward(target)
	switch {
	case mask.IsHostmask(m), extendedRe.MatchString(m):
		a.target, _ = mask.Parse(m)
	case accountRe.MatchString(m):
		a.target.Account = m[3:]
	case realnameRe.MatchString(m):
		a.target.RealName = m[3:]
	case m == "$~a", joinedRe.MatchString(m):
	default:
		return fail(ErrInvalidTarget, "Invalid target: '%s'", target)
	}

	a.Forward = fwd
	a.Fields = string(FieldFull)
	a.Mask = m
	a.fullMask = m
	a.filtered = true
	return nil
}

func (s *Scheduler) buildBan(a *Action, args []string) (*Action, []Notice, error) {
	op := a.Op
	if len(args) == 0 {
		return nil, nil, fail(ErrNotEnoughArguments, "Not enough arguments for '%s'", op)
	}
	reasonArgs := args[1:]
	if op.IsForward() && a.Forward == "" {
		if len(args) < 2 {
			return nil, nil, fail(ErrNotEnoughArguments, "Not enough arguments for '%s'", op)
		}
		a.Forward = args[1]
		reasonArgs = args[2:]
	}
	if a.Forward != "" && !channelRe.MatchString(a.Forward) {
		return nil, nil, fail(ErrInvalidChannel, "Invalid channel: '%s'", a.Forward)
	}

	if a.Fields == "" {
		if op == OpLart {
			a.Fields = AllFields
		} else {
			a.Fields = string(FieldHost)
		}
	}

	var notices []Notice
	banMode := byte('b')
	useAkick := false
	switch {
	case a.Forward != "":
	case op == OpQuiet:
		if s.store.Caps.Quiets {
			banMode = 'q'
		} else {
			notices = append(notices, a.notice(ErrUnsupportedFeature, "Network does not support quiets, using a ban instead."))
		}
	case op == OpAkick:
		switch {
		case s.store.CanAkick(a.Channel):
			useAkick = true
		case !s.store.Caps.Atheme:
			notices = append(notices, a.notice(ErrUnsupportedFeature, "Network does not support AKICK, using a ban instead."))
		default:
			notices = append(notices, a.notice(ErrUnsupportedFeature, "Insufficient access rights for AKICK, using a ban instead."))
		}
	case a.Expiry > 0 && s.store.CanAkick(a.Channel):
		useAkick = !(a.Fields == string(FieldFull) && strings.HasPrefix(a.Mask, "$"))
	}

	akickReason := strings.Join(reasonArgs, " ")
	if akickReason == "" {
		akickReason = s.opts.AkickMessage
	}
	minutes := int((a.Expiry + minuteRound) / time.Minute)

	for _, f := range []byte(AllFields) {
		if !strings.ContainsRune(a.Fields, rune(f)) {
			continue
		}
		if useAkick && strings.IndexByte("fnuhi", f) >= 0 {
			a.Commands = append(a.Commands, Command{
				Kind:    CmdAkick,
				Channel: a.Channel,
				Add:     true,
				Field:   Field(f),
				Minutes: minutes,
				Reason:  akickReason,
			})
			continue
		}
		c := Command{Kind: CmdBan, Channel: a.Channel, Add: true, Mode: banMode, Field: Field(f)}
		if !useAkick {
			c.Forward = a.Forward
		}
		a.Commands = append(a.Commands, c)
	}
	if !a.needsIdentity {
		notices = append(notices, a.notice(nil, "%s", a.describe()))
		notices = append(notices, a.bindCommands()...)
	}

	if op.IsKick() {
		a.Commands = append(a.Commands, s.kick(a, reasonArgs)...)
	}
	return a, notices, nil
}

// kick returns the kick command for the target, if it names a user
func (s *Scheduler) kick(a *Action, reasonArgs []string) []Command {
	nick := a.Nick
	if nick == "" {
		nick = a.target.Nick
	}
	if !mask.IsNick(nick) {
		return nil
	}
	reason := strings.Join(reasonArgs, " ")
	if reason == "" {
		reason = s.opts.KickMessage
	}
	return []Command{{
		Kind:    CmdKick,
		Channel: a.Channel,
		Target:  nick,
		Reason:  reason,
		Remove:  s.store.Caps.Remove,
	}}
}
