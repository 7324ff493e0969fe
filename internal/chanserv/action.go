package chanserv

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dalnet/chanops/internal/mask"
)

// State is where an Action is in its lifecycle
type State int

const (
	StateCreated State = iota
	StateResolvingIdentity
	StateFetchingLists
	StateFetchingMembers
	StateAwaitingPrivilege
	StateReady
	StateExecuted
	StateDone
	StateTimedOut
	StateCancelled
)

var stateNames = [...]string{
	"created", "resolving", "fetching-lists", "fetching-members",
	"awaiting-privilege", "ready", "executed", "done", "timed-out", "cancelled",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether the Action has left the queue for good
func (s State) Terminal() bool {
	return s == StateDone || s == StateTimedOut || s == StateCancelled
}

// Action is one queued compound moderation operation
type Action struct {
	ID        uuid.UUID
	Op        Operation
	Channel   string
	Requester string
	Nick      string // target nick, empty for mask targets
	Mask      string // target mask, or the resolved nick!ident@host
	Forward   string
	Fields    string
	Expiry    time.Duration
	Reason    string
	Commands  []Command

	State   State
	Created time.Time

	target    mask.Identity
	identMask string
	ipMask    string
	fullMask  string
	filtered  bool // bans/unban restricted to entries matching the target

	needsOp            bool
	haveOp             bool
	elevationRequested bool
	selfElevated       bool

	needsIdentity bool
	resolved      bool
	checkLists    bool
	listsParsed   bool
	membersParsed bool
	executed      bool
}

func newAction(op Operation, channel, requester string) *Action {
	return &Action{
		ID:         uuid.New(),
		Op:         op,
		Channel:    channel,
		Requester:  requester,
		needsOp:    true,
		checkLists: true,
	}
}

func (a *Action) String() string {
	var cmds []string
	for _, c := range a.Commands {
		if c.Bound() {
			cmds = append(cmds, c.String())
		} else {
			cmds = append(cmds, fmt.Sprintf("<%c>", c.Field))
		}
	}
	return fmt.Sprintf("%s %s C: %s T: %s A: %s", a.ID, a.Op, a.Channel, a.targetString(), strings.Join(cmds, " | "))
}

func (a *Action) targetString() string {
	if a.Nick != "" {
		return a.Nick
	}
	return a.Mask
}

// needsLists reports whether the Action depends on the channel's
// ban/quiet/akick lists.
func (a *Action) needsLists() bool {
	if a.Op == OpUnban || a.Op == OpBans {
		return true
	}
	if !a.Op.IsBan() || !a.checkLists {
		return false
	}
	for _, c := range a.Commands {
		if c.isListAdd() {
			return true
		}
	}
	return false
}

func (a *Action) needsMembers() bool {
	return a.Op == OpMatches
}

// setIdentity records the target identity and the mask forms derived from it
func (a *Action) setIdentity(id mask.Identity) {
	if id.IP == "" {
		id.IP, _ = mask.IPFromHost(id.Host)
	}
	a.target = id
	a.identMask = mask.IdentMask(id.Ident)
	_, a.ipMask = mask.IPFromHost(id.Host)
	a.fullMask = id.Nick + "!" + a.identMask + "@" + id.Host
	a.Mask = id.NUH()
}

// describe is the one-line summary printed once a target is known
func (a *Action) describe() string {
	account, name := a.target.Account, a.target.RealName
	if account == "" {
		account = "none"
	}
	if name == "" {
		name = "none"
	}
	return fmt.Sprintf("%s (a: %s, r: %s)", a.Mask, account, name)
}

// bindCommands fills in the masks of ban field commands. Commands that
// can't be built for this target are dropped and reported.
func (a *Action) bindCommands() []Notice {
	var notices []Notice
	var bound []Command
	id := a.target

	for _, c := range a.Commands {
		if c.Bound() {
			bound = append(bound, c)
			continue
		}
		switch c.Field {
		case FieldFull:
			c.Mask = a.fullMask
		case FieldNick:
			c.Mask = id.Nick + "!*@*"
		case FieldIdent:
			c.Mask = "*!" + a.identMask + "@*"
		case FieldHost:
			c.Mask = "*!*@" + id.Host
			if a.Fields == string(FieldHost) && mask.IsGateway(id.Host) {
				m, ok := mask.GatewayMask(id.Host, id.Ident, id.IP)
				if !ok {
					notices = append(notices, a.notice(ErrNoIPAddress,
						"Cannot do an IP address ban for '%s', none found.", id.Nick))
					continue
				}
				c.Mask = m
			}
		case FieldIP:
			if a.ipMask == "" {
				notices = append(notices, a.notice(ErrNoIPAddress,
					"Cannot do an IP address ban for '%s', none found.", id.Nick))
				continue
			}
			c.Mask = "*!*@" + a.ipMask
		case FieldAccount:
			if id.Account == "" {
				notices = append(notices, a.notice(ErrNotAuthenticated,
					"Cannot do an account ban for '%s', not identified.", id.Nick))
				continue
			}
			c.Mask = "$a:" + id.Account
		case FieldRealName:
			if id.RealName == "" {
				continue
			}
			c.Mask = "$r:" + mask.Bannable(id.RealName)
		case FieldExtended:
			c.Mask = "$x:" + id.Nick + "!" + a.identMask + "@" + id.Host + "#" + mask.Bannable(id.RealName)
		}
		c.Field = 0
		bound = append(bound, c)
	}

	a.Commands = dedupe(bound)
	return notices
}

// inverse builds the Action that lifts the bans applied by a. It returns
// nil when nothing can be undone.
func (a *Action) inverse() *Action {
	var cmds []Command
	for _, c := range a.Commands {
		if inv, ok := c.inverse(); ok {
			cmds = append(cmds, inv)
		}
	}
	if len(cmds) == 0 {
		return nil
	}
	inv := newAction(a.Op, a.Channel, a.Requester)
	inv.Nick = a.Nick
	inv.Mask = a.Mask
	inv.target = a.target
	inv.Commands = cmds
	inv.checkLists = false
	return inv
}

func (a *Action) notice(err error, format string, args ...interface{}) Notice {
	return Notice{
		To:      a.Requester,
		Channel: a.Channel,
		Action:  a.ID,
		Text:    fmt.Sprintf(format, args...),
		Err:     err,
	}
}

func dedupe(cmds []Command) []Command {
	var out []Command
next:
	for _, c := range cmds {
		for _, o := range out {
			if c.same(o) {
				continue next
			}
		}
		out = append(out, c)
	}
	return out
}
