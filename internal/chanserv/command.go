package chanserv

import (
	"strconv"
	"strings"
)

// CommandKind selects how a Command is rendered on the wire
type CommandKind int

const (
	// CmdBan sets or unsets a ban (+b) or quiet (+q)
	CmdBan CommandKind = iota
	// CmdAkick adds or removes a services auto-kick
	CmdAkick
	// CmdStatus gives or takes op/voice
	CmdStatus
	CmdKick
	CmdMode
	CmdTopic
	CmdServiceTopic
	CmdInvite
	CmdServiceInvite
	CmdAccess
)

// Field is one ban field letter of the -nuhfiarx option
type Field byte

const (
	FieldFull     Field = 'f'
	FieldNick     Field = 'n'
	FieldIdent    Field = 'u'
	FieldHost     Field = 'h'
	FieldIP       Field = 'i'
	FieldAccount  Field = 'a'
	FieldRealName Field = 'r'
	FieldExtended Field = 'x'
)

// AllFields is every ban field in the order commands are generated
const AllFields = "fnuhiarx"

// Command is one protocol command of an Action. Commands for ban fields
// are created before the target is resolved; until then Field is set and
// Mask is empty.
type Command struct {
	Kind    CommandKind
	Channel string
	Add     bool
	Mode    byte // b or q for CmdBan, o or v for CmdStatus
	Field   Field
	Mask    string
	Forward string
	Target  string
	Reason  string
	Minutes int // akick expiry
	Remove  bool
	Args    []string
}

// Bound reports whether the command is ready to be sent
func (c Command) Bound() bool {
	return c.Field == 0 || c.Mask != ""
}

func (c Command) isListAdd() bool {
	return c.Add && (c.Kind == CmdBan || c.Kind == CmdAkick)
}

// Render returns the IRC command and parameters. opped tells whether we
// hold channel operator status, in which case op/voice changes are made
// directly instead of through services.
func (c Command) Render(opped bool, chanserv string) (string, []string) {
	sign := "-"
	if c.Add {
		sign = "+"
	}

	switch c.Kind {
	case CmdBan:
		m := c.Mask
		if c.Forward != "" {
			m += "$" + c.Forward
		}
		return "MODE", []string{c.Channel, sign + string(c.Mode), m}
	case CmdAkick:
		if !c.Add {
			return "PRIVMSG", []string{chanserv, join("AKICK", c.Channel, "DEL", c.Mask)}
		}
		var opts string
		if c.Minutes > 0 {
			opts = "!T " + strconv.Itoa(c.Minutes)
		}
		return "PRIVMSG", []string{chanserv, join("AKICK", c.Channel, "ADD", c.Mask, opts, c.Reason)}
	case CmdStatus:
		if opped {
			return "MODE", []string{c.Channel, sign + string(c.Mode), c.Target}
		}
		verb := "OP"
		if c.Mode == 'v' {
			verb = "VOICE"
		}
		if !c.Add {
			verb = "DE" + verb
		}
		return "PRIVMSG", []string{chanserv, join(verb, c.Channel, c.Target)}
	case CmdKick:
		verb := "KICK"
		if c.Remove {
			verb = "REMOVE"
		}
		return verb, []string{c.Channel, c.Target, c.Reason}
	case CmdMode:
		return "MODE", append([]string{c.Channel}, c.Args...)
	case CmdTopic:
		if len(c.Args) == 0 {
			return "TOPIC", []string{c.Channel}
		}
		return "TOPIC", []string{c.Channel, strings.Join(c.Args, " ")}
	case CmdServiceTopic:
		return "PRIVMSG", []string{chanserv, join("TOPIC", c.Channel, strings.Join(c.Args, " "))}
	case CmdInvite:
		return "INVITE", []string{c.Target, c.Channel}
	case CmdServiceInvite:
		return "PRIVMSG", []string{chanserv, join("INVITE", c.Channel)}
	case CmdAccess:
		args := c.Args
		if len(args) == 0 {
			args = []string{"LIST"}
		}
		return "PRIVMSG", []string{chanserv, join("ACCESS", c.Channel, strings.Join(args, " "))}
	}
	return "", nil
}

// String renders the command as a raw line, for logs and notices
func (c Command) String() string {
	verb, params := c.Render(false, "ChanServ")
	if len(params) == 0 {
		return verb
	}
	last := len(params) - 1
	if strings.Contains(params[last], " ") || params[last] == "" {
		params = append(append([]string(nil), params[:last]...), ":"+params[last])
	}
	return verb + " " + strings.Join(params, " ")
}

// inverse returns the command that undoes c, if c can be undone by us.
// Akicks expire in services, kicks can't be undone.
func (c Command) inverse() (Command, bool) {
	if c.Kind != CmdBan || !c.Add {
		return Command{}, false
	}
	c.Add = false
	return c, true
}

func (c Command) same(o Command) bool {
	return c.Kind == o.Kind && c.Add == o.Add && c.Mode == o.Mode &&
		c.Mask == o.Mask && c.Forward == o.Forward && c.Target == o.Target
}

func join(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
