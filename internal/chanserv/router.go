package chanserv

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircfmt"
	"github.com/ergochat/irc-go/ircmsg"

	"github.com/dalnet/chanops/internal/mask"
)

// EffectKind says what the Scheduler should do after a reply was routed
type EffectKind int

const (
	// EffectRedrive re-drives pending Actions
	EffectRedrive EffectKind = iota
	// EffectSend sends a protocol command
	EffectSend
	// EffectNotice relays text to the last requester
	EffectNotice
	// EffectFail cancels Actions waiting on Nick
	EffectFail
	// EffectElevated reports that Nick was given op on Channel
	EffectElevated
	// EffectDenied cancels Actions waiting for op on Channel
	EffectDenied
)

// Effect is one consequence of a routed reply
type Effect struct {
	Kind    EffectKind
	Nick    string
	Channel string
	Text    string
	Label   string // request kind, for metrics
	Command string
	Params  []string
}

// Handler folds one server reply into the store
type Handler func(s *Store, m ircmsg.Message) []Effect

// Router dispatches server replies by command or numeric
type Router struct {
	table map[string]Handler
}

var (
	accessFlagsRe = regexp.MustCompile(`^Access flag\(s\) (\S+) in (\S+)`)
	unbannedRe    = regexp.MustCompile(`^Unbanned \S+ on (\S+?)\.?$`)
	channelKeyRe  = regexp.MustCompile(`^Channel (\S+) key is: (\S+)`)
	akickStartRe  = regexp.MustCompile(`^AKICK list for (\S+?):?$`)
	akickEntryRe  = regexp.MustCompile(`^\d+: (\S+) .*\[setter: .*modified: `)
	akickEndRe    = regexp.MustCompile(`^Total of \d+ entr\S* in (\S+?)'s AKICK list\.?$`)
)

// NewRouter returns a router with every reply the Scheduler consumes
func NewRouter() *Router {
	r := &Router{table: make(map[string]Handler)}

	// WHOIS and WHOWAS
	r.Handle(RPL_WHOISUSER, onWhoisUser)
	r.Handle(RPL_WHOWASUSER, onWhoisUser)
	r.Handle(RPL_WHOISACCOUNT, onWhoisAccount)
	r.Handle(RPL_WHOISREGNICK, onWhoisRegNick)
	r.Handle(RPL_ENDOFWHOIS, onEndOfWhois)
	r.Handle(RPL_ENDOFWHOWAS, onEndOfWhois)
	r.Handle(ERR_NOSUCHNICK, onNoSuchNick)
	r.Handle(ERR_WASNOSUCHNICK, onWasNoSuchNick)

	// Ban and quiet lists
	r.Handle(RPL_BANLIST, onBanList)
	r.Handle(RPL_ENDOFBANLIST, onEndOfBanList)
	r.Handle(RPL_QUIETLIST, onQuietList)
	r.Handle(RPL_QUIETLIST_OLD, onQuietList)
	r.Handle(RPL_ENDOFQUIETLIST, onEndOfQuietList)
	r.Handle(RPL_ENDOFQUIETLIST_OLD, onEndOfQuietList)

	// Membership
	r.Handle(RPL_WHOREPLY, onWhoReply)
	r.Handle(RPL_WHOSPCRPL, onWhoSpcReply)
	r.Handle(RPL_ENDOFWHO, onEndOfWho)

	// Services and privileges
	r.Handle("NOTICE", onNotice)
	r.Handle("MODE", onMode)
	r.Handle("INVITE", onInvite)
	r.Handle(ERR_CHANOPRIVSNEEDED, onChanOpPrivsNeeded)
	r.Handle(ERR_CANNOTSENDTOCHAN, onCannotJoin)
	r.Handle(ERR_CHANNELISFULL, onCannotJoin)
	r.Handle(ERR_INVITEONLYCHAN, onCannotJoin)
	r.Handle(ERR_BANNEDFROMCHAN, onCannotJoin)
	r.Handle(ERR_BADCHANNELKEY, onCannotJoin)
	r.Handle(RPL_ENDOFMOTD, onEndOfMOTD)
	r.Handle(ERR_NOMOTD, onEndOfMOTD)

	return r
}

// Handle registers h for a command or numeric, replacing any previous one
func (r *Router) Handle(code string, h Handler) {
	r.table[strings.ToUpper(code)] = h
}

// Codes lists every command the router consumes
func (r *Router) Codes() []string {
	codes := make([]string, 0, len(r.table))
	for code := range r.table {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Route passes m to its handler
func (r *Router) Route(s *Store, m ircmsg.Message) []Effect {
	h, ok := r.table[strings.ToUpper(m.Command)]
	if !ok {
		return nil
	}
	return h(s, m)
}

func redrive() []Effect {
	return []Effect{{Kind: EffectRedrive}}
}

func send(label, command string, params ...string) Effect {
	return Effect{Kind: EffectSend, Label: label, Command: command, Params: params}
}

// 311/314 <me> <nick> <user> <host> * :<realname>
func onWhoisUser(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 6 || !s.Resolving(m.Params[1]) {
		return nil
	}
	id := s.fragment(m.Params[1])
	if id.Host == "" {
		id.Nick = m.Params[1]
		id.Ident = m.Params[2]
		id.Host = m.Params[3]
		id.RealName = m.Params[5]
	}
	return nil
}

// 330 <me> <nick> <account> :is logged in as
func onWhoisAccount(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 3 || !s.Resolving(m.Params[1]) {
		return nil
	}
	s.fragment(m.Params[1]).Account = m.Params[2]
	return nil
}

// 307 <me> <nick> :has identified for this nick
func onWhoisRegNick(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 2 || !s.Resolving(m.Params[1]) {
		return nil
	}
	if id := s.fragment(m.Params[1]); id.Account == "" {
		id.Account = m.Params[1]
	}
	return nil
}

// 318/369 <me> <nick> :End of WHOIS
func onEndOfWhois(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 2 || !s.Resolving(m.Params[1]) {
		return nil
	}
	nick := m.Params[1]
	id := s.fragment(nick)
	if id.Host == "" {
		// 401 or 406 decides
		return nil
	}
	s.PutIdentity(*id)
	s.stopResolving(nick)
	return redrive()
}

// 401 <me> <nick> :No such nick
func onNoSuchNick(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 2 || !s.Resolving(m.Params[1]) {
		return nil
	}
	nick := m.Params[1]
	k := key(nick)
	if !s.whowasSent[k] {
		s.whowasSent[k] = true
		return []Effect{send("whowas", "WHOWAS", nick)}
	}
	s.stopResolving(nick)
	return []Effect{{Kind: EffectFail, Nick: nick}}
}

// 406 <me> <nick> :There was no such nickname
func onWasNoSuchNick(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 2 || !s.Resolving(m.Params[1]) {
		return nil
	}
	s.stopResolving(m.Params[1])
	return []Effect{{Kind: EffectFail, Nick: m.Params[1]}}
}

func entry(params []string) Entry {
	e := Entry{Mask: params[0]}
	if len(params) > 1 {
		e.Setter = params[1]
	}
	if len(params) > 2 {
		if ts, err := strconv.ParseInt(params[2], 10, 64); err == nil {
			e.SetAt = time.Unix(ts, 0).UTC()
		}
	}
	return e
}

// 367 <me> <channel> <mask> [<setter> <time>]
func onBanList(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 3 {
		return nil
	}
	if cl := s.collecting(m.Params[1], listBans); cl != nil {
		cl.bans = append(cl.bans, entry(m.Params[2:]))
	}
	return nil
}

// 728 <me> <channel> q <mask> <setter> <time>, or 344 without the q
func onQuietList(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 5 {
		return nil
	}
	if cl := s.collecting(m.Params[1], listQuiets); cl != nil {
		cl.quiets = append(cl.quiets, entry(m.Params[len(m.Params)-3:]))
	}
	return nil
}

func onEndOfBanList(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 2 || !s.endList(m.Params[1], listBans) {
		return nil
	}
	return redrive()
}

func onEndOfQuietList(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 2 || !s.endList(m.Params[1], listQuiets) {
		return nil
	}
	return redrive()
}

// 352 <me> <channel> <user> <host> <server> <nick> <flags> :<hops> <realname>
func onWhoReply(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 8 {
		return nil
	}
	ml := s.collectingMembers(m.Params[1])
	if ml == nil {
		return nil
	}
	_, realname, _ := strings.Cut(m.Params[7], " ")
	id := mask.Identity{
		Nick:     m.Params[5],
		Ident:    m.Params[2],
		Host:     m.Params[3],
		RealName: realname,
	}
	id.IP, _ = mask.IPFromHost(id.Host)
	ml.rows = append(ml.rows, id)
	return nil
}

// 354 <me> <channel> <user> <host> <nick> <account> :<realname>
func onWhoSpcReply(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 7 {
		return nil
	}
	ml := s.collectingMembers(m.Params[1])
	if ml == nil {
		return nil
	}
	id := mask.Identity{
		Nick:     m.Params[4],
		Ident:    m.Params[2],
		Host:     m.Params[3],
		Account:  m.Params[5],
		RealName: m.Params[6],
	}
	if id.Account == "0" {
		id.Account = ""
	}
	id.IP, _ = mask.IPFromHost(id.Host)
	ml.rows = append(ml.rows, id)
	return nil
}

// 315 <me> <channel> :End of WHO list
func onEndOfWho(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 2 {
		return nil
	}
	ml := s.collectingMembers(m.Params[1])
	if ml == nil {
		return nil
	}
	ml.state = fetchReady
	return redrive()
}

func onNotice(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 2 {
		return nil
	}
	text := strings.TrimLeft(ircfmt.Strip(m.Params[1]), "+")
	switch from := m.Nick(); {
	case strings.EqualFold(from, s.Services.NickServ):
		return onNickServNotice(s, text)
	case strings.EqualFold(from, s.Services.ChanServ):
		return onChanServNotice(s, text)
	}
	return nil
}

// LISTCHANS output tells us where we may manage akicks and topics
func onNickServNotice(s *Store, text string) []Effect {
	if parts := accessFlagsRe.FindStringSubmatch(text); parts != nil {
		flags, channel := parts[1], parts[2]
		if strings.ContainsRune(flags, 'f') {
			s.GrantAkick(channel)
		}
		if strings.ContainsRune(flags, 't') {
			s.GrantTopic(channel)
		}
	}
	return nil
}

func onChanServNotice(s *Store, text string) []Effect {
	if parts := akickStartRe.FindStringSubmatch(text); parts != nil {
		if s.startAkickListing(parts[1]) {
			return nil
		}
	}
	if s.akickListing {
		if parts := akickEntryRe.FindStringSubmatch(text); parts != nil {
			_, line, _ := strings.Cut(text, " ")
			if s.addAkick(Entry{Mask: parts[1], Reason: line}) {
				return nil
			}
		}
	}
	if parts := akickEndRe.FindStringSubmatch(text); parts != nil {
		if s.akickChannel != "" && key(s.akickChannel) == key(parts[1]) {
			s.serviceSettled("AKICK", "LIST", parts[1])
			if s.endList(parts[1], listAkicks) {
				return redrive()
			}
			return nil
		}
	}

	if strings.HasPrefix(text, "You are not authorized") {
		return onServiceRefusal(s, text)
	}
	s.serviceAnswered()

	switch {
	case unbannedRe.MatchString(text):
		channel := unbannedRe.FindStringSubmatch(text)[1]
		return []Effect{send("join", "JOIN", channel)}
	case channelKeyRe.MatchString(text):
		parts := channelKeyRe.FindStringSubmatch(text)
		return []Effect{send("join", "JOIN", parts[1], parts[2])}
	}
	return []Effect{{Kind: EffectNotice, Text: text}}
}

// onServiceRefusal pins a refusal on the oldest request ChanServ has not
// answered. Only a refused OP cancels anything, and only on its channel.
func onServiceRefusal(s *Store, text string) []Effect {
	effects := []Effect{{Kind: EffectNotice, Text: text}}
	r, ok := s.serviceRefused()
	switch {
	case !ok:
	case r.isOp():
		effects = append(effects, Effect{Kind: EffectDenied, Channel: r.channel})
	case r.isAkickList():
		if s.endList(r.channel, listAkicks) {
			effects = append(effects, redrive()...)
		}
	}
	return effects
}

// MODE <channel> <modes> [args...] set by services
func onMode(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 3 || !strings.EqualFold(m.Nick(), s.Services.ChanServ) {
		return nil
	}
	channel := m.Params[0]
	args := m.Params[2:]
	adding := true
	var effects []Effect
	for _, c := range m.Params[1] {
		switch c {
		case '+':
			adding = true
			continue
		case '-':
			adding = false
			continue
		}
		if !ModeTakesArg(c, adding) || len(args) == 0 {
			continue
		}
		arg := args[0]
		args = args[1:]
		if c == 'o' && adding {
			effects = append(effects, Effect{Kind: EffectElevated, Channel: channel, Nick: arg})
		}
	}
	return effects
}

// ModeTakesArg reports whether channel mode c consumes an argument
func ModeTakesArg(c rune, adding bool) bool {
	switch c {
	case 'o', 'v', 'h', 'b', 'q', 'e', 'I', 'k':
		return true
	case 'l', 'f', 'j':
		return adding
	}
	return false
}

// INVITE <me> <channel> from services
func onInvite(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 2 || !strings.EqualFold(m.Nick(), s.Services.ChanServ) {
		return nil
	}
	return []Effect{send("join", "JOIN", m.Params[1])}
}

// 482 <me> <channel> :You're not a channel operator
func onChanOpPrivsNeeded(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 2 {
		return nil
	}
	text := m.Params[1]
	if len(m.Params) > 2 {
		text += ": " + m.Params[2]
	}
	return []Effect{
		{Kind: EffectNotice, Text: text},
		{Kind: EffectDenied, Channel: m.Params[1]},
	}
}

// Ask services to let us into channels we can't join or speak in
func onCannotJoin(s *Store, m ircmsg.Message) []Effect {
	if len(m.Params) < 2 {
		return nil
	}
	channel := m.Params[1]
	var verb string
	switch m.Command {
	case ERR_CANNOTSENDTOCHAN, ERR_BANNEDFROMCHAN:
		verb = "UNBAN"
	case ERR_CHANNELISFULL, ERR_INVITEONLYCHAN:
		verb = "INVITE"
	case ERR_BADCHANNELKEY:
		verb = "GETKEY"
	}
	return []Effect{send("join", "PRIVMSG", s.Services.ChanServ, verb+" "+channel)}
}

func onEndOfMOTD(s *Store, m ircmsg.Message) []Effect {
	if !s.Caps.Atheme {
		return nil
	}
	return []Effect{send("listchans", "PRIVMSG", s.Services.NickServ, "LISTCHANS")}
}
