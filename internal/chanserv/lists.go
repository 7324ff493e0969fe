package chanserv

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dalnet/chanops/internal/mask"
)

// maxMatches is how many nicks a matches reply lists before eliding
const maxMatches = 12

// syncLists makes sure the channel's ban lists are current and applies
// them to a once they are.
func (s *Scheduler) syncLists(a *Action) (ready, moved bool) {
	cl := s.store.channelLists(a.Channel)
	switch {
	case s.store.inFlight(cl.state, cl.started):
		return false, false
	case cl.state != fetchReady:
		if s.store.CanAkick(a.Channel) && s.store.akickBusy(a.Channel) {
			return false, false
		}
		s.fetchLists(a.Channel, cl)
		return false, true
	}
	s.parseLists(a, cl)
	a.listsParsed = true
	return true, true
}

func (s *Scheduler) fetchLists(channel string, cl *channelLists) {
	cl.state = fetchCollecting
	cl.started = s.now()
	cl.bans, cl.quiets, cl.akicks = nil, nil, nil
	cl.waiting = map[listKind]bool{listBans: true}

	if s.store.Caps.Quiets {
		cl.waiting[listQuiets] = true
		s.request("lists", "MODE", channel, "+qb")
	} else {
		s.request("lists", "MODE", channel, "+b")
	}

	if s.store.CanAkick(channel) {
		cl.waiting[listAkicks] = true
		s.store.akickChannel = channel
		s.store.akickListing = false
		s.request("akick", "PRIVMSG", s.store.Services.ChanServ, "AKICK "+channel+" LIST")
	}
}

// parseLists drops ban commands whose mask is already listed, or for
// unban and bans, collects the entries matching the target.
func (s *Scheduler) parseLists(a *Action, cl *channelLists) {
	if a.Op.IsBan() {
		var kept []Command
		for _, c := range a.Commands {
			if c.isListAdd() {
				if text, dup := duplicate(c, cl); dup {
					s.report(a.notice(ErrDuplicateEntry, "%s", text))
					continue
				}
			}
			kept = append(kept, c)
		}
		a.Commands = kept
		return
	}

	listing := a.Op == OpBans
	if listing && !a.filtered {
		s.report(a.notice(nil, "Channel: %s", a.Channel))
	}

	found := false
	for _, e := range cl.quiets {
		if a.filtered && !mask.Match(e.Mask, a.target) {
			continue
		}
		found = true
		if listing {
			s.report(a.notice(nil, "Quiet: %s", describeEntry(e)))
		} else {
			a.Commands = append(a.Commands, Command{Kind: CmdBan, Channel: a.Channel, Mode: 'q', Mask: e.Mask})
		}
	}
	for _, e := range cl.bans {
		if a.filtered && !mask.Match(e.Mask, a.target) {
			continue
		}
		found = true
		if listing {
			s.report(a.notice(nil, "Ban: %s", describeEntry(e)))
		} else {
			a.Commands = append(a.Commands, Command{Kind: CmdBan, Channel: a.Channel, Mode: 'b', Mask: e.Mask})
		}
	}
	for _, e := range cl.akicks {
		if a.filtered && !mask.Match(e.Mask, a.target) {
			continue
		}
		found = true
		if listing {
			s.report(a.notice(nil, "AKICK: %s", e.Reason))
		} else {
			a.Commands = append(a.Commands, Command{Kind: CmdAkick, Channel: a.Channel, Mask: e.Mask})
		}
	}

	if !found {
		if a.filtered {
			s.report(a.notice(nil, "No matching bans for this user."))
		} else {
			s.report(a.notice(nil, "No bans for this channel."))
		}
	}
}

func describeEntry(e Entry) string {
	setter, date := e.Setter, "unknown"
	if setter == "" {
		setter = "unknown"
	}
	if !e.SetAt.IsZero() {
		date = e.SetAt.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprintf("%s [setter: %s, date: %s]", e.Mask, setter, date)
}

// duplicate reports whether c would add an entry that is already listed
func duplicate(c Command, cl *channelLists) (string, bool) {
	list, name := cl.bans, "ban"
	switch {
	case c.Kind == CmdAkick:
		list, name = cl.akicks, "AKICK"
	case c.Mode == 'q':
		list, name = cl.quiets, "quiet"
	}
	for _, e := range list {
		if mask.StripForward(e.Mask) == c.Mask {
			return fmt.Sprintf("%s is already on %s list.", e.Mask, name), true
		}
	}
	return "", false
}

// syncMembers makes sure the channel's member snapshot is current and
// reports the members a's mask matches.
func (s *Scheduler) syncMembers(a *Action) (ready, moved bool) {
	ml := s.store.memberList(a.Channel)
	switch {
	case s.store.inFlight(ml.state, ml.started):
		return false, false
	case ml.state != fetchReady:
		ml.state = fetchCollecting
		ml.started = s.now()
		ml.rows = nil
		s.request("who", "WHO", a.Channel, whoxFields)
		return false, true
	}
	s.reportMatches(a, ml)
	a.membersParsed = true
	return true, true
}

func (s *Scheduler) reportMatches(a *Action, ml *memberList) {
	seen := make(map[string]bool)
	var nicks []string
	for _, id := range ml.rows {
		if seen[key(id.Nick)] || !mask.Match(a.fullMask, id) {
			continue
		}
		seen[key(id.Nick)] = true
		nicks = append(nicks, id.Nick)
	}
	if len(nicks) == 0 {
		s.report(a.notice(nil, "No matches for this mask."))
		return
	}
	sort.Strings(nicks)

	shown := nicks
	if len(nicks) > maxMatches {
		shown = append(nicks[:maxMatches-1:maxMatches-1], "...")
	}
	plural := "s"
	if len(nicks) == 1 {
		plural = ""
	}
	s.report(a.notice(nil, "Matches %d user%s: %s", len(nicks), plural, strings.Join(shown, ", ")))
}
