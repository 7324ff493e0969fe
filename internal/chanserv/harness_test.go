package chanserv

import (
	"strings"
	"testing"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const (
	serverName = "irc.example.net"
	chanServ   = "ChanServ!ChanServ@services."
	nickServ   = "NickServ!NickServ@services."
)

type fakeTimer struct {
	after time.Duration
	fn    func()
	fired bool
}

type fakeTransport struct {
	nick     string
	prefixes map[string]string
	sent     []string
	timers   []*fakeTimer
}

func (f *fakeTransport) Send(command string, params ...string) error {
	f.sent = append(f.sent, raw(command, params))
	return nil
}

func (f *fakeTransport) CurrentNick() string {
	return f.nick
}

func (f *fakeTransport) MembershipPrefix(channel, nick string) string {
	if nick != f.nick {
		return ""
	}
	return f.prefixes[strings.ToLower(channel)]
}

func (f *fakeTransport) ScheduleOnce(d time.Duration, fn func()) {
	f.timers = append(f.timers, &fakeTimer{after: d, fn: fn})
}

type recorder struct {
	notices []Notice
}

func (r *recorder) Report(n Notice) {
	r.notices = append(r.notices, n)
}

// raw renders a command the way it would appear on the wire
func raw(command string, params []string) string {
	if n := len(params); n > 0 {
		last := params[n-1]
		if last == "" || strings.Contains(last, " ") || strings.HasPrefix(last, ":") {
			params = append(append([]string(nil), params[:n-1]...), ":"+last)
		}
	}
	return strings.TrimSpace(command + " " + strings.Join(params, " "))
}

type harness struct {
	t   *testing.T
	now time.Time
	tr  *fakeTransport
	rec *recorder
	s   *Scheduler
}

func newHarness(t *testing.T, opts Options) *harness {
	h := &harness{
		t:   t,
		now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		tr:  &fakeTransport{nick: "bot", prefixes: make(map[string]string)},
		rec: &recorder{},
	}
	opts.Now = func() time.Time { return h.now }
	h.s = NewScheduler(h.tr, h.rec, opts)
	return h
}

func (h *harness) run(op Operation, args ...string) *Action {
	return h.runReq(Request{Op: op, Args: args})
}

func (h *harness) runReq(req Request) *Action {
	if req.Channel == "" {
		req.Channel = "#chan"
	}
	if req.Requester == "" {
		req.Requester = "alice"
	}
	a, err := h.s.Run(req)
	require.NoError(h.t, err)
	return a
}

func (h *harness) recv(source, command string, params ...string) {
	h.s.HandleMessage(ircmsg.MakeMessage(nil, source, command, params...))
}

// whois answers a WHOIS the way a server does. An empty account skips 330.
func (h *harness) whois(nick, user, host, account, realname string) {
	h.recv(serverName, RPL_WHOISUSER, "bot", nick, user, host, "*", realname)
	if account != "" {
		h.recv(serverName, RPL_WHOISACCOUNT, "bot", nick, account, "is logged in as")
	}
	h.recv(serverName, RPL_ENDOFWHOIS, "bot", nick, "End of /WHOIS list.")
}

func (h *harness) endBans() {
	h.recv(serverName, RPL_ENDOFBANLIST, "bot", "#chan", "End of Channel Ban List")
}

func (h *harness) grantOp() {
	h.recv(chanServ, "MODE", "#chan", "+o", "bot")
}

// sent returns and clears what was sent so far
func (h *harness) sent() []string {
	out := h.tr.sent
	h.tr.sent = nil
	return out
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

// fire runs every timer scheduled so far that has not run yet
func (h *harness) fire() {
	for _, tm := range append([]*fakeTimer(nil), h.tr.timers...) {
		if !tm.fired {
			tm.fired = true
			tm.fn()
		}
	}
}

func (h *harness) timer(after time.Duration) *fakeTimer {
	for _, tm := range h.tr.timers {
		if tm.after == after && !tm.fired {
			return tm
		}
	}
	h.t.Fatalf("no timer scheduled after %s", after)
	return nil
}

func (h *harness) texts() []string {
	var out []string
	for _, n := range h.rec.notices {
		out = append(out, n.Text)
	}
	return out
}

func (h *harness) failures(target error) []Notice {
	var out []Notice
	for _, n := range h.rec.notices {
		if n.Err != nil && errors.Is(n.Err, target) {
			out = append(out, n)
		}
	}
	return out
}
