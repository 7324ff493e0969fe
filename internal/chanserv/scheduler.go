// Package chanserv queues compound channel moderation operations and
// drives each one through target lookup, list checks and privilege
// elevation before sending its commands.
package chanserv

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/google/uuid"

	"github.com/dalnet/chanops/internal/metrics"
)

// ActionTimeout is how long an Action may wait for replies
const ActionTimeout = 10 * time.Second

// Notice is a message for the user who asked for an Action. Err is set
// when the notice reports a failure.
type Notice struct {
	To      string
	Channel string
	Action  uuid.UUID
	Text    string
	Err     error
}

// Transport is the IRC connection as seen by the Scheduler
type Transport interface {
	Send(command string, params ...string) error
	CurrentNick() string
	// MembershipPrefix returns the status prefixes (@, +) nick holds on channel
	MembershipPrefix(channel, nick string) string
	// ScheduleOnce calls fn once after d, from outside any Scheduler call
	ScheduleOnce(d time.Duration, fn func())
}

// Reporter delivers notices to users
type Reporter interface {
	Report(n Notice)
}

// Options configures a Scheduler
type Options struct {
	Network      string
	Caps         Capabilities
	Services     Services
	KickMessage  string
	AkickMessage string
	Now          func() time.Time

	// OnExecute is called for every command an Action sends
	OnExecute func(a *Action, c Command)
}

// Scheduler owns the pending Actions of one IRC session. Every entry
// point takes the same lock, so Actions, the Store and replies are only
// ever touched by one goroutine at a time.
type Scheduler struct {
	mu        sync.Mutex
	transport Transport
	reporter  Reporter
	router    *Router
	store     *Store
	opts      Options
	now       func() time.Time

	pending       []*Action
	sweepArmed    bool
	lastRequester string
}

// NewScheduler creates a Scheduler sending through t and reporting to r
func NewScheduler(t Transport, r Reporter, opts Options) *Scheduler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.KickMessage == "" {
		opts.KickMessage = "Goodbye"
	}
	if opts.AkickMessage == "" {
		opts.AkickMessage = "Goodbye"
	}
	return &Scheduler{
		transport: t,
		reporter:  r,
		router:    NewRouter(),
		store:     NewStore(opts.Network, opts.Caps, opts.Services, opts.Now),
		opts:      opts,
		now:       opts.Now,
	}
}

// Codes lists the commands and numerics HandleMessage wants to see
func (s *Scheduler) Codes() []string {
	return s.router.Codes()
}

// Store returns the session store. It must not be used while other
// goroutines call into the Scheduler.
func (s *Scheduler) Store() *Store {
	return s.store
}

// Pending returns a snapshot of the queued Actions
func (s *Scheduler) Pending() []*Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Action(nil), s.pending...)
}

// Describe returns one line per queued Action with its current state
func (s *Scheduler) Describe() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.pending))
	for _, a := range s.pending {
		out = append(out, fmt.Sprintf("[%s] %s", a.State, a))
	}
	return out
}

// Build validates req and returns the Action it describes without
// queueing it. Notices about degraded commands are reported right away.
func (s *Scheduler) Build(req Request) (*Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, notices, err := s.build(req)
	if err != nil {
		return nil, err
	}
	s.reportAll(notices)
	return a, nil
}

// Run builds req and queues the resulting Action
func (s *Scheduler) Run(req Request) (*Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, notices, err := s.build(req)
	if err != nil {
		return nil, err
	}
	s.reportAll(notices)
	s.submit(a)
	return a, nil
}

// Submit queues a and drives everything pending as far as it can go
func (s *Scheduler) Submit(a *Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submit(a)
}

func (s *Scheduler) submit(a *Action) {
	a.Created = s.now()
	a.State = StateCreated
	if a.needsLists() {
		s.store.invalidateLists(a.Channel)
	}
	if a.needsMembers() {
		s.store.invalidateMembers(a.Channel)
	}
	s.pending = append(s.pending, a)
	if a.Requester != "" {
		s.lastRequester = a.Requester
	}
	metrics.ActionsSubmitted.WithLabelValues(a.Op.String()).Inc()
	metrics.PendingActions.Set(float64(len(s.pending)))
	s.drain()
}

// HandleMessage folds a server reply into the store and re-drives the
// Actions that were waiting on it.
func (s *Scheduler) HandleMessage(m ircmsg.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	effects := s.router.Route(s.store, m)
	if len(effects) == 0 {
		return
	}
	s.apply(effects)
}

func (s *Scheduler) apply(effects []Effect) {
	again := false
	for _, e := range effects {
		switch e.Kind {
		case EffectRedrive:
			again = true
		case EffectSend:
			s.request(e.Label, e.Command, e.Params...)
		case EffectNotice:
			s.report(Notice{To: s.lastRequester, Text: e.Text})
		case EffectFail:
			s.failNick(e.Nick)
			again = true
		case EffectElevated:
			if strings.EqualFold(e.Nick, s.transport.CurrentNick()) {
				s.elevated(e.Channel)
				again = true
			}
		case EffectDenied:
			s.denied(e.Channel)
			again = true
		}
	}
	if again {
		s.drain()
	}
}

// drain advances pending Actions until none of them can make progress.
// Whenever one Action moves, the others get another pass since it may
// have changed what they wait on.
func (s *Scheduler) drain() {
	work := append([]*Action(nil), s.pending...)
	for len(work) > 0 {
		a := work[0]
		work = work[1:]
		if !s.advance(a) {
			continue
		}
		for _, p := range s.pending {
			if p != a && !queued(work, p) {
				work = append(work, p)
			}
		}
	}
	s.armSweep()
}

func queued(work []*Action, a *Action) bool {
	for _, w := range work {
		if w == a {
			return true
		}
	}
	return false
}

// armSweep makes sure a timer is set for the earliest deadline
func (s *Scheduler) armSweep() {
	if s.sweepArmed || len(s.pending) == 0 {
		return
	}
	deadline := s.pending[0].Created
	for _, a := range s.pending[1:] {
		if a.Created.Before(deadline) {
			deadline = a.Created
		}
	}
	d := deadline.Add(ActionTimeout).Sub(s.now())
	if d < 0 {
		d = 0
	}
	s.sweepArmed = true
	s.transport.ScheduleOnce(d, s.sweep)
}

func (s *Scheduler) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepArmed = false
	s.drain()
}

// advance moves a through as many stages as it can. It returns true if
// anything changed.
func (s *Scheduler) advance(a *Action) bool {
	if a.State.Terminal() {
		return false
	}
	if !s.now().Before(a.Created.Add(ActionTimeout)) {
		if a.State == StateResolvingIdentity {
			s.report(a.notice(ErrResolutionFailure, "Cannot find '%s'", a.Nick))
			s.finish(a, StateCancelled)
			return true
		}
		s.report(a.notice(ErrTimeout, "Operation timed out."))
		s.finish(a, StateTimedOut)
		return true
	}

	progress := false

	if a.needsIdentity && !a.resolved {
		a.State = StateResolvingIdentity
		bound, moved := s.resolve(a)
		if !bound {
			return moved
		}
		progress = true
	}

	if a.needsLists() && !a.listsParsed {
		a.State = StateFetchingLists
		ready, moved := s.syncLists(a)
		if !ready {
			return progress || moved
		}
		progress = true
	}

	if a.needsMembers() && !a.membersParsed {
		a.State = StateFetchingMembers
		ready, moved := s.syncMembers(a)
		if !ready {
			return progress || moved
		}
		progress = true
	}

	if len(a.Commands) == 0 {
		s.finish(a, StateDone)
		return true
	}

	if !a.haveOp && s.opped(a.Channel) {
		a.haveOp = true
	}
	if a.needsOp && !a.haveOp {
		a.State = StateAwaitingPrivilege
		if a.elevationRequested {
			return progress
		}
		a.elevationRequested = true
		if !s.elevationPending(a) {
			s.request("op", "PRIVMSG", s.store.Services.ChanServ, "OP "+a.Channel)
		}
		return true
	}

	a.State = StateReady
	s.execute(a)
	s.finish(a, StateDone)
	return true
}

// elevationPending reports whether another Action already asked for op
// on a's channel and is still waiting for it.
func (s *Scheduler) elevationPending(a *Action) bool {
	for _, p := range s.pending {
		if p != a && key(p.Channel) == key(a.Channel) && p.elevationRequested && !p.haveOp {
			return true
		}
	}
	return false
}

func (s *Scheduler) opped(channel string) bool {
	return strings.Contains(s.transport.MembershipPrefix(channel, s.transport.CurrentNick()), "@")
}

func (s *Scheduler) execute(a *Action) {
	for _, c := range a.Commands {
		verb, params := c.Render(a.haveOp, s.store.Services.ChanServ)
		if err := s.transport.Send(verb, params...); err != nil {
			log.Printf("Error sending %s for action %s: %v", verb, a.ID, err)
		}
		s.store.noteServiceRequest(verb, params)
		metrics.CommandsSent.WithLabelValues(verb).Inc()
		if s.opts.OnExecute != nil {
			s.opts.OnExecute(a, c)
		}
	}
	a.executed = true
	a.State = StateExecuted
}

// finish removes a from the queue, hands back op if we took it for a and
// schedules the inverse of a timed ban.
func (s *Scheduler) finish(a *Action, state State) {
	a.State = state
	s.remove(a)
	metrics.ActionsFinished.WithLabelValues(a.Op.String(), state.String()).Inc()
	metrics.PendingActions.Set(float64(len(s.pending)))

	if a.selfElevated {
		s.dropElevation(a)
	}

	if state == StateDone && a.executed && a.Expiry > 0 {
		if inv := a.inverse(); inv != nil {
			log.Printf("Lifting bans of action %s in %s", a.ID, a.Expiry)
			s.transport.ScheduleOnce(a.Expiry, func() { s.Submit(inv) })
		}
	}
	if state != StateDone {
		log.Printf("Action %s %s", a, state)
	}
}

// dropElevation passes the duty to deop on to another Action relying on
// the same grant, or deops if none is left.
func (s *Scheduler) dropElevation(a *Action) {
	for _, p := range s.pending {
		if key(p.Channel) == key(a.Channel) && p.haveOp && p.needsOp {
			p.selfElevated = true
			return
		}
	}
	s.request("deop", "MODE", a.Channel, "-o", s.transport.CurrentNick())
}

func (s *Scheduler) remove(a *Action) {
	for i, p := range s.pending {
		if p == a {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// elevated marks Actions waiting on channel as opped. A grant we asked
// for that no Action is left to use is handed straight back.
func (s *Scheduler) elevated(channel string) {
	requested := s.store.opGranted(channel)
	owned := false
	for _, a := range s.pending {
		if key(a.Channel) == key(channel) && a.elevationRequested && !a.haveOp {
			owned = true
		}
	}
	if requested && !owned {
		log.Printf("Op on %s arrived with nothing left to do, giving it back", channel)
		s.request("deop", "MODE", channel, "-o", s.transport.CurrentNick())
		return
	}

	for _, a := range s.pending {
		if key(a.Channel) != key(channel) || a.haveOp {
			continue
		}
		a.haveOp = true
		if a.elevationRequested {
			a.selfElevated = true
		}
	}
}

// denied cancels Actions waiting for op on channel
func (s *Scheduler) denied(channel string) {
	for _, a := range append([]*Action(nil), s.pending...) {
		if !a.elevationRequested || a.haveOp || key(a.Channel) != key(channel) {
			continue
		}
		s.report(a.notice(ErrInsufficientPrivilege, "Insufficient privileges on %s.", a.Channel))
		s.finish(a, StateCancelled)
	}
}

// failNick cancels Actions waiting on a nick that could not be found
func (s *Scheduler) failNick(nick string) {
	for _, a := range append([]*Action(nil), s.pending...) {
		if !a.needsIdentity || a.resolved || key(a.Nick) != key(nick) {
			continue
		}
		s.report(a.notice(ErrResolutionFailure, "Cannot find '%s'", a.Nick))
		s.finish(a, StateCancelled)
	}
}

// request sends an information or privilege request
func (s *Scheduler) request(kind, command string, params ...string) {
	if err := s.transport.Send(command, params...); err != nil {
		log.Printf("Error sending %s: %v", command, err)
	}
	s.store.noteServiceRequest(command, params)
	metrics.RequestsSent.WithLabelValues(kind).Inc()
}

func (s *Scheduler) report(n Notice) {
	if s.reporter != nil {
		s.reporter.Report(n)
	}
}

func (s *Scheduler) reportAll(notices []Notice) {
	for _, n := range notices {
		s.report(n)
	}
}
