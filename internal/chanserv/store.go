package chanserv

import (
	"strings"
	"time"

	"github.com/dalnet/chanops/internal/mask"
)

// FreshnessWindow is how long a resolved identity may be reused
const FreshnessWindow = 10 * time.Second

// Capabilities describe what the network and its services support
type Capabilities struct {
	Quiets bool `yaml:"quiets" toml:"quiets"` // +q lists
	Remove bool `yaml:"remove" toml:"remove"` // REMOVE instead of KICK
	Atheme bool `yaml:"atheme" toml:"atheme"` // AKICK and LISTCHANS
}

// Services names the service bots we talk to
type Services struct {
	ChanServ string `yaml:"chanserv" toml:"chanserv"`
	NickServ string `yaml:"nickserv" toml:"nickserv"`
}

// Entry is a ban, quiet or akick as listed by the server or services
type Entry struct {
	Mask   string
	Setter string
	SetAt  time.Time
	Reason string // akicks only: the whole listing line
}

type listKind int

const (
	listBans listKind = iota
	listQuiets
	listAkicks
)

type fetchState int

const (
	fetchStale fetchState = iota
	fetchCollecting
	fetchReady
)

type channelLists struct {
	state   fetchState
	started time.Time
	waiting map[listKind]bool
	bans    []Entry
	quiets  []Entry
	akicks  []Entry
}

type memberList struct {
	state   fetchState
	started time.Time
	rows    []mask.Identity
}

type identityRecord struct {
	mask.Identity
	fetched time.Time
}

// Store is the state shared by every Action of one IRC session: resolved
// identities, channel ban lists, membership snapshots and the channels
// where services granted us extra rights. It is only touched while the
// Scheduler lock is held.
type Store struct {
	Network  string
	Caps     Capabilities
	Services Services

	now func() time.Time

	identities map[string]*identityRecord
	partial    map[string]*mask.Identity
	resolving  map[string]time.Time
	whowasSent map[string]bool

	lists   map[string]*channelLists
	members map[string]*memberList

	// Only one channel collects akicks at a time; services don't say which
	// channel an entry belongs to.
	akickChannel string
	akickListing bool

	akickRights map[string]bool
	topicRights map[string]bool

	// ChanServ answers in order, but a refusal doesn't say what it refuses
	serviceQueue []serviceRequest
	opRequested  map[string]bool
}

// serviceRequest is a command sent to ChanServ still waiting for its answer
type serviceRequest struct {
	verb    string
	channel string
	sub     string
	sent    time.Time
}

func (r serviceRequest) isOp() bool {
	return r.verb == "OP"
}

func (r serviceRequest) isAkickList() bool {
	return r.verb == "AKICK" && r.sub == "LIST"
}

// NewStore creates an empty store. now defaults to time.Now.
func NewStore(network string, caps Capabilities, services Services, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	if services.ChanServ == "" {
		services.ChanServ = "ChanServ"
	}
	if services.NickServ == "" {
		services.NickServ = "NickServ"
	}
	return &Store{
		Network:     network,
		Caps:        caps,
		Services:    services,
		now:         now,
		identities:  make(map[string]*identityRecord),
		partial:     make(map[string]*mask.Identity),
		resolving:   make(map[string]time.Time),
		whowasSent:  make(map[string]bool),
		lists:       make(map[string]*channelLists),
		members:     make(map[string]*memberList),
		akickRights: make(map[string]bool),
		topicRights: make(map[string]bool),
		opRequested: make(map[string]bool),
	}
}

func key(s string) string {
	return strings.ToLower(s)
}

// Identity returns a fresh cached identity. Stale records are dropped.
func (s *Store) Identity(nick string) (mask.Identity, bool) {
	rec, ok := s.identities[key(nick)]
	if !ok {
		return mask.Identity{}, false
	}
	if s.now().Sub(rec.fetched) > FreshnessWindow {
		delete(s.identities, key(nick))
		return mask.Identity{}, false
	}
	return rec.Identity, true
}

// PutIdentity caches a resolved identity
func (s *Store) PutIdentity(id mask.Identity) {
	if id.IP == "" {
		id.IP, _ = mask.IPFromHost(id.Host)
	}
	s.identities[key(id.Nick)] = &identityRecord{Identity: id, fetched: s.now()}
}

// Resolving reports whether a lookup for nick is outstanding. Lookups
// that got no answer within the action timeout are forgotten.
func (s *Store) Resolving(nick string) bool {
	started, ok := s.resolving[key(nick)]
	if !ok {
		return false
	}
	if s.now().Sub(started) >= ActionTimeout {
		s.stopResolving(nick)
		return false
	}
	return true
}

func (s *Store) startResolving(nick string) {
	k := key(nick)
	s.resolving[k] = s.now()
	delete(s.partial, k)
	delete(s.whowasSent, k)
}

func (s *Store) stopResolving(nick string) {
	k := key(nick)
	delete(s.resolving, k)
	delete(s.partial, k)
	delete(s.whowasSent, k)
}

// fragment returns the partial identity collected so far for nick
func (s *Store) fragment(nick string) *mask.Identity {
	k := key(nick)
	id, ok := s.partial[k]
	if !ok {
		id = &mask.Identity{Nick: nick}
		s.partial[k] = id
	}
	return id
}

// CanAkick reports whether services let us manage the channel's akicks
func (s *Store) CanAkick(channel string) bool {
	return s.akickRights[key(channel)]
}

// CanTopic reports whether services let us set the channel's topic
func (s *Store) CanTopic(channel string) bool {
	return s.topicRights[key(channel)]
}

// GrantAkick records akick rights on channel
func (s *Store) GrantAkick(channel string) {
	s.akickRights[key(channel)] = true
}

// GrantTopic records topic rights on channel
func (s *Store) GrantTopic(channel string) {
	s.topicRights[key(channel)] = true
}

func (s *Store) channelLists(channel string) *channelLists {
	k := key(channel)
	cl, ok := s.lists[k]
	if !ok {
		cl = &channelLists{}
		s.lists[k] = cl
	}
	return cl
}

// invalidateLists marks the channel's lists for refetching unless a fetch
// is already running.
func (s *Store) invalidateLists(channel string) {
	cl := s.channelLists(channel)
	if !s.inFlight(cl.state, cl.started) {
		cl.state = fetchStale
	}
}

// inFlight reports whether a fetch is running and may still complete
func (s *Store) inFlight(state fetchState, started time.Time) bool {
	return state == fetchCollecting && s.now().Sub(started) < ActionTimeout
}

// collecting returns the channel lists if kind is still being received
func (s *Store) collecting(channel string, kind listKind) *channelLists {
	cl, ok := s.lists[key(channel)]
	if !ok || cl.state != fetchCollecting || !cl.waiting[kind] {
		return nil
	}
	return cl
}

// endList marks one list as complete. It returns true when every list
// requested for the channel has ended.
func (s *Store) endList(channel string, kind listKind) bool {
	cl := s.collecting(channel, kind)
	if cl == nil {
		return false
	}
	delete(cl.waiting, kind)
	if kind == listAkicks {
		s.akickChannel = ""
		s.akickListing = false
	}
	if len(cl.waiting) > 0 {
		return false
	}
	cl.state = fetchReady
	return true
}

// akickBusy reports whether another channel is collecting akicks. A fetch
// that never finished stops blocking after the action timeout.
func (s *Store) akickBusy(channel string) bool {
	if s.akickChannel == "" || key(s.akickChannel) == key(channel) {
		return false
	}
	cl := s.channelLists(s.akickChannel)
	if !s.inFlight(cl.state, cl.started) || !cl.waiting[listAkicks] {
		s.akickChannel = ""
		s.akickListing = false
		return false
	}
	return true
}

func (s *Store) memberList(channel string) *memberList {
	k := key(channel)
	ml, ok := s.members[k]
	if !ok {
		ml = &memberList{}
		s.members[k] = ml
	}
	return ml
}

func (s *Store) invalidateMembers(channel string) {
	ml := s.memberList(channel)
	if !s.inFlight(ml.state, ml.started) {
		ml.state = fetchStale
	}
}

func (s *Store) collectingMembers(channel string) *memberList {
	ml, ok := s.members[key(channel)]
	if !ok || ml.state != fetchCollecting {
		return nil
	}
	return ml
}

// startAkickListing is called when services begin an akick listing. It
// reports whether the listing belongs to a fetch of ours.
func (s *Store) startAkickListing(channel string) bool {
	if s.akickChannel == "" || key(s.akickChannel) != key(channel) {
		return false
	}
	if s.collecting(channel, listAkicks) == nil {
		return false
	}
	s.akickListing = true
	return true
}

func (s *Store) addAkick(e Entry) bool {
	if !s.akickListing {
		return false
	}
	cl := s.collecting(s.akickChannel, listAkicks)
	if cl == nil {
		return false
	}
	cl.akicks = append(cl.akicks, e)
	return true
}

// noteServiceRequest records a PRIVMSG to ChanServ so its answer can be
// told apart from the others.
func (s *Store) noteServiceRequest(command string, params []string) {
	if command != "PRIVMSG" || len(params) < 2 || !strings.EqualFold(params[0], s.Services.ChanServ) {
		return
	}
	words := strings.Fields(params[1])
	if len(words) == 0 {
		return
	}
	r := serviceRequest{verb: strings.ToUpper(words[0]), sent: s.now()}
	if len(words) > 1 {
		r.channel = words[1]
	}
	if len(words) > 2 {
		r.sub = strings.ToUpper(words[2])
	}
	s.pruneServiceQueue()
	s.serviceQueue = append(s.serviceQueue, r)
	if r.isOp() {
		s.opRequested[key(r.channel)] = true
	}
}

func (s *Store) pruneServiceQueue() {
	i := 0
	for i < len(s.serviceQueue) && s.now().Sub(s.serviceQueue[i].sent) >= ActionTimeout {
		i++
	}
	s.serviceQueue = s.serviceQueue[i:]
}

// serviceRefused takes the oldest outstanding ChanServ request, the one
// a refusal answers.
func (s *Store) serviceRefused() (serviceRequest, bool) {
	s.pruneServiceQueue()
	if len(s.serviceQueue) == 0 {
		return serviceRequest{}, false
	}
	r := s.serviceQueue[0]
	s.serviceQueue = s.serviceQueue[1:]
	if r.isOp() {
		delete(s.opRequested, key(r.channel))
	}
	return r, true
}

// serviceAnswered drops the oldest request answered by a plain notice.
// Op grants and akick listings are settled elsewhere.
func (s *Store) serviceAnswered() {
	s.pruneServiceQueue()
	for i, r := range s.serviceQueue {
		if r.isOp() || r.isAkickList() {
			continue
		}
		s.serviceQueue = append(s.serviceQueue[:i], s.serviceQueue[i+1:]...)
		return
	}
}

// serviceSettled drops the oldest request matching verb and sub on channel
func (s *Store) serviceSettled(verb, sub, channel string) {
	for i, r := range s.serviceQueue {
		if r.verb == verb && r.sub == sub && key(r.channel) == key(channel) {
			s.serviceQueue = append(s.serviceQueue[:i], s.serviceQueue[i+1:]...)
			return
		}
	}
}

// opGranted settles the op request on channel. It reports whether we had
// asked for one, even if the Action that asked is gone.
func (s *Store) opGranted(channel string) bool {
	s.serviceSettled("OP", "", channel)
	requested := s.opRequested[key(channel)]
	delete(s.opRequested, key(channel))
	return requested
}
