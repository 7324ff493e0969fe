package irc

import (
	"crypto/tls"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"
	"github.com/pkg/errors"

	"github.com/dalnet/chanops/internal/chanserv"
	"github.com/dalnet/chanops/internal/config"
	"github.com/dalnet/chanops/internal/storage"
)

// Version information (set at build time or here)
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// nickRecovery is how long we wait on the alternate nick before asking
// NickServ for ours back
const nickRecovery = 15 * time.Second

// Client represents the IRC bot client
type Client struct {
	conn   *ircevent.Connection
	cfg    *config.Config
	mu     sync.RWMutex
	ready  bool
	closed bool

	scheduler *chanserv.Scheduler
	members   *Membership

	// Executed moderation commands, and bot commands received
	actions *storage.Journal
	stats   *storage.Journal

	// Admin session tracking: nick -> is admin
	admins map[string]bool

	// Shutdown/restart callbacks
	OnShutdown func()
	OnRestart  func()
}

// NewClient creates a new IRC client
func NewClient(cfg *config.Config) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		admins: make(map[string]bool),
	}

	var err error
	c.actions, err = storage.OpenJournal(cfg.DataDir, storage.ActionsFile)
	if err != nil {
		return nil, errors.Wrap(err, "could not load action log")
	}
	c.stats, err = storage.OpenJournal(cfg.DataDir, storage.StatsFile)
	if err != nil {
		return nil, errors.Wrap(err, "could not load stats")
	}

	// Create IRC connection
	conn := &ircevent.Connection{
		Server:      fmt.Sprintf("%s:%d", cfg.Server, cfg.Port),
		Nick:        cfg.Nick,
		User:        cfg.Username,
		RealName:    cfg.IRCName,
		Password:    cfg.ServerPass,
		QuitMessage: "Shutting down",
		Debug:       false,
		UseTLS:      cfg.TLS,
		TLSConfig:   &tls.Config{ServerName: cfg.Server},
		RequestCaps: []string{"multi-prefix"},
	}
	if cfg.SASLLogin != "" && cfg.SASLPass != "" {
		conn.UseSASL = true
		conn.SASLLogin = cfg.SASLLogin
		conn.SASLPassword = cfg.SASLPass
	}
	c.conn = conn

	c.members = NewMembership(conn.CurrentNick)
	c.scheduler = chanserv.NewScheduler(c, c, chanserv.Options{
		Network:      cfg.Network,
		Caps:         cfg.Capabilities,
		Services:     cfg.Services,
		KickMessage:  cfg.KickMessage,
		AkickMessage: cfg.AkickMessage,
		OnExecute:    c.logAction,
	})

	// Register handlers
	c.registerHandlers()

	return c, nil
}

func (c *Client) registerHandlers() {
	// Connected (end of MOTD)
	c.conn.AddCallback("376", c.onConnect)
	c.conn.AddCallback("422", c.onConnect) // MOTD missing is also "connected"
	c.conn.AddDisconnectCallback(c.onDisconnect)

	// Channel membership goes first so the scheduler sees current prefixes
	for _, code := range c.members.Codes() {
		c.conn.AddCallback(code, c.members.Handle)
	}

	// Replies feeding pending operations
	for _, code := range c.scheduler.Codes() {
		c.conn.AddCallback(code, c.scheduler.HandleMessage)
	}

	// Bot commands
	c.conn.AddCallback("PRIVMSG", c.onPrivMsg)

	// Nick issues
	c.conn.AddCallback("432", c.onNickHeld)  // ERR_ERRONEUSNICKNAME
	c.conn.AddCallback("433", c.onNickInUse) // ERR_NICKNAMEINUSE

	// WATCH logout notification
	c.conn.AddCallback("601", c.onWatchLogout) // RPL_LOGOFF

	// CTCP VERSION
	c.conn.AddCallback("CTCP_VERSION", c.onCtcpVersion)
}

// Connect initiates the IRC connection
func (c *Client) Connect() error {
	return c.conn.Connect()
}

// Loop runs the IRC event loop (blocking)
func (c *Client) Loop() {
	c.conn.Loop()
}

// Quit disconnects from IRC
func (c *Client) Quit(message string) {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.conn.QuitMessage = message
	c.conn.Quit()
}

// Send implements chanserv.Transport
func (c *Client) Send(command string, params ...string) error {
	return c.conn.Send(command, params...)
}

// CurrentNick implements chanserv.Transport
func (c *Client) CurrentNick() string {
	return c.conn.CurrentNick()
}

// MembershipPrefix implements chanserv.Transport
func (c *Client) MembershipPrefix(channel, nick string) string {
	return c.members.Prefix(channel, nick)
}

// ScheduleOnce implements chanserv.Transport
func (c *Client) ScheduleOnce(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// Report sends an operation notice to whoever asked for it
func (c *Client) Report(n chanserv.Notice) {
	if n.Err != nil {
		log.Printf("Action %s on %s: %s (%v)", n.Action, n.Channel, n.Text, n.Err)
	}
	if n.To == "" {
		log.Printf("Notice with no requester: %s", n.Text)
		return
	}
	c.conn.Notice(n.To, n.Text)
}

func (c *Client) onConnect(e ircmsg.Message) {
	log.Println("Connected to IRC server")

	// Identify to NickServ
	if c.cfg.NickPass != "" {
		c.conn.Privmsg(c.cfg.Services.NickServ, fmt.Sprintf("IDENTIFY %s %s", c.cfg.Nick, c.cfg.NickPass))
	}

	for _, ch := range c.cfg.Channels {
		c.conn.Send("JOIN", ch)
	}

	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()

	log.Println("Bot initialization complete")
}

func (c *Client) onDisconnect(e ircmsg.Message) {
	log.Println("Disconnected from IRC server")
	c.members.Reset()

	c.mu.Lock()
	c.ready = false
	c.admins = make(map[string]bool)
	c.mu.Unlock()
}

func (c *Client) onPrivMsg(e ircmsg.Message) {
	if len(e.Params) < 2 {
		return
	}

	target := e.Params[0]
	message := e.Params[1]
	if !strings.HasPrefix(message, "!") {
		return
	}
	nick := e.Nick()
	nuh, err := e.NUH()
	if err != nil {
		return
	}
	hostmask := nuh.Canonical()

	replyTo := target
	if strings.EqualFold(target, c.conn.CurrentNick()) {
		replyTo = nick
	} else if !chanserv.IsValidChannel(target) {
		return
	}
	c.handleCommand(nick, hostmask, replyTo, message)
}

func (c *Client) onNickHeld(e ircmsg.Message) {
	c.recoverNick("RELEASE")
}

func (c *Client) onNickInUse(e ircmsg.Message) {
	c.recoverNick("GHOST")
}

// recoverNick moves to the alternate nick, then asks NickServ to free ours
func (c *Client) recoverNick(how string) {
	if c.conn.CurrentNick() == c.cfg.Alternate {
		return
	}
	log.Printf("Nick unavailable, switching to alternate: %s", c.cfg.Alternate)
	c.conn.SetNick(c.cfg.Alternate)

	if c.cfg.NickPass == "" {
		return
	}
	time.AfterFunc(nickRecovery, func() {
		c.conn.Privmsg(c.cfg.Services.NickServ, fmt.Sprintf("%s %s %s", how, c.cfg.Nick, c.cfg.NickPass))
		time.AfterFunc(2*time.Second, func() {
			c.conn.SetNick(c.cfg.Nick)
		})
	})
}

func (c *Client) onWatchLogout(e ircmsg.Message) {
	// 601 <me> <nick> <user> <host> <timestamp> :logged out
	if len(e.Params) < 2 {
		return
	}
	nick := e.Params[1]

	c.mu.Lock()
	delete(c.admins, key(nick))
	c.mu.Unlock()

	c.conn.Send("WATCH", "-"+nick)
}

func (c *Client) onCtcpVersion(e ircmsg.Message) {
	nick := e.Nick()
	reply := fmt.Sprintf("chanops %s (built %s, commit %s)", Version, BuildDate, GitCommit)
	c.conn.SendRaw(fmt.Sprintf("NOTICE %s :\x01VERSION %s\x01", nick, reply))
}

func timestamp() string {
	return time.Now().UTC().Format("Mon Jan 02, 2006 at 15:04:05 GMT")
}

func (c *Client) logCommand(hostmask, command string) {
	entry := fmt.Sprintf("%s: %s -> %s", timestamp(), hostmask, command)
	if err := c.stats.Add(entry); err != nil {
		log.Printf("Error saving stats: %v", err)
	}
}

// logAction records a command sent for an operation. It runs under the
// scheduler lock.
func (c *Client) logAction(a *chanserv.Action, cmd chanserv.Command) {
	entry := formatAction(timestamp(), a, cmd)
	if err := c.actions.Add(entry); err != nil {
		log.Printf("Error saving action log: %v", err)
	}
}

func formatAction(ts string, a *chanserv.Action, cmd chanserv.Command) string {
	return fmt.Sprintf("[%s] %s %s %s: %s (%s)", ts, a.Requester, a.Op, a.Channel, cmd, a.ID)
}
