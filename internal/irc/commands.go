package irc

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/dalnet/chanops/internal/chanserv"
)

var (
	fieldsOptRe = regexp.MustCompile(`^-[nuhfiarx]+$`)
	timerOptRe  = regexp.MustCompile(`^-t[0-9]+$`)
)

// ParseCommand turns the words after !cs into a Request. channel is
// where the command was typed, empty for private messages.
//
//	<op> [#channel] [-nuhfiarx] [-t<mins>] [target] [args...]
func ParseCommand(words []string, channel string) (chanserv.Request, error) {
	var req chanserv.Request
	if len(words) == 0 {
		return req, errors.New("No command specified.")
	}
	op, ok := chanserv.ParseOperation(words[0])
	if !ok {
		return req, errors.Errorf("Unknown command: '%s'", words[0])
	}
	req.Op = op
	args := words[1:]

	if op == chanserv.OpInfo {
		if len(args) == 0 {
			return req, errors.New("No target nick.")
		}
	} else {
		if len(args) > 0 && (strings.HasPrefix(args[0], "#") || strings.HasPrefix(args[0], "&")) {
			channel = args[0]
			args = args[1:]
		}
		if channel == "" {
			return req, errors.New("No target channel.")
		}
	}
	req.Channel = channel

	// Leading options; anything else starting with a dash is dropped
	if op != chanserv.OpMode {
		for len(args) > 0 && strings.HasPrefix(args[0], "-") {
			arg := args[0]
			args = args[1:]
			switch {
			case fieldsOptRe.MatchString(arg):
				req.Fields += arg[1:]
			case timerOptRe.MatchString(arg):
				mins, err := strconv.Atoi(arg[2:])
				if err != nil {
					return req, errors.Errorf("Invalid timer: '%s'", arg)
				}
				req.Expiry = time.Duration(mins) * time.Minute
			}
		}
	}
	req.Args = args
	return req, nil
}

// handleCommand processes a bot command. replyTo is the channel the
// command was typed in, or the sender's nick for private messages.
func (c *Client) handleCommand(nick, hostmask, replyTo, message string) {
	message = strings.TrimSpace(message)
	fields := strings.Fields(message)
	if len(fields) == 0 {
		return
	}
	cmd := strings.ToLower(fields[0])

	// Commands typed in a channel other than !cs are ignored
	if !strings.EqualFold(replyTo, nick) && cmd != "!cs" {
		return
	}

	switch cmd {
	case "!help":
		c.cmdHelp(nick, hostmask, message)
	case "!version":
		c.cmdVersion(nick, hostmask, message)
	case "!login", "!su":
		c.cmdLogin(nick, hostmask, message)
	case "!logout":
		c.cmdLogout(nick, hostmask, message)
	case "!cs":
		c.cmdChanServ(nick, hostmask, replyTo, fields[1:])
	case "!pending":
		c.cmdPending(nick, hostmask, message)
	case "!actions":
		c.cmdActions(nick, hostmask, message)
	case "!actionsearch":
		c.cmdActionSearch(nick, hostmask, message)
	case "!nick":
		c.cmdNick(nick, hostmask, message)
	case "!restart":
		c.cmdRestart(nick, hostmask, message)
	case "!shutdown":
		c.cmdShutdown(nick, hostmask, message)
	}
}

func (c *Client) isAdmin(nick string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.admins[key(nick)]
}

func (c *Client) cmdHelp(nick, hostmask, message string) {
	c.logCommand(hostmask, message)

	c.conn.Privmsg(nick, "Available commands:")
	c.conn.Privmsg(nick, "!login <password> - log in as an admin")
	c.conn.Privmsg(nick, "!version - displays bot version information")

	if c.isAdmin(nick) {
		c.conn.Privmsg(nick, " ")
		c.conn.Privmsg(nick, "Admin commands:")
		c.conn.Privmsg(nick, "!cs <command> [#channel] [-nuhfiarx] [-t<mins>] <target> [args] - run a channel operation")
		c.conn.Privmsg(nick, "    commands: info op deop voice devoice kick remove ban kickban forward kickforward")
		c.conn.Privmsg(nick, "    lart quiet akick unban bans matches access topic mode invite")
		c.conn.Privmsg(nick, "!pending - shows operations still waiting on replies")
		c.conn.Privmsg(nick, "!actions [number] - displays the last commands sent for operations")
		c.conn.Privmsg(nick, "!actionsearch <string> - search the commands sent for a given string")
		c.conn.Privmsg(nick, "!nick - if you need to change my nick")
		c.conn.Privmsg(nick, "!restart")
		c.conn.Privmsg(nick, "!shutdown")
		c.conn.Privmsg(nick, "!logout")
	}
}

func (c *Client) cmdVersion(nick, hostmask, message string) {
	c.logCommand(hostmask, message)

	c.conn.Privmsg(nick, fmt.Sprintf("chanops version %s", Version))
	c.conn.Privmsg(nick, fmt.Sprintf("Built: %s", BuildDate))
	c.conn.Privmsg(nick, fmt.Sprintf("Commit: %s", GitCommit))
}

func (c *Client) cmdLogin(nick, hostmask, message string) {
	parts := strings.Fields(message)
	if len(parts) < 2 {
		c.conn.Privmsg(nick, "Usage: !login <password>")
		return
	}

	if c.cfg.CheckAdminPass(parts[1]) {
		c.mu.Lock()
		c.admins[key(nick)] = true
		c.mu.Unlock()

		c.conn.Send("WATCH", "+"+nick)
		c.conn.Privmsg(nick, "Password accepted, you are now an admin. Type !help for a list of admin-only commands")
		c.logCommand(hostmask, "successful login")
	} else {
		c.conn.Privmsg(nick, "Password incorrect")
		c.logCommand(hostmask, "INCORRECT LOGIN ATTEMPT")
	}
}

func (c *Client) cmdLogout(nick, hostmask, message string) {
	c.mu.Lock()
	isAdmin := c.admins[key(nick)]
	delete(c.admins, key(nick))
	c.mu.Unlock()

	if isAdmin {
		c.conn.Send("WATCH", "-"+nick)
		c.conn.Privmsg(nick, "You have been logged out")
		c.logCommand(hostmask, "logged out")
	} else {
		c.conn.Privmsg(nick, "You're not logged in!")
		c.logCommand(hostmask, "tried to log out, but wasn't logged in")
	}
}

func (c *Client) cmdChanServ(nick, hostmask, replyTo string, words []string) {
	message := "!cs " + strings.Join(words, " ")
	if !c.isAdmin(nick) {
		c.conn.Notice(nick, "Sorry, only my admins can do that")
		c.logCommand(hostmask, fmt.Sprintf("%s, not logged in", message))
		return
	}
	c.logCommand(hostmask, message)

	channel := ""
	if !strings.EqualFold(replyTo, nick) {
		channel = replyTo
	}
	req, err := ParseCommand(words, channel)
	if err != nil {
		c.conn.Notice(nick, err.Error())
		return
	}
	req.Requester = nick

	a, err := c.scheduler.Build(req)
	if err != nil {
		c.conn.Notice(nick, err.Error())
		return
	}
	log.Printf("%s queued %s on %s (%s)", nick, req.Op, req.Channel, a.ID)
	c.scheduler.Submit(a)
}

func (c *Client) cmdPending(nick, hostmask, message string) {
	if !c.isAdmin(nick) {
		c.conn.Privmsg(nick, "Sorry, only my admins can issue that command")
		return
	}
	c.logCommand(hostmask, message)

	for _, line := range pendingReport(c.members.Channels(), c.scheduler.Describe()) {
		c.conn.Privmsg(nick, line)
	}
}

// pendingReport is what !pending shows: where we are, then what waits
func pendingReport(channels, pending []string) []string {
	var out []string
	if len(channels) > 0 {
		out = append(out, "On channels: "+strings.Join(channels, ", "))
	}
	if len(pending) == 0 {
		return append(out, "No operations pending")
	}
	return append(out, pending...)
}

func (c *Client) cmdActions(nick, hostmask, message string) {
	if !c.isAdmin(nick) {
		c.conn.Privmsg(nick, "Sorry, only my admins can issue that command")
		return
	}
	c.logCommand(hostmask, message)

	parts := strings.Fields(message)
	count := 10
	if len(parts) > 1 {
		if n, err := strconv.Atoi(parts[1]); err == nil && n > 0 {
			count = n
		}
	}

	c.conn.Privmsg(nick, fmt.Sprintf("The last \x02%d\x02 commands sent:", count))
	for _, entry := range c.actions.Last(count) {
		c.conn.Privmsg(nick, entry)
	}
}

func (c *Client) cmdActionSearch(nick, hostmask, message string) {
	if !c.isAdmin(nick) {
		c.conn.Privmsg(nick, "Sorry, only my admins can issue that command")
		return
	}
	c.logCommand(hostmask, message)

	parts := strings.SplitN(message, " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		c.conn.Privmsg(nick, "Please specify a string to search for")
		return
	}
	term := strings.TrimSpace(parts[1])

	c.conn.Privmsg(nick, fmt.Sprintf("Displaying search results for \"%s\":", term))
	for _, entry := range c.actions.Search(term) {
		c.conn.Privmsg(nick, "    "+entry)
	}
	c.conn.Privmsg(nick, "End of matches")
}

func (c *Client) cmdNick(nick, hostmask, message string) {
	parts := strings.Fields(message)
	newNick := ""
	if len(parts) > 1 {
		newNick = parts[1]
	}

	if !c.isAdmin(nick) {
		c.conn.Privmsg(nick, "Sorry, only my admins can change my nick")
		c.logCommand(hostmask, fmt.Sprintf("nick change command to %s, not logged in", newNick))
		return
	}

	if newNick == "" {
		c.conn.Privmsg(nick, "Usage: !nick <newnick>")
		return
	}

	c.conn.SetNick(newNick)
	time.AfterFunc(time.Second, func() {
		c.conn.Privmsg(nick, fmt.Sprintf("Changed nick to %s", newNick))
	})
	c.logCommand(hostmask, fmt.Sprintf("nick change command to %s", newNick))
}

func (c *Client) cmdRestart(nick, hostmask, message string) {
	if !c.isAdmin(nick) {
		c.conn.Privmsg(nick, "Sorry, only my admins can restart me")
		c.logCommand(hostmask, "issued the restart command but wasn't logged in")
		return
	}

	c.logCommand(hostmask, "restart command")
	c.conn.Privmsg(nick, "Restarting")

	if c.OnRestart != nil {
		c.OnRestart()
	}
}

func (c *Client) cmdShutdown(nick, hostmask, message string) {
	if !c.isAdmin(nick) {
		c.conn.Privmsg(nick, "Sorry, only my admins can shut me down")
		c.logCommand(hostmask, "issued the shutdown command but wasn't logged in")
		return
	}

	c.logCommand(hostmask, message)
	c.conn.Privmsg(nick, "Shutting down")

	if c.OnShutdown != nil {
		c.OnShutdown()
	}
}
