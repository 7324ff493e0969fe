package irc

// This file contains documentation for the IRC event handlers.
// The actual handler implementations are split across:
// - client.go: Connection lifecycle, nick recovery, Transport for the scheduler
// - membership.go: Channel member and status prefix tracking
// - commands.go: Bot command implementations

/*
Handler Summary:

Connection Events:
- 376/422 (onConnect): End of MOTD / MOTD missing - bot is connected
  - Identifies to NickServ
  - Joins the configured channels
  - (the scheduler also asks NickServ for LISTCHANS on Atheme networks)
- disconnect (onDisconnect): forgets members and admin sessions

Membership (Membership.Handle, registered before the scheduler):
- 353 RPL_NAMREPLY: member list with status prefixes (multi-prefix aware)
- JOIN/PART/KICK/QUIT/NICK: members coming, going and renaming
- MODE: +o/+h/+v and their removal

Scheduler (chanserv.Scheduler.HandleMessage, one callback per code it lists):
- WHOIS/WHOWAS replies resolve operation targets
- 367/368, 728/729, 344/345 fill ban and quiet lists
- 352/354/315 fill WHO snapshots for matches
- NOTICE from ChanServ/NickServ: akick listings, access flags, results
- MODE/INVITE from ChanServ, 482 and the join errors 404/471/473/474/475

Private and Channel Messages:
- PRIVMSG (onPrivMsg): lines starting with '!'
  - Private: every bot command
  - Channel: only !cs, with that channel as the default

Nick Issues:
- 432 (onNickHeld): ERR_ERRONEUSNICKNAME - Nick is held
  - Switches to alternate nick
  - Schedules RELEASE and nick change
- 433 (onNickInUse): ERR_NICKNAMEINUSE - Nick in use
  - Switches to alternate nick
  - Schedules GHOST and nick change

Admin Session:
- 601 (onWatchLogout): RPL_LOGOFF - WATCH notification
  - Auto-logs out admin if they quit/change nick

CTCP:
- CTCP_VERSION: Responds with bot version information
*/
