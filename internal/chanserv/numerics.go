package chanserv

// Replies the router understands. Numerics differ slightly between server
// implementations, so both the modern and legacy quiet list codes are kept.
const (
	RPL_WHOISREGNICK       = "307"
	RPL_WHOISUSER          = "311"
	RPL_WHOWASUSER         = "314"
	RPL_ENDOFWHO           = "315"
	RPL_ENDOFWHOIS         = "318"
	RPL_WHOISACCOUNT       = "330"
	RPL_QUIETLIST_OLD      = "344"
	RPL_ENDOFQUIETLIST_OLD = "345"
	RPL_WHOREPLY           = "352"
	RPL_WHOSPCRPL          = "354"
	RPL_BANLIST            = "367"
	RPL_ENDOFBANLIST       = "368"
	RPL_ENDOFWHOWAS        = "369"
	RPL_ENDOFMOTD          = "376"
	ERR_NOSUCHNICK         = "401"
	ERR_CANNOTSENDTOCHAN   = "404"
	ERR_WASNOSUCHNICK      = "406"
	ERR_NOMOTD             = "422"
	ERR_CHANNELISFULL      = "471"
	ERR_INVITEONLYCHAN     = "473"
	ERR_BANNEDFROMCHAN     = "474"
	ERR_BADCHANNELKEY      = "475"
	ERR_CHANOPRIVSNEEDED   = "482"
	RPL_QUIETLIST          = "728"
	RPL_ENDOFQUIETLIST     = "729"
)

// WHOX fields requested for membership snapshots: channel, user, host,
// nick, account, realname. Replies come back as RPL_WHOSPCRPL in that order.
const whoxFields = "%cnuhar"
