package chanserv

// resolve binds a's target from the identity cache, or asks the server
// about it. bound is true once the commands carry real masks.
func (s *Scheduler) resolve(a *Action) (bound, moved bool) {
	if id, ok := s.store.Identity(a.Nick); ok {
		a.setIdentity(id)
		a.resolved = true
		s.report(a.notice(nil, "%s", a.describe()))
		if a.Op.IsBan() {
			s.reportAll(a.bindCommands())
		}
		return true, true
	}
	if s.store.Resolving(a.Nick) {
		return false, false
	}
	s.store.startResolving(a.Nick)
	s.request("whois", "WHOIS", a.Nick)
	return false, true
}
