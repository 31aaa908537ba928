package domain

// GroupInfo is the best-effort group metadata attached to a dispatch
// context. When the fetch fails the context simply carries no group
// info; absence is never fatal.
type GroupInfo struct {
	JID          string
	Subject      string
	Participants []string
	Admins       []string
}

// IsAdmin reports whether the given participant JID administrates the group.
func (g GroupInfo) IsAdmin(jid string) bool {
	for _, admin := range g.Admins {
		if admin == jid {
			return true
		}
	}
	return false
}
