package auth

// Capability is the fine-grained standing a caller resolves to for a given
// server scope. Levels are ordered; a higher level implies every lower one.
// Site admin is orthogonal to server standing and supersedes it.
type Capability int

const (
	// CapabilityNone means no credential was presented.
	CapabilityNone Capability = iota
	// CapabilityAuthenticated means a valid credential with no membership on
	// the target server.
	CapabilityAuthenticated
	// CapabilityMember means the snapshot claims a membership on the server.
	CapabilityMember
	// CapabilityAdmin means that membership's role carried is_admin.
	CapabilityAdmin
	// CapabilitySiteAdmin bypasses all server-scoped checks.
	CapabilitySiteAdmin
)

func (c Capability) String() string {
	switch c {
	case CapabilityAuthenticated:
		return "authenticated"
	case CapabilityMember:
		return "member"
	case CapabilityAdmin:
		return "server_admin"
	case CapabilitySiteAdmin:
		return "site_admin"
	default:
		return "anonymous"
	}
}

// Resolve answers what the snapshot entitles the caller to on one server.
// A nil snapshot resolves to CapabilityNone. The decision is made entirely
// from the snapshot; staleness is accepted per the credential contract.
func Resolve(s *Snapshot, serverID uint64) Capability {
	if s == nil {
		return CapabilityNone
	}
	if s.IsSiteAdmin {
		return CapabilitySiteAdmin
	}
	m, ok := s.MembershipOn(serverID)
	if !ok {
		return CapabilityAuthenticated
	}
	if m.IsAdmin {
		return CapabilityAdmin
	}
	return CapabilityMember
}

// IsMember reports whether the caller may act as a member of the server.
// Site admins qualify everywhere.
func IsMember(s *Snapshot, serverID uint64) bool {
	return Resolve(s, serverID) >= CapabilityMember
}

// IsServerAdmin reports whether the caller holds admin standing on the
// server through their claimed role. Site admin does NOT imply server admin
// here; callers wanting the combined rule use IsServerOrSiteAdmin.
func IsServerAdmin(s *Snapshot, serverID uint64) bool {
	if s == nil {
		return false
	}
	m, ok := s.MembershipOn(serverID)
	return ok && m.IsAdmin
}

// IsServerOrSiteAdmin is the standing required to destroy or reconfigure a
// server: its own admins, or a site admin regardless of membership.
func IsServerOrSiteAdmin(s *Snapshot, serverID uint64) bool {
	c := Resolve(s, serverID)
	return c == CapabilityAdmin || c == CapabilitySiteAdmin
}

// CanActOnMembership implements the self-or-admin rule: a server admin may
// act on any membership of the server, and a plain member may act on their
// own membership.
func CanActOnMembership(s *Snapshot, serverID, membershipID uint64) bool {
	if s == nil {
		return false
	}
	m, ok := s.MembershipOn(serverID)
	if !ok {
		return false
	}
	return m.IsAdmin || m.ID == membershipID
}

// IsSelfOrSiteAdmin gates user-level operations: the user themselves or a
// site admin.
func IsSelfOrSiteAdmin(s *Snapshot, userID uint64) bool {
	if s == nil {
		return false
	}
	return s.IsSiteAdmin || s.UserID == userID
}
