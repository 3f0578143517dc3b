// Package auth holds the authorization core: the credential snapshot carried
// in a bearer token and the pure decision logic evaluated against it before
// any store is allowed to mutate state.
package auth

// SnapshotMembership is one membership claim inside a credential snapshot:
// which server, under which role, and whether that role carried admin rights
// at issuance time.
type SnapshotMembership struct {
	ID       uint64 `json:"id"`
	ServerID uint64 `json:"server_id"`
	RoleID   uint64 `json:"role_id"`
	IsAdmin  bool   `json:"is_admin"`
}

// Snapshot is the caller-held record of a user's identity and standing,
// captured when the credential was issued. It is immutable once minted and
// deliberately not re-verified against the membership store on each request:
// a membership changed or removed after issuance keeps its claimed standing
// until the client refreshes the credential. Callers needing fresh standing
// re-mint via the token refresh endpoint.
type Snapshot struct {
	UserID      uint64               `json:"user_id"`
	Username    string               `json:"username"`
	IsSiteAdmin bool                 `json:"is_site_admin"`
	Memberships []SnapshotMembership `json:"memberships"`
}

// MembershipOn returns the snapshot's membership claim for the given server,
// or false when the caller is not a member of it.
func (s Snapshot) MembershipOn(serverID uint64) (SnapshotMembership, bool) {
	for _, m := range s.Memberships {
		if m.ServerID == serverID {
			return m, true
		}
	}
	return SnapshotMembership{}, false
}
