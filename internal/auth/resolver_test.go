package auth

import "testing"

func snapshotFixture() (admin, member, outsider, siteAdmin *Snapshot) {
	admin = &Snapshot{
		UserID:   1,
		Username: "alice",
		Memberships: []SnapshotMembership{
			{ID: 10, ServerID: 1, RoleID: 100, IsAdmin: true},
		},
	}
	member = &Snapshot{
		UserID:   2,
		Username: "bob",
		Memberships: []SnapshotMembership{
			{ID: 11, ServerID: 1, RoleID: 101, IsAdmin: false},
		},
	}
	outsider = &Snapshot{UserID: 3, Username: "carol"}
	siteAdmin = &Snapshot{UserID: 4, Username: "dana", IsSiteAdmin: true}
	return
}

func TestResolveCapabilityLevels(t *testing.T) {
	admin, member, outsider, siteAdmin := snapshotFixture()

	cases := []struct {
		name     string
		snapshot *Snapshot
		serverID uint64
		want     Capability
	}{
		{"nil snapshot is anonymous", nil, 1, CapabilityNone},
		{"no membership on server", outsider, 1, CapabilityAuthenticated},
		{"member role", member, 1, CapabilityMember},
		{"admin role", admin, 1, CapabilityAdmin},
		{"site admin without membership", siteAdmin, 1, CapabilitySiteAdmin},
		{"admin elsewhere is outsider here", admin, 2, CapabilityAuthenticated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Resolve(tc.snapshot, tc.serverID); got != tc.want {
				t.Fatalf("Resolve() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAuthorizationMatrix(t *testing.T) {
	admin, member, outsider, siteAdmin := snapshotFixture()

	// (a) server admin may delete the server.
	if !IsServerOrSiteAdmin(admin, 1) {
		t.Fatalf("expected admin of server 1 to pass the delete gate")
	}
	// (b) a plain member may not.
	if IsServerOrSiteAdmin(member, 1) {
		t.Fatalf("member must not pass the server delete gate")
	}
	// (c) a user with no membership may not read server details.
	if IsMember(outsider, 1) {
		t.Fatalf("non-member must not pass the member gate")
	}
	// (d) a site admin with no membership may.
	if !IsMember(siteAdmin, 1) {
		t.Fatalf("site admin must pass the member gate everywhere")
	}
}

func TestSiteAdminDoesNotImplyServerAdminClaim(t *testing.T) {
	_, _, _, siteAdmin := snapshotFixture()
	if IsServerAdmin(siteAdmin, 1) {
		t.Fatalf("IsServerAdmin must only reflect the membership claim")
	}
	if !IsServerOrSiteAdmin(siteAdmin, 1) {
		t.Fatalf("combined gate must accept site admin")
	}
}

func TestCanActOnMembership(t *testing.T) {
	admin, member, outsider, _ := snapshotFixture()

	if !CanActOnMembership(admin, 1, 11) {
		t.Fatalf("server admin should act on any membership of the server")
	}
	if !CanActOnMembership(member, 1, 11) {
		t.Fatalf("member should act on their own membership")
	}
	if CanActOnMembership(member, 1, 10) {
		t.Fatalf("member must not act on someone else's membership")
	}
	if CanActOnMembership(outsider, 1, 11) {
		t.Fatalf("non-member must not act on any membership")
	}
	if CanActOnMembership(nil, 1, 11) {
		t.Fatalf("anonymous must not act on any membership")
	}
}

func TestIsSelfOrSiteAdmin(t *testing.T) {
	_, member, _, siteAdmin := snapshotFixture()

	if !IsSelfOrSiteAdmin(member, 2) {
		t.Fatalf("user should act on their own account")
	}
	if IsSelfOrSiteAdmin(member, 1) {
		t.Fatalf("user must not act on another account")
	}
	if !IsSelfOrSiteAdmin(siteAdmin, 2) {
		t.Fatalf("site admin should act on any account")
	}
}

func TestStaleSnapshotKeepsClaimedStanding(t *testing.T) {
	// The resolver trusts the snapshot for the credential's lifetime: a
	// membership revoked after issuance still resolves as claimed.
	stale := &Snapshot{
		UserID:   5,
		Username: "evan",
		Memberships: []SnapshotMembership{
			{ID: 12, ServerID: 3, RoleID: 102, IsAdmin: true},
		},
	}
	if got := Resolve(stale, 3); got != CapabilityAdmin {
		t.Fatalf("stale snapshot must resolve as claimed, got %v", got)
	}
}
