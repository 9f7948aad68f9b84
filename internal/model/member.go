package model

// Role names carried in the JWT "role" claim.  MEMBER may propose and
// confirm their own bids; ADMIN may additionally drive sessions and act
// as the override identity when resolving someone else's confirmation.
const (
    RoleMember = "MEMBER"
    RoleAdmin  = "ADMIN"
)

// Member identifies a community member interacting with the engine.  The
// member's point balance is owned by the external ledger and is never
// stored on this struct; the name is the key used against the ledger
// snapshot (case-insensitive fallback applies there).
//
// Fields:
//  Name – display name as known to the ledger.
//  Role – MEMBER or ADMIN, taken from the access token.
type Member struct {
    Name string
    Role string
}

// IsAdmin reports whether the member carries the administrative role and
// may therefore override confirmation ownership checks.
func (m Member) IsAdmin() bool { return m.Role == RoleAdmin }
