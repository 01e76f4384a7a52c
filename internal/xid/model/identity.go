// Package model holds the XID domain types shared by the ledger, the
// service, the HTTP handlers and the Go client.
package model

// PlatformHostPrincipal is the platform recorded for identities bound by
// host-principal confirmation.
const PlatformHostPrincipal = "hostprincipal"

// Version is reported by GET /xid/version.
const Version uint8 = 0

// Identity is one external platform identity bound to the XID.
// BindTime is the bind instant in Unix nanoseconds, kept as text.
type Identity struct {
	Platform string `json:"platform"  binding:"required"`
	Identity string `json:"identity"  binding:"required"`
	BindTime string `json:"bind_time"`
}

// IdentityKey is the explicit (platform, identity) tuple used to compare
// identities field by field. BindTime never takes part in equality.
type IdentityKey struct {
	Platform string
	Identity string
}

// Key returns the tuple key of id.
func (id Identity) Key() IdentityKey {
	return IdentityKey{Platform: id.Platform, Identity: id.Identity}
}

// ConcatKey returns platform‖identity. Distinct pairs can share a concat
// key: {"ab","c"} and {"a","bc"} both yield "abc".
func (id Identity) ConcatKey() string {
	return id.Platform + id.Identity
}

// IsEmpty reports whether id is the empty main-identity sentinel.
func (id Identity) IsEmpty() bool {
	return id.Platform == "" && id.Identity == ""
}

// Simple drops the bind time.
func (id Identity) Simple() SimpleID {
	return SimpleID{Platform: id.Platform, Identity: id.Identity}
}

// Less orders tuple keys by platform, then identity.
func (k IdentityKey) Less(o IdentityKey) bool {
	if k.Platform != o.Platform {
		return k.Platform < o.Platform
	}
	return k.Identity < o.Identity
}

// SimpleID is the (platform, identity) pair sent to the registry.
type SimpleID struct {
	Platform string `json:"platform" binding:"required"`
	Identity string `json:"identity" binding:"required"`
}

// AsIdentity returns the SimpleID as an Identity with no bind time.
func (s SimpleID) AsIdentity() Identity {
	return Identity{Platform: s.Platform, Identity: s.Identity}
}
