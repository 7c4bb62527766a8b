package crypto

// AdminCap is the explicit administrative credential required for registry,
// oracle and pool-funding mutations. It replaces ambient owner state: whoever
// holds the capability value may administer, nobody else.
type AdminCap struct {
	addr Address
}

// NewAdminCap mints a capability bound to the operator address.
func NewAdminCap(addr Address) AdminCap {
	return AdminCap{addr: addr}
}

// Address returns the operator address the capability is bound to.
func (c AdminCap) Address() Address {
	return c.addr
}

// Authorizes reports whether the capability was minted for the given
// administrator. A capability bound to the zero address authorizes nothing.
func (c AdminCap) Authorizes(admin Address) bool {
	return !c.addr.IsZero() && c.addr.Equal(admin)
}
