package model

// Identity is the authenticated caller as seen by the domain services. It is
// established once by the auth middleware and handed down as plain data; no
// service re-validates tokens.
type Identity struct {
	UserID  string
	IsAdmin bool
}
