package model

// Principal is the authenticated caller as vouched for by the identity provider.
type Principal struct {
	UserID  string
	IsAdmin bool
}
