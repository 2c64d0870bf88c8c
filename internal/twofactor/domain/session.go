package domain

// LoginSession is one second-factor login attempt for a user who already
// passed the primary credential check. Retry accounting is scoped to it.
type LoginSession struct {
	ID     string
	UserID string
	// AccountName labels the secret in authenticator apps.
	AccountName string
}
