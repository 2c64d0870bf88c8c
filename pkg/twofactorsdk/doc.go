// Package twofactorsdk holds the wire types of the second factor HTTP API
// and a small client for it.
//
// A host login pipeline opens a login session once the password check has
// passed, shows the returned challenge, and submits codes until the
// session passes or is denied:
//
//	c := twofactorsdk.NewClient("http://localhost:8080")
//	begin, err := c.Begin(ctx, twofactorsdk.BeginRequest{UserID: "alice", AccountName: "alice@example.com"})
//	...
//	res, err := c.Continue(ctx, twofactorsdk.ContinueRequest{LoginSession: begin.LoginSession, Code: "123456"})
//	switch {
//	case errors.Is(err, twofactorsdk.ErrRetryLimitExceeded):
//		// deny the login
//	case err != nil:
//		// transport or server failure
//	case res.Status == twofactorsdk.StatusPass:
//		// second factor satisfied
//	}
package twofactorsdk
