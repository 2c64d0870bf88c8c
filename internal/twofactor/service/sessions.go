package service

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
	"github.com/aussiebroadwan/twofactor/pkg/idx"
)

// ErrUnknownSession is returned for login sessions that never existed,
// expired or were ended.
var ErrUnknownSession = fmt.Errorf("login session: %w", store.ErrNotFound)

// OpenSession starts a login session for userID. accountName defaults to
// userID.
func (p *Provider) OpenSession(ctx context.Context, userID, accountName string) (domain.LoginSession, error) {
	if accountName == "" {
		accountName = userID
	}
	sess := domain.LoginSession{ID: idx.New().String(), UserID: userID, AccountName: accountName}

	if err := p.scratch.Set(ctx, sess.ID, accountKey, accountName); err != nil {
		return domain.LoginSession{}, storageErr("open session", err)
	}
	// written last: a session exists once its user is set
	if err := p.scratch.Set(ctx, sess.ID, userKey, userID); err != nil {
		return domain.LoginSession{}, storageErr("open session", err)
	}
	return sess, nil
}

// LookupSession resolves a session id issued by OpenSession.
func (p *Provider) LookupSession(ctx context.Context, id string) (domain.LoginSession, error) {
	if _, err := idx.Parse(id); err != nil {
		return domain.LoginSession{}, ErrUnknownSession
	}

	userID, err := p.scratch.Get(ctx, id, userKey)
	if err != nil {
		return domain.LoginSession{}, storageErr("lookup session", err)
	}
	if userID == "" {
		return domain.LoginSession{}, ErrUnknownSession
	}

	accountName, err := p.scratch.Get(ctx, id, accountKey)
	if err != nil {
		return domain.LoginSession{}, storageErr("lookup session", err)
	}
	if accountName == "" {
		accountName = userID
	}
	return domain.LoginSession{ID: id, UserID: userID, AccountName: accountName}, nil
}

// EndSession discards all scratchpad state of sess. Later lookups fail.
func (p *Provider) EndSession(ctx context.Context, sess domain.LoginSession) error {
	return storageErr("end session", p.scratch.Clear(ctx, sess.ID))
}
