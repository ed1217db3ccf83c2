package web

import (
	"context"

	server "github.com/charadev96/ratewise/internal/server/domain"
	"github.com/charadev96/ratewise/internal/session"
)

type principalKey struct{}

type principal struct {
	session *session.Session
	user    server.User
}

func withPrincipal(ctx context.Context, sess *session.Session, usr server.User) context.Context {
	return context.WithValue(ctx, principalKey{}, &principal{session: sess, user: usr})
}

// principalFrom returns the authenticated caller. Handlers behind
// requireSession always find one.
func principalFrom(ctx context.Context) *principal {
	p, _ := ctx.Value(principalKey{}).(*principal)
	return p
}
