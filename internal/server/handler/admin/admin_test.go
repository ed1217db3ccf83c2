package admin

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/charadev96/ratewise/internal/cache"
	"github.com/charadev96/ratewise/internal/kv"
	server "github.com/charadev96/ratewise/internal/server/domain"
	"github.com/charadev96/ratewise/internal/server/repository"
	"github.com/charadev96/ratewise/internal/server/service"
	"github.com/charadev96/ratewise/internal/session"
	shared "github.com/charadev96/ratewise/internal/shared/domain"
	"github.com/charadev96/ratewise/internal/shared/infra"
)

func newAuthService(t *testing.T) *service.AuthService {
	t.Helper()
	ctx := context.Background()

	db, err := infra.OpenSQLite(ctx, infra.DBOptions{
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := miniredis.RunT(t)
	store, err := kv.New(ctx, kv.Options{Addr: m.Addr(), DialTimeout: 200 * time.Millisecond}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	users, err := repository.NewBunUserRepository(ctx, db)
	require.NoError(t, err)
	populator := cache.NewPopulator(store, time.Minute, 2, nil)
	t.Cleanup(populator.Wait)

	return &service.AuthService{
		Users:     users,
		UserCache: cache.NewLoader[server.User](store, users, cache.Prefix("user"), func(u server.User) uuid.UUID { return u.ID }, populator, nil),
		Sessions:  session.NewRegistry(store, session.Options{TTL: time.Hour, MaxUserSessions: 5}, nil),
		TXRunner:  infra.NewBunTransactionRunner(db, &sql.TxOptions{}),
		HashCost:  bcrypt.MinCost,
	}
}

func newClient(t *testing.T, svc *service.AuthService) *Client {
	t.Helper()
	ln := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterSessionAdminServer(srv, &SessionAdminHandler{Service: svc})
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(srv.Stop)

	c, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return ln.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSessionAdmin(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService(t)
	c := newClient(t, svc)

	sess := &session.Session{}
	usr, err := svc.SignUp(ctx, sess, service.SignUpInput{Name: "ada", Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	_, err = svc.SignIn(ctx, &session.Session{}, service.SignInInput{Name: "ada", Password: "correct horse"})
	require.NoError(t, err)

	n, err := c.CountSessions(ctx, usr.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = c.RevokeSessions(ctx, usr.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = c.CountSessions(ctx, usr.ID.String())
	require.NoError(t, err)
	assert.Zero(t, n)

	_, _, err = svc.Authenticate(ctx, sess.ID)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestSuspendAndActivate(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService(t)
	c := newClient(t, svc)

	usr, err := svc.SignUp(ctx, &session.Session{}, service.SignUpInput{Name: "ada", Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	n, err := c.SuspendUser(ctx, usr.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.SignIn(ctx, &session.Session{}, service.SignInInput{Name: "ada", Password: "correct horse"})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	require.NoError(t, c.ActivateUser(ctx, usr.ID.String()))
	_, err = svc.SignIn(ctx, &session.Session{}, service.SignInInput{Name: "ada", Password: "correct horse"})
	assert.NoError(t, err)
}

func TestSessionAdminErrors(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, newAuthService(t))

	_, err := c.CountSessions(ctx, "not-a-uuid")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.SuspendUser(ctx, uuid.NewString())
	assert.Equal(t, codes.NotFound, status.Code(err))
}
