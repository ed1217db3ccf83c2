package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/uptrace/bun"

	server "github.com/charadev96/ratewise/internal/server/domain"
	shared "github.com/charadev96/ratewise/internal/shared/domain"
	"github.com/charadev96/ratewise/internal/shared/infra"
)

type BunUserRepository struct {
	db *bun.DB
}

var _ server.UserRepository = (*BunUserRepository)(nil)

func NewBunUserRepository(ctx context.Context, db *bun.DB) (*BunUserRepository, error) {
	r := &BunUserRepository{
		db: db,
	}
	tx := infra.ExtractTx(ctx, r.db)
	_, err := tx.NewCreateTable().
		Model((*user)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return r, fmt.Errorf("failed to create repository: %w", err)
	}
	return r, nil
}

func (r *BunUserRepository) Create(ctx context.Context, usr server.User) (server.User, error) {
	tx := infra.ExtractTx(ctx, r.db)
	if usr.ID == uuid.Nil {
		usr.ID = uuid.New()
	}
	usr.CreatedAt = now()
	u := toUserModel(usr)
	_, err := tx.NewInsert().
		Model(u).
		Exec(ctx)
	if err != nil {
		return server.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return usr, nil
}

func (r *BunUserRepository) GetByID(ctx context.Context, id uuid.UUID) (server.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *BunUserRepository) GetByName(ctx context.Context, name string) (server.User, error) {
	return r.getBy(ctx, "name", name)
}

func (r *BunUserRepository) GetByEmail(ctx context.Context, email string) (server.User, error) {
	return r.getBy(ctx, "email", strings.ToLower(email))
}

func (r *BunUserRepository) getBy(ctx context.Context, column string, value any) (server.User, error) {
	tx := infra.ExtractTx(ctx, r.db)
	u := new(user)
	err := tx.NewSelect().
		Model(u).
		Where("? = ?", bun.Ident(column), value).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = shared.ErrNotExist
		}
		return server.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u.toDomain(), nil
}

func (r *BunUserRepository) FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]server.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tx := infra.ExtractTx(ctx, r.db)
	var us []user
	err := tx.NewSelect().
		Model(&us).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	out := make([]server.User, len(us))
	for i := range us {
		out[i] = us[i].toDomain()
	}
	return out, nil
}

func (r *BunUserRepository) UpdateStatus(ctx context.Context, id uuid.UUID, s server.AccountStatus) error {
	tx := infra.ExtractTx(ctx, r.db)
	u := &user{ID: id, Status: s}
	res, err := tx.NewUpdate().
		Model(u).
		Column("status").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update user status: %w", shared.ErrNotExist)
	}
	return nil
}

type user struct {
	bun.BaseModel `bun:"table:users"`

	ID           uuid.UUID            `bun:",pk"`
	Name         string               `bun:",unique,notnull"`
	Email        string               `bun:",unique,notnull"`
	PasswordHash string               `bun:",notnull"`
	RoleList     string               `bun:"roles,notnull"`
	Status       server.AccountStatus `bun:",notnull"`
	CreatedAt    time.Time            `bun:",notnull"`
}

const roleSeparator = ","

func toUserModel(usr server.User) *user {
	u := new(user)
	copier.Copy(u, &usr)
	u.Email = strings.ToLower(u.Email)
	roles := make([]string, len(usr.Roles))
	for i, r := range usr.Roles {
		roles[i] = string(r)
	}
	u.RoleList = strings.Join(roles, roleSeparator)
	return u
}

func (u *user) toDomain() server.User {
	usr := server.User{}
	copier.Copy(&usr, u)
	usr.CreatedAt = u.CreatedAt.UTC()
	if u.RoleList != "" {
		for _, r := range strings.Split(u.RoleList, roleSeparator) {
			usr.Roles = append(usr.Roles, server.Role(r))
		}
	}
	return usr
}
