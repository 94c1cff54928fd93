package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/user"
)

const userTable = `"user"`

var userColumns = []string{
	"id", "org_id", "name", "email", "role", "is_active", "password_hash", "created_at", "updated_at", "last_login",
}

type userRepository struct {
	repo
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{repo{db: db}}
}

func userError(err error) error {
	if isUniqueViolation(err) {
		return user.ErrEmailExists
	}
	return err
}

func (r *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	qb := psql.Insert(userTable).
		Columns(userColumns...).
		Values(usr.ID, usr.OrgID, usr.Name, usr.Email, usr.Role, usr.IsActive, usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt, usr.LastLogin)
	if _, err := r.execute(ctx, qb); err != nil {
		return user.User{}, errors.Wrap(userError(err), "inserting user")
	}
	return usr, nil
}

func (r *userRepository) QueryUsers(ctx context.Context, orgID string, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	qb := psql.Select(userColumns...).From(userTable).Where(sq.Eq{"org_id": orgID})
	if filter.Search != "" {
		qb = qb.Where(sq.Or{sq.ILike{"name": ilike(filter.Search)}, sq.ILike{"email": ilike(filter.Search)}})
	}
	if filter.Roles != nil {
		qb = qb.Where(sq.Eq{"role": filter.Roles})
	}
	if filter.IsActive != nil {
		qb = qb.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	qb = qb.OrderBy(core.OrderingClauses(ordering, core.DBOrdering{Field: "name", Ascending: true})...)

	users := make([]user.User, 0)
	if err := r.selectRows(ctx, &users, qb); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	return users, nil
}

func (r *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var usr user.User
	err := r.get(ctx, &usr, psql.Select(userColumns...).From(userTable).Where(sq.Eq{"id": id}), user.ErrNotFound)
	return usr, err
}

func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var usr user.User
	err := r.get(ctx, &usr, psql.Select(userColumns...).From(userTable).Where(sq.Eq{"email": email}), user.ErrNotFound)
	return usr, err
}

func (r *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	qb := psql.Update(userTable).
		SetMap(map[string]interface{}{
			"name":          usr.Name,
			"email":         usr.Email,
			"role":          usr.Role,
			"is_active":     usr.IsActive,
			"password_hash": usr.PasswordHash,
			"updated_at":    usr.UpdatedAt,
			"last_login":    usr.LastLogin,
		}).
		Where(sq.Eq{"id": usr.ID})
	if err := r.executeOne(ctx, qb, user.ErrNotFound); err != nil {
		return user.User{}, errors.Wrap(userError(err), "updating user")
	}
	return usr, nil
}

func (r *userRepository) DeleteUser(ctx context.Context, orgID, id string) error {
	_, err := r.execute(ctx, psql.Delete(userTable).Where(sq.Eq{"id": id, "org_id": orgID}))
	if isForeignKeyViolation(err) {
		return user.ErrUserHasOKRs
	}
	return errors.Wrap(err, "deleting user")
}
