package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/user"
)

type userRepository struct {
	db    *table[user.User]
	store *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user, store: db}
}

func (repo *userRepository) emailTaken(email, excludedID string) bool {
	for _, usr := range repo.db.rows {
		if usr.Email == email && usr.ID != excludedID {
			return true
		}
	}
	return false
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.emailTaken(usr.Email, "") {
		return user.User{}, user.ErrEmailExists
	}
	repo.db.rows[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, orgID string, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0)
	for _, usr := range repo.db.all() {
		if usr.OrgID != orgID {
			continue
		}
		if filter.Search != "" && !containsFold(usr.Name, filter.Search) && !containsFold(usr.Email, filter.Search) {
			continue
		}
		if filter.Roles != nil && !core.StringInSlice(usr.Role, filter.Roles) {
			continue
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			continue
		}
		users = append(users, usr)
	}

	sortRows(users, ordering, []core.DBOrdering{{Field: "name", Ascending: true}}, compareUsers)
	return users, nil
}

func compareUsers(a, b user.User, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "role":
		return strings.Compare(a.Role, b.Role)
	case "is_active":
		return compareBool(a.IsActive, b.IsActive)
	case "created_at":
		return compareTime(a.CreatedAt, b.CreatedAt)
	case "last_login":
		return compareTime(a.LastLogin.Time, b.LastLogin.Time)
	}
	return 0
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if usr, ok := repo.db.rows[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.db.rows {
		if usr.Email == email {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailTaken(usr.Email, usr.ID) {
		return user.User{}, user.ErrEmailExists
	}
	repo.db.rows[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) DeleteUser(_ context.Context, orgID, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.rows[id]
	if !ok || usr.OrgID != orgID {
		return nil
	}
	if repo.ownsOKRs(id) {
		return user.ErrUserHasOKRs
	}
	delete(repo.db.rows, id)
	return nil
}

// ownsOKRs reports whether objectives, key results or check-ins still reference the user.
func (repo *userRepository) ownsOKRs(id string) bool {
	objs := repo.store.objective
	objs.RLock()
	defer objs.RUnlock()
	for _, o := range objs.rows {
		if o.OwnerID == id {
			return true
		}
	}

	krs := repo.store.keyResult
	krs.RLock()
	defer krs.RUnlock()
	for _, kr := range krs.rows {
		if kr.OwnerID == id {
			return true
		}
	}

	cis := repo.store.checkIn
	cis.RLock()
	defer cis.RUnlock()
	for _, ci := range cis.rows {
		if ci.UserID == id {
			return true
		}
	}
	return false
}
