package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/checkin"
	"github.com/trezcool/kipimo/core/invitation"
	"github.com/trezcool/kipimo/core/notification"
	"github.com/trezcool/kipimo/core/okr"
	"github.com/trezcool/kipimo/core/org"
	"github.com/trezcool/kipimo/core/user"
)

type (
	// DB is an in-memory store used by tests & local development.
	// Tables are guarded by their own lock; cascades lock tables in declaration order.
	DB struct {
		user         *table[user.User]
		org          *table[org.Organization]
		team         *table[org.Team]
		objective    *table[okr.Objective]
		keyResult    *table[okr.KeyResult]
		checkIn      *table[checkin.CheckIn]
		notification *table[notification.Notification]
		invitation   *table[invitation.Invitation]
	}

	table[T any] struct {
		sync.RWMutex
		rows map[string]*T
	}
)

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]*T)}
}

func (t *table[T]) all() []T {
	res := make([]T, 0, len(t.rows))
	for _, row := range t.rows {
		res = append(res, *row)
	}
	return res
}

func Open() *DB {
	return &DB{
		user:         newTable[user.User](),
		org:          newTable[org.Organization](),
		team:         newTable[org.Team](),
		objective:    newTable[okr.Objective](),
		keyResult:    newTable[okr.KeyResult](),
		checkIn:      newTable[checkin.CheckIn](),
		notification: newTable[notification.Notification](),
		invitation:   newTable[invitation.Invitation](),
	}
}

type transactor struct{}

// NewTransactor returns a Transactor that runs fn directly: the in-memory store has no rollback.
func NewTransactor() core.Transactor {
	return transactor{}
}

func (transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// sortRows stable sorts rows by orderings (def when empty) using cmp to compare a field of two rows.
func sortRows[T any](rows []T, orderings []core.DBOrdering, def []core.DBOrdering, cmp func(a, b T, field string) int) {
	if len(orderings) == 0 {
		orderings = def
	}
	if len(orderings) == 0 {
		return
	}
	less := func(i, j int) bool {
		for _, ord := range orderings {
			c := cmp(rows[i], rows[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	}
	sort.SliceStable(rows, less)
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
