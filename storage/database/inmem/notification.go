package inmemdb

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/notification"
)

type notificationRepository struct {
	db *table[notification.Notification]
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.rows[n.ID] = &n
	return n, nil
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, userID string, filter notification.QueryFilter) ([]notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ns := make([]notification.Notification, 0)
	for _, n := range repo.db.all() {
		if n.UserID == userID && !(filter.UnreadOnly && n.IsRead()) {
			ns = append(ns, n)
		}
	}
	sortRows(ns, nil, []core.DBOrdering{{Field: "created_at"}}, func(a, b notification.Notification, _ string) int {
		return compareTime(a.CreatedAt, b.CreatedAt)
	})
	if filter.Limit > 0 && len(ns) > filter.Limit {
		ns = ns[:filter.Limit]
	}
	return ns, nil
}

func (repo *notificationRepository) GetNotification(_ context.Context, userID, id string) (notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.rows[id]; ok && n.UserID == userID {
		return *n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) CountUnread(_ context.Context, userID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var count int
	for _, n := range repo.db.rows {
		if n.UserID == userID && !n.IsRead() {
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) MarkRead(_ context.Context, userID, id string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	n, ok := repo.db.rows[id]
	if !ok || n.UserID != userID {
		return notification.ErrNotFound
	}
	if !n.IsRead() {
		n.ReadAt = null.TimeFrom(at)
	}
	return nil
}

func (repo *notificationRepository) MarkAllRead(_ context.Context, userID string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, n := range repo.db.rows {
		if n.UserID == userID && !n.IsRead() {
			n.ReadAt = null.TimeFrom(at)
		}
	}
	return nil
}
