package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kipimo/core/notification"
)

var notificationColumns = []string{"id", "org_id", "user_id", "kind", "title", "body", "link", "read_at", "created_at"}

type notificationRepository struct {
	repo
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{repo{db: db}}
}

func (r *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	qb := psql.Insert("notification").
		Columns(notificationColumns...).
		Values(n.ID, n.OrgID, n.UserID, n.Kind, n.Title, n.Body, n.Link, n.ReadAt, n.CreatedAt)
	if _, err := r.execute(ctx, qb); err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (r *notificationRepository) QueryNotifications(ctx context.Context, userID string, filter notification.QueryFilter) ([]notification.Notification, error) {
	qb := psql.Select(notificationColumns...).From("notification").Where(sq.Eq{"user_id": userID})
	if filter.UnreadOnly {
		qb = qb.Where(sq.Eq{"read_at": nil})
	}
	qb = qb.OrderBy("created_at DESC")
	if filter.Limit > 0 {
		qb = qb.Limit(uint64(filter.Limit))
	}

	ns := make([]notification.Notification, 0)
	if err := r.selectRows(ctx, &ns, qb); err != nil {
		return nil, errors.Wrap(err, "selecting notifications")
	}
	return ns, nil
}

func (r *notificationRepository) GetNotification(ctx context.Context, userID, id string) (notification.Notification, error) {
	var n notification.Notification
	qb := psql.Select(notificationColumns...).From("notification").Where(sq.Eq{"id": id, "user_id": userID})
	err := r.get(ctx, &n, qb, notification.ErrNotFound)
	return n, err
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	qb := psql.Select("COUNT(*)").From("notification").Where(sq.Eq{"user_id": userID, "read_at": nil})
	if err := r.get(ctx, &count, qb, nil); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id string, at time.Time) error {
	qb := psql.Update("notification").
		Set("read_at", at).
		Where(sq.Eq{"id": id, "user_id": userID, "read_at": nil})
	_, err := r.execute(ctx, qb)
	return errors.Wrap(err, "marking notification read")
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) error {
	qb := psql.Update("notification").
		Set("read_at", at).
		Where(sq.Eq{"user_id": userID, "read_at": nil})
	_, err := r.execute(ctx, qb)
	return errors.Wrap(err, "marking notifications read")
}
