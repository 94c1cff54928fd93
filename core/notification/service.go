package notification

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/user"
)

var ErrNotFound = core.NewNotFoundError("notification")

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		QueryNotifications(ctx context.Context, userID string, filter QueryFilter) ([]Notification, error)
		GetNotification(ctx context.Context, userID, id string) (Notification, error)
		CountUnread(ctx context.Context, userID string) (int, error)
		MarkRead(ctx context.Context, userID, id string, at time.Time) error
		MarkAllRead(ctx context.Context, userID string, at time.Time) error
	}

	Service interface {
		Notify(ctx context.Context, recipient user.User, nn NewNotification) (Notification, error)
		Query(ctx context.Context, userID string, filter QueryFilter) ([]Notification, error)
		UnreadCount(ctx context.Context, userID string) (int, error)
		MarkRead(ctx context.Context, userID, id string) (Notification, error)
		MarkAllRead(ctx context.Context, userID string) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
	}
}

func (svc *service) Notify(ctx context.Context, recipient user.User, nn NewNotification) (Notification, error) {
	n, err := svc.repo.CreateNotification(ctx, Notification{
		ID:        uuid.NewString(),
		OrgID:     recipient.OrgID,
		UserID:    recipient.ID,
		Kind:      nn.Kind,
		Title:     nn.Title,
		Body:      nn.Body,
		Link:      nn.Link,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}

	if nn.Email && recipient.IsActive && recipient.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: recipient.Name, Address: recipient.Email}},
			Subject:      nn.Title,
			TemplateName: "notification",
			TemplateData: map[string]string{
				"Name":  recipient.Name,
				"Title": nn.Title,
				"Body":  nn.Body,
				"Link":  nn.Link,
			},
		})
	}
	return n, nil
}

func (svc *service) Query(ctx context.Context, userID string, filter QueryFilter) ([]Notification, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return svc.repo.QueryNotifications(ctx, userID, filter)
}

func (svc *service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return svc.repo.CountUnread(ctx, userID)
}

func (svc *service) MarkRead(ctx context.Context, userID, id string) (Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Notification{}, ErrNotFound
	}
	n, err := svc.repo.GetNotification(ctx, userID, id)
	if err != nil {
		return Notification{}, err
	}
	if n.IsRead() {
		return n, nil
	}
	if err = svc.repo.MarkRead(ctx, userID, id, time.Now().UTC()); err != nil {
		return Notification{}, errors.Wrap(err, "marking notification read")
	}
	return svc.repo.GetNotification(ctx, userID, id)
}

func (svc *service) MarkAllRead(ctx context.Context, userID string) error {
	return svc.repo.MarkAllRead(ctx, userID, time.Now().UTC())
}
