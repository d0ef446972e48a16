package service

import (
	"context"
	"time"

	"github.com/spec-kit/request-desk/internal/domain"
	apperrors "github.com/spec-kit/request-desk/pkg/util/errorutil"
)

const maxInboxPage = 200

// Inbox lists the actor's in-app notifications, newest first.
func (n *NotificationService) Inbox(ctx context.Context, actor domain.Actor, unreadOnly bool, limit int) ([]domain.NotificationRecord, error) {
	if limit <= 0 || limit > maxInboxPage {
		limit = maxInboxPage
	}
	records, err := n.store.Notifications().ListByRecipient(ctx, actor.UserID, unreadOnly, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return records, nil
}

// MarkRead flags one of the actor's notifications as read.
func (n *NotificationService) MarkRead(ctx context.Context, actor domain.Actor, notificationID string) error {
	if err := n.store.Notifications().MarkRead(ctx, notificationID, actor.UserID, time.Now().UTC()); err != nil {
		return mapRepoError(err, "notification", notificationID)
	}
	return nil
}
