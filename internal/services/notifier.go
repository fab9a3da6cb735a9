package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/platform/mail"
	"github.com/lumenpress/editorial-core/internal/repos"
	"github.com/lumenpress/editorial-core/internal/types"
)

const (
	NotifyKindReviewInvited       = "review_invited"
	NotifyKindDecisionFinal       = "decision_final"
	NotifyKindGalleyReady         = "galley_ready"
	NotifyKindProofResponse       = "proof_response"
	NotifyKindProductionApproved  = "production_approved"
	NotifyKindManuscriptPublished = "manuscript_published"
)

// Notifier is the fire-and-forget notification sink. No caller treats a
// dispatch failure as an error.
type Notifier interface {
	Notify(ctx context.Context, userID, manuscriptID uuid.UUID, kind, title, content, actionURL string)
}

type notifier struct {
	log           *logger.Logger
	notifications repos.NotificationRepo
	users         repos.UserRepo
	mailer        mail.Client
	now           func() time.Time
}

// NewNotifier persists a notification row and best-effort emails the
// recipient when a mailer is configured. Both writes are advisory.
func NewNotifier(baseLog *logger.Logger, notifications repos.NotificationRepo, users repos.UserRepo, mailer mail.Client) Notifier {
	return &notifier{
		log:           baseLog.With("service", "Notifier"),
		notifications: notifications,
		users:         users,
		mailer:        mailer,
		now:           time.Now,
	}
}

func (n *notifier) Notify(ctx context.Context, userID, manuscriptID uuid.UUID, kind, title, content, actionURL string) {
	if n == nil || userID == uuid.Nil {
		return
	}
	if n.notifications != nil {
		row := &types.Notification{
			ID:           uuid.New(),
			UserID:       userID,
			ManuscriptID: manuscriptID,
			Kind:         kind,
			Title:        title,
			Content:      content,
			ActionURL:    actionURL,
			CreatedAt:    n.now().UTC(),
		}
		if _, err := n.notifications.Create(ctx, nil, []*types.Notification{row}); err != nil {
			n.log.Warn("notification persist failed", "user_id", userID, "kind", kind, "error", err)
		}
	}
	if n.mailer == nil || n.users == nil {
		return
	}
	users, err := n.users.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil || len(users) == 0 || users[0] == nil || users[0].Email == "" {
		n.log.Warn("notification mail skipped: recipient unresolved", "user_id", userID, "kind", kind, "error", err)
		return
	}
	msg := mail.Message{
		ToEmail: users[0].Email,
		ToName:  users[0].FirstName + " " + users[0].LastName,
		Subject: title,
		Body:    content,
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		n.log.Warn("notification mail failed", "user_id", userID, "kind", kind, "error", err)
	}
}

// NopNotifier discards everything; used when no sink is wired.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, uuid.UUID, uuid.UUID, string, string, string, string) {}
