// Package notify resolves role-based audiences and creates one notification
// record per recipient, optionally enqueueing an email dispatch job per
// recipient with a known address.
package notify

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/hrq/internal/domain"
)

type Store interface {
	UsersByRole(ctx context.Context, companyID int, roles domain.Audience) ([]domain.User, error)
	UserByID(ctx context.Context, id int) (*domain.User, error)
	InsertNotification(ctx context.Context, n *domain.Notification) (string, error)
}

// EmailEnqueuer submits an email dispatch job. Nil disables email delivery.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, companyID int, p *domain.EmailDispatchPayload) error
}

type Note struct {
	Title    string
	Message  string
	Severity domain.Severity
	Payload  map[string]any
	// Email selects the mail template; empty means notification record only.
	Email string
}

type Service struct {
	store  Store
	emails EmailEnqueuer
	log    *zap.Logger
}

func New(store Store, emails EmailEnqueuer, log *zap.Logger) *Service {
	return &Service{store: store, emails: emails, log: log}
}

// Fanout creates one notification per user whose role is in the audience,
// scoped to the company. Delivery is best-effort per recipient: failing the
// fan-out mid-audience would retry the owning job and re-notify everyone
// already written.
func (s *Service) Fanout(ctx context.Context, companyID int, aud domain.Audience, n Note) error {
	users, err := s.store.UsersByRole(ctx, companyID, aud)
	if err != nil {
		return errors.Wrap(err, "resolve audience")
	}
	for _, u := range users {
		if err := s.deliver(ctx, companyID, &u, n); err != nil {
			s.log.Warn("notification delivery failed",
				zap.Int("user_id", u.ID), zap.Error(err))
		}
	}
	return nil
}

// Direct notifies a single user by id, e.g. the requester of a report.
func (s *Service) Direct(ctx context.Context, companyID, userID int, n Note) error {
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "resolve recipient")
	}
	return s.deliver(ctx, companyID, u, n)
}

func (s *Service) deliver(ctx context.Context, companyID int, u *domain.User, n Note) error {
	_, err := s.store.InsertNotification(ctx, &domain.Notification{
		RecipientUserID: u.ID,
		Title:           n.Title,
		Message:         n.Message,
		Severity:        n.Severity,
		Payload:         n.Payload,
	})
	if err != nil {
		return errors.Wrapf(err, "notify user %d", u.ID)
	}
	if n.Email == "" || s.emails == nil || u.Email == "" {
		return nil
	}
	uid := u.ID
	perr := s.emails.EnqueueEmail(ctx, companyID, &domain.EmailDispatchPayload{
		Email:    u.Email,
		Subject:  n.Title,
		Message:  n.Message,
		Data:     n.Payload,
		Template: n.Email,
		UserID:   &uid,
	})
	if perr != nil {
		// The notification row exists; losing the email is not worth
		// failing the whole fan-out.
		s.log.Warn("email enqueue failed",
			zap.Int("user_id", u.ID), zap.Error(perr))
	}
	return nil
}
