package jobs

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/hrq/internal/domain"
	"github.com/you/hrq/internal/mail"
)

type UserLookup interface {
	UserByID(ctx context.Context, id int) (*domain.User, error)
}

// EmailHandler renders a named template and sends to one address. All
// errors, including malformed payloads, are transient: mail delivery is
// worth the full retry budget.
type EmailHandler struct {
	sender mail.Sender
	users  UserLookup
	log    *zap.Logger
}

func NewEmailHandler(sender mail.Sender, users UserLookup, log *zap.Logger) *EmailHandler {
	return &EmailHandler{sender: sender, users: users, log: log}
}

func (h *EmailHandler) Type() domain.JobType { return domain.EmailDispatch }

func (h *EmailHandler) Handle(ctx context.Context, job *domain.JobDescriptor) error {
	var p domain.EmailDispatchPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return errors.Wrap(err, "decode email payload")
	}
	if p.Email == "" {
		return errors.New("email payload has no recipient")
	}

	data := make(map[string]any, len(p.Data)+2)
	for k, v := range p.Data {
		data[k] = v
	}
	if p.Message != "" {
		data["message"] = p.Message
	}
	if p.UserID != nil {
		u, err := h.users.UserByID(ctx, *p.UserID)
		if err != nil {
			return errors.Wrap(err, "load user context")
		}
		data["userName"] = u.Name
		data["userEmail"] = u.Email
	}

	body, err := mail.Render(p.Template, data)
	if err != nil {
		return err
	}
	return h.sender.Send(p.Email, p.Subject, body)
}

func (h *EmailHandler) OnPermanentFailure(ctx context.Context, job *domain.JobDescriptor, lastErr error) {
	// No fan-out here: an email about a failed email would loop.
	h.log.Error("email dispatch failed permanently", zap.String("job_id", job.ID), zap.Error(lastErr))
}
