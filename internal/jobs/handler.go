// Package jobs holds the domain job handlers. Each handler is constructed
// with the services it needs and registered with the executor by type; none
// of them resolve dependencies from ambient context or touch descriptor
// state.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/you/hrq/internal/domain"
	"github.com/you/hrq/internal/notify"
	"github.com/you/hrq/internal/outcome"
)

// Notifier fans notifications out to a role audience or a single user.
// Implemented by notify.Service.
type Notifier interface {
	Fanout(ctx context.Context, companyID int, aud domain.Audience, n notify.Note) error
	Direct(ctx context.Context, companyID, userID int, n notify.Note) error
}

// Emails submits an email dispatch job for asynchronous delivery.
type Emails interface {
	EnqueueEmail(ctx context.Context, companyID int, p *domain.EmailDispatchPayload) error
}

// unmarshalPayload decodes the descriptor payload. A payload that does not
// decode can never succeed, so the error is fatal.
func unmarshalPayload(job *domain.JobDescriptor, v any) error {
	if err := json.Unmarshal(job.Payload, v); err != nil {
		return outcome.Fatal(errors.Wrapf(err, "malformed %s payload", job.Type))
	}
	return nil
}
