package jobs

import (
	"bytes"
	"context"
	"io"

	"github.com/you/hrq/internal/domain"
	"github.com/you/hrq/internal/notify"
)

type fanoutCall struct {
	companyID int
	audience  domain.Audience
	note      notify.Note
}

type directCall struct {
	companyID int
	userID    int
	note      notify.Note
}

type fakeNotifier struct {
	fanouts []fanoutCall
	directs []directCall
	err     error
}

func (n *fakeNotifier) Fanout(_ context.Context, companyID int, aud domain.Audience, note notify.Note) error {
	if n.err != nil {
		return n.err
	}
	n.fanouts = append(n.fanouts, fanoutCall{companyID: companyID, audience: aud, note: note})
	return nil
}

func (n *fakeNotifier) Direct(_ context.Context, companyID, userID int, note notify.Note) error {
	if n.err != nil {
		return n.err
	}
	n.directs = append(n.directs, directCall{companyID: companyID, userID: userID, note: note})
	return nil
}

type fakeEmails struct {
	sent []*domain.EmailDispatchPayload
	err  error
}

func (e *fakeEmails) EnqueueEmail(_ context.Context, _ int, p *domain.EmailDispatchPayload) error {
	if e.err != nil {
		return e.err
	}
	e.sent = append(e.sent, p)
	return nil
}

type fakeArtifacts struct{ files map[string][]byte }

func newFakeArtifacts() *fakeArtifacts { return &fakeArtifacts{files: map[string][]byte{}} }

func (a *fakeArtifacts) Put(path string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	a.files[path] = b
	return nil
}

func (a *fakeArtifacts) Get(path string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(a.files[path])), nil
}

func (a *fakeArtifacts) Delete(path string) error {
	delete(a.files, path)
	return nil
}

func (a *fakeArtifacts) Size(path string) (int64, error) {
	return int64(len(a.files[path])), nil
}

func (a *fakeArtifacts) URL(path string) string { return "http://files.local/" + path }

func (a *fakeArtifacts) only() (string, []byte) {
	for path, b := range a.files {
		return path, b
	}
	return "", nil
}

func descriptor(typ domain.JobType, payload string) *domain.JobDescriptor {
	return &domain.JobDescriptor{
		ID:      "job-1",
		Type:    typ,
		Payload: []byte(payload),
	}
}
