package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/hrq/internal/storage"
)

type fakeReconcileStore struct {
	stranded []storage.JobRef
	touched  []string
}

func (s *fakeReconcileStore) StrandedJobs(_ context.Context, _ time.Time, _ int) ([]storage.JobRef, error) {
	return s.stranded, nil
}

func (s *fakeReconcileStore) TouchJob(_ context.Context, id string) error {
	s.touched = append(s.touched, id)
	return nil
}

type fakeReconcileQueue struct {
	present map[string]bool
	pushed  []string
}

func (q *fakeReconcileQueue) Contains(_ context.Context, _ int, jobID string) (bool, error) {
	return q.present[jobID], nil
}

func (q *fakeReconcileQueue) Push(_ context.Context, _ int, jobID string) error {
	q.pushed = append(q.pushed, jobID)
	return nil
}

func TestReconcileMissingRepushesLostJobs(t *testing.T) {
	store := &fakeReconcileStore{stranded: []storage.JobRef{
		{ID: "lost-retry", CompanyID: 7},   // retry push failed after the status write
		{ID: "lost-pending", CompanyID: 7}, // popped and dropped before MarkRunning
		{ID: "delayed", CompanyID: 7},      // waiting out its backoff in the zset
	}}
	q := &fakeReconcileQueue{present: map[string]bool{"delayed": true}}

	require.NoError(t, reconcileMissing(context.Background(), store, q, time.Minute, 500))

	assert.Equal(t, []string{"lost-retry", "lost-pending"}, q.pushed)
	assert.Equal(t, []string{"lost-retry", "lost-pending"}, store.touched)
}

func TestReconcileMissingNoCandidates(t *testing.T) {
	q := &fakeReconcileQueue{}
	require.NoError(t, reconcileMissing(context.Background(), &fakeReconcileStore{}, q, time.Minute, 500))
	assert.Empty(t, q.pushed)
}
