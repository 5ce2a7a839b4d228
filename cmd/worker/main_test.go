package main

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeLister struct {
	ids []int
	err error
}

func (l *fakeLister) CompanyIDs(context.Context) ([]int, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.ids, nil
}

func TestTenantListRefresh(t *testing.T) {
	l := &tenantList{}
	src := &fakeLister{ids: []int{1, 2}}

	l.refresh(context.Background(), src, zap.NewNop())
	assert.Equal(t, []int{1, 2}, l.get())

	// a failed refresh keeps the previous snapshot
	src.err = errors.New("db down")
	l.refresh(context.Background(), src, zap.NewNop())
	assert.Equal(t, []int{1, 2}, l.get())

	src.err = nil
	src.ids = []int{1, 2, 3}
	l.refresh(context.Background(), src, zap.NewNop())
	assert.Equal(t, []int{1, 2, 3}, l.get())
}
