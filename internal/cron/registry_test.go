package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	a, b := &stubJob{name: "a"}, &stubJob{name: "b"}
	registry := NewRegistry(a, b)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, a, jobs[0])
	assert.Same(t, b, jobs[1])
	assert.Equal(t, []string{"a", "b"}, registry.Names())

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "caller must not mutate the registry")
}

func TestRegistryReplacesDuplicateNames(t *testing.T) {
	first := &stubJob{name: "outbox-retention"}
	second := &stubJob{name: "outbox-retention"}
	registry := NewRegistry(first, nil, second)

	jobs := registry.Jobs()
	require.Len(t, jobs, 1)
	assert.Same(t, second, jobs[0])
}

func TestRegistrySelect(t *testing.T) {
	expiry := &stubJob{name: "requirement-expiry"}
	retention := &stubJob{name: "outbox-retention"}
	registry := NewRegistry(expiry, retention)

	all, err := registry.Select()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	picked, err := registry.Select("outbox-retention", " ", "requirement-expiry")
	require.NoError(t, err)
	require.Len(t, picked, 2)
	assert.Same(t, expiry, picked[0], "selection keeps registration order")

	_, err = registry.Select("nightly-report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requirement-expiry, outbox-retention")
}
