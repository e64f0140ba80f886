package cron

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/angelmondragon/sourcing-backend/pkg/logger"
)

type fakeLocker struct {
	held     map[string]bool
	released []string
	err      error
}

func newFakeLocker(held ...string) *fakeLocker {
	f := &fakeLocker{held: map[string]bool{}}
	for _, job := range held {
		f.held[job] = true
	}
	return f
}

func (f *fakeLocker) TryLock(_ context.Context, job string) (Lease, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.held[job] {
		return nil, nil
	}
	f.held[job] = true
	return fakeLease{locker: f, job: job}, nil
}

type fakeLease struct {
	locker *fakeLocker
	job    string
}

func (l fakeLease) Unlock(context.Context) error {
	delete(l.locker.held, l.job)
	l.locker.released = append(l.locker.released, l.job)
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
	registry := NewRegistry(&testJob{name: "success"}, &testJob{name: "fail", err: errors.New("boom")})
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locker:   newFakeLocker(),
		Interval: 0,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx := context.Background()
	err = service.runCycle(ctx)
	if err == nil || !strings.Contains(err.Error(), "fail: boom") {
		t.Fatalf("expected aggregated job error, got %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if success, ok := jobs[0].(*testJob); ok {
		if success.runs != 1 {
			t.Fatalf("expected success job to run once, ran %d", success.runs)
		}
	} else {
		t.Fatalf("first job type mismatch")
	}
	if failure, ok := jobs[1].(*testJob); ok {
		if failure.runs != 1 {
			t.Fatalf("expected failure job to run once, ran %d", failure.runs)
		}
	} else {
		t.Fatalf("second job type mismatch")
	}
}

func TestServiceRunCycleSkipsOnlyHeldJobs(t *testing.T) {
	held := &testJob{name: "requirement-expiry-notice"}
	free := &testJob{name: "outbox-retention"}
	locker := newFakeLocker(held.name)
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: NewRegistry(held, free),
		Locker:   locker,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if held.runs != 0 {
		t.Fatalf("expected held job to be skipped, ran %d", held.runs)
	}
	if free.runs != 1 {
		t.Fatalf("expected free job to run once, ran %d", free.runs)
	}
	if len(locker.released) != 1 || locker.released[0] != free.name {
		t.Fatalf("expected only the free job lease released, got %v", locker.released)
	}
	if !locker.held[held.name] {
		t.Fatal("foreign lease must stay held")
	}
}

func TestServiceRunCycleReportsLockErrors(t *testing.T) {
	job := &testJob{name: "outbox-retention"}
	locker := newFakeLocker()
	locker.err = errors.New("redis unavailable")
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: NewRegistry(job),
		Locker:   locker,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	err = service.runCycle(context.Background())
	if err == nil || !strings.Contains(err.Error(), "redis unavailable") {
		t.Fatalf("expected lock error, got %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job must not run without a lease, ran %d", job.runs)
	}
}

func TestServiceRunOnceSelectsJobs(t *testing.T) {
	expiry := &testJob{name: "requirement-expiry"}
	retention := &testJob{name: "outbox-retention"}
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: NewRegistry(expiry, retention),
		Locker:   newFakeLocker(),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background(), "outbox-retention"); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if expiry.runs != 0 || retention.runs != 1 {
		t.Fatalf("expected only retention to run, got expiry=%d retention=%d", expiry.runs, retention.runs)
	}
	if err := service.RunOnce(context.Background(), "missing"); err == nil {
		t.Fatal("expected unknown job error")
	}
}
