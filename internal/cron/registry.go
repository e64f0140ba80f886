package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is one unit of periodic work. Name doubles as the lease key, so it
// must be stable across releases.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order, unique by name.
type Registry struct {
	jobs  []Job
	index map[string]int
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{index: map[string]int{}}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register ignores nil. A job whose name is already taken replaces the
// earlier one in place.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	if i, ok := r.index[job.Name()]; ok {
		r.jobs[i] = job
		return
	}
	r.index[job.Name()] = len(r.jobs)
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy in registration order.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		names[i] = job.Name()
	}
	return names
}

// Select returns the named jobs in registration order. No names means all
// jobs; an unknown name is an error.
func (r *Registry) Select(names ...string) ([]Job, error) {
	if len(names) == 0 {
		return r.Jobs(), nil
	}
	want := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := r.index[name]; !ok {
			return nil, fmt.Errorf("unknown cron job %q (have %s)", name, strings.Join(r.Names(), ", "))
		}
		want[name] = true
	}
	var out []Job
	for _, job := range r.jobs {
		if want[job.Name()] {
			out = append(out, job)
		}
	}
	return out, nil
}
