package cron

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Job is one unit of periodic maintenance. Name doubles as the metrics label
// and the key accepted by CAMPUSAID_CRON_JOBS.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order with unique names.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("nil cron job")
	}
	name := job.Name()
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.names[name] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Only narrows the registry to the named jobs. An empty list keeps every job.
func (r *Registry) Only(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	wanted := map[string]struct{}{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := r.names[name]; !ok {
			return nil, fmt.Errorf("unknown cron job %q", name)
		}
		wanted[name] = struct{}{}
	}
	out := &Registry{names: map[string]struct{}{}}
	for _, job := range r.jobs {
		if _, ok := wanted[job.Name()]; ok {
			_ = out.Register(job)
		}
	}
	return out, nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

// Names lists job names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
