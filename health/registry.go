package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registration is the opaque handle owning the association between a Check
// and its Config snapshot. It is created on Register and invalidated on
// Unregister.
type Registration struct {
	id           string
	check        Check
	config       Config
	registeredAt time.Time
}

// ID returns the unique id of this registration.
func (r *Registration) ID() string { return r.id }

// Check returns the registered check.
func (r *Registration) Check() Check { return r.check }

// Config returns the config snapshot taken at registration time.
func (r *Registration) Config() Config { return r.config }

// RegisteredAt returns when the registration was created.
func (r *Registration) RegisteredAt() time.Time { return r.registeredAt }

// Name returns the registered check's name.
func (r *Registration) Name() string { return r.check.Name() }

// Registry stores registered checks and their policy configs. Mutations are
// mutually exclusive with iteration; reads take a shared lock so RunAll can
// race safely with registration.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Registration
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Registration)}
}

// Register validates the config and adds the check. It fails with
// ErrDuplicateName if a check with the same name is already present, and
// with a ConfigError if the config is invalid or introduces a dependency
// cycle.
func (r *Registry) Register(check Check, cfg Config) (*Registration, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := check.Name()
	if name == "" {
		return nil, &ConfigError{Field: "name", Reason: "check name must not be empty"}
	}
	if _, exists := r.entries[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	if err := r.checkForCycle(name, cfg.DependsOn); err != nil {
		return nil, err
	}

	reg := &Registration{
		id:           uuid.NewString(),
		check:        check,
		config:       cfg,
		registeredAt: time.Now().UTC(),
	}
	r.entries[name] = reg
	r.order = append(r.order, name)
	return reg, nil
}

// UpdateConfig replaces the config snapshot for a registered check. The new
// config takes effect from the next execution cycle.
func (r *Registry) UpdateConfig(name string, cfg Config) error {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCheckNotFound, name)
	}
	if err := r.checkForCycleExcluding(name, cfg.DependsOn); err != nil {
		return err
	}
	r.entries[name] = &Registration{
		id:           reg.id,
		check:        reg.check,
		config:       cfg,
		registeredAt: reg.registeredAt,
	}
	return nil
}

// Unregister removes the named check. It returns false when the name is
// unknown and leaves the registry unchanged.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; !ok {
		return false
	}
	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether a check with the given name is registered.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Lookup returns the registration for the named check.
func (r *Registry) Lookup(name string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[name]
	return reg, ok
}

// Names returns the registered check names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered checks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot returns the current registrations in registration order.
func (r *Registry) Snapshot() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	regs := make([]*Registration, 0, len(r.order))
	for _, name := range r.order {
		regs = append(regs, r.entries[name])
	}
	return regs
}

// RunAll executes every registered, dependency-satisfied check once and
// returns all results in registration order. It applies no retry, alerting,
// or remediation policy; the scheduler layers those on top. Dependency
// gating considers results produced earlier in the same pass.
func (r *Registry) RunAll(ctx context.Context, at time.Time) []Result {
	regs := r.Snapshot()

	results := make([]Result, 0, len(regs))
	byName := make(map[string]Result, len(regs))
	for _, reg := range regs {
		cfg := reg.Config()
		if blocked, dep := dependencyBlocked(cfg, byName); blocked {
			res := Skipped(reg.Name(), "dependency "+dep+" is not healthy").
				WithCategory(reg.Check().Category())
			results = append(results, res)
			byName[reg.Name()] = res
			continue
		}
		res := Run(ctx, reg.Check(), cfg.Timeout, at)
		results = append(results, res)
		byName[reg.Name()] = res
	}
	return results
}

// dependencyBlocked reports whether the config's dependency gate should skip
// execution, and the first offending dependency name.
func dependencyBlocked(cfg Config, latest map[string]Result) (bool, string) {
	if !cfg.SkipOnUnhealthyDependencies {
		return false, ""
	}
	for _, dep := range cfg.DependsOn {
		res, ok := latest[dep]
		if !ok {
			continue
		}
		if res.Skipped || res.Status.AtLeast(StatusDegraded) {
			return true, dep
		}
	}
	return false, ""
}

// checkForCycle verifies that adding a check with the given dependencies
// keeps the dependency graph acyclic. Dependencies on unregistered names are
// allowed; they simply never gate.
func (r *Registry) checkForCycle(name string, deps []string) error {
	graph := make(map[string][]string, len(r.entries)+1)
	for n, reg := range r.entries {
		graph[n] = reg.config.DependsOn
	}
	graph[name] = deps
	return detectCycle(graph)
}

func (r *Registry) checkForCycleExcluding(name string, deps []string) error {
	graph := make(map[string][]string, len(r.entries))
	for n, reg := range r.entries {
		if n == name {
			continue
		}
		graph[n] = reg.config.DependsOn
	}
	graph[name] = deps
	return detectCycle(graph)
}

func detectCycle(graph map[string][]string) error {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(graph))

	var visit func(string) error
	visit = func(n string) error {
		color[n] = gray
		for _, dep := range graph[n] {
			if _, known := graph[dep]; !known {
				continue
			}
			switch color[dep] {
			case gray:
				return &ConfigError{Field: "depends_on", Reason: "dependency cycle through " + dep}
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[n] = black
		return nil
	}

	for n := range graph {
		if color[n] == white {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}
