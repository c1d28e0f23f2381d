/*
Registry routes each pipeline stage to the implementation registered for a
site.

The site maps are built once at composition time and read-only afterwards.
Routing is by literal site string only; a missing implementation yields the
stage's neutral result, never an error. Dispatch validates the request
first so an invalid request short-circuits every stage the same way.
*/
package registry

import (
	"context"
	"fmt"

	"github.com/yanun0323/logs"

	"main/internal/schema"
	"main/internal/venue"
)

// Adviser computes quote advice for one site.
type Adviser interface {
	Advise(ctx context.Context, vc venue.Context, req schema.Request, estimation schema.Estimation) schema.Advice
}

// Instructor plans order instructions for one site.
type Instructor interface {
	Instruct(ctx context.Context, vc venue.Context, req schema.Request, advice schema.Advice) []schema.Instruction
}

// OrderManager submits and reconciles instructions for one site.
type OrderManager interface {
	Manage(ctx context.Context, vc venue.Context, req schema.Request, instructions []schema.Instruction) map[schema.Instruction]*string
	Reconcile(ctx context.Context, vc venue.Context, req schema.Request, submissions map[schema.Instruction]*string) map[schema.Instruction]bool
}

// Registry holds the per-site role implementations.
type Registry struct {
	advisers    map[string]Adviser
	instructors map[string]Instructor
	managers    map[string]OrderManager
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		advisers:    make(map[string]Adviser),
		instructors: make(map[string]Instructor),
		managers:    make(map[string]OrderManager),
	}
}

// RegisterAdviser maps a site to its adviser. A site maps to exactly one
// implementation per role.
func (r *Registry) RegisterAdviser(site string, impl Adviser) error {
	if site == "" || impl == nil {
		return fmt.Errorf("adviser registration invalid for site %q", site)
	}
	if _, ok := r.advisers[site]; ok {
		return fmt.Errorf("adviser already registered for site %q", site)
	}
	r.advisers[site] = impl
	return nil
}

// RegisterInstructor maps a site to its instructor.
func (r *Registry) RegisterInstructor(site string, impl Instructor) error {
	if site == "" || impl == nil {
		return fmt.Errorf("instructor registration invalid for site %q", site)
	}
	if _, ok := r.instructors[site]; ok {
		return fmt.Errorf("instructor already registered for site %q", site)
	}
	r.instructors[site] = impl
	return nil
}

// RegisterOrderManager maps a site to its order manager.
func (r *Registry) RegisterOrderManager(site string, impl OrderManager) error {
	if site == "" || impl == nil {
		return fmt.Errorf("order manager registration invalid for site %q", site)
	}
	if _, ok := r.managers[site]; ok {
		return fmt.Errorf("order manager already registered for site %q", site)
	}
	r.managers[site] = impl
	return nil
}

// Advise dispatches to the site's adviser; an invalid request or missing
// implementation yields an empty advice.
func (r *Registry) Advise(ctx context.Context, vc venue.Context, req schema.Request, estimation schema.Estimation) schema.Advice {
	if !req.Valid() {
		logs.Debugf("registry: invalid request for %s.%s", req.Site, req.Instrument)
		return schema.Advice{}
	}
	impl, ok := r.advisers[req.Site]
	if !ok {
		logs.Debugf("registry: no adviser for site %q", req.Site)
		return schema.Advice{}
	}
	return impl.Advise(ctx, vc, req, estimation)
}

// Instruct dispatches to the site's instructor; the neutral result is an
// empty instruction list.
func (r *Registry) Instruct(ctx context.Context, vc venue.Context, req schema.Request, advice schema.Advice) []schema.Instruction {
	if !req.Valid() {
		logs.Debugf("registry: invalid request for %s.%s", req.Site, req.Instrument)
		return nil
	}
	impl, ok := r.instructors[req.Site]
	if !ok {
		logs.Debugf("registry: no instructor for site %q", req.Site)
		return nil
	}
	return impl.Instruct(ctx, vc, req, advice)
}

// Manage dispatches to the site's order manager; the neutral result is an
// empty submission map.
func (r *Registry) Manage(ctx context.Context, vc venue.Context, req schema.Request, instructions []schema.Instruction) map[schema.Instruction]*string {
	if !req.Valid() {
		logs.Debugf("registry: invalid request for %s.%s", req.Site, req.Instrument)
		return map[schema.Instruction]*string{}
	}
	impl, ok := r.managers[req.Site]
	if !ok {
		logs.Debugf("registry: no order manager for site %q", req.Site)
		return map[schema.Instruction]*string{}
	}
	if out := impl.Manage(ctx, vc, req, instructions); out != nil {
		return out
	}
	return map[schema.Instruction]*string{}
}

// Reconcile dispatches to the site's order manager; the neutral result is
// an empty outcome map.
func (r *Registry) Reconcile(ctx context.Context, vc venue.Context, req schema.Request, submissions map[schema.Instruction]*string) map[schema.Instruction]bool {
	if !req.Valid() {
		logs.Debugf("registry: invalid request for %s.%s", req.Site, req.Instrument)
		return map[schema.Instruction]bool{}
	}
	impl, ok := r.managers[req.Site]
	if !ok {
		logs.Debugf("registry: no order manager for site %q", req.Site)
		return map[schema.Instruction]bool{}
	}
	if out := impl.Reconcile(ctx, vc, req, submissions); out != nil {
		return out
	}
	return map[schema.Instruction]bool{}
}
