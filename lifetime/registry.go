package lifetime

import (
	"reflect"
	"slices"
)

type constructorType int

const (
	onlyService constructorType = iota
	withError
	withErrorAndCleanup
)

type dependencyKind int

const (
	serviceDependency dependencyKind = iota
	contextDependency
	scopeDependency
)

type dependency struct {
	t    reflect.Type
	kind dependencyKind
}

func newDependency(t reflect.Type) dependency {
	switch t {
	case contextInterface:
		return dependency{t: t, kind: contextDependency}
	case scopeType:
		return dependency{t: t, kind: scopeDependency}
	default:
		return dependency{t: t, kind: serviceDependency}
	}
}

func (d dependency) String() string {
	if d.kind == contextDependency {
		return contextDepName
	}

	return typeName(d.t)
}

type record struct {
	key              serviceKey
	constructor      any
	fn               reflect.Value
	owner            *Scope
	dependencies     []dependency
	id               int
	constructorType  constructorType
	lifetime         Lifetime
	dependsOnContext bool
	externallyOwned  bool
	checkAssignable  bool
}

func (rec *record) onlySingletonDependencies(lookup func(serviceKey) (*record, bool)) bool {
	if len(rec.dependencies) == 0 {
		return false
	}

	for _, dep := range rec.dependencies {
		if dep.kind != serviceDependency {
			return false
		}

		r, ok := lookup(serviceKey{t: dep.t})
		if !ok || r.lifetime != Singleton {
			return false
		}
	}

	return true
}

// registry holds records declared by one Builder.
// Nested scopes with own registrations get a registry chained to the parent one.
type registry struct {
	parent  *registry
	records map[serviceKey]*record
}

func (r *registry) lookup(key serviceKey) (*record, bool) {
	if !key.hashable() {
		return nil, false
	}

	for reg := r; reg != nil; reg = reg.parent {
		if rec, ok := reg.records[key]; ok {
			return rec, true
		}
	}

	return nil, false
}

func (r *registry) attach(owner *Scope) {
	for _, rec := range r.records {
		rec.owner = owner
	}
}

func (r *registry) sorted() []*record {
	records := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, rec)
	}

	slices.SortFunc(records, func(a, b *record) int { return a.id - b.id })

	return records
}

type analyzer struct {
	lookup                      func(serviceKey) (*record, bool)
	silenceScopeHierarchyErrors bool
}

// canResolveDependencies walks dependencies of rec.
// singleton is the closest Singleton on the walked path, PerScope services are not allowed below it.
func (a analyzer) canResolveDependencies(rec *record, singleton *record, chain ...serviceKey) error {
	chain = append(chain, rec.key)
	if rec.lifetime == Singleton {
		singleton = rec
	}

	for _, dep := range rec.dependencies {
		if dep.kind != serviceDependency {
			continue
		}

		depKey := serviceKey{t: dep.t}
		r, ok := a.lookup(depKey)
		if !ok {
			return newServiceBuilderError(
				newConstructorNotFoundError(depKey),
				rec.lifetime,
				rec.key.String(),
			)
		}

		if slices.Contains(chain, depKey) {
			return newServiceBuilderError(
				newCircularDependencyError(rec.constructor, depKey.String()),
				rec.lifetime,
				rec.key.String(),
			)
		}

		if !a.silenceScopeHierarchyErrors && singleton != nil && r.lifetime == PerScope {
			return newServiceBuilderError(
				newScopeHierarchyError(r),
				singleton.lifetime,
				singleton.key.String(),
			)
		}

		if err := a.canResolveDependencies(r, singleton, chain...); err != nil {
			return err
		}
	}

	return nil
}
