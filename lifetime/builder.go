package lifetime

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

type builderConfig struct {
	ctx                         context.Context
	logger                      *zap.Logger
	silenceScopeHierarchyErrors bool
}

type BuilderOption func(*builderConfig)

var (
	// WithRootContext closes root Scope once ctx is done.
	WithRootContext = func(ctx context.Context) BuilderOption {
		return func(conf *builderConfig) { conf.ctx = ctx }
	}

	WithLogger = func(logger *zap.Logger) BuilderOption {
		return func(conf *builderConfig) { conf.logger = logger }
	}

	// SilenceScopeHierarchyErrors allows Singleton services to capture PerScope ones
	// and mutes optimisation hints.
	SilenceScopeHierarchyErrors BuilderOption = func(conf *builderConfig) { conf.silenceScopeHierarchyErrors = true }
)

type registration struct {
	key             any
	as              reflect.Type
	externallyOwned bool
}

type RegistrationOption func(*registration)

// Keyed registers service under key. Keyed services are resolved only with ResolveKeyed.
func Keyed(key any) RegistrationOption {
	return func(r *registration) { r.key = key }
}

// As registers service under t instead of constructor result type.
// Constructor result type must be assignable to t.
func As(t reflect.Type) RegistrationOption {
	return func(r *registration) { r.as = t }
}

func AsType[T any]() RegistrationOption {
	return As(typeOf[T]())
}

// ExternallyOwned services are never disposed by the Scope that built them.
func ExternallyOwned() RegistrationOption {
	return func(r *registration) { r.externallyOwned = true }
}

// Returns new Builder.
func New(opts ...BuilderOption) *Builder {
	conf := builderConfig{
		ctx:    context.Background(),
		logger: logger(),
	}

	for _, opt := range opts {
		opt(&conf)
	}

	return newBuilder(conf)
}

// Creates new Builder, adds constructor and returns newly-created Builder.
func Add(lifetime Lifetime, constructor any, opts ...RegistrationOption) *Builder {
	return New().Add(lifetime, constructor, opts...)
}

func newBuilder(conf builderConfig) *Builder {
	return &Builder{
		conf:    conf,
		records: make(map[serviceKey]*record),
		nextID:  1,
	}
}

// Builder collects registrations. The first failed registration is kept
// and returned by Build, all following calls are ignored.
type Builder struct {
	err     error
	parent  *registry
	records map[serviceKey]*record
	conf    builderConfig
	nextID  int
	mu      sync.Mutex
}

func (b *Builder) Add(lifetime Lifetime, constructor any, opts ...RegistrationOption) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return b
	}

	b.err = b.add(lifetime, constructor, opts)

	return b
}

// AddInstance registers value as externally owned Singleton.
func (b *Builder) AddInstance(value any, opts ...RegistrationOption) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return b
	}

	if value == nil {
		b.err = newBadConstructorError(ErrConstructorNotAFunc, nil)
		return b
	}

	t := reflect.TypeOf(value)
	reg := registration{as: t}
	for _, opt := range opts {
		opt(&reg)
	}

	if !t.AssignableTo(reg.as) {
		b.err = newBadConstructorError(ErrNotAssignable, t)
		return b
	}

	opts = append([]RegistrationOption{As(t)}, opts...)
	opts = append(opts, ExternallyOwned())

	b.err = b.add(Singleton, func() any { return value }, opts)

	return b
}

// Replace swaps constructor of already registered service keeping its Lifetime.
func (b *Builder) Replace(constructor any, opts ...RegistrationOption) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return b
	}

	key, err := keyOf(constructor, opts)
	if err != nil {
		b.err = err
		return b
	}

	old, ok := b.records[key]
	if !ok {
		b.err = newBadConstructorError(newConstructorNotFoundError(key), reflect.TypeOf(constructor))
		return b
	}

	delete(b.records, key)

	b.err = b.add(old.lifetime, constructor, opts)

	return b
}

// Err returns first registration error if any.
func (b *Builder) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.err
}

// Build validates registrations and returns root Scope.
func (b *Builder) Build() (*Scope, error) {
	reg, err := b.build()
	if err != nil {
		return nil, err
	}

	root := newScope(b.conf.ctx, nil, reg, RootTag, b.conf)
	reg.attach(root)

	if b.conf.ctx.Done() != nil {
		root.closeWhenDone(b.conf.ctx)
	}

	return root, nil
}

func (b *Builder) build() (*registry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return nil, b.err
	}

	reg := &registry{
		parent:  b.parent,
		records: make(map[serviceKey]*record, len(b.records)),
	}

	for key, rec := range b.records {
		r := *rec
		reg.records[key] = &r
	}

	a := analyzer{
		lookup:                      reg.lookup,
		silenceScopeHierarchyErrors: b.conf.silenceScopeHierarchyErrors,
	}

	for _, rec := range reg.sorted() {
		if err := a.canResolveDependencies(rec, nil); err != nil {
			return nil, err
		}

		if !b.conf.silenceScopeHierarchyErrors &&
			rec.lifetime == PerScope &&
			rec.onlySingletonDependencies(reg.lookup) {
			b.conf.logger.Warn(
				"your dependency hierarchy can be optimised",
				zap.Error(fmt.Errorf("%s %s should be a Singleton", rec.lifetime, rec.key)),
			)
		}
	}

	return reg, nil
}

func (b *Builder) add(lifetime Lifetime, constructor any, opts []RegistrationOption) error {
	rec, err := b.newRecord(lifetime, constructor, opts)
	if err != nil {
		return err
	}

	if _, ok := b.records[rec.key]; ok {
		return newBadConstructorError(ErrDuplicateConstructor, rec.fn.Type())
	}

	b.records[rec.key] = rec
	b.nextID++

	return nil
}

func (b *Builder) newRecord(lifetime Lifetime, constructor any, opts []RegistrationOption) (*record, error) {
	var reg registration
	for _, opt := range opts {
		opt(&reg)
	}

	if !lifetime.valid() {
		return nil, LifetimeUnsupportedError(lifetime.String())
	}

	if !(serviceKey{key: reg.key}).hashable() {
		return nil, newBadConstructorError(ErrUncomparableKey, reflect.TypeOf(constructor))
	}

	rec := &record{
		id:              b.nextID,
		lifetime:        lifetime,
		constructor:     constructor,
		externallyOwned: reg.externallyOwned,
	}

	var serviceType reflect.Type

	// Check if constructor returns Constructor type
	if construct, ok := constructor.(func() (propertyFiller, error)); ok {
		filler, err := construct()
		if err != nil {
			return nil, err
		}

		rec.fn = reflect.ValueOf(filler.NewInstance)
		rec.constructorType = withError
		serviceType = filler.Type

		for _, t := range filler.Dependencies {
			dep := newDependency(t)
			rec.dependsOnContext = rec.dependsOnContext || dep.kind == contextDependency
			rec.dependencies = append(rec.dependencies, dep)
		}

		if lifetime == Singleton && rec.dependsOnContext {
			return nil, newConstructorUnsupportedError(rec.fn.Type(), lifetime)
		}
	} else {
		t := reflect.TypeOf(constructor)
		if t == nil || t.Kind() != reflect.Func {
			return nil, newBadConstructorError(ErrConstructorNotAFunc, t)
		}

		cType, err := getConstructorType(lifetime, t)
		if err != nil {
			return nil, err
		}

		if err := fillDependencies(lifetime, t, rec); err != nil {
			return nil, err
		}

		rec.fn = reflect.ValueOf(constructor)
		rec.constructorType = cType
		serviceType = t.Out(0)
	}

	if reg.as != nil && reg.as != serviceType {
		switch {
		case serviceType == emptyInterface:
			rec.checkAssignable = true
		case !serviceType.AssignableTo(reg.as):
			return nil, newBadConstructorError(ErrNotAssignable, rec.fn.Type())
		}

		serviceType = reg.as
	}

	rec.key = serviceKey{t: serviceType, key: reg.key}

	return rec, nil
}

func keyOf(constructor any, opts []RegistrationOption) (serviceKey, error) {
	var reg registration
	for _, opt := range opts {
		opt(&reg)
	}

	key := serviceKey{t: reg.as, key: reg.key}
	if key.t != nil {
		return key, nil
	}

	if construct, ok := constructor.(func() (propertyFiller, error)); ok {
		filler, err := construct()
		if err != nil {
			return key, err
		}

		key.t = filler.Type

		return key, nil
	}

	t := reflect.TypeOf(constructor)
	if t == nil || t.Kind() != reflect.Func || t.NumOut() == 0 {
		return key, newBadConstructorError(ErrConstructorNotAFunc, t)
	}

	key.t = t.Out(0)

	return key, nil
}

func getConstructorType(lifetime Lifetime, t reflect.Type) (constructorType, error) {
	// Regular constructor
	cType := onlyService

	if t.IsVariadic() {
		return cType, newBadConstructorError(ErrVariadicConstructor, t)
	}

	numIn := t.NumIn()

	// Singleton cannot be based on any context, but PerScope and Transient can
	if lifetime == Singleton && numIn > 0 && t.In(0) == contextInterface {
		return cType, newConstructorUnsupportedError(t, lifetime)
	}

	switch t.NumOut() {
	case 1:
		if out := t.Out(0); out.Implements(errorInterface) {
			return cType, newConstructorUnsupportedError(t, lifetime)
		}
	case 2:
		cType = withError

		if errType := t.Out(1); errType != errorInterface {
			return cType, newConstructorUnsupportedError(t, lifetime)
		}
	case 3:
		cType = withErrorAndCleanup

		if cleanup := t.Out(1); !cleanup.ConvertibleTo(cleanupType) || cleanup.Kind() != reflect.Func {
			return cType, newConstructorUnsupportedError(t, lifetime)
		}

		if errType := t.Out(2); errType != errorInterface {
			return cType, newConstructorUnsupportedError(t, lifetime)
		}

		if lifetime == Transient {
			return cType, newConstructorUnsupportedError(t, lifetime)
		}
	default:
		return cType, newConstructorUnsupportedError(t, lifetime)
	}

	return cType, nil
}

func fillDependencies(lifetime Lifetime, t reflect.Type, r *record) error {
	numIn := t.NumIn()
	for i := 0; i < numIn; i++ {
		dep := newDependency(t.In(i))
		if i > 0 && dep.kind == contextDependency {
			return newConstructorUnsupportedError(t, lifetime)
		}

		if dep.kind == contextDependency {
			r.dependsOnContext = true
		}

		r.dependencies = append(r.dependencies, dep)
	}

	return nil
}
