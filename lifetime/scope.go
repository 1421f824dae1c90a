package lifetime

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// RootTag is a tag of Scope returned by Builder.Build.
const RootTag = "root"

type scopeConfig struct {
	ctx           context.Context
	tag           any
	registrations []func(*Builder)
}

type ScopeOption func(*scopeConfig)

func WithTag(tag any) ScopeOption {
	return func(conf *scopeConfig) { conf.tag = tag }
}

// WithRegistrations adds services visible only to the nested Scope and its descendants.
// Singletons registered this way are owned by the nested Scope.
func WithRegistrations(configure func(*Builder)) ScopeOption {
	return func(conf *scopeConfig) { conf.registrations = append(conf.registrations, configure) }
}

// WithContext closes nested Scope once ctx is done.
func WithContext(ctx context.Context) ScopeOption {
	return func(conf *scopeConfig) { conf.ctx = ctx }
}

type instanceSlot struct {
	value *any
	mu    sync.Mutex
}

func (slot *instanceSlot) empty() bool {
	return slot.value == nil
}

func (slot *instanceSlot) lock() {
	slot.mu.Lock()
}

func (slot *instanceSlot) unlock() {
	slot.mu.Unlock()
}

func newScope(ctx context.Context, parent *Scope, reg *registry, tag any, conf builderConfig) *Scope {
	ctx, cancel := context.WithCancel(ctx)

	state := &scopeState{
		ctx:      ctx,
		cancel:   cancel,
		parent:   parent,
		registry: reg,
		tag:      tag,
		conf:     conf,
		logger:   conf.logger.With(zap.Any("scope", tag)),
		slots:    make(map[*record]*instanceSlot),
	}
	state.self = &Scope{scopeState: state}

	return state.self
}

// Scope is a lifetime boundary. It shares PerScope instances,
// owns Singletons of its registrations and disposes everything it tracked once closed.
//
// Constructors that accept *Scope receive a view of the resolving Scope
// that remembers which services are being built, so a constructor resolving its own service
// fails with CircularDependencyError.
type Scope struct {
	*scopeState
	path *resolveFrame
}

type scopeState struct {
	self     *Scope
	ctx      context.Context
	tag      any
	cancel   context.CancelFunc
	stop     func() bool
	parent   *Scope
	registry *registry
	logger   *zap.Logger
	slots    map[*record]*instanceSlot
	tracked  []*disposer
	children []*Scope
	conf     builderConfig
	mu       sync.Mutex
	disposed bool
}

// resolveFrame is a record whose constructor is running.
type resolveFrame struct {
	rec  *record
	next *resolveFrame
	done atomic.Bool
}

func (f *resolveFrame) building(rec *record) bool {
	for ; f != nil; f = f.next {
		if f.rec == rec && !f.done.Load() {
			return true
		}
	}

	return false
}

// on returns a view of the same Scope bound to path.
func (s *Scope) on(path *resolveFrame) *Scope {
	if path == nil {
		return s.self
	}

	return &Scope{scopeState: s.scopeState, path: path}
}

func (s *Scope) Tag() any {
	return s.tag
}

// Parent returns nil for root Scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Context is passed to constructors that accept context.Context.
// It is cancelled once Scope is closed.
func (s *Scope) Context() context.Context {
	return s.ctx
}

func (s *Scope) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.disposed
}

func (s *Scope) IsRegistered(t reflect.Type) bool {
	return s.isRegistered(serviceKey{t: t})
}

func (s *Scope) IsRegisteredKeyed(t reflect.Type, key any) bool {
	return s.isRegistered(serviceKey{t: t, key: key})
}

func (s *Scope) isRegistered(key serviceKey) bool {
	if key.key == nil && key.t == scopeType {
		return true
	}

	_, ok := s.registry.lookup(key)

	return ok
}

// Resolve returns service registered for t.
func (s *Scope) Resolve(t reflect.Type) (any, error) {
	return s.resolve(serviceKey{t: t})
}

func (s *Scope) ResolveKeyed(t reflect.Type, key any) (any, error) {
	return s.resolve(serviceKey{t: t, key: key})
}

// TryResolve reports false without an error if t is not registered.
func (s *Scope) TryResolve(t reflect.Type) (any, bool, error) {
	return s.tryResolve(serviceKey{t: t})
}

func (s *Scope) TryResolveKeyed(t reflect.Type, key any) (any, bool, error) {
	return s.tryResolve(serviceKey{t: t, key: key})
}

func (s *Scope) resolve(key serviceKey) (any, error) {
	service, ok, err := s.tryResolve(key)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, newConstructorNotFoundError(key)
	}

	return service, nil
}

func (s *Scope) tryResolve(key serviceKey) (any, bool, error) {
	if s.Disposed() {
		return nil, false, newDisposedError(s)
	}

	if key.key == nil && key.t == scopeType {
		return s, true, nil
	}

	rec, ok := s.registry.lookup(key)
	if !ok {
		return nil, false, nil
	}

	service, err := s.get(rec)

	return service, true, err
}

func (s *Scope) get(rec *record) (any, error) {
	if s.path.building(rec) {
		return nil, newServiceBuilderError(
			newCircularDependencyError(rec.constructor, rec.key.String()),
			rec.lifetime,
			rec.key.String(),
		)
	}

	switch rec.lifetime {
	case Singleton:
		return rec.owner.on(s.path).getShared(rec)
	case PerScope:
		return s.getShared(rec)
	case Transient:
		service, cleanup, err := s.build(rec)
		if err != nil {
			return nil, err
		}

		if err := s.track(rec, service, cleanup); err != nil {
			return nil, err
		}

		return service, nil
	default:
		panic(fmt.Errorf(
			"broken record %s: %w",
			rec.key,
			LifetimeUnsupportedError(rec.lifetime.String())),
		)
	}
}

func (s *Scope) getShared(rec *record) (any, error) {
	slot, err := s.slot(rec)
	if err != nil {
		return nil, err
	}

	slot.lock()
	defer slot.unlock()

	if !slot.empty() {
		return *slot.value, nil
	}

	service, cleanup, err := s.build(rec)
	if err != nil {
		return nil, err
	}

	if err := s.track(rec, service, cleanup); err != nil {
		return nil, err
	}

	slot.value = &service

	return service, nil
}

func (s *Scope) slot(rec *record) (*instanceSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil, newDisposedError(s)
	}

	slot, ok := s.slots[rec]
	if !ok {
		slot = &instanceSlot{}
		s.slots[rec] = slot
	}

	return slot, nil
}

func (s *Scope) build(rec *record) (service any, cleanup Cleanup, err error) {
	defer func() {
		if rp := recover(); rp != nil {
			err = newServiceBuilderError(
				newConstructorError(fmt.Errorf("recovered from panic: %v", rp)),
				rec.lifetime,
				rec.key.String(),
			)
		}
	}()

	frame := &resolveFrame{rec: rec, next: s.path}
	defer frame.done.Store(true)

	view := s.on(frame)
	args := make([]reflect.Value, 0, len(rec.dependencies))

	for _, dep := range rec.dependencies {
		switch dep.kind {
		case contextDependency:
			args = append(args, reflect.ValueOf(s.ctx))
		case scopeDependency:
			args = append(args, reflect.ValueOf(view))
		default:
			service, err := view.resolve(serviceKey{t: dep.t})
			if err != nil {
				return nil, nil, err
			}

			args = append(args, valueOf(service, dep.t))
		}
	}

	values := rec.fn.Call(args)

	if rec.constructorType == onlyService && len(values) != 1 ||
		rec.constructorType == withError && len(values) != 2 ||
		rec.constructorType == withErrorAndCleanup && len(values) != 3 {
		return nil, nil, newServiceBuilderError(
			newConstructorError(newUnexpectedResultError(values)),
			rec.lifetime,
			rec.key.String(),
		)
	}

	if rec.constructorType != onlyService {
		errV := values[len(values)-1]
		if err, ok := (errV.Interface()).(error); ok && err != nil {
			return nil, nil, newServiceBuilderError(
				newConstructorError(err),
				rec.lifetime,
				rec.key.String(),
			)
		}
	}

	service = values[0].Interface()

	if rec.checkAssignable && service != nil && !reflect.TypeOf(service).AssignableTo(rec.key.t) {
		return nil, nil, newServiceBuilderError(
			newConstructorError(ErrNotAssignable),
			rec.lifetime,
			rec.key.String(),
		)
	}

	if rec.constructorType == withErrorAndCleanup && !values[1].IsNil() {
		cleanup = values[1].Convert(cleanupType).Interface().(Cleanup)
	}

	return service, cleanup, nil
}

func (s *Scope) track(rec *record, service any, cleanup Cleanup) error {
	d := newDisposer(rec, service, cleanup)
	if d == nil {
		return nil
	}

	s.mu.Lock()

	if s.disposed {
		s.mu.Unlock()

		return multierr.Append(newDisposedError(s), d.dispose(context.Background(), false, s.logger))
	}

	s.tracked = append(s.tracked, d)
	s.mu.Unlock()

	return nil
}

// BeginScope starts nested Scope. Nested Scope is closed together with its parent.
func (s *Scope) BeginScope(opts ...ScopeOption) (*Scope, error) {
	var conf scopeConfig
	for _, opt := range opts {
		opt(&conf)
	}

	if s.Disposed() {
		return nil, newDisposedError(s)
	}

	reg := s.registry
	if len(conf.registrations) > 0 {
		b := newBuilder(s.conf)
		b.parent = s.registry

		for _, configure := range conf.registrations {
			configure(b)
		}

		var err error
		if reg, err = b.build(); err != nil {
			return nil, err
		}
	}

	child := newScope(s.ctx, s.self, reg, conf.tag, s.conf)
	if reg != s.registry {
		reg.attach(child)
	}

	s.mu.Lock()

	if s.disposed {
		s.mu.Unlock()
		child.cancel()

		return nil, newDisposedError(s)
	}

	s.children = append(s.children, child)
	s.mu.Unlock()

	if conf.ctx != nil {
		child.closeWhenDone(conf.ctx)
	}

	child.logger.Debug("lifetime scope started")

	return child.on(s.path), nil
}

// Close disposes nested scopes and every tracked instance in reverse creation order.
// Calling Close more than once has no effect.
func (s *Scope) Close() error {
	return s.dispose(context.Background(), false)
}

// CloseAsync is Close that prefers CloseAsync of tracked instances over their Close.
func (s *Scope) CloseAsync(ctx context.Context) error {
	return s.dispose(ctx, true)
}

func (s *Scope) dispose(ctx context.Context, async bool) error {
	s.mu.Lock()

	if s.disposed {
		s.mu.Unlock()
		return nil
	}

	s.disposed = true
	children, tracked, stop := s.children, s.tracked, s.stop
	s.children, s.tracked, s.slots, s.stop = nil, nil, nil, nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}

	var err error
	for i := len(children) - 1; i >= 0; i-- {
		err = multierr.Append(err, children[i].dispose(ctx, async))
	}

	for i := len(tracked) - 1; i >= 0; i-- {
		err = multierr.Append(err, tracked[i].dispose(ctx, async, s.logger))
	}

	if s.parent != nil {
		s.parent.forget(s.self)
	}

	s.cancel()
	s.logger.Debug("lifetime scope closed", zap.Int("disposed", len(tracked)), zap.Error(err))

	return err
}

func (s *Scope) forget(child *Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.children = slices.DeleteFunc(s.children, func(c *Scope) bool { return c == child })
}

func (s *Scope) closeWhenDone(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() {
		if err := s.Close(); err != nil {
			s.logger.Error("cannot close lifetime scope after context is done", zap.Error(err))
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		stop()
		return
	}

	s.stop = stop
}

func valueOf(service any, t reflect.Type) reflect.Value {
	if service == nil {
		return reflect.Zero(t)
	}

	return reflect.ValueOf(service)
}
