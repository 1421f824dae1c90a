package scopebridge

import (
	"go.uber.org/zap"

	"github.com/andriiyaremenko/scopebridge/lifetime"
)

type options struct {
	logger         *zap.Logger
	tag            any
	builderOptions []lifetime.BuilderOption
}

type Option func(*options)

var (
	// WithLogger sets logger used by Middleware and passed to lifetime Builders.
	WithLogger = func(logger *zap.Logger) Option {
		return func(opts *options) { opts.logger = logger }
	}

	// WithScopeTag tags lifetime scopes created by ChildScopeServiceProviderFactory.
	WithScopeTag = func(tag any) Option {
		return func(opts *options) { opts.tag = tag }
	}

	WithBuilderOptions = func(builderOptions ...lifetime.BuilderOption) Option {
		return func(opts *options) { opts.builderOptions = append(opts.builderOptions, builderOptions...) }
	}
)

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

func (o options) lifetimeBuilderOptions() []lifetime.BuilderOption {
	return append([]lifetime.BuilderOption{lifetime.WithLogger(o.logger)}, o.builderOptions...)
}
