package scopebridge

import (
	"errors"

	"github.com/andriiyaremenko/scopebridge/di"
	"github.com/andriiyaremenko/scopebridge/lifetime"
)

var (
	_ di.ServiceProviderFactory[*lifetime.Builder]        = new(ServiceProviderFactory)
	_ di.ServiceProviderFactory[*ChildScopeConfiguration] = new(ChildScopeServiceProviderFactory)
)

// ServiceProviderFactory builds providers over a new root lifetime scope.
type ServiceProviderFactory struct {
	configure func(*lifetime.Builder)
	opts      options
}

// NewServiceProviderFactory returns factory that calls configure after services are populated.
// configure may be nil. Use Builder.Replace to override populated services.
func NewServiceProviderFactory(configure func(*lifetime.Builder), opts ...Option) *ServiceProviderFactory {
	return &ServiceProviderFactory{configure: configure, opts: newOptions(opts)}
}

func (f *ServiceProviderFactory) CreateBuilder(services *di.ServiceCollection) (*lifetime.Builder, error) {
	builder := lifetime.New(f.opts.lifetimeBuilderOptions()...)

	if err := Populate(builder, services); err != nil {
		return nil, err
	}

	if f.configure != nil {
		f.configure(builder)
	}

	if err := builder.Err(); err != nil {
		return nil, err
	}

	return builder, nil
}

// CreateServiceProvider builds root lifetime scope.
// Closing returned provider closes the root scope.
func (f *ServiceProviderFactory) CreateServiceProvider(builder *lifetime.Builder) (di.ServiceProvider, error) {
	if builder == nil {
		return nil, errors.New(msgBuilderNotInitialized)
	}

	root, err := builder.Build()
	if err != nil {
		return nil, err
	}

	return NewServiceProvider(root), nil
}

// ChildScopeConfiguration holds services registered in a child lifetime scope.
type ChildScopeConfiguration struct {
	services  *di.ServiceCollection
	configure []func(*lifetime.Builder)
}

// Configure adds registrations applied to the child scope after services.
func (c *ChildScopeConfiguration) Configure(configure func(*lifetime.Builder)) *ChildScopeConfiguration {
	c.configure = append(c.configure, configure)
	return c
}

// ChildScopeServiceProviderFactory builds providers over nested scopes of an existing root scope.
// Services are visible only to the nested scope, root registrations stay intact.
// Providers are closed together with the root scope.
type ChildScopeServiceProviderFactory struct {
	root      *lifetime.Scope
	configure func(*lifetime.Builder)
	opts      options
}

func NewChildScopeServiceProviderFactory(
	root *lifetime.Scope,
	configure func(*lifetime.Builder),
	opts ...Option,
) *ChildScopeServiceProviderFactory {
	return &ChildScopeServiceProviderFactory{root: root, configure: configure, opts: newOptions(opts)}
}

func (f *ChildScopeServiceProviderFactory) CreateBuilder(services *di.ServiceCollection) (*ChildScopeConfiguration, error) {
	if f.root == nil {
		return nil, errors.New(msgRootScopeNotInitialized)
	}

	if services != nil {
		for _, descriptor := range services.Descriptors() {
			if err := descriptor.Validate(); err != nil {
				return nil, err
			}
		}
	}

	conf := &ChildScopeConfiguration{services: services}
	if f.configure != nil {
		conf.Configure(f.configure)
	}

	return conf, nil
}

func (f *ChildScopeServiceProviderFactory) CreateServiceProvider(conf *ChildScopeConfiguration) (di.ServiceProvider, error) {
	if f.root == nil {
		return nil, errors.New(msgRootScopeNotInitialized)
	}

	if conf == nil {
		conf = &ChildScopeConfiguration{}
	}

	withBridge := !f.root.IsRegistered(di.TypeOf[di.ServiceProvider]())

	scope, err := f.root.BeginScope(
		lifetime.WithTag(f.opts.tag),
		lifetime.WithRegistrations(func(builder *lifetime.Builder) {
			if withBridge {
				registerBridgeServices(builder)
			}

			// Descriptors were validated by CreateBuilder, Builder keeps remaining errors.
			_ = populate(builder, conf.services)

			for _, configure := range conf.configure {
				configure(builder)
			}
		}),
	)
	if err != nil {
		return nil, translate(childFactoryObjectName, err)
	}

	return NewServiceProvider(scope), nil
}
