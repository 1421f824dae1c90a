// Package ditest checks that a provider built by a container honours the di contract.
//
//	func TestSpecification(t *testing.T) {
//		suite.Run(t, &ditest.SpecificationSuite{
//			CreateServiceProvider: func(services *di.ServiceCollection) (di.ServiceProvider, error) {
//				factory := scopebridge.NewServiceProviderFactory(nil)
//				builder, err := factory.CreateBuilder(services)
//				if err != nil {
//					return nil, err
//				}
//
//				return factory.CreateServiceProvider(builder)
//			},
//		})
//	}
package ditest
