package scopebridge

// Message strings shared by errors and log entries.
const (
	serviceProviderObjectName = "ServiceProvider"
	scopeFactoryObjectName    = "ServiceScopeFactory"
	childFactoryObjectName    = "ChildScopeServiceProviderFactory"

	msgCreateRequestScope      = "cannot create request scope"
	msgCloseRequestScope       = "cannot dispose request scope"
	msgRootScopeNotInitialized = "root lifetime scope is not initialized"
	msgBuilderNotInitialized   = "lifetime builder is not initialized"
)
