// Package di declares the dependency injection contract consumed by host applications:
// service collections, providers, scopes and their disposal semantics.
// Containers plug into it by implementing ServiceProviderFactory.
package di
