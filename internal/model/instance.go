package model

import "fmt"

// Role distinguishes what a provider instance is used for.
type Role string

const (
	// RoleSearchProvider instances turn queries into company listings.
	RoleSearchProvider Role = "search-provider"
	// RoleEmailFinder instances turn domains into email addresses.
	RoleEmailFinder Role = "email-finder"
)

// ProviderInstance is one credential bound to one external service. The same
// service configured with two keys yields two independent instances, each
// with its own health state. Ordinal is 1-based within the service.
type ProviderInstance struct {
	Role       Role
	Service    string
	Credential string
	Ordinal    int
}

// ID returns the stable instance identity used in health tracking, attempt
// marks, and logs. Credentials never appear in it.
func (p ProviderInstance) ID() string {
	return fmt.Sprintf("%s#%d", p.Service, p.Ordinal)
}
