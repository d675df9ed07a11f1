// Package router implements the CapabilityRouter: scoring-based agent
// selection over the registry, a 60s routing cache invalidated on any
// registry mutation, negotiation across multiple capability kinds, and
// fallback routing.
package router
