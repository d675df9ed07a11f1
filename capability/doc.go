// Package capability defines the unit of advertisement agents use to
// describe what they can do, and the thread-safe set that holds them.
//
// A Capability is a (kind, version) pair: equality and hashing run over
// that pair only, never over parameters or metadata. CapabilitySet wraps
// a map of Capabilities behind a single exclusive lock and accepts three
// kinds of membership key — a full Capability, a bare Kind, or a Kind's
// string value — so callers that only know a capability's name can still
// query it.
package capability
