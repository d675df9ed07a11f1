// Package registry implements the AgentRegistry: the coupled
// agents/capability-index state every other fabric component discovers
// agents through. Registration, capability updates, routing, and
// broadcast all funnel through here; a fixed lock order (top-level, then
// per-agent, then per-capability-kind) keeps concurrent mutation race
// free without a single global critical section.
package registry
