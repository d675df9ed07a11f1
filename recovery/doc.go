// Package recovery implements the fixed taxonomy of recovery strategies
// keyed by error kind: Timeout, ResourceExhaustion, Communication,
// StateCorruption, and a Default best-effort fallback. The engine never
// raises — Recover always returns a boolean outcome, leaving the agent
// IDLE on success or ERROR on failure.
package recovery
