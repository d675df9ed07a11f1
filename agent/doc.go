// Package agent implements the runtime contract every participant in the
// coordination fabric shares: identity, a capability set, a status
// machine, a bounded message history, and a per-agent lock that
// serializes message processing.
//
// Agent does not know what a capability kind means — it only stores and
// reports them. The message content an Agent processes is opaque; the
// caller-supplied ProcessFunc interprets it.
package agent
