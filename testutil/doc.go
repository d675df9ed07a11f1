/*
Package testutil provides shared test helpers for the fabric: context
helpers that auto-register cleanup, eventually-style async assertions,
and fixture agent constructors (fixtures subpackage).

# Core capabilities

  - Context helpers: TestContext / TestContextWithTimeout / CancelledContext.
  - Async assertions: AssertEventuallyTrue polls a condition until it is
    true or a timeout elapses.
  - Data helpers: MustJSON for building expected JSON payloads in tests.

# Subpackages

  - testutil/fixtures: constructors for echo, failing, monitor and
    research worker agents, pre-wired with a capability and ready to
    register with an AgentRegistry.
*/
package testutil
